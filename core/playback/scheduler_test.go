package playback

import (
	"errors"
	"testing"
	"time"

	"github.com/koscakluka/ema-live/core/audio"
)

type manualClock struct{ now int64 }

func (c *manualClock) Now() int64 { return c.now }

func (c *manualClock) set(d time.Duration) { c.now = audio.Downstream.SamplesIn(d) }

type recordingSink struct {
	written int
	clears  int
}

func (s *recordingSink) Write(samples []float32) int {
	s.written += len(samples)
	return 0
}

func (s *recordingSink) Clear() { s.clears++ }

func chunk(d time.Duration) []byte {
	return make([]byte, audio.Downstream.BytesIn(d))
}

func TestEnqueueSchedulesChunksBackToBack(t *testing.T) {
	clock := &manualClock{}
	s := NewScheduler(clock, &recordingSink{})

	first := s.Enqueue(chunk(100 * time.Millisecond))
	clock.set(50 * time.Millisecond)
	second := s.Enqueue(chunk(150 * time.Millisecond))
	clock.set(500 * time.Millisecond)
	third := s.Enqueue(chunk(80 * time.Millisecond))

	want := []time.Duration{0, 100 * time.Millisecond, 500 * time.Millisecond}
	for i, u := range []Unit{first, second, third} {
		if u.Start() != want[i] {
			t.Fatalf("expected unit %d to start at %s, got %s", i, want[i], u.Start())
		}
	}
	if second.Duration() != 150*time.Millisecond {
		t.Fatalf("expected second unit to last 150ms, got %s", second.Duration())
	}
}

func TestEnqueueNeverOverlapsOrLeavesGaps(t *testing.T) {
	clock := &manualClock{}
	s := NewScheduler(clock, &recordingSink{})

	var units []Unit
	for i := range 20 {
		units = append(units, s.Enqueue(chunk(time.Duration(20+i*7)*time.Millisecond)))
		clock.now += int64(i * 130)
	}

	for i := 1; i < len(units); i++ {
		prev, cur := units[i-1], units[i]
		if cur.Offset < prev.End() {
			t.Fatalf("expected unit %d to start at or after %d, got %d", i, prev.End(), cur.Offset)
		}
	}
	for _, u := range s.Pending() {
		if u.End() <= clock.now {
			t.Fatalf("expected finished units to be pruned, found one ending at %d (now %d)", u.End(), clock.now)
		}
	}
}

func TestEnqueueZeroLengthIsNoop(t *testing.T) {
	clock := &manualClock{}
	sink := &recordingSink{}
	s := NewScheduler(clock, sink)

	s.Enqueue(chunk(100 * time.Millisecond))
	if u := s.Enqueue(nil); !u.IsZero() {
		t.Fatalf("expected zero unit for empty chunk, got %+v", u)
	}
	if u := s.Enqueue([]byte{0x01}); !u.IsZero() {
		t.Fatalf("expected zero unit for a lone byte, got %+v", u)
	}

	if got := len(s.Pending()); got != 1 {
		t.Fatalf("expected 1 pending unit, got %d", got)
	}
	if s.Buffered() != 100*time.Millisecond {
		t.Fatalf("expected 100ms buffered, got %s", s.Buffered())
	}
}

func TestFlushThenEnqueueStartsAtNow(t *testing.T) {
	clock := &manualClock{}
	sink := &recordingSink{}
	s := NewScheduler(clock, sink)

	for range 3 {
		s.Enqueue(chunk(200 * time.Millisecond))
	}
	clock.set(50 * time.Millisecond)
	s.Flush()

	if got := len(s.Pending()); got != 0 {
		t.Fatalf("expected no pending units after flush, got %d", got)
	}
	if sink.clears != 1 {
		t.Fatalf("expected sink to be cleared once, got %d", sink.clears)
	}
	if s.Buffered() != 0 {
		t.Fatalf("expected nothing buffered after flush, got %s", s.Buffered())
	}

	u := s.Enqueue(chunk(40 * time.Millisecond))
	if u.Start() != 50*time.Millisecond {
		t.Fatalf("expected post-flush chunk to start at 50ms, got %s", u.Start())
	}
}

func TestFlushWithNothingPending(t *testing.T) {
	clock := &manualClock{}
	s := NewScheduler(clock, &recordingSink{})

	s.Flush()
	s.Flush()

	clock.set(time.Second)
	if u := s.Enqueue(chunk(10 * time.Millisecond)); u.Start() != time.Second {
		t.Fatalf("expected chunk to start at 1s, got %s", u.Start())
	}
}

func TestFlushCancelsUnitSoundingNow(t *testing.T) {
	clock := &manualClock{}
	s := NewScheduler(clock, &recordingSink{})

	s.Enqueue(chunk(time.Second))
	s.Enqueue(chunk(time.Second))
	clock.set(300 * time.Millisecond)

	if got := len(s.Pending()); got != 2 {
		t.Fatalf("expected 2 pending units mid-playback, got %d", got)
	}
	s.Flush()
	if got := len(s.Pending()); got != 0 {
		t.Fatalf("expected interruption to void every unplayed unit, got %d", got)
	}
}

func TestOverrunDropsOldestQueuedAudio(t *testing.T) {
	clock := &manualClock{}
	var reported []error
	s := NewScheduler(clock, &recordingSink{},
		WithCapacity(time.Second),
		WithOverrunHandler(func(err error) { reported = append(reported, err) }),
	)

	s.Enqueue(chunk(400 * time.Millisecond))
	s.Enqueue(chunk(400 * time.Millisecond))
	last := s.Enqueue(chunk(400 * time.Millisecond))

	if len(reported) != 1 || !errors.Is(reported[0], ErrSchedulingOverrun) {
		t.Fatalf("expected one ErrSchedulingOverrun, got %v", reported)
	}
	if s.Buffered() != time.Second {
		t.Fatalf("expected buffered audio capped at 1s, got %s", s.Buffered())
	}

	pending := s.Pending()
	if len(pending) != 3 {
		t.Fatalf("expected 3 pending units, got %d", len(pending))
	}
	wantStart := []time.Duration{0, 200 * time.Millisecond, 600 * time.Millisecond}
	wantDur := []time.Duration{200 * time.Millisecond, 400 * time.Millisecond, 400 * time.Millisecond}
	for i, u := range pending {
		if u.Start() != wantStart[i] || u.Duration() != wantDur[i] {
			t.Fatalf("expected unit %d at %s for %s, got %s for %s", i, wantStart[i], wantDur[i], u.Start(), u.Duration())
		}
	}
	if last.Start() != 600*time.Millisecond {
		t.Fatalf("expected returned unit to reflect the shift, got %s", last.Start())
	}
}

func TestOverrunTrimsUnitSoundingNow(t *testing.T) {
	clock := &manualClock{}
	s := NewScheduler(clock, &recordingSink{}, WithCapacity(time.Second))

	s.Enqueue(chunk(400 * time.Millisecond))
	s.Enqueue(chunk(400 * time.Millisecond))
	clock.set(100 * time.Millisecond)
	s.Enqueue(chunk(400 * time.Millisecond))

	pending := s.Pending()
	if len(pending) != 3 {
		t.Fatalf("expected 3 pending units, got %d", len(pending))
	}
	if pending[0].Start() != 0 || pending[0].Duration() != 300*time.Millisecond {
		t.Fatalf("expected playing unit trimmed to 300ms, got %s for %s", pending[0].Start(), pending[0].Duration())
	}
	if pending[1].Start() != 300*time.Millisecond {
		t.Fatalf("expected next unit to move up to 300ms, got %s", pending[1].Start())
	}
	for i := 1; i < len(pending); i++ {
		if pending[i].Offset != pending[i-1].End() {
			t.Fatalf("expected contiguous units after eviction, unit %d starts at %d after %d", i, pending[i].Offset, pending[i-1].End())
		}
	}
}

func TestOversizedChunkIsTrimmedToCapacity(t *testing.T) {
	clock := &manualClock{}
	s := NewScheduler(clock, &recordingSink{}, WithCapacity(time.Second))

	u := s.Enqueue(chunk(3 * time.Second))
	if u.Start() != 0 || u.Duration() != time.Second {
		t.Fatalf("expected chunk trimmed to the newest 1s, got %s for %s", u.Start(), u.Duration())
	}
}
