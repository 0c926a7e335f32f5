package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/koscakluka/ema-live/core/audio"
)

const DefaultCapacity = 30 * time.Second

// ErrSchedulingOverrun is reported when an enqueue pushes the queued audio
// past the sink capacity and older audio had to be dropped.
var ErrSchedulingOverrun = errors.New("playback scheduling overrun")

// Sink receives scheduled samples in playback order.
type Sink interface {
	Write(samples []float32) int
	Clear()
}

// Unit is one enqueued chunk placed on the output clock. Offset and Samples
// are in frames at the scheduler's sample rate.
type Unit struct {
	Offset  int64
	Samples int64

	rate int
}

func (u Unit) End() int64 { return u.Offset + u.Samples }

func (u Unit) Start() time.Duration {
	return audio.EncodingInfo{SampleRate: u.rate}.SampleDuration(u.Offset)
}

func (u Unit) Duration() time.Duration {
	return audio.EncodingInfo{SampleRate: u.rate}.SampleDuration(u.Samples)
}

func (u Unit) IsZero() bool { return u.Samples == 0 }

type SchedulerOption func(*Scheduler)

// WithCapacity caps how far ahead of the clock audio may be queued.
func WithCapacity(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.capacity = s.format.SamplesIn(d)
		}
	}
}

func WithOverrunHandler(handler func(error)) SchedulerOption {
	return func(s *Scheduler) {
		if handler != nil {
			s.onOverrun = handler
		}
	}
}

// Scheduler places chunks back to back on the output clock so that playback
// has no gaps between chunks that arrive ahead of time. All methods
// serialize on one mutex; the render path only touches the sink and clock.
type Scheduler struct {
	clock     Clock
	sink      Sink
	format    audio.EncodingInfo
	capacity  int64
	onOverrun func(error)

	mu       sync.Mutex
	units    []Unit
	nextFree int64
}

func NewScheduler(clock Clock, sink Sink, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		clock:     clock,
		sink:      sink,
		format:    audio.Downstream,
		onOverrun: func(error) {},
	}
	s.capacity = s.format.SamplesIn(DefaultCapacity)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enqueue schedules a PCM16 chunk at the later of now and the end of the
// previous chunk. A zero-length chunk is ignored and yields a zero Unit.
func (s *Scheduler) Enqueue(pcm []byte) Unit {
	samples := audio.DecodeLinear16(pcm)
	if len(samples) == 0 {
		return Unit{}
	}

	s.mu.Lock()
	now := s.clock.Now()
	s.pruneLocked(now)

	start := max(now, s.nextFree)
	s.units = append(s.units, Unit{Offset: start, Samples: int64(len(samples)), rate: s.format.SampleRate})
	s.nextFree = start + int64(len(samples))

	var evicted int64
	if ahead := s.nextFree - now; ahead > s.capacity {
		evicted = ahead - s.capacity
		s.evictLocked(now, evicted)
	}
	s.sink.Write(samples)

	var unit Unit
	if len(s.units) > 0 {
		unit = s.units[len(s.units)-1]
	}
	s.mu.Unlock()

	if evicted > 0 {
		s.reportOverrun(evicted)
	}
	return unit
}

// Flush cancels every unit that has not finished playing, including the one
// sounding now, and re-anchors the schedule at the current clock position.
func (s *Scheduler) Flush() {
	s.mu.Lock()
	now := s.clock.Now()
	s.pruneLocked(now)
	cancelled := len(s.units)
	s.units = nil
	s.nextFree = now
	s.sink.Clear()
	s.mu.Unlock()

	if cancelled > 0 {
		logger.Debug("playback flushed", "cancelled_units", cancelled)
	}
}

// Pending returns the units that have not finished playing.
func (s *Scheduler) Pending() []Unit {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(s.clock.Now())
	return append([]Unit(nil), s.units...)
}

// Buffered reports how much audio is queued ahead of the clock.
func (s *Scheduler) Buffered() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	if s.nextFree <= now {
		return 0
	}
	return s.format.SampleDuration(s.nextFree - now)
}

func (s *Scheduler) pruneLocked(now int64) {
	i := 0
	for i < len(s.units) && s.units[i].End() <= now {
		i++
	}
	if i > 0 {
		s.units = append(s.units[:0], s.units[i:]...)
	}
}

// evictLocked removes the oldest n queued frames, those in [now, now+n),
// and moves everything after them earlier by n.
func (s *Scheduler) evictLocked(now, n int64) {
	cut := now + n
	kept := s.units[:0]
	for _, u := range s.units {
		end := u.End()
		switch {
		case u.Offset >= cut:
			u.Offset -= n
		case end <= cut:
			// Fully inside the evicted window; a unit that started before
			// now ends at now and is finished.
			continue
		default:
			offset := min(u.Offset, now)
			u.Samples = end - n - offset
			u.Offset = offset
		}
		kept = append(kept, u)
	}
	s.units = kept
	s.nextFree -= n
}

func (s *Scheduler) reportOverrun(evicted int64) {
	ctx := context.Background()
	overruns.Add(ctx, 1)
	evictedSamples.Add(ctx, evicted)

	dropped := s.format.SampleDuration(evicted)
	logger.Warn("playback queue overrun, dropped oldest audio", "dropped", dropped)
	s.onOverrun(fmt.Errorf("%w: dropped %s of queued audio", ErrSchedulingOverrun, dropped))
}
