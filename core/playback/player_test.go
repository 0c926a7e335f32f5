package playback

import (
	"sync"
	"testing"
	"time"

	"github.com/koscakluka/ema-live/core/audio"
)

type fakeOutput struct {
	render  func([]float32)
	stopped bool
}

func (o *fakeOutput) Start(render func([]float32)) error {
	o.render = render
	return nil
}

func (o *fakeOutput) Stop() error {
	o.stopped = true
	return nil
}

func (o *fakeOutput) SampleRate() int { return audio.DownstreamSampleRate }

func TestPlayerRendersScheduledAudio(t *testing.T) {
	out := &fakeOutput{}
	p := NewPlayer(out)
	if err := p.Start(); err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}

	p.Enqueue(audio.EncodeLinear16([]float32{0.5, -0.5}))

	buf := make([]float32, 4)
	out.render(buf)

	want := []float32{audio.Normalize(audio.Quantize(0.5)), audio.Normalize(audio.Quantize(-0.5)), 0, 0}
	for i := range want {
		if buf[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, buf)
		}
	}
	if got := len(p.Pending()); got != 0 {
		t.Fatalf("expected chunk to be finished once rendered, got %d pending", got)
	}
}

func TestPlayerFlushSilencesOutput(t *testing.T) {
	out := &fakeOutput{}
	p := NewPlayer(out)
	p.Start()

	p.Enqueue(chunkOf(0.25, 100*time.Millisecond))
	buf := make([]float32, 240)
	out.render(buf)
	if buf[0] == 0 {
		t.Fatalf("expected audio before flush")
	}

	p.Flush()
	out.render(buf)
	for _, s := range buf {
		if s != 0 {
			t.Fatalf("expected silence after flush, got %v", s)
		}
	}

	p.Stop()
	if !out.stopped {
		t.Fatalf("expected output to be stopped")
	}
}

func TestPlayerClockCountsSilence(t *testing.T) {
	out := &fakeOutput{}
	p := NewPlayer(out)
	p.Start()

	out.render(make([]float32, 2400))
	if p.Position() != 100*time.Millisecond {
		t.Fatalf("expected 100ms rendered, got %s", p.Position())
	}

	u := p.Enqueue(chunkOf(0.25, 10*time.Millisecond))
	if u.Start() != 100*time.Millisecond {
		t.Fatalf("expected chunk to start at the current position, got %s", u.Start())
	}
}

func TestFlushWinsAgainstConcurrentEnqueueAndRender(t *testing.T) {
	out := &fakeOutput{}
	p := NewPlayer(out)
	if err := p.Start(); err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}

	var (
		wg   sync.WaitGroup
		stop = make(chan struct{})
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		buf := make([]float32, 480)
		for {
			select {
			case <-stop:
				return
			default:
				out.render(buf)
			}
		}
	}()
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				p.Enqueue(chunkOf(0.1, 20*time.Millisecond))
			}
		}
	}()

	for i := range 500 {
		p.Flush()
		before := p.clock.Now()
		u := p.Enqueue(chunkOf(0.2, 10*time.Millisecond))
		if u.IsZero() {
			t.Fatalf("iteration %d: expected a scheduled unit", i)
		}
		if u.Offset < before {
			t.Fatalf("iteration %d: expected unit after flush to start at or after %d, got %d", i, before, u.Offset)
		}
	}

	close(stop)
	wg.Wait()

	p.Flush()
	if got := p.ring.Len(); got != 0 {
		t.Fatalf("expected empty ring after final flush, got %d samples", got)
	}
	if got := len(p.Pending()); got != 0 {
		t.Fatalf("expected nothing pending after final flush, got %d units", got)
	}
}

func chunkOf(v float32, d time.Duration) []byte {
	samples := make([]float32, audio.Downstream.SamplesIn(d))
	for i := range samples {
		samples[i] = v
	}
	return audio.EncodeLinear16(samples)
}
