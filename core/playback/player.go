package playback

import (
	"context"
	"fmt"
	"time"

	"github.com/koscakluka/ema-live/core/audio"
)

// Player binds a scheduler to one output device. The device pulls samples
// through Render; everything else goes through the scheduler.
type Player struct {
	*Scheduler

	output audio.Output
	ring   *Ring
	clock  *SampleClock
}

// NewPlayer sizes the ring so that it holds exactly the scheduler capacity;
// the scheduler then evicts the same samples the ring overwrites.
func NewPlayer(output audio.Output, opts ...SchedulerOption) *Player {
	p := &Player{output: output, clock: &SampleClock{}}

	p.Scheduler = NewScheduler(p.clock, nil, opts...)
	p.ring = NewRing(int(p.capacity))
	p.sink = p.ring
	return p
}

func (p *Player) Start() error {
	if err := p.output.Start(p.Render); err != nil {
		return fmt.Errorf("failed to start playback: %w", err)
	}
	return nil
}

func (p *Player) Stop() error {
	p.Flush()
	if err := p.output.Stop(); err != nil {
		return fmt.Errorf("failed to stop playback: %w", err)
	}
	return nil
}

// Render is the device callback. It never blocks.
func (p *Player) Render(out []float32) {
	n := p.ring.Read(out)
	if n > 0 && n < len(out) {
		underruns.Add(context.Background(), 1)
	}
	p.clock.Advance(len(out))
}

// Position reports how much output has been rendered, silence included.
func (p *Player) Position() time.Duration {
	return p.format.SampleDuration(p.clock.Now())
}
