package session

import (
	"errors"
	"fmt"

	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/playback"
)

// outputContext is the registration record for one opened output device.
// The render callback is attached at most once; release detaches it and
// the context is discarded.
type outputContext struct {
	output     audio.Output
	player     *playback.Player
	registered bool
}

func newOutputContext(output audio.Output, opts ...playback.SchedulerOption) *outputContext {
	return &outputContext{output: output, player: playback.NewPlayer(output, opts...)}
}

func (c *outputContext) register() error {
	if c.registered {
		return nil
	}
	if err := c.player.Start(); err != nil {
		if errors.Is(err, audio.ErrDeviceUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %w", audio.ErrDeviceUnavailable, err)
	}
	c.registered = true
	return nil
}

func (c *outputContext) release() error {
	if !c.registered {
		return nil
	}
	c.registered = false
	return c.player.Stop()
}
