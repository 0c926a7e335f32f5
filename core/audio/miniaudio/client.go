package miniaudio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-live/core/audio"
)

// Host opens capture and playback devices on one miniaudio context.
type Host struct {
	// audioContext is only saved to be able to uninitialize it, it is an
	// ownership thing
	audioContext *malgo.AllocatedContext

	mu     sync.Mutex
	closed bool
}

func NewHost() (*Host, error) {
	audioCtx, err := malgo.InitContext(
		nil,
		malgo.ContextConfig{},
		func(message string) { logger.Debug("malgo", "message", message) },
	)
	if err != nil {
		return nil, fmt.Errorf("malgo InitContext failed: %w: %w", audio.ErrDeviceUnavailable, err)
	}

	return &Host{audioContext: audioCtx}, nil
}

func (h *Host) OpenInput() (audio.Input, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, fmt.Errorf("%w: audio context closed", audio.ErrDeviceUnavailable)
	}
	return &captureClient{audioContext: h.audioContext}, nil
}

func (h *Host) OpenOutput(sampleRate int) (audio.Output, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, fmt.Errorf("%w: audio context closed", audio.ErrDeviceUnavailable)
	}
	return &playbackClient{audioContext: h.audioContext, sampleRate: sampleRate}, nil
}

// Close releases the context. Devices opened from it must be stopped first.
func (h *Host) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	_ = h.audioContext.Uninit()
	h.audioContext.Free()
}
