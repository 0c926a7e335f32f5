package miniaudio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-live/core/audio"
)

// playbackClient pulls float32 samples from a render function at a fixed
// rate. The callback owns scratch; nothing else touches it.
type playbackClient struct {
	audioContext *malgo.AllocatedContext
	device       *malgo.Device
	sampleRate   int

	scratch []float32

	mu sync.Mutex
}

func (c *playbackClient) SampleRate() int {
	return c.sampleRate
}

func (c *playbackClient) Start(render func(out []float32)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device != nil {
		return nil
	}

	channels := 1
	format := malgo.FormatF32
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.SampleRate = uint32(c.sampleRate)
	config.Playback.Format = format
	config.Playback.Channels = uint32(channels)
	config.Alsa.NoMMap = 1
	config.PerformanceProfile = malgo.LowLatency
	config.PeriodSizeInFrames = uint32(c.sampleRate / 100) // ~10ms of audio
	config.Periods = 3

	device, err := malgo.InitDevice(
		c.audioContext.Context,
		config,
		malgo.DeviceCallbacks{Data: c.processAudio(bytesPerFrame, render)},
	)
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w: %w", audio.ErrDeviceUnavailable, err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start playback device: %w: %w", audio.ErrDeviceUnavailable, err)
	}

	c.device = device
	logger.Info("playback device started", "sample_rate", c.sampleRate)
	return nil
}

func (c *playbackClient) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return nil
	}

	err := c.device.Stop()
	c.device.Uninit()
	c.device = nil
	if err != nil {
		return fmt.Errorf("failed to stop playback device: %w", err)
	}
	return nil
}

func (c *playbackClient) processAudio(bytesPerFrame int, render func([]float32)) malgo.DataProc {
	return func(pOutput, _ []byte, frameCount uint32) {
		need := int(frameCount) * bytesPerFrame
		if len(pOutput) < need {
			need = len(pOutput) / bytesPerFrame * bytesPerFrame
		}
		frames := need / bytesPerFrame
		if cap(c.scratch) < frames {
			c.scratch = make([]float32, frames)
		}
		out := c.scratch[:frames]
		render(out)

		for i, s := range out {
			binary.LittleEndian.PutUint32(pOutput[i*4:], math.Float32bits(s))
		}
	}
}
