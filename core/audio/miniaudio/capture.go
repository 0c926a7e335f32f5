package miniaudio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-live/core/audio"
)

// captureClient reads float32 samples at the device's native rate. Rate
// conversion is left to audio.Capture.
type captureClient struct {
	audioContext *malgo.AllocatedContext
	device       *malgo.Device

	// Set before device.Start and only read by the data callback afterwards.
	sampleRate int
	samples    []float32

	mu sync.Mutex
}

func (c *captureClient) Start(onFrame func(audio.Frame)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device != nil {
		return nil
	}

	channels := 1
	format := malgo.FormatF32
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	config := malgo.DefaultDeviceConfig(malgo.Capture)
	config.SampleRate = 0 // native rate
	config.Capture.Format = format
	config.Capture.Channels = uint32(channels)
	config.Alsa.NoMMap = 1
	config.PerformanceProfile = malgo.LowLatency
	config.PeriodSizeInFrames = 480
	config.Periods = 3

	device, err := malgo.InitDevice(c.audioContext.Context, config, malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, frameCount uint32) {
			if frame, ok := c.frame(pInput, frameCount, bytesPerFrame, channels); ok {
				onFrame(frame)
			}
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize capture device: %w: %w", audio.ErrDeviceUnavailable, err)
	}
	// The native rate is only known once the device exists, and must be in
	// place before Start lets the callback run.
	c.sampleRate = int(device.SampleRate())

	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start capture device: %w: %w", audio.ErrDeviceUnavailable, err)
	}

	c.device = device
	logger.Info("capture device started", "sample_rate", c.sampleRate)
	return nil
}

// frame wraps one callback buffer. Short or empty buffers are skipped.
func (c *captureClient) frame(pInput []byte, frameCount uint32, bytesPerFrame, channels int) (audio.Frame, bool) {
	n := int(frameCount) * bytesPerFrame
	if len(pInput) < n || n == 0 {
		return audio.Frame{}, false
	}
	return audio.Frame{
		Samples:    c.decode(pInput[:n]),
		SampleRate: c.sampleRate,
		Channels:   channels,
	}, true
}

// decode reuses one buffer across callbacks; audio.Capture does not retain
// frame samples.
func (c *captureClient) decode(data []byte) []float32 {
	n := len(data) / 4
	if cap(c.samples) < n {
		c.samples = make([]float32, n)
	}
	samples := c.samples[:n]
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return samples
}

func (c *captureClient) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return nil
	}

	err := c.device.Stop()
	c.device.Uninit()
	c.device = nil
	if err != nil {
		return fmt.Errorf("failed to stop device: %w", err)
	}
	return nil
}
