package audio

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"
)

const (
	DefaultFrameDuration = 20 * time.Millisecond
	DefaultFrameQueue    = 64
)

type CaptureOption func(*Capture)

// WithFrameDuration sets the length of each emitted PCM frame.
func WithFrameDuration(d time.Duration) CaptureOption {
	return func(c *Capture) {
		if d > 0 {
			c.frameBytes = Upstream.BytesIn(d)
		}
	}
}

// WithFrameQueue sets how many frames may wait in the handoff channel before
// new frames are dropped.
func WithFrameQueue(n int) CaptureOption {
	return func(c *Capture) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// Capture turns native-rate device buffers into fixed-size 16 kHz PCM16
// frames. OnFrame runs in the device callback and hands frames to the
// consumer through a bounded channel; when the consumer falls behind, frames
// are dropped rather than blocking the callback.
type Capture struct {
	input      Input
	frameBytes int
	queueSize  int
	frames     chan []byte

	// Callback-owned state, touched only from OnFrame.
	pending    []byte
	nativeRate int
	upsampler  *Upsampler

	dropped atomic.Int64

	mu      sync.Mutex
	started bool
}

func NewCapture(input Input, opts ...CaptureOption) *Capture {
	c := &Capture{
		input:      input,
		frameBytes: Upstream.BytesIn(DefaultFrameDuration),
		queueSize:  DefaultFrameQueue,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.frames = make(chan []byte, c.queueSize)
	return c
}

// Frames yields encoded upstream frames in capture order.
func (c *Capture) Frames() <-chan []byte {
	return c.frames
}

// Dropped reports how many frames were discarded because the handoff queue
// was full.
func (c *Capture) Dropped() int64 {
	return c.dropped.Load()
}

// Start acquires the input device. Failures wrap ErrDeviceUnavailable.
func (c *Capture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}
	if c.input == nil {
		return fmt.Errorf("%w: no input device", ErrDeviceUnavailable)
	}

	c.pending = c.pending[:0]
	c.nativeRate = 0
	c.upsampler = nil

	if err := c.input.Start(c.OnFrame); err != nil {
		if errors.Is(err, ErrDeviceUnavailable) {
			return fmt.Errorf("failed to start capture: %w", err)
		}
		return fmt.Errorf("failed to start capture: %w: %w", ErrDeviceUnavailable, err)
	}
	c.started = true
	logger.Debug("capture started", "frame_bytes", c.frameBytes)
	return nil
}

// Stop releases the input device. It is safe to call more than once.
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return nil
	}
	c.started = false

	if err := c.input.Stop(); err != nil {
		return fmt.Errorf("failed to stop capture: %w", err)
	}
	logger.Debug("capture stopped", "dropped_frames", c.dropped.Load())
	return nil
}

// OnFrame converts one device buffer and posts every completed frame. It
// never blocks and never fails; buffers that cannot be converted are dropped.
func (c *Capture) OnFrame(frame Frame) {
	if len(frame.Samples) == 0 {
		return
	}

	mono := Downmix(frame.Samples, frame.Channels)
	converted, err := c.convert(mono, frame.SampleRate)
	if err != nil {
		c.dropped.Add(1)
		droppedFrames.Add(ctxBackground, 1, metric.WithAttributes(reasonConversion))
		return
	}

	c.pending = append(c.pending, EncodeLinear16(converted)...)
	for len(c.pending) >= c.frameBytes {
		out := make([]byte, c.frameBytes)
		copy(out, c.pending[:c.frameBytes])
		c.pending = c.pending[:copy(c.pending, c.pending[c.frameBytes:])]

		select {
		case c.frames <- out:
		default:
			c.dropped.Add(1)
			droppedFrames.Add(ctxBackground, 1, metric.WithAttributes(reasonQueueFull))
		}
	}
}

func (c *Capture) convert(samples []float32, rate int) ([]float32, error) {
	switch {
	case rate == Upstream.SampleRate:
		return samples, nil
	case rate > Upstream.SampleRate:
		return Downsample(samples, rate, Upstream.SampleRate)
	case rate <= 0:
		return nil, fmt.Errorf("invalid sample rate %d", rate)
	}

	if c.upsampler == nil || c.nativeRate != rate {
		u, err := NewUpsampler(rate, Upstream.SampleRate)
		if err != nil {
			return nil, err
		}
		c.upsampler, c.nativeRate = u, rate
	}
	return c.upsampler.Process(samples)
}
