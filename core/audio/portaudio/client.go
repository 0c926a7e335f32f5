package portaudio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/koscakluka/ema-live/core/audio"
)

// Host is an alternative backend for systems where miniaudio cannot reach the
// right device. Streams run in callback mode so the real-time contract matches
// the miniaudio backend.
type Host struct {
	framesPerBuffer int

	mu     sync.Mutex
	closed bool
}

func NewHost(framesPerBuffer int) (*Host, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w: %w", audio.ErrDeviceUnavailable, err)
	}
	if framesPerBuffer <= 0 {
		framesPerBuffer = 480
	}
	return &Host{framesPerBuffer: framesPerBuffer}, nil
}

func (h *Host) OpenInput() (audio.Input, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, fmt.Errorf("%w: portaudio terminated", audio.ErrDeviceUnavailable)
	}
	return &input{framesPerBuffer: h.framesPerBuffer}, nil
}

func (h *Host) OpenOutput(sampleRate int) (audio.Output, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, fmt.Errorf("%w: portaudio terminated", audio.ErrDeviceUnavailable)
	}
	return &output{framesPerBuffer: h.framesPerBuffer, sampleRate: sampleRate}, nil
}

func (h *Host) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	portaudio.Terminate()
}

type input struct {
	framesPerBuffer int
	stream          *portaudio.Stream
	mu              sync.Mutex
}

func (i *input) Start(onFrame func(audio.Frame)) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.stream != nil {
		return nil
	}

	device, err := portaudio.DefaultInputDevice()
	if err != nil {
		return fmt.Errorf("no default input device: %w: %w", audio.ErrDeviceUnavailable, err)
	}
	sampleRate := device.DefaultSampleRate

	stream, err := portaudio.OpenDefaultStream(1, 0, sampleRate, i.framesPerBuffer, func(in []float32) {
		onFrame(audio.Frame{Samples: in, SampleRate: int(sampleRate), Channels: 1})
	})
	if err != nil {
		return fmt.Errorf("failed to open PortAudio stream: %w: %w", audio.ErrDeviceUnavailable, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to start PortAudio stream: %w: %w", audio.ErrDeviceUnavailable, err)
	}

	i.stream = stream
	logger.Info("capture stream started", "sample_rate", sampleRate)
	return nil
}

func (i *input) Stop() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return closeStream(&i.stream)
}

type output struct {
	framesPerBuffer int
	sampleRate      int
	stream          *portaudio.Stream
	mu              sync.Mutex
}

func (o *output) SampleRate() int { return o.sampleRate }

func (o *output) Start(render func(out []float32)) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stream != nil {
		return nil
	}

	stream, err := portaudio.OpenDefaultStream(0, 1, float64(o.sampleRate), o.framesPerBuffer, render)
	if err != nil {
		return fmt.Errorf("failed to open PortAudio stream: %w: %w", audio.ErrDeviceUnavailable, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to start PortAudio stream: %w: %w", audio.ErrDeviceUnavailable, err)
	}

	o.stream = stream
	logger.Info("playback stream started", "sample_rate", o.sampleRate)
	return nil
}

func (o *output) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return closeStream(&o.stream)
}

func closeStream(stream **portaudio.Stream) error {
	if *stream == nil {
		return nil
	}
	s := *stream
	*stream = nil

	if err := s.Stop(); err != nil {
		s.Close()
		return fmt.Errorf("failed to stop PortAudio stream: %w", err)
	}
	if err := s.Close(); err != nil {
		return fmt.Errorf("failed to close PortAudio stream: %w", err)
	}
	return nil
}
