package audio

import "errors"

// ErrDeviceUnavailable is returned when an input or output device cannot be
// acquired, either because permission was denied or the hardware is busy.
var ErrDeviceUnavailable = errors.New("audio device unavailable")

// Frame is one buffer of native-rate samples handed over by a capture
// callback. Samples are interleaved when Channels > 1.
type Frame struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Input is an exclusive handle on a capture device. onFrame is invoked from
// the device's real-time context and must not block.
type Input interface {
	Start(onFrame func(Frame)) error
	Stop() error
}

// Output is an exclusive handle on a playback device running at a fixed
// mono sample rate. render is invoked from the device's real-time context and
// must fill out completely without blocking.
type Output interface {
	Start(render func(out []float32)) error
	Stop() error
	SampleRate() int
}

// Host opens devices on one audio backend.
type Host interface {
	OpenInput() (Input, error)
	OpenOutput(sampleRate int) (Output, error)
	Close()
}
