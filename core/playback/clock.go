package playback

import "sync/atomic"

// Clock reports the output position in frames rendered since the device
// started.
type Clock interface {
	Now() int64
}

// SampleClock is advanced by the render callback after every buffer it
// fills, so it counts silence as well as audio.
type SampleClock struct {
	frames atomic.Int64
}

func (c *SampleClock) Now() int64 { return c.frames.Load() }

func (c *SampleClock) Advance(frames int) {
	c.frames.Add(int64(frames))
}
