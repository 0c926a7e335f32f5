package audio

import "time"

const (
	UpstreamSampleRate   = 16000
	DownstreamSampleRate = 24000
)

// Upstream is the format of microphone audio sent to the agent.
var Upstream = EncodingInfo{SampleRate: UpstreamSampleRate, Format: EncodingLinear16}

// Downstream is the format of agent audio received for playback.
var Downstream = EncodingInfo{SampleRate: DownstreamSampleRate, Format: EncodingLinear16}

// EncodingInfo describes a mono, headerless PCM stream.
type EncodingInfo struct {
	SampleRate int
	Format     encodingFormat
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format.Name() == ""
}

// Samples returns the number of samples held in n bytes.
func (e EncodingInfo) Samples(n int) int {
	size := e.Format.ByteSize()
	if size <= 0 {
		return 0
	}
	return n / size
}

// SampleDuration converts a sample count to wall time at this rate.
func (e EncodingInfo) SampleDuration(samples int64) time.Duration {
	if e.SampleRate <= 0 {
		return 0
	}
	return time.Duration(samples) * time.Second / time.Duration(e.SampleRate)
}

// SamplesIn converts a duration to a sample count, rounding down.
func (e EncodingInfo) SamplesIn(d time.Duration) int64 {
	return int64(d) * int64(e.SampleRate) / int64(time.Second)
}

// Duration returns how long n bytes of audio play for.
func (e EncodingInfo) Duration(n int) time.Duration {
	return e.SampleDuration(int64(e.Samples(n)))
}

// BytesIn returns the byte length of d worth of audio.
func (e EncodingInfo) BytesIn(d time.Duration) int {
	return int(e.SamplesIn(d)) * e.Format.ByteSize()
}

type encodingFormat string

func (e encodingFormat) Name() string {
	return string(e)
}

func (e encodingFormat) ByteSize() int {
	switch e {
	case EncodingLinear16:
		return 2
	}
	return -1
}

const (
	EncodingLinear16 encodingFormat = "linear16"
)
