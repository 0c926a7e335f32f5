package audio

import (
	"encoding/binary"
	"math"
)

// quantizeSlack absorbs float32 representation error so that n/32767 for
// positive n, and n/32768 for negative n, re-quantize to n. Values within
// the slack below an integer round up to it instead of truncating.
const quantizeSlack = 1.0 / 256

// Quantize converts a normalized sample to signed 16-bit PCM. Values are
// clamped to [-1, 1]; the negative half scales by 32768 and the positive half
// by 32767 so both endpoints map exactly onto the int16 range. The result is
// truncated toward zero.
func Quantize(s float32) int16 {
	v := float64(s)
	if math.IsNaN(v) {
		return 0
	} else if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	if v < 0 {
		return int16(math.Max(math.Trunc(v*32768-quantizeSlack), -32768))
	}
	return int16(math.Min(math.Trunc(v*32767+quantizeSlack), 32767))
}

// Normalize is the playback-side inverse of Quantize. It scales both halves
// by 32768, so Quantize(Normalize(n)) is exact for n <= 0 and may come back
// one lower for positive n.
func Normalize(s int16) float32 {
	return float32(s) / 32768
}

// EncodeLinear16 quantizes samples into little-endian PCM16 bytes.
func EncodeLinear16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(Quantize(s)))
	}
	return out
}

// DecodeLinear16 reads little-endian PCM16 bytes into normalized samples. A
// trailing odd byte is ignored.
func DecodeLinear16(data []byte) []float32 {
	out := make([]float32, len(data)/2)
	for i := range out {
		out[i] = Normalize(int16(binary.LittleEndian.Uint16(data[i*2:])))
	}
	return out
}

// Downmix averages interleaved channels into a mono buffer. Mono input is
// returned as is.
func Downmix(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	out := make([]float32, frames)
	for i := range frames {
		var sum float32
		for c := range channels {
			sum += samples[i*channels+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}
