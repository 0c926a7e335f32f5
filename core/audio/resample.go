package audio

import (
	"fmt"
	"math"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Downsample reduces samples from nativeRate to targetRate by block
// averaging. Each output sample averages the input window between the
// rounded boundaries i*ratio and (i+1)*ratio. This is a deterministic,
// bounded-cost decimator, not an anti-aliasing filter. Equal rates return the
// input unchanged; a target above the native rate is rejected.
func Downsample(samples []float32, nativeRate, targetRate int) ([]float32, error) {
	if nativeRate <= 0 || targetRate <= 0 {
		return nil, fmt.Errorf("invalid sample rates %d -> %d", nativeRate, targetRate)
	}
	if nativeRate == targetRate {
		return samples, nil
	}
	if nativeRate < targetRate {
		return nil, fmt.Errorf("cannot downsample %d Hz to a higher rate %d Hz", nativeRate, targetRate)
	}
	if len(samples) == 0 {
		return []float32{}, nil
	}

	ratio := float64(nativeRate) / float64(targetRate)
	out := make([]float32, int(math.Round(float64(len(samples))/ratio)))

	offset := 0
	for i := range out {
		next := int(math.Round(float64(i+1) * ratio))
		if next > len(samples) {
			next = len(samples)
		}
		if next <= offset {
			// Rounding can leave the final window empty, reuse the last sample.
			out[i] = samples[min(offset, len(samples)-1)]
			continue
		}

		var sum float64
		for _, s := range samples[offset:next] {
			sum += float64(s)
		}
		out[i] = float32(sum / float64(next-offset))
		offset = next
	}
	return out, nil
}

// Upsampler raises a mono stream to a higher rate. It keeps filter state
// between calls, so one instance must be used per stream.
type Upsampler struct {
	resampler resampling.Resampler
	scratch   []float64
}

func NewUpsampler(nativeRate, targetRate int) (*Upsampler, error) {
	if nativeRate <= 0 || targetRate <= nativeRate {
		return nil, fmt.Errorf("invalid upsampling rates %d -> %d", nativeRate, targetRate)
	}
	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(nativeRate),
		OutputRate: float64(targetRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create resampler: %w", err)
	}
	return &Upsampler{resampler: r}, nil
}

func (u *Upsampler) Process(samples []float32) ([]float32, error) {
	if len(samples) == 0 {
		return []float32{}, nil
	}

	if cap(u.scratch) < len(samples) {
		u.scratch = make([]float64, len(samples))
	}
	in := u.scratch[:len(samples)]
	for i, s := range samples {
		in[i] = float64(s)
	}

	resampled, err := u.resampler.Process(in)
	if err != nil {
		return nil, fmt.Errorf("resample error: %w", err)
	}

	out := make([]float32, len(resampled))
	for i, s := range resampled {
		out[i] = float32(s)
	}
	return out, nil
}
