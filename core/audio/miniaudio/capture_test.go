package miniaudio

import (
	"encoding/binary"
	"math"
	"testing"
)

func f32le(samples ...float32) []byte {
	out := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(s))
	}
	return out
}

func TestFrameCarriesDeviceSampleRate(t *testing.T) {
	c := &captureClient{sampleRate: 44100}

	frame, ok := c.frame(f32le(0.25, -0.5, 1), 3, 4, 1)
	if !ok {
		t.Fatalf("expected a frame")
	}
	if frame.SampleRate != 44100 {
		t.Fatalf("expected sample rate 44100, got %d", frame.SampleRate)
	}
	if frame.Channels != 1 {
		t.Fatalf("expected mono, got %d channels", frame.Channels)
	}
	want := []float32{0.25, -0.5, 1}
	if len(frame.Samples) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(frame.Samples))
	}
	for i := range want {
		if frame.Samples[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, frame.Samples)
		}
	}
}

func TestFrameSkipsShortBuffers(t *testing.T) {
	c := &captureClient{sampleRate: 48000}

	if _, ok := c.frame(f32le(0.1), 2, 4, 1); ok {
		t.Fatalf("expected a buffer shorter than frameCount to be skipped")
	}
	if _, ok := c.frame(nil, 0, 4, 1); ok {
		t.Fatalf("expected an empty buffer to be skipped")
	}
}
