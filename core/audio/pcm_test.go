package audio

import (
	"bytes"
	"testing"
)

func TestQuantizeEndpoints(t *testing.T) {
	cases := []struct {
		in   float32
		want int16
	}{
		{1, 32767},
		{-1, -32768},
		{0, 0},
		{2, 32767},
		{-3, -32768},
		{0.5, 16383},
		{-0.5, -16384},
	}
	for _, c := range cases {
		if got := Quantize(c.in); got != c.want {
			t.Fatalf("expected Quantize(%v) = %d, got %d", c.in, c.want, got)
		}
	}
}

func TestQuantizeIsIdempotentOnQuantizedValues(t *testing.T) {
	for n := -32768; n <= 32767; n += 7 {
		var s float32
		if n < 0 {
			s = float32(n) / 32768
		} else {
			s = float32(n) / 32767
		}
		if got := Quantize(s); int(got) != n {
			t.Fatalf("expected re-quantizing %d to be stable, got %d", n, got)
		}
	}
	if got := Quantize(float32(32767) / 32767); got != 32767 {
		t.Fatalf("expected maximum to survive, got %d", got)
	}
}

func TestNormalizeThenQuantizeDriftsAtMostOneStep(t *testing.T) {
	for n := -32768; n <= 32767; n++ {
		got := int(Quantize(Normalize(int16(n))))
		if n <= 0 && got != n {
			t.Fatalf("expected non-positive %d to round-trip exactly, got %d", n, got)
		}
		if got != n && got != n-1 {
			t.Fatalf("expected %d or %d, got %d", n, n-1, got)
		}
	}
	if got := Quantize(Normalize(32767)); got != 32766 {
		t.Fatalf("expected Normalize(32767) to quantize to 32766, got %d", got)
	}
}

func TestLinear16RoundTripIsLittleEndian(t *testing.T) {
	encoded := EncodeLinear16([]float32{-1, 1, 0})
	want := []byte{0x00, 0x80, 0xff, 0x7f, 0x00, 0x00}
	if !bytes.Equal(encoded, want) {
		t.Fatalf("expected %v, got %v", want, encoded)
	}

	decoded := DecodeLinear16(append(encoded, 0x01))
	if len(decoded) != 3 {
		t.Fatalf("expected trailing odd byte to be ignored, got %d samples", len(decoded))
	}
	if decoded[0] != -1 {
		t.Fatalf("expected first sample -1, got %v", decoded[0])
	}
}

func TestDownmixAveragesChannels(t *testing.T) {
	got := Downmix([]float32{1, 0, 0.5, 0.5, -1, 1}, 2)
	want := []float32{0.5, 0.5, 0}
	if len(got) != len(want) {
		t.Fatalf("expected %d frames, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected frame %d to be %v, got %v", i, want[i], got[i])
		}
	}
}
