package audio

import (
	"errors"
	"testing"
	"time"
)

type fakeInput struct {
	onFrame  func(Frame)
	startErr error
	starts   int
	stops    int
}

func (f *fakeInput) Start(onFrame func(Frame)) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.starts++
	f.onFrame = onFrame
	return nil
}

func (f *fakeInput) Stop() error {
	f.stops++
	f.onFrame = nil
	return nil
}

func silence(n int) []float32 { return make([]float32, n) }

func TestCaptureStartWrapsDeviceErrors(t *testing.T) {
	input := &fakeInput{startErr: errors.New("permission denied")}
	capture := NewCapture(input)

	err := capture.Start()
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("expected ErrDeviceUnavailable, got %v", err)
	}
}

func TestCaptureStopIsIdempotent(t *testing.T) {
	input := &fakeInput{}
	capture := NewCapture(input)

	if err := capture.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := capture.Start(); err != nil {
		t.Fatalf("unexpected error on second start: %v", err)
	}
	if input.starts != 1 {
		t.Fatalf("expected device to be started once, got %d", input.starts)
	}

	for range 3 {
		if err := capture.Stop(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if input.stops != 1 {
		t.Fatalf("expected device to be stopped once, got %d", input.stops)
	}
}

func TestCaptureEmitsFixedSizeFramesAtTargetRate(t *testing.T) {
	input := &fakeInput{}
	capture := NewCapture(input, WithFrameDuration(20*time.Millisecond))
	if err := capture.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 48 kHz stereo, 25 ms per buffer: 1200 frames, 2400 interleaved samples.
	for range 4 {
		input.onFrame(Frame{Samples: silence(2400), SampleRate: 48000, Channels: 2})
	}

	// 100 ms at 16 kHz is 1600 samples, i.e. five 320-sample frames.
	got := 0
	for {
		select {
		case frame := <-capture.Frames():
			if len(frame) != 640 {
				t.Fatalf("expected 640-byte frames, got %d", len(frame))
			}
			got++
			continue
		default:
		}
		break
	}
	if got != 5 {
		t.Fatalf("expected 5 frames, got %d", got)
	}
}

func TestCapturePassesThroughTargetRate(t *testing.T) {
	input := &fakeInput{}
	capture := NewCapture(input, WithFrameDuration(10*time.Millisecond))
	_ = capture.Start()

	samples := make([]float32, 160)
	samples[0] = 1
	samples[1] = -1
	input.onFrame(Frame{Samples: samples, SampleRate: 16000, Channels: 1})

	frame := <-capture.Frames()
	if frame[0] != 0xff || frame[1] != 0x7f {
		t.Fatalf("expected first sample to be 32767, got %v", frame[:2])
	}
	if frame[2] != 0x00 || frame[3] != 0x80 {
		t.Fatalf("expected second sample to be -32768, got %v", frame[2:4])
	}
}

func TestCaptureDropsWhenQueueIsFull(t *testing.T) {
	input := &fakeInput{}
	capture := NewCapture(input, WithFrameDuration(10*time.Millisecond), WithFrameQueue(2))
	_ = capture.Start()

	for range 5 {
		input.onFrame(Frame{Samples: silence(160), SampleRate: 16000, Channels: 1})
	}

	if got := len(capture.Frames()); got != 2 {
		t.Fatalf("expected queue to hold 2 frames, got %d", got)
	}
	if got := capture.Dropped(); got != 3 {
		t.Fatalf("expected 3 dropped frames, got %d", got)
	}
}

func TestCaptureIgnoresEmptyAndInvalidBuffers(t *testing.T) {
	input := &fakeInput{}
	capture := NewCapture(input)
	_ = capture.Start()

	input.onFrame(Frame{SampleRate: 48000, Channels: 1})
	input.onFrame(Frame{Samples: silence(10), SampleRate: 0, Channels: 1})

	if got := len(capture.Frames()); got != 0 {
		t.Fatalf("expected no frames, got %d", got)
	}
	if got := capture.Dropped(); got != 1 {
		t.Fatalf("expected the invalid buffer to be counted as dropped, got %d", got)
	}
}
