package mic

import (
	"errors"
	"testing"

	"github.com/0xlemi/tunecoach/internal/audio"
)

var _ audio.Capturer = (*PortAudioCapturer)(nil)

func TestProcessAudioDownMixesIntoWindow(t *testing.T) {
	t.Parallel()

	c := &PortAudioCapturer{
		window:        make([]float32, 4),
		sampleRate:    audio.SampleRate,
		channels:      2,
		amplification: 2,
		isCapturing:   true,
	}

	c.processAudio([]float32{0.1, 0.3, 0.2, 0.4}, nil)
	c.processAudio([]float32{-0.1, -0.1}, nil)

	buf, err := c.GetBuffer()
	if err != nil {
		t.Fatalf("GetBuffer returned error: %v", err)
	}
	want := []float32{0, 0.4, 0.6, -0.2}
	for i, s := range want {
		if d := buf.Samples[i] - s; d > 1e-6 || d < -1e-6 {
			t.Errorf("sample %d = %v, want %v", i, buf.Samples[i], s)
		}
	}
	if buf.SampleRate != audio.SampleRate {
		t.Errorf("sample rate = %d", buf.SampleRate)
	}
}

func TestGetBufferRequiresCapture(t *testing.T) {
	t.Parallel()

	c := &PortAudioCapturer{window: make([]float32, 4), channels: 1}
	if _, err := c.GetBuffer(); !errors.Is(err, audio.ErrNotCapturing) {
		t.Errorf("GetBuffer err = %v, want ErrNotCapturing", err)
	}
	if err := c.Stop(); !errors.Is(err, audio.ErrNotCapturing) {
		t.Errorf("Stop err = %v, want ErrNotCapturing", err)
	}
}

func TestSetAmplificationFloor(t *testing.T) {
	t.Parallel()

	c := &PortAudioCapturer{}
	c.SetAmplification(0)
	if c.amplification != 0.1 {
		t.Errorf("amplification = %v, want 0.1", c.amplification)
	}
}
