package audio

import (
	"errors"
	"sync"
)

// Capture errors
var (
	ErrAlreadyCapturing = errors.New("audio capture already started")
	ErrNotCapturing     = errors.New("audio capture not started")
	ErrNoAudio          = errors.New("no audio available")
)

// Capturer defines the interface for audio capture
type Capturer interface {
	// Start begins audio capture
	Start() error

	// Stop ends audio capture
	Stop() error

	// GetBuffer returns a copy of the most recent audio buffer
	GetBuffer() (*AudioBuffer, error)

	// IsCapturing returns true if currently capturing audio
	IsCapturing() bool
}

// ReplayCapturer plays back a recorded signal chunk by chunk, looping at the end.
// It stands in for a microphone when tuning against a file.
type ReplayCapturer struct {
	mu          sync.Mutex
	samples     []float32
	chunkSize   int
	sampleRate  int
	pos         int
	isCapturing bool
}

// NewReplayCapturer creates a capturer over a recorded buffer
func NewReplayCapturer(buffer *AudioBuffer, chunkSize int) *ReplayCapturer {
	if chunkSize <= 0 {
		chunkSize = 4096
	}
	return &ReplayCapturer{
		samples:    buffer.Samples,
		chunkSize:  chunkSize,
		sampleRate: buffer.Rate(),
	}
}

// Start begins playback
func (c *ReplayCapturer) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isCapturing {
		return ErrAlreadyCapturing
	}
	c.isCapturing = true
	c.pos = 0
	return nil
}

// Stop ends playback
func (c *ReplayCapturer) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isCapturing {
		return ErrNotCapturing
	}
	c.isCapturing = false
	return nil
}

// GetBuffer returns the next chunk of the recording
func (c *ReplayCapturer) GetBuffer() (*AudioBuffer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isCapturing {
		return nil, ErrNotCapturing
	}
	if len(c.samples) == 0 {
		return nil, ErrNoAudio
	}

	if c.pos >= len(c.samples) {
		c.pos = 0
	}
	end := min(c.pos+c.chunkSize, len(c.samples))

	chunk := make([]float32, end-c.pos)
	copy(chunk, c.samples[c.pos:end])
	c.pos = end

	return &AudioBuffer{Samples: chunk, SampleRate: c.sampleRate}, nil
}

// IsCapturing returns true while playback is running
func (c *ReplayCapturer) IsCapturing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isCapturing
}
