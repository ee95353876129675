// Package mic captures microphone input through PortAudio. It is kept apart
// from package audio so that only the live tuner links the cgo library.
package mic

import (
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/0xlemi/tunecoach/internal/audio"
)

// PortAudioCapturer captures microphone input using PortAudio and keeps a
// rolling mono window long enough for pitch analysis.
type PortAudioCapturer struct {
	isCapturing   bool
	stream        *portaudio.Stream
	window        []float32 // rolling mono window, newest samples last
	framesPerCall int
	sampleRate    int
	channels      int
	bufferMutex   sync.Mutex
	amplification float32
}

// NewPortAudioCapturer initialises PortAudio. windowSize is the number of mono
// samples returned by GetBuffer; framesPerCall is the callback block size.
func NewPortAudioCapturer(windowSize, framesPerCall, channels int) (*PortAudioCapturer, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}

	if channels < 1 {
		channels = 1
	}

	return &PortAudioCapturer{
		window:        make([]float32, windowSize),
		framesPerCall: framesPerCall,
		sampleRate:    audio.SampleRate,
		channels:      channels,
		amplification: 1.0,
	}, nil
}

// Start opens the default input stream at the engine sample rate
func (c *PortAudioCapturer) Start() error {
	if c.isCapturing {
		return audio.ErrAlreadyCapturing
	}

	var err error
	c.stream, err = portaudio.OpenDefaultStream(
		c.channels,
		0, // no output
		float64(c.sampleRate),
		c.framesPerCall,
		c.processAudio,
	)
	if err != nil {
		return err
	}

	if err = c.stream.Start(); err != nil {
		c.stream.Close()
		return err
	}

	c.isCapturing = true
	return nil
}

// Stop closes the stream and terminates PortAudio
func (c *PortAudioCapturer) Stop() error {
	if !c.isCapturing {
		return audio.ErrNotCapturing
	}

	if err := c.stream.Stop(); err != nil {
		return err
	}
	if err := c.stream.Close(); err != nil {
		return err
	}
	if err := portaudio.Terminate(); err != nil {
		return err
	}

	c.isCapturing = false
	return nil
}

// processAudio down-mixes the callback block and appends it to the rolling window
func (c *PortAudioCapturer) processAudio(in, _ []float32) {
	c.bufferMutex.Lock()
	defer c.bufferMutex.Unlock()

	mono := make([]float32, len(in)/c.channels)
	for i := range mono {
		sum := float32(0)
		for ch := 0; ch < c.channels; ch++ {
			sum += in[i*c.channels+ch]
		}
		mono[i] = (sum / float32(c.channels)) * c.amplification
	}

	if len(mono) >= len(c.window) {
		copy(c.window, mono[len(mono)-len(c.window):])
		return
	}
	copy(c.window, c.window[len(mono):])
	copy(c.window[len(c.window)-len(mono):], mono)
}

// GetBuffer returns a copy of the rolling window
func (c *PortAudioCapturer) GetBuffer() (*audio.AudioBuffer, error) {
	if !c.isCapturing {
		return nil, audio.ErrNotCapturing
	}

	c.bufferMutex.Lock()
	defer c.bufferMutex.Unlock()

	samples := make([]float32, len(c.window))
	copy(samples, c.window)

	return &audio.AudioBuffer{Samples: samples, SampleRate: c.sampleRate}, nil
}

// IsCapturing returns true if currently capturing audio
func (c *PortAudioCapturer) IsCapturing() bool {
	return c.isCapturing
}

// SetAmplification sets the input gain, never below 0.1
func (c *PortAudioCapturer) SetAmplification(factor float32) {
	c.bufferMutex.Lock()
	defer c.bufferMutex.Unlock()

	if factor < 0.1 {
		factor = 0.1
	}
	c.amplification = factor
}
