package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// SampleRate is the rate every engine input is assumed to use.
// The engine never resamples.
const SampleRate = 44100

// SampleWidth is the size in bytes of one float32 PCM sample
const SampleWidth = 4

// ErrInvalidAudioEncoding reports PCM bytes that are not whole float32 samples
var ErrInvalidAudioEncoding = errors.New("invalid audio encoding")

// AudioBuffer represents a buffer of mono audio samples
type AudioBuffer struct {
	Samples    []float32
	SampleRate int
}

// NewBuffer wraps samples at the engine sample rate
func NewBuffer(samples []float32) *AudioBuffer {
	return &AudioBuffer{Samples: samples, SampleRate: SampleRate}
}

// DecodePCM decodes little-endian float32 mono PCM.
// Non-finite samples are replaced with silence.
func DecodePCM(data []byte) (*AudioBuffer, error) {
	if len(data)%SampleWidth != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of %d", ErrInvalidAudioEncoding, len(data), SampleWidth)
	}

	samples := make([]float32, len(data)/SampleWidth)
	for i := range samples {
		v := math.Float32frombits(binary.LittleEndian.Uint32(data[i*SampleWidth:]))
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			v = 0
		}
		samples[i] = v
	}

	return NewBuffer(samples), nil
}

// EncodePCM is the inverse of DecodePCM
func EncodePCM(samples []float32) []byte {
	data := make([]byte, len(samples)*SampleWidth)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(data[i*SampleWidth:], math.Float32bits(s))
	}
	return data
}

// Len returns the number of samples, tolerating a nil buffer
func (b *AudioBuffer) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Samples)
}

// Float64 returns a float64 copy of the samples
func (b *AudioBuffer) Float64() []float64 {
	out := make([]float64, b.Len())
	for i := range out {
		out[i] = float64(b.Samples[i])
	}
	return out
}

// Rate returns the buffer sample rate, falling back to SampleRate
func (b *AudioBuffer) Rate() int {
	if b == nil || b.SampleRate <= 0 {
		return SampleRate
	}
	return b.SampleRate
}

// Level calculates RMS and dB level of the buffer
func (b *AudioBuffer) Level() (rms, db float64) {
	if b.Len() == 0 {
		return 0, -100
	}

	sumSquares := 0.0
	for _, sample := range b.Samples {
		sumSquares += float64(sample) * float64(sample)
	}
	rms = math.Sqrt(sumSquares / float64(len(b.Samples)))

	// avoid log(0)
	if rms > 0.0000001 {
		db = 20 * math.Log10(rms)
	} else {
		db = -100
	}

	return rms, db
}
