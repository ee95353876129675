// Package testutil builds deterministic synthetic signals for tests.
package testutil

import (
	"math"

	"github.com/0xlemi/tunecoach/internal/audio"
)

// Sine returns n samples of a sine at freq Hz sampled at audio.SampleRate
func Sine(freq, amplitude float64, n int) []float32 {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(amplitude * math.Sin(2*math.Pi*freq*float64(i)/audio.SampleRate))
	}
	return samples
}

// Mix sums equal-amplitude sines, scaled so the peak stays below 1
func Mix(n int, freqs ...float64) []float32 {
	samples := make([]float32, n)
	if len(freqs) == 0 {
		return samples
	}
	amp := 0.9 / float64(len(freqs))
	for _, f := range freqs {
		for i, s := range Sine(f, amp, n) {
			samples[i] += s
		}
	}
	return samples
}

// SineBuffer wraps Sine in an AudioBuffer
func SineBuffer(freq float64, n int) *audio.AudioBuffer {
	return audio.NewBuffer(Sine(freq, 0.8, n))
}

// SinePCM returns Sine encoded as float32 LE bytes
func SinePCM(freq float64, n int) []byte {
	return audio.EncodePCM(Sine(freq, 0.8, n))
}

// Noise returns deterministic pseudo-random samples in [-amplitude, amplitude]
func Noise(amplitude float64, n int) []float32 {
	samples := make([]float32, n)
	state := uint32(2463534242)
	for i := range samples {
		state ^= state << 13
		state ^= state >> 17
		state ^= state << 5
		samples[i] = float32(amplitude * (float64(state)/math.MaxUint32*2 - 1))
	}
	return samples
}
