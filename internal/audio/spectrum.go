package audio

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// Magnitudes applies a Hann window to frame, zero-pads it to fftSize and
// returns the one-sided magnitude spectrum (fftSize/2 + 1 bins).
// The frame is not modified.
func Magnitudes(frame []float64, fftSize int) []float64 {
	if fftSize < len(frame) {
		fftSize = len(frame)
	}

	padded := make([]float64, fftSize)
	copy(padded, frame)
	window.Apply(padded[:len(frame)], window.Hann)

	spectrum := fft.FFTReal(padded)

	mags := make([]float64, fftSize/2+1)
	for i := range mags {
		mags[i] = cmplx.Abs(spectrum[i])
	}
	return mags
}

// BinFrequency returns the centre frequency of bin for an FFT of fftSize
func BinFrequency(bin, fftSize, sampleRate int) float64 {
	return float64(bin) * float64(sampleRate) / float64(fftSize)
}
