// Package features turns an audio buffer into the fixed-length vector
// consumed by learned pitch scorers.
package features

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/0xlemi/tunecoach/internal/audio"
)

// Size is the length of every feature vector
const Size = 1024

const (
	frameSize       = 2048
	hopSize         = 512
	numCoefficients = 13
	numMelFilters   = 40
	powerFloor      = 1e-10
)

// Vector is a fixed-length spectral/cepstral summary of a buffer
type Vector [Size]float64

// Extractor computes feature vectors. It is immutable after construction and
// safe for concurrent use.
type Extractor struct {
	sampleRate int
	filterBank [][]float64
	dctMatrix  [][]float64
	binFreqs   []float64
}

var defaultExtractor = NewExtractor(audio.SampleRate)

// Extract computes the feature vector with the shared extractor
func Extract(buffer *audio.AudioBuffer) Vector {
	return defaultExtractor.Extract(buffer)
}

// NewExtractor builds the mel filter bank and DCT matrix for sampleRate
func NewExtractor(sampleRate int) *Extractor {
	bins := frameSize/2 + 1
	binFreqs := make([]float64, bins)
	for i := range binFreqs {
		binFreqs[i] = audio.BinFrequency(i, frameSize, sampleRate)
	}

	return &Extractor{
		sampleRate: sampleRate,
		filterBank: melFilterBank(numMelFilters, binFreqs, 0, float64(sampleRate)/2),
		dctMatrix:  dctMatrix(numCoefficients, numMelFilters),
		binFreqs:   binFreqs,
	}
}

// Extract never fails: an empty or silent buffer yields the zero vector
func (e *Extractor) Extract(buffer *audio.AudioBuffer) Vector {
	var vec Vector
	if buffer.Len() == 0 {
		return vec
	}

	samples := normalize(buffer.Float64())
	frames := audio.CenteredFrames(samples, frameSize, hopSize)

	mfcc := make([][]float64, numCoefficients)
	centroid := make([]float64, len(frames))
	zcr := make([]float64, len(frames))

	for t, frame := range frames {
		zcr[t] = zeroCrossingRate(frame)

		mags := audio.Magnitudes(frame, frameSize)
		centroid[t] = spectralCentroid(mags, e.binFreqs)

		coeffs := e.cepstrum(mags)
		for k, c := range coeffs {
			mfcc[k] = append(mfcc[k], c)
		}
	}

	// coefficient-major MFCC rows, then centroid track, then ZCR track
	series := make([]float64, 0, numCoefficients*len(frames)+2*len(frames))
	for _, row := range mfcc {
		series = append(series, row...)
	}
	series = append(series, centroid...)
	series = append(series, zcr...)

	for i := 0; i < Size && i < len(series); i++ {
		if v := series[i]; !math.IsNaN(v) && !math.IsInf(v, 0) {
			vec[i] = v
		}
	}
	return vec
}

// cepstrum computes MFCCs from a magnitude spectrum
func (e *Extractor) cepstrum(mags []float64) []float64 {
	power := make([]float64, len(mags))
	for i, m := range mags {
		power[i] = m * m
	}

	logMel := make([]float64, len(e.filterBank))
	for i, filter := range e.filterBank {
		logMel[i] = 10 * math.Log10(math.Max(floats.Dot(filter, power), powerFloor))
	}

	coeffs := make([]float64, len(e.dctMatrix))
	for k, row := range e.dctMatrix {
		coeffs[k] = floats.Dot(row, logMel)
	}
	return coeffs
}

// normalize scales samples so the peak magnitude is 1
func normalize(samples []float64) []float64 {
	peak := 0.0
	for _, s := range samples {
		peak = math.Max(peak, math.Abs(s))
	}
	if peak > 0 {
		floats.Scale(1/peak, samples)
	}
	return samples
}

func spectralCentroid(mags, binFreqs []float64) float64 {
	total := floats.Sum(mags)
	if total <= 0 {
		return 0
	}
	return floats.Dot(mags, binFreqs) / total
}

func zeroCrossingRate(frame []float64) float64 {
	if len(frame) < 2 {
		return 0
	}
	crossings := 0
	for i := 1; i < len(frame); i++ {
		if (frame[i] >= 0) != (frame[i-1] >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(frame))
}

func hzToMel(f float64) float64 {
	return 2595 * math.Log10(1+f/700)
}

func melToHz(m float64) float64 {
	return 700 * (math.Pow(10, m/2595) - 1)
}

// melFilterBank builds triangular filters evenly spaced on the mel scale
func melFilterBank(numFilters int, binFreqs []float64, lowFreq, highFreq float64) [][]float64 {
	lowMel, highMel := hzToMel(lowFreq), hzToMel(highFreq)
	edges := make([]float64, numFilters+2)
	for i := range edges {
		edges[i] = melToHz(lowMel + (highMel-lowMel)*float64(i)/float64(numFilters+1))
	}

	bank := make([][]float64, numFilters)
	for m := range bank {
		left, centre, right := edges[m], edges[m+1], edges[m+2]
		filter := make([]float64, len(binFreqs))
		for k, f := range binFreqs {
			switch {
			case f > left && f <= centre:
				filter[k] = (f - left) / (centre - left)
			case f > centre && f < right:
				filter[k] = (right - f) / (right - centre)
			}
		}
		bank[m] = filter
	}
	return bank
}

// dctMatrix builds an orthonormal DCT-II matrix
func dctMatrix(numCoeffs, numInputs int) [][]float64 {
	matrix := make([][]float64, numCoeffs)
	for k := range matrix {
		row := make([]float64, numInputs)
		norm := math.Sqrt(2.0 / float64(numInputs))
		if k == 0 {
			norm = math.Sqrt(1.0 / float64(numInputs))
		}
		for n := range row {
			row[n] = norm * math.Cos(math.Pi*float64(k)*(float64(n)+0.5)/float64(numInputs))
		}
		matrix[k] = row
	}
	return matrix
}
