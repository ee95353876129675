package pitch

import (
	"math"
	"sort"

	"github.com/0xlemi/tunecoach/internal/audio"
	"github.com/0xlemi/tunecoach/internal/features"
	"github.com/0xlemi/tunecoach/internal/logging"
)

// Analysis settings
const (
	frameSize = 2048
	hopSize   = 512
	fftSize   = 4 * frameSize // zero padding sharpens the peak location

	// frames needed for full confidence
	confidentFrames = 10.0
)

// Estimate is the result of fundamental-frequency estimation
type Estimate struct {
	Frequency  float64 `json:"frequency"`  // Hz, 0 when no pitch was found
	Confidence float64 `json:"confidence"` // 0.0-1.0
}

// NoPitch is the estimate for silent, empty or too-short buffers
var NoPitch = Estimate{}

// Estimator tracks pitch by picking the strongest spectral peak of every
// analysis frame and taking the median across frames.
type Estimator struct {
	minFrequency float64 // Lowest frequency to consider (Hz)
	maxFrequency float64 // Highest frequency to consider (Hz)
	noiseFloor   float64 // Minimum peak amplitude (linear, full scale = 1)
	scorer       Scorer
	extractor    *features.Extractor
	logger       logging.Logger
}

// Option configures an Estimator
type Option func(*Estimator)

// WithScorer injects an optional learned scorer
func WithScorer(s Scorer) Option {
	return func(e *Estimator) { e.scorer = s }
}

// WithLogger sets the logger used for scorer fallbacks
func WithLogger(l logging.Logger) Option {
	return func(e *Estimator) { e.logger = l }
}

// WithFrequencyRange limits the peak search
func WithFrequencyRange(minHz, maxHz float64) Option {
	return func(e *Estimator) {
		if minHz > 0 && maxHz > minHz {
			e.minFrequency, e.maxFrequency = minHz, maxHz
		}
	}
}

// NewEstimator creates an estimator; with no options it runs the
// deterministic path only.
func NewEstimator(opts ...Option) *Estimator {
	e := &Estimator{
		minFrequency: 60.0,   // below C2 (65.4 Hz) on the cello
		maxFrequency: 4000.0, // above C8
		noiseFloor:   1e-4,
		logger:       logging.WithFields(logging.Fields{"component": "pitch"}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.scorer != nil {
		e.extractor = features.NewExtractor(audio.SampleRate)
	}
	return e
}

// Estimate never fails; absence of pitch is reported as NoPitch
func (e *Estimator) Estimate(buffer *audio.AudioBuffer) Estimate {
	est := e.track(buffer)
	if e.scorer == nil || est.Frequency == 0 {
		return est
	}
	return e.refine(buffer, est)
}

// track is the deterministic estimator
func (e *Estimator) track(buffer *audio.AudioBuffer) Estimate {
	frames := audio.Frames(buffer.Float64(), frameSize, hopSize)
	if len(frames) == 0 {
		return NoPitch
	}

	sampleRate := buffer.Rate()
	picks := make([]float64, 0, len(frames))
	for _, frame := range frames {
		if f := e.framePitch(frame, sampleRate); f > 0 {
			picks = append(picks, f)
		}
	}

	if len(picks) == 0 {
		return NoPitch
	}

	return Estimate{
		Frequency:  median(picks),
		Confidence: math.Min(float64(len(picks))/confidentFrames, 1.0),
	}
}

// framePitch returns the interpolated frequency of the strongest local peak in
// range, or 0 when the frame is below the noise floor or the peak lies outside.
func (e *Estimator) framePitch(frame []float64, sampleRate int) float64 {
	mags := audio.Magnitudes(frame, fftSize)

	binSizeHz := float64(sampleRate) / float64(fftSize)

	minBin := int(e.minFrequency / binSizeHz)
	if minBin < 1 {
		minBin = 1 // skip DC
	}
	maxBin := int(e.maxFrequency / binSizeHz)
	if maxBin >= len(mags)-1 {
		maxBin = len(mags) - 2
	}
	if minBin > maxBin {
		return 0
	}

	peakBin := minBin
	for i := minBin + 1; i <= maxBin; i++ {
		if mags[i] > mags[peakBin] {
			peakBin = i
		}
	}

	// a winner on the band edge is leakage from a peak outside the range
	if peakBin == minBin || peakBin == maxBin {
		return 0
	}
	if mags[peakBin] <= mags[peakBin-1] || mags[peakBin] <= mags[peakBin+1] {
		return 0
	}

	// a full-scale sine peaks at half the window sum (frameSize/2 for Hann)
	amplitude := mags[peakBin] / (float64(len(frame)) / 4)
	if amplitude < e.noiseFloor {
		return 0
	}

	// Quadratic interpolation for a more accurate peak location
	// x = 0.5 * (R[k-1] - R[k+1]) / (R[k-1] - 2*R[k] + R[k+1]) + k
	prev, current, next := mags[peakBin-1], mags[peakBin], mags[peakBin+1]
	delta := 0.0
	if denom := prev - 2*current + next; denom != 0 {
		delta = 0.5 * (prev - next) / denom
	}

	freq := (float64(peakBin) + delta) * binSizeHz
	if freq < e.minFrequency || freq > e.maxFrequency {
		return 0
	}
	return freq
}

// refine hands the estimate to the scorer and falls back on any bad answer
func (e *Estimator) refine(buffer *audio.AudioBuffer, est Estimate) Estimate {
	vec := e.extractor.Extract(buffer)

	refined, err := e.scorer.Refine(&vec, est)
	if err == nil {
		err = validate(refined)
	}
	if err != nil {
		e.logger.Warn("scorer rejected, using deterministic estimate", logging.Fields{
			"error":      err.Error(),
			"frequency":  est.Frequency,
			"confidence": est.Confidence,
		})
		return est
	}
	return refined
}

// median of a non-empty slice; even counts average the middle pair
func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
