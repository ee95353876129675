// Package tuning compares a played buffer against a target note.
package tuning

import (
	"math"

	"github.com/0xlemi/tunecoach/internal/audio"
	"github.com/0xlemi/tunecoach/internal/pitch"
)

// InTuneCents is the largest |cents| offset still reported as in tune
const InTuneCents = pitch.PerfectCents

// Result is the comparison of one buffer against a target note
type Result struct {
	TargetNote   string         `json:"target_note"`
	DetectedNote string         `json:"detected_note"`
	Frequency    float64        `json:"frequency"`
	CentsOffset  float64        `json:"cents_offset"`
	IsInTune     bool           `json:"is_in_tune"`
	Confidence   float64        `json:"confidence"`
	Accuracy     pitch.Accuracy `json:"accuracy"`
}

// Matches reports whether the detected note is the target note.
// IsInTune only measures distance to the nearest note, whichever it is.
func (r Result) Matches() bool {
	return r.DetectedNote == r.TargetNote
}

// Evaluator runs pitch estimation and note mapping for tuning requests
type Evaluator struct {
	estimator *pitch.Estimator
	mapper    *pitch.NoteMapper
}

// NewEvaluator creates an evaluator; nil arguments select the defaults
func NewEvaluator(estimator *pitch.Estimator, mapper *pitch.NoteMapper) *Evaluator {
	if estimator == nil {
		estimator = pitch.NewEstimator()
	}
	if mapper == nil {
		mapper = pitch.DefaultMapper
	}
	return &Evaluator{estimator: estimator, mapper: mapper}
}

// Evaluate never biases detection towards target; it only compares
func (e *Evaluator) Evaluate(buffer *audio.AudioBuffer, target string) Result {
	est := e.estimator.Estimate(buffer)
	detected, cents := e.mapper.Map(est.Frequency)

	return Result{
		TargetNote:   target,
		DetectedNote: detected,
		Frequency:    est.Frequency,
		CentsOffset:  cents,
		IsInTune:     math.Abs(cents) <= InTuneCents,
		Confidence:   est.Confidence,
		Accuracy:     pitch.Classify(cents),
	}
}
