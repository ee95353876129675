package pitch

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/floats"

	"github.com/0xlemi/tunecoach/internal/features"
)

// ErrModelInference reports a scorer answer that cannot be trusted.
// The estimator recovers from it locally; callers never see it.
var ErrModelInference = errors.New("model inference error")

// Scorer is an optional learned stage that may refine a deterministic
// estimate. It must keep the Estimate contract: finite frequency >= 0 and
// confidence in [0, 1].
type Scorer interface {
	Refine(vec *features.Vector, est Estimate) (Estimate, error)
}

// validate checks a scorer answer against the Estimate contract
func validate(est Estimate) error {
	switch {
	case math.IsNaN(est.Frequency) || math.IsInf(est.Frequency, 0):
		return fmt.Errorf("%w: non-finite frequency %v", ErrModelInference, est.Frequency)
	case math.IsNaN(est.Confidence) || math.IsInf(est.Confidence, 0):
		return fmt.Errorf("%w: non-finite confidence %v", ErrModelInference, est.Confidence)
	case est.Frequency < 0:
		return fmt.Errorf("%w: negative frequency %v", ErrModelInference, est.Frequency)
	case est.Confidence < 0 || est.Confidence > 1:
		return fmt.Errorf("%w: confidence %v outside [0,1]", ErrModelInference, est.Confidence)
	}
	return nil
}

// LinearScorer refines confidence with a logistic model over the feature
// vector and blends it with the deterministic confidence. Frequency is kept.
type LinearScorer struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
	Blend   float64   `json:"blend"` // 0 keeps the deterministic confidence, 1 replaces it
}

// LoadLinearScorer reads scorer weights from a JSON file
func LoadLinearScorer(path string) (*LinearScorer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var s LinearScorer
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse scorer %s: %w", path, err)
	}
	if len(s.Weights) != features.Size {
		return nil, fmt.Errorf("scorer %s has %d weights (expected %d)", path, len(s.Weights), features.Size)
	}
	if s.Blend < 0 || s.Blend > 1 {
		return nil, fmt.Errorf("scorer %s blend %v outside [0,1]", path, s.Blend)
	}
	return &s, nil
}

// Refine implements Scorer
func (s *LinearScorer) Refine(vec *features.Vector, est Estimate) (Estimate, error) {
	if len(s.Weights) != features.Size {
		return est, fmt.Errorf("%w: scorer has %d weights", ErrModelInference, len(s.Weights))
	}

	logit := floats.Dot(s.Weights, vec[:]) + s.Bias
	score := 1 / (1 + math.Exp(-logit))

	return Estimate{
		Frequency:  est.Frequency,
		Confidence: (1-s.Blend)*est.Confidence + s.Blend*score,
	}, nil
}
