package pitch

import (
	"time"

	"github.com/0xlemi/tunecoach/internal/audio"
)

// Detection is a classified note event
type Detection struct {
	Note       string    `json:"note"` // e.g. "C4", "D#5" or "Unknown"
	Frequency  float64   `json:"frequency"`
	Confidence float64   `json:"confidence"` // 0.0 to 1.0
	Cents      float64   `json:"cents_offset"`
	Accuracy   Accuracy  `json:"accuracy"`
	Timestamp  time.Time `json:"timestamp"`
}

// Detector runs estimation, note mapping and classification on one buffer
type Detector struct {
	estimator *Estimator
	mapper    *NoteMapper
	now       func() time.Time
}

// NewDetector creates a detector; a nil mapper selects DefaultMapper
func NewDetector(estimator *Estimator, mapper *NoteMapper) *Detector {
	if estimator == nil {
		estimator = NewEstimator()
	}
	if mapper == nil {
		mapper = DefaultMapper
	}
	return &Detector{
		estimator: estimator,
		mapper:    mapper,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Detect analyzes an audio buffer and returns the detected note
func (d *Detector) Detect(buffer *audio.AudioBuffer) Detection {
	est := d.estimator.Estimate(buffer)
	note, cents := d.mapper.Map(est.Frequency)

	return Detection{
		Note:       note,
		Frequency:  est.Frequency,
		Confidence: est.Confidence,
		Cents:      cents,
		Accuracy:   Classify(cents),
		Timestamp:  d.now(),
	}
}

// Estimator returns the underlying estimator
func (d *Detector) Estimator() *Estimator {
	return d.estimator
}

// Mapper returns the underlying note mapper
func (d *Detector) Mapper() *NoteMapper {
	return d.mapper
}
