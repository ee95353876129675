// Package session folds per-chunk note detections into practice feedback.
package session

import (
	"gonum.org/v1/gonum/stat"

	"github.com/0xlemi/tunecoach/internal/pitch"
)

// MinConfidence is the confidence a detection must exceed to be counted
const MinConfidence = 0.3

// Feedback messages, selected by accuracy percentage
const (
	FeedbackNoNotes    = "No notes detected. Please check your microphone and try again."
	FeedbackExcellent  = "Excellent! You're playing very accurately."
	FeedbackGood       = "Good job! Try to focus on pitch accuracy."
	FeedbackKeepGoing  = "Keep practicing! Focus on matching the target notes."
	FeedbackSlowDown   = "Don't give up! Practice makes perfect. Try playing more slowly."
	ExcellentThreshold = 80.0
	GoodThreshold      = 60.0
	KeepGoingThreshold = 40.0
)

// Summary aggregates the detections of a practice session
type Summary struct {
	TotalNotes         int               `json:"total_notes"`
	CorrectNotes       int               `json:"correct_notes"`
	AccuracyPercentage float64           `json:"accuracy_percentage"`
	AverageConfidence  float64           `json:"average_confidence"`
	Feedback           string            `json:"feedback"`
	Detections         []pitch.Detection `json:"detections"`
}

// Analyze drops detections at or below MinConfidence and counts the rest.
// A detection is correct when its note is any of targets and its accuracy
// is Perfect or Good. The result does not depend on detection order.
func Analyze(detections []pitch.Detection, targets []string) Summary {
	targetSet := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		targetSet[t] = struct{}{}
	}

	kept := make([]pitch.Detection, 0, len(detections))
	confidences := make([]float64, 0, len(detections))
	correct := 0
	for _, d := range detections {
		if d.Confidence <= MinConfidence {
			continue
		}
		kept = append(kept, d)
		confidences = append(confidences, d.Confidence)

		if _, ok := targetSet[d.Note]; ok && d.Accuracy.Acceptable() {
			correct++
		}
	}

	if len(kept) == 0 {
		return Summary{Feedback: FeedbackNoNotes, Detections: kept}
	}

	accuracy := Accuracy(correct, len(kept))
	return Summary{
		TotalNotes:         len(kept),
		CorrectNotes:       correct,
		AccuracyPercentage: accuracy,
		AverageConfidence:  stat.Mean(confidences, nil),
		Feedback:           FeedbackFor(accuracy),
		Detections:         kept,
	}
}

// Accuracy returns 100*correct/total, or 0 when total is 0
func Accuracy(correct, total int) float64 {
	if total <= 0 {
		return 0
	}
	return 100 * float64(correct) / float64(total)
}

// FeedbackFor picks the message for an accuracy percentage
func FeedbackFor(accuracy float64) string {
	switch {
	case accuracy >= ExcellentThreshold:
		return FeedbackExcellent
	case accuracy >= GoodThreshold:
		return FeedbackGood
	case accuracy >= KeepGoingThreshold:
		return FeedbackKeepGoing
	default:
		return FeedbackSlowDown
	}
}

// Progress is the running tally a caller keeps across analysis calls
type Progress struct {
	NotesPlayed        int     `json:"notes_played"`
	CorrectNotes       int     `json:"correct_notes"`
	AccuracyPercentage float64 `json:"accuracy_percentage"`
}

// Accumulate adds a summary to the running tally. Accuracy is recomputed from
// the summed counts, weighting every note equally rather than averaging the
// percentages of individual calls.
func Accumulate(prev Progress, s Summary) Progress {
	played := prev.NotesPlayed + s.TotalNotes
	correct := prev.CorrectNotes + s.CorrectNotes
	return Progress{
		NotesPlayed:        played,
		CorrectNotes:       correct,
		AccuracyPercentage: Accuracy(correct, played),
	}
}
