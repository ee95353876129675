package practice

import (
	"context"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// DefaultHistoryLimit is the number of sessions History returns when asked for none
const DefaultHistoryLimit = 10

// Stats aggregates every stored session
type Stats struct {
	TotalSessions     int        `json:"total_sessions"`
	CompletedSessions int        `json:"completed_sessions"`
	TotalMinutes      int        `json:"total_practice_time"`
	NotesPlayed       int        `json:"notes_played"`
	AverageAccuracy   float64    `json:"average_accuracy"`
	LastPractice      *time.Time `json:"last_practice"`
}

// Stats sums practice time and averages accuracy over all sessions
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	sessions, err := m.store.List(ctx, 0)
	if err != nil {
		return Stats{}, err
	}

	var st Stats
	if len(sessions) == 0 {
		return st, nil
	}

	accuracies := make([]float64, len(sessions))
	for i, s := range sessions {
		st.TotalMinutes += s.DurationMinutes
		st.NotesPlayed += s.NotesPlayed
		if s.Status == StatusCompleted {
			st.CompletedSessions++
		}
		accuracies[i] = s.AccuracyPercentage
	}
	st.TotalSessions = len(sessions)
	st.AverageAccuracy = math.Round(stat.Mean(accuracies, nil)*100) / 100

	// newest first
	last := sessions[0].StartTime
	st.LastPractice = &last
	return st, nil
}

// History returns the most recent sessions, newest first
func (m *Manager) History(ctx context.Context, limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	sessions, err := m.store.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []*Session{}
	}
	return sessions, nil
}
