// Package practice tracks practice sessions and their running accuracy.
package practice

import (
	"errors"
	"fmt"
	"time"

	"github.com/0xlemi/tunecoach/internal/session"
)

var (
	ErrInvalidTransition = errors.New("invalid session transition")
	ErrNotFound          = errors.New("session not found")
)

// Status of a practice session
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusAbandoned Status = "abandoned"
)

// Session is one practice sitting and its cumulative counts
type Session struct {
	ID                 string     `json:"id"`
	InstrumentType     string     `json:"instrument_type"`
	Status             Status     `json:"status"`
	StartTime          time.Time  `json:"start_time"`
	EndTime            *time.Time `json:"end_time,omitempty"`
	DurationMinutes    int        `json:"duration_minutes"`
	NotesPlayed        int        `json:"notes_played"`
	CorrectNotes       int        `json:"correct_notes"`
	AccuracyPercentage float64    `json:"accuracy_percentage"`
}

// Progress returns the running tally
func (s *Session) Progress() session.Progress {
	return session.Progress{
		NotesPlayed:        s.NotesPlayed,
		CorrectNotes:       s.CorrectNotes,
		AccuracyPercentage: s.AccuracyPercentage,
	}
}

// Record folds an analysis summary into the counts; only active sessions
// accept audio.
func (s *Session) Record(summary session.Summary) error {
	if s.Status != StatusActive {
		return fmt.Errorf("%w: cannot record audio while %s", ErrInvalidTransition, s.Status)
	}
	p := session.Accumulate(s.Progress(), summary)
	s.NotesPlayed = p.NotesPlayed
	s.CorrectNotes = p.CorrectNotes
	s.AccuracyPercentage = p.AccuracyPercentage
	return nil
}

func (s *Session) transition(from, to Status) error {
	if s.Status != from {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Status, to)
	}
	s.Status = to
	return nil
}

func (s *Session) Pause() error {
	return s.transition(StatusActive, StatusPaused)
}

func (s *Session) Resume() error {
	return s.transition(StatusPaused, StatusActive)
}

// Complete ends an active session and stamps its duration in whole minutes
func (s *Session) Complete(at time.Time) error {
	if err := s.transition(StatusActive, StatusCompleted); err != nil {
		return err
	}
	s.finish(at)
	return nil
}

// Abandon ends an active session without completing it
func (s *Session) Abandon(at time.Time) error {
	if err := s.transition(StatusActive, StatusAbandoned); err != nil {
		return err
	}
	s.finish(at)
	return nil
}

func (s *Session) finish(at time.Time) {
	s.EndTime = &at
	if d := at.Sub(s.StartTime); d > 0 {
		s.DurationMinutes = int(d / time.Minute)
	}
}

// Terminal reports whether the session can no longer change
func (s *Session) Terminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusAbandoned
}

func (s *Session) clone() *Session {
	c := *s
	if s.EndTime != nil {
		t := *s.EndTime
		c.EndTime = &t
	}
	return &c
}
