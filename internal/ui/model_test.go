package ui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/0xlemi/tunecoach/internal/pitch"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestModel(instrument string) (Model, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewModel(instrument)
	m.now = clock.now
	return m, clock
}

func send(m Model, msg tea.Msg) Model {
	next, _ := m.Update(msg)
	return next.(Model)
}

func note(label string, freq float64) UpdateNoteMsg {
	return UpdateNoteMsg(pitch.Detection{Note: label, Frequency: freq, Confidence: 1, Accuracy: pitch.Perfect})
}

func TestNoteBecomesStable(t *testing.T) {
	m, clock := newTestModel("")

	m = send(m, note("A4", 440))
	if m.stableNote != nil {
		t.Fatalf("note stable on first sight")
	}
	if d := m.Displayed(); d == nil || d.Note != "A4" {
		t.Fatalf("current note not displayed: %+v", d)
	}

	clock.advance(noteStabilityThreshold)
	m = send(m, note("A4", 440.5))
	if m.stableNote == nil || m.stableNote.Note != "A4" {
		t.Fatalf("stable note = %+v", m.stableNote)
	}
}

func TestStableNoteHeldAgainstFlicker(t *testing.T) {
	m, clock := newTestModel("")

	m = send(m, note("A4", 440))
	clock.advance(noteStabilityThreshold)
	m = send(m, note("A4", 440))

	// a brief E5 does not replace A4
	clock.advance(50 * time.Millisecond)
	m = send(m, note("E5", 659.25))
	if m.Displayed().Note != "A4" {
		t.Fatalf("displayed %s, want A4", m.Displayed().Note)
	}

	// a sustained E5 does, once the display hold has passed
	clock.advance(noteDisplayDuration)
	m = send(m, note("E5", 659.25))
	if m.Displayed().Note != "E5" {
		t.Fatalf("displayed %s, want E5", m.Displayed().Note)
	}
}

func TestClearAndUnknown(t *testing.T) {
	m, _ := newTestModel("")

	m = send(m, note(pitch.Unknown, 0))
	if m.Displayed() != nil {
		t.Errorf("Unknown was displayed")
	}

	m = send(m, note("C4", 261.63))
	m = send(m, ClearNoteMsg{})
	if m.Displayed() != nil || len(m.notesHistory) != 0 {
		t.Errorf("clear left state behind")
	}
}

func TestTargetCycling(t *testing.T) {
	m, _ := newTestModel("violin")
	if m.Target() != "G3" {
		t.Fatalf("first target = %s", m.Target())
	}

	m = send(m, tea.KeyMsg{Type: tea.KeyTab})
	if m.Target() != "D4" {
		t.Errorf("after tab = %s", m.Target())
	}
	m = send(m, tea.KeyMsg{Type: tea.KeyShiftTab})
	m = send(m, tea.KeyMsg{Type: tea.KeyShiftTab})
	if m.Target() != "E5" {
		t.Errorf("wrapped target = %s", m.Target())
	}

	plain, _ := newTestModel("")
	if plain.Target() != "" {
		t.Errorf("plain mode has target %s", plain.Target())
	}
}

func TestHistoryExpires(t *testing.T) {
	m, clock := newTestModel("")

	m = send(m, note("G3", 196))
	clock.advance(historyWindow + time.Millisecond)
	m = send(m, TickMsg(clock.t))
	if len(m.notesHistory) != 0 {
		t.Errorf("history = %v", m.notesHistory)
	}
}

func TestViewShowsTargetOffset(t *testing.T) {
	m, _ := newTestModel("piano")
	m = send(m, UpdateAudioLevelMsg{RMS: 0.1, DB: -20})
	m = send(m, note("A4", 440))

	view := m.View()
	for _, want := range []string{"Target: A4", "440.00 Hz", "+0.0 cents, perfect", "-20.0 dB"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestCentsMeterClamps(t *testing.T) {
	for _, cents := range []float64{-500, -50, 0, 12.5, 50, 500} {
		if got := centsMeter(cents); !strings.Contains(got, "┃") {
			t.Errorf("centsMeter(%v) has no needle: %s", cents, got)
		}
	}
	if strings.Contains(centsMeter(0), "┊") {
		t.Errorf("needle at 0 should cover the centre mark")
	}
}
