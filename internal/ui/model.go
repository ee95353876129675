package ui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/0xlemi/tunecoach/internal/pitch"
	"github.com/0xlemi/tunecoach/internal/tuning"
)

// Constants for UI behavior
const (
	// How long a note needs to be present to be considered stable
	noteStabilityThreshold = 300 * time.Millisecond

	// How long to keep displaying a stable note after it changes
	noteDisplayDuration = 500 * time.Millisecond

	// Notes not seen for this long are dropped from the history
	historyWindow = 2 * time.Second

	// Width of the cents meter, in cells, for ±50 cents
	meterWidth = 41

	tickInterval = 100 * time.Millisecond
)

var (
	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			PaddingLeft(2).
			PaddingRight(2).
			MarginBottom(1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#CCCCCC"))

	targetStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4"))

	// Note colors
	noteColors = map[string]string{
		"C": "#E8D6B0", // Beige
		"D": "#A020F0", // Purple
		"E": "#FFFF00", // Yellow
		"F": "#FFA500", // Orange
		"G": "#00FF00", // Green
		"A": "#FF0000", // Red
		"B": "#0000FF", // Blue
	}

	accuracyColors = map[pitch.Accuracy]string{
		pitch.Perfect: "#00FF00",
		pitch.Good:    "#A0E060",
		pitch.Fair:    "#FFA500",
		pitch.Poor:    "#FF0000",
	}
)

func noteBlock(background string) lipgloss.Style {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FAFAFA")).
		Background(lipgloss.Color(background)).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#333333"))
}

// Get the next note in the scale (for sharp note colors)
func getNextNote(note string) string {
	switch note {
	case "C":
		return "D"
	case "D":
		return "E"
	case "E":
		return "F"
	case "F":
		return "G"
	case "G":
		return "A"
	case "A":
		return "B"
	default:
		return "C"
	}
}

// renderNote draws a note label; sharps are split between the two
// neighbouring natural colors.
func renderNote(label string) string {
	if len(label) < 2 || label == pitch.Unknown {
		return infoStyle.Render(label)
	}

	if label[1] != '#' {
		return noteBlock(noteColors[label[:1]]).Padding(2, 4).MarginBottom(1).Render(label)
	}

	base := label[:1]
	left := noteBlock(noteColors[base]).
		BorderRight(false).
		PaddingLeft(2).
		PaddingRight(1).
		PaddingTop(2).
		PaddingBottom(2)
	right := noteBlock(noteColors[getNextNote(base)]).
		BorderLeft(false).
		PaddingLeft(1).
		PaddingRight(2).
		PaddingTop(2).
		PaddingBottom(2)
	return left.Render(base) + right.Render(label[1:])
}

// centsMeter renders a needle for cents in [-50, 50]
func centsMeter(cents float64) string {
	mid := meterWidth / 2
	pos := mid + int(math.Round(math.Max(-50, math.Min(50, cents))/50*float64(mid)))

	var b strings.Builder
	b.WriteString("♭ ")
	for i := 0; i < meterWidth; i++ {
		switch {
		case i == pos:
			b.WriteString("┃")
		case i == mid:
			b.WriteString("┊")
		default:
			b.WriteString("─")
		}
	}
	b.WriteString(" ♯")
	return b.String()
}

// Model represents the UI state
type Model struct {
	currentNote    *pitch.Detection
	stableNote     *pitch.Detection
	notesHistory   map[string]time.Time // Track when we first saw each note
	stableNoteTime time.Time            // When the stable note was set
	instrument     string
	targets        []string
	targetIndex    int
	rms            float64
	db             float64
	width          int
	height         int
	now            func() time.Time
}

// NewModel creates a new UI model; instrument selects the target notes
// cycled with tab, and an empty instrument shows plain note detection.
func NewModel(instrument string) Model {
	m := Model{
		notesHistory: make(map[string]time.Time),
		instrument:   instrument,
		db:           -100,
		now:          time.Now,
	}
	if instrument != "" {
		m.targets = tuning.NotesFor(instrument)
	}
	return m
}

// Init initializes the UI model
func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// TickMsg represents a timer tick
type TickMsg time.Time

// UpdateNoteMsg is a message to update the current note
type UpdateNoteMsg pitch.Detection

// ClearNoteMsg clears the display on silence
type ClearNoteMsg struct{}

// UpdateAudioLevelMsg reports the input level
type UpdateAudioLevelMsg struct {
	RMS float64
	DB  float64
}

// Target returns the selected target note, or "" in plain detection mode
func (m Model) Target() string {
	if len(m.targets) == 0 {
		return ""
	}
	return m.targets[m.targetIndex]
}

// Update updates the UI model based on messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab", "right":
			if len(m.targets) > 0 {
				m.targetIndex = (m.targetIndex + 1) % len(m.targets)
			}
		case "shift+tab", "left":
			if len(m.targets) > 0 {
				m.targetIndex = (m.targetIndex + len(m.targets) - 1) % len(m.targets)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case TickMsg:
		now := m.now()
		for note, firstSeen := range m.notesHistory {
			if now.Sub(firstSeen) > historyWindow {
				delete(m.notesHistory, note)
			}
		}
		return m, tick()

	case UpdateAudioLevelMsg:
		m.rms, m.db = msg.RMS, msg.DB

	case ClearNoteMsg:
		m.currentNote = nil
		m.stableNote = nil
		clear(m.notesHistory)

	case UpdateNoteMsg:
		m.observe(pitch.Detection(msg))
	}

	return m, nil
}

// observe applies the stability rule: a note replaces the stable note once
// it has been seen for noteStabilityThreshold, and a stable note stays on
// screen for at least noteDisplayDuration.
func (m *Model) observe(det pitch.Detection) {
	if det.Note == pitch.Unknown {
		return
	}
	now := m.now()
	m.currentNote = &det

	firstSeen, ok := m.notesHistory[det.Note]
	if !ok {
		firstSeen = now
		m.notesHistory[det.Note] = now
	}

	if m.stableNote != nil && m.stableNote.Note == det.Note {
		m.stableNote = &det
		return
	}
	if now.Sub(firstSeen) < noteStabilityThreshold {
		return
	}
	if m.stableNote != nil && now.Sub(m.stableNoteTime) < noteDisplayDuration {
		return
	}
	m.stableNote = &det
	m.stableNoteTime = now
}

// Displayed returns the detection on screen, if any
func (m Model) Displayed() *pitch.Detection {
	if m.stableNote != nil {
		return m.stableNote
	}
	return m.currentNote
}

// View renders the UI
func (m Model) View() string {
	title := "TuneCoach - Note Detector"
	if m.instrument != "" {
		title = fmt.Sprintf("TuneCoach - %s tuner", m.instrument)
	}
	s := titleStyle.Render(title)
	s += "\n"

	if target := m.Target(); target != "" {
		s += targetStyle.Render(fmt.Sprintf("Target: %s  (%d/%d, tab to change)", target, m.targetIndex+1, len(m.targets)))
		s += "\n\n"
	}

	det := m.Displayed()
	if det == nil {
		s += infoStyle.Render("Listening for audio...")
	} else {
		s += renderNote(det.Note)
		s += "\n"
		s += infoStyle.Render(fmt.Sprintf("Frequency: %.2f Hz | Cents: %+.1f | Confidence: %.0f%%",
			det.Frequency, det.Cents, det.Confidence*100))
		s += "\n"

		cents, accuracy := det.Cents, det.Accuracy
		if target := m.Target(); target != "" {
			if ref, ok := pitch.DefaultMapper.Lookup(target); ok && det.Frequency > 0 {
				cents = pitch.Cents(det.Frequency, ref.Frequency)
				accuracy = pitch.Classify(cents)
			}
		}
		meter := lipgloss.NewStyle().Foreground(lipgloss.Color(accuracyColors[accuracy]))
		s += meter.Render(centsMeter(cents))
		s += "\n"
		s += meter.Render(fmt.Sprintf("%+.1f cents, %s", cents, accuracy))
	}

	s += "\n\n"
	s += infoStyle.Render(fmt.Sprintf("Level: %.1f dB", m.db))
	s += "\n"
	s += infoStyle.Render("Press q to quit")

	return s
}
