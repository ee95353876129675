package tuning

import "strings"

// Instrument is one entry of the closed tuning table
type Instrument string

const (
	Violin  Instrument = "violin"
	Flute   Instrument = "flute"
	Trumpet Instrument = "trumpet"
	Piano   Instrument = "piano"
	Cello   Instrument = "cello"
)

// DefaultNotes is returned for instruments outside the table
var DefaultNotes = []string{"A4"}

var tuningTable = map[Instrument][]string{
	Violin:  {"G3", "D4", "A4", "E5"},
	Flute:   {"C4"},
	Trumpet: {"C4"},
	Piano:   {"A4"},
	Cello:   {"C2", "G2", "D3", "A3"},
}

// Instruments lists the table's instruments in a stable order
func Instruments() []Instrument {
	return []Instrument{Violin, Flute, Trumpet, Piano, Cello}
}

// NotesFor returns the standard tuning notes for an instrument.
// Lookup is case-insensitive; unknown instruments get DefaultNotes.
// The returned slice is a copy.
func NotesFor(instrument string) []string {
	notes, ok := tuningTable[Instrument(strings.ToLower(strings.TrimSpace(instrument)))]
	if !ok {
		notes = DefaultNotes
	}
	out := make([]string, len(notes))
	copy(out, notes)
	return out
}
