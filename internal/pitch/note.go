package pitch

import (
	"fmt"
	"math"
)

// Unknown is the label for "no pitch"
const Unknown = "Unknown"

// ConcertA is the A4 anchor of the reference table
const ConcertA = 440.0

const numOctaves = 9

// All note names in chromatic order
var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// NoteNames returns the twelve pitch-class names starting at C
func NoteNames() []string {
	return noteNames[:]
}

// Reference is one equal-tempered pitch of the reference table
type Reference struct {
	Name      string  // e.g. "A", "A#"
	Octave    int     // 4 for middle C (C4)
	Frequency float64 // Hz
}

// Label returns the note name with its octave, e.g. "C#4"
func (r Reference) Label() string {
	return fmt.Sprintf("%s%d", r.Name, r.Octave)
}

// NoteMapper maps frequencies onto the nearest equal-tempered reference.
// The table is built once and never mutated.
type NoteMapper struct {
	refs    []Reference // increasing frequency
	byLabel map[string]Reference
}

// DefaultMapper is the A4 = 440 Hz mapper shared by the engine
var DefaultMapper = NewNoteMapper(ConcertA)

// NewNoteMapper builds C0..B8 from the given A4 frequency
func NewNoteMapper(a4 float64) *NoteMapper {
	m := &NoteMapper{
		refs:    make([]Reference, 0, numOctaves*len(noteNames)),
		byLabel: make(map[string]Reference, numOctaves*len(noteNames)),
	}

	for octave := 0; octave < numOctaves; octave++ {
		for class, name := range noteNames {
			// A4 is 57 semitones above C0
			semitones := float64(octave*12 + class - 57)
			ref := Reference{
				Name:      name,
				Octave:    octave,
				Frequency: a4 * math.Pow(2, semitones/12),
			}
			m.refs = append(m.refs, ref)
			m.byLabel[ref.Label()] = ref
		}
	}
	return m
}

// References returns a copy of the table in increasing frequency
func (m *NoteMapper) References() []Reference {
	out := make([]Reference, len(m.refs))
	copy(out, m.refs)
	return out
}

// Lookup returns the reference for a label such as "A4"
func (m *NoteMapper) Lookup(label string) (Reference, bool) {
	ref, ok := m.byLabel[label]
	return ref, ok
}

// Map returns the label of the reference nearest to frequency and the cents
// offset from it. Nearness is absolute Hz distance, not cents, so close to a
// semitone midpoint the lower note can win even when the upper one is closer
// in cents. On an exact tie the lower reference wins.
func (m *NoteMapper) Map(frequency float64) (string, float64) {
	if !(frequency > 0) || math.IsInf(frequency, 0) {
		return Unknown, 0
	}

	best := -1
	minDistance := math.Inf(1)
	for i, ref := range m.refs {
		if d := math.Abs(frequency - ref.Frequency); d < minDistance {
			minDistance = d
			best = i
		}
	}

	ref := m.refs[best]
	return ref.Label(), Cents(frequency, ref.Frequency)
}

// Cents returns 1200*log2(frequency/reference)
func Cents(frequency, reference float64) float64 {
	return 1200 * math.Log2(frequency/reference)
}
