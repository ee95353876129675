// Package chord guesses the chord in a buffer from its averaged chroma profile.
package chord

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/0xlemi/tunecoach/internal/audio"
	"github.com/0xlemi/tunecoach/internal/pitch"
)

// Unknown is the label when no chord can be named
const Unknown = "Unknown"

const (
	frameSize = 8192
	hopSize   = 2048

	// a pitch class is present when its mean normalised energy exceeds this
	presenceThreshold = 0.3

	// present classes needed for full confidence
	saturationCount = 6.0

	minChordNotes = 3
)

// Guess is a chord classification
type Guess struct {
	Chord      string   `json:"chord"`
	Confidence float64  `json:"confidence"`
	Notes      []string `json:"notes"`
}

// Template names a chord by the pitch classes it needs
type Template struct {
	Name    string
	Classes []int
}

// Templates is the ordered, closed set of chords the detector names.
// The first template whose classes are all present wins.
var Templates = []Template{
	{Name: "C Major", Classes: []int{0, 4, 7}},  // C E G
	{Name: "A Minor", Classes: []int{9, 0, 4}},  // A C E
	{Name: "G Major", Classes: []int{7, 11, 2}}, // G B D
}

// Detector computes chroma profiles and matches them against Templates.
// The bin mapping is built once; the detector is safe for concurrent use.
type Detector struct {
	minFrequency float64
	maxFrequency float64
	sampleRate   int
	binClass     []int // pitch class per FFT bin, -1 outside range
}

// NewDetector creates a detector for 44.1 kHz input
func NewDetector() *Detector {
	d := &Detector{
		minFrequency: 65.0, // C2
		maxFrequency: 4000.0,
		sampleRate:   audio.SampleRate,
	}
	d.binClass = d.classMapping(d.sampleRate)
	return d
}

// Detect never fails; buffers without a full frame give the empty guess
func (d *Detector) Detect(buffer *audio.AudioBuffer) Guess {
	profile := d.Chroma(buffer)
	if profile == nil {
		return Guess{Chord: Unknown, Confidence: 0, Notes: []string{}}
	}
	return Match(profile)
}

// Chroma returns the 12-bin chroma profile averaged over frames, each frame
// normalised to a maximum of 1. It returns nil when no frame fits.
func (d *Detector) Chroma(buffer *audio.AudioBuffer) []float64 {
	frames := audio.Frames(buffer.Float64(), frameSize, hopSize)
	if len(frames) == 0 {
		return nil
	}

	binClass := d.binClass
	if rate := buffer.Rate(); rate != d.sampleRate {
		binClass = d.classMapping(rate)
	}

	profile := make([]float64, 12)
	frameChroma := make([]float64, 12)
	for _, frame := range frames {
		for i := range frameChroma {
			frameChroma[i] = 0
		}

		mags := audio.Magnitudes(frame, frameSize)
		for bin, class := range binClass {
			if class >= 0 {
				frameChroma[class] += mags[bin] * mags[bin]
			}
		}

		if peak := floats.Max(frameChroma); peak > 0 {
			floats.AddScaled(profile, 1/peak, frameChroma)
		}
	}

	floats.Scale(1/float64(len(frames)), profile)
	return profile
}

// Match names the chord for a chroma profile
func Match(profile []float64) Guess {
	names := pitch.NoteNames()

	present := make(map[int]bool, 12)
	notes := []string{}
	for class, energy := range profile {
		if energy > presenceThreshold {
			present[class] = true
			notes = append(notes, names[class])
		}
	}

	guess := Guess{
		Chord:      Unknown,
		Confidence: math.Min(float64(len(notes))/saturationCount, 1.0),
		Notes:      notes,
	}
	if len(notes) < minChordNotes {
		return guess
	}

	for _, tmpl := range Templates {
		if tmpl.matches(present) {
			guess.Chord = tmpl.Name
			return guess
		}
	}

	guess.Chord = fmt.Sprintf("Custom (%s)", strings.Join(notes[:minChordNotes], ", "))
	return guess
}

func (t Template) matches(present map[int]bool) bool {
	for _, class := range t.Classes {
		if !present[class] {
			return false
		}
	}
	return true
}

// classMapping maps FFT bins to pitch classes via the nearest MIDI note
func (d *Detector) classMapping(sampleRate int) []int {
	mapping := make([]int, frameSize/2+1)
	for bin := range mapping {
		freq := audio.BinFrequency(bin, frameSize, sampleRate)
		if freq < d.minFrequency || freq > d.maxFrequency {
			mapping[bin] = -1
			continue
		}
		midi := 69 + 12*math.Log2(freq/pitch.ConcertA)
		mapping[bin] = int(math.Round(midi)) % 12
	}
	return mapping
}
