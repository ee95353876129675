package chord

import (
	"math"
	"reflect"
	"testing"

	"github.com/0xlemi/tunecoach/internal/audio"
	"github.com/0xlemi/tunecoach/internal/testutil"
)

func TestDetectTriads(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		freqs []float64
		chord string
		notes []string
	}{
		{"C major", []float64{261.63, 329.63, 392.00}, "C Major", []string{"C", "E", "G"}},
		{"A minor", []float64{220.00, 261.63, 329.63}, "A Minor", []string{"C", "E", "A"}},
		{"G major", []float64{196.00, 246.94, 293.66}, "G Major", []string{"D", "G", "B"}},
		{"cluster", []float64{261.63, 293.66, 329.63, 349.23}, "Custom (C, D, E)", []string{"C", "D", "E", "F"}},
	}

	d := NewDetector()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := d.Detect(audio.NewBuffer(testutil.Mix(audio.SampleRate/2, tt.freqs...)))
			if got.Chord != tt.chord {
				t.Errorf("chord = %q, want %q (profile notes %v)", got.Chord, tt.chord, got.Notes)
			}
			if !reflect.DeepEqual(got.Notes, tt.notes) {
				t.Errorf("notes = %v, want %v", got.Notes, tt.notes)
			}
			want := math.Min(float64(len(tt.notes))/6, 1)
			if math.Abs(got.Confidence-want) > 1e-12 {
				t.Errorf("confidence = %v, want %v", got.Confidence, want)
			}
		})
	}
}

func TestDetectNoEnergy(t *testing.T) {
	t.Parallel()

	d := NewDetector()
	buffers := map[string]*audio.AudioBuffer{
		"nil":       nil,
		"empty":     audio.NewBuffer(nil),
		"silence":   audio.NewBuffer(make([]float32, audio.SampleRate)),
		"too short": testutil.SineBuffer(440, frameSize-1),
	}

	for name, buf := range buffers {
		got := d.Detect(buf)
		if got.Chord != Unknown || got.Confidence != 0 || got.Notes == nil || len(got.Notes) != 0 {
			t.Errorf("%s: Detect = %+v, want Unknown/0/[]", name, got)
		}
	}
}

func TestDetectSingleNoteIsUnknown(t *testing.T) {
	t.Parallel()

	got := NewDetector().Detect(testutil.SineBuffer(440, audio.SampleRate/2))
	if got.Chord != Unknown {
		t.Errorf("chord = %q, want Unknown", got.Chord)
	}
	if !reflect.DeepEqual(got.Notes, []string{"A"}) {
		t.Errorf("notes = %v, want [A]", got.Notes)
	}
	if math.Abs(got.Confidence-1.0/6) > 1e-12 {
		t.Errorf("confidence = %v, want 1/6", got.Confidence)
	}
}

func TestMatchTemplateOrder(t *testing.T) {
	t.Parallel()

	// A C E G satisfies both C Major and A Minor; C Major is listed first
	profile := make([]float64, 12)
	for _, c := range []int{0, 4, 7, 9} {
		profile[c] = 1
	}
	if got := Match(profile); got.Chord != "C Major" {
		t.Errorf("chord = %q, want C Major", got.Chord)
	}

	// threshold is strict
	profile = make([]float64, 12)
	for _, c := range []int{0, 4, 7} {
		profile[c] = presenceThreshold
	}
	if got := Match(profile); got.Chord != Unknown || len(got.Notes) != 0 {
		t.Errorf("energy at threshold counted as present: %+v", got)
	}
}

func TestMatchConfidenceSaturates(t *testing.T) {
	t.Parallel()

	profile := make([]float64, 12)
	for i := range profile {
		profile[i] = 0.9
	}
	got := Match(profile)
	if got.Confidence != 1 || len(got.Notes) != 12 {
		t.Errorf("Match(all) = %+v", got)
	}
	if got.Chord != "C Major" {
		t.Errorf("chord = %q, want C Major", got.Chord)
	}
}
