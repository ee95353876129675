package pitch

import "math"

// Accuracy is how close a note is to its reference pitch
type Accuracy string

const (
	Perfect Accuracy = "perfect" // within 5 cents
	Good    Accuracy = "good"    // within 10 cents
	Fair    Accuracy = "fair"    // within 20 cents
	Poor    Accuracy = "poor"
)

// Accuracy tier breakpoints in cents
const (
	PerfectCents = 5.0
	GoodCents    = 10.0
	FairCents    = 20.0
)

// Classify maps a cents offset to an accuracy tier using |cents| only
func Classify(cents float64) Accuracy {
	abs := math.Abs(cents)
	switch {
	case abs <= PerfectCents:
		return Perfect
	case abs <= GoodCents:
		return Good
	case abs <= FairCents:
		return Fair
	default:
		// NaN lands here too
		return Poor
	}
}

// Acceptable reports whether the tier counts as a correctly played note
func (a Accuracy) Acceptable() bool {
	return a == Perfect || a == Good
}
