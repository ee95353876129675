package audio

// Frames slices samples into full frames of size, advancing by hop.
// A signal shorter than one frame yields no frames.
func Frames(samples []float64, size, hop int) [][]float64 {
	if size <= 0 || hop <= 0 || len(samples) < size {
		return nil
	}

	count := (len(samples)-size)/hop + 1
	frames := make([][]float64, count)
	for i := range frames {
		frame := make([]float64, size)
		copy(frame, samples[i*hop:i*hop+size])
		frames[i] = frame
	}
	return frames
}

// CenteredFrames pads size/2 zeros on both ends before framing, so every
// non-empty signal produces at least one frame centred on each hop.
func CenteredFrames(samples []float64, size, hop int) [][]float64 {
	if len(samples) == 0 || size <= 0 || hop <= 0 {
		return nil
	}

	pad := size / 2
	padded := make([]float64, len(samples)+2*pad)
	copy(padded[pad:], samples)

	return Frames(padded, size, hop)
}

// NextPowerOfTwo returns the smallest power of two >= n
func NextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
