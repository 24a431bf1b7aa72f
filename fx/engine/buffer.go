package engine

import "github.com/cwbudde/algo-dsp/dsp/core"

// Buffer is one block of stereo audio. L and R always have equal length.
type Buffer struct {
	L []float64
	R []float64
}

// NewBuffer allocates a silent buffer of n frames.
func NewBuffer(n int) Buffer {
	return Buffer{L: make([]float64, n), R: make([]float64, n)}
}

// Frames returns the number of frames in b.
func (b Buffer) Frames() int {
	return len(b.L)
}

// Slice returns the frames [from, to) of b without copying.
func (b Buffer) Slice(from, to int) Buffer {
	return Buffer{L: b.L[from:to], R: b.R[from:to]}
}

// Zero silences b.
func (b Buffer) Zero() {
	core.Zero(b.L)
	core.Zero(b.R)
}

// CopyFrom copies src into b and returns the number of frames copied.
func (b Buffer) CopyFrom(src Buffer) int {
	core.CopyInto(b.L, src.L)

	return core.CopyInto(b.R, src.R)
}

// Channel returns channel ch (0 left, 1 right).
func (b Buffer) Channel(ch int) []float64 {
	if ch == 0 {
		return b.L
	}

	return b.R
}
