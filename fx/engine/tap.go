package engine

import (
	"math"
	"sync"

	vecmath "github.com/cwbudde/algo-vecmath"
)

// Tap is a pass-through that observes the signal for metering. It keeps
// the peak and mean square since the last Levels call and a ring of recent
// mono samples for spectrum analysis.
//
// Tap has its own lock so a metering goroutine can read it without
// stalling the render loop.
type Tap struct {
	mu sync.Mutex

	ring   []float64
	write  int
	filled int

	peak  float64
	sumSq float64
	count int
}

// NewTap creates a tap retaining the last history mono samples.
func NewTap(history int) *Tap {
	return &Tap{ring: make([]float64, max(1, history))}
}

func (t *Tap) Process(buf Buffer) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.peak = math.Max(t.peak, math.Max(vecmath.MaxAbs(buf.L), vecmath.MaxAbs(buf.R)))
	t.sumSq += vecmath.DotProduct(buf.L, buf.L) + vecmath.DotProduct(buf.R, buf.R)
	t.count += 2 * buf.Frames()

	for i := range buf.L {
		t.ring[t.write] = 0.5 * (buf.L[i] + buf.R[i])

		t.write++
		if t.write == len(t.ring) {
			t.write = 0
		}
	}

	t.filled = min(len(t.ring), t.filled+buf.Frames())
}

// Levels returns the peak and RMS amplitude observed since the previous
// call and starts a new measurement window.
func (t *Tap) Levels() (peak, rms float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	peak = t.peak
	if t.count > 0 {
		rms = math.Sqrt(t.sumSq / float64(t.count))
	}

	t.peak, t.sumSq, t.count = 0, 0, 0

	return peak, rms
}

// Latest copies the most recent samples into dst, oldest first, and returns
// how many were available. Missing history is left as zeros at the front.
func (t *Tap) Latest(dst []float64) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	clear(dst)

	n := min(len(dst), t.filled)
	start := t.write - n
	if start < 0 {
		start += len(t.ring)
	}

	off := len(dst) - n
	for i := range n {
		dst[off+i] = t.ring[(start+i)%len(t.ring)]
	}

	return n
}
