package engine

import "math"

// Waveform is the shape of a low-frequency oscillator.
type Waveform uint8

const (
	Sine Waveform = iota
	Square
	Triangle
)

// lfo is a phase accumulator producing a unipolar 0..1 signal.
type lfo struct {
	phase      float64
	sampleRate float64
}

func (o *lfo) advance(rate float64) {
	o.phase += rate / o.sampleRate
	if o.phase >= 1 {
		o.phase -= math.Floor(o.phase)
	}
}

// value returns the oscillator output at phase offset off (in cycles).
func (o *lfo) value(w Waveform, off float64) float64 {
	p := o.phase + off
	p -= math.Floor(p)

	switch w {
	case Square:
		if p < 0.5 {
			return 1
		}

		return 0
	case Triangle:
		if p < 0.5 {
			return 2 * p
		}

		return 2 - 2*p
	default:
		return 0.5 + 0.5*math.Sin(2*math.Pi*p)
	}
}
