package engine

import "math"

// OscWave is the waveform of an audio-rate Oscillator.
type OscWave uint8

const (
	OscSine OscWave = iota
	OscSquare
	OscSawtooth
	OscTriangle
)

// Oscillator is a source producing a periodic waveform on both channels.
// It ignores anything connected to its input.
type Oscillator struct {
	Frequency *Param // Hz
	Level     *Param // linear

	wave       OscWave
	phase      float64
	sampleRate float64
}

// NewOscillator creates an oscillator at freq Hz and linear level.
func NewOscillator(c *Context, wave OscWave, freq, level float64) *Oscillator {
	return &Oscillator{
		Frequency:  c.NewParam(freq, 0, c.sampleRate/2),
		Level:      c.NewParam(level, 0, 1),
		wave:       wave,
		sampleRate: c.sampleRate,
	}
}

func (o *Oscillator) Process(buf Buffer) {
	for i := range buf.L {
		freq := o.Frequency.next()
		level := o.Level.next()

		v := level * o.sample()
		buf.L[i] = v
		buf.R[i] = v

		o.phase += freq / o.sampleRate
		o.phase -= math.Floor(o.phase)
	}
}

func (o *Oscillator) sample() float64 {
	p := o.phase

	switch o.wave {
	case OscSquare:
		if p < 0.5 {
			return 1
		}

		return -1
	case OscSawtooth:
		return 2*p - 1
	case OscTriangle:
		if p < 0.5 {
			return 4*p - 1
		}

		return 3 - 4*p
	default:
		return math.Sin(2 * math.Pi * p)
	}
}
