package engine

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-dsp/dsp/effects/reverb"
)

// The right network modulates slightly faster so a mono input still
// produces a decorrelated stereo tail.
var reverbModRates = [2]float64{0.1, 0.13}

// Reverb is a stereo feedback-delay-network reverb, one network per
// channel. Decay and pre-delay are fixed when the unit is created; only the
// mix can be changed live.
type Reverb struct {
	Mix *Param

	decay    float64
	preDelay float64

	fdn [2]*reverb.FDNReverb
	mix float64

	fault
}

// NewReverb creates a reverb with an RT60 of decay seconds after preDelay
// seconds of silence.
func NewReverb(c *Context, decay, preDelay, mix float64) (*Reverb, error) {
	if decay <= 0 || math.IsNaN(decay) {
		return nil, fmt.Errorf("engine: reverb decay must be > 0: %f", decay)
	}

	r := &Reverb{
		Mix:      c.NewParam(mix, 0, 1),
		decay:    decay,
		preDelay: math.Max(0, preDelay),
		mix:      -1,
		fault:    fault{ctx: c},
	}

	for ch := range r.fdn {
		fdn, err := reverb.NewFDNReverb(c.sampleRate)
		if err != nil {
			return nil, fmt.Errorf("engine: reverb: %w", err)
		}

		if err := fdn.SetRT60(r.decay); err != nil {
			return nil, fmt.Errorf("engine: reverb decay: %w", err)
		}

		if err := fdn.SetPreDelay(r.preDelay); err != nil {
			return nil, fmt.Errorf("engine: reverb pre-delay: %w", err)
		}

		if err := fdn.SetModRate(reverbModRates[ch]); err != nil {
			return nil, fmt.Errorf("engine: reverb: %w", err)
		}

		r.fdn[ch] = fdn
	}

	return r, nil
}

// Decay returns the fixed RT60 in seconds.
func (r *Reverb) Decay() float64 { return r.decay }

// PreDelay returns the fixed pre-delay in seconds.
func (r *Reverb) PreDelay() float64 { return r.preDelay }

func (r *Reverb) Process(buf Buffer) {
	for i := range buf.L {
		if mix := r.Mix.next(); mix != r.mix {
			r.setMix(mix)
		}

		for ch, fdn := range r.fdn {
			x := buf.Channel(ch)
			x[i] = fdn.ProcessSample(x[i])
		}
	}
}

func (r *Reverb) setMix(mix float64) {
	for _, fdn := range r.fdn {
		if !r.note(fdn.SetWet(mix)) || !r.note(fdn.SetDry(1-mix)) {
			return
		}
	}

	r.mix = mix
}
