package engine

import vecmath "github.com/cwbudde/algo-vecmath"

// maxLinearGain bounds gain params at roughly +36 dB.
const maxLinearGain = 64

// Gain scales its input by a linear factor.
type Gain struct {
	Gain *Param
}

// NewGain creates a gain stage at the given linear factor.
func NewGain(c *Context, linear float64) *Gain {
	return &Gain{Gain: c.NewParam(linear, 0, maxLinearGain)}
}

func (g *Gain) Process(buf Buffer) {
	if g.Gain.steady() {
		v := g.Gain.value
		if v == 1 {
			return
		}

		vecmath.ScaleBlockInPlace(buf.L, v)
		vecmath.ScaleBlockInPlace(buf.R, v)

		return
	}

	for i := range buf.L {
		v := g.Gain.next()
		buf.L[i] *= v
		buf.R[i] *= v
	}
}
