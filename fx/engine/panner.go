package engine

import "math"

// Panner positions a stereo signal with an equal-power law. At pan -1 both
// channels fold into the left; at +1 into the right.
type Panner struct {
	Pan *Param
}

// NewPanner creates a panner at position pan in [-1, 1].
func NewPanner(c *Context, pan float64) *Panner {
	return &Panner{Pan: c.NewParam(pan, -1, 1)}
}

func (p *Panner) Process(buf Buffer) {
	for i := range buf.L {
		pan := p.Pan.next()
		l, r := buf.L[i], buf.R[i]

		if pan <= 0 {
			x := (pan + 1) * math.Pi / 2
			gl, gr := math.Cos(x), math.Sin(x)
			buf.L[i] = l + r*gl
			buf.R[i] = r * gr
		} else {
			x := pan * math.Pi / 2
			gl, gr := math.Cos(x), math.Sin(x)
			buf.L[i] = l * gl
			buf.R[i] = r + l*gr
		}
	}
}
