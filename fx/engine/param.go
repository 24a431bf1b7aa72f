package engine

import (
	"math"
	"time"

	"github.com/cwbudde/algo-dsp/dsp/core"
)

// Param is an automatable processor parameter in substrate units.
//
// Set changes the value at the next rendered sample. RampTo glides linearly
// to a target over a duration; the ramp advances inside the render loop, so
// both calls return immediately.
type Param struct {
	ctx *Context

	value     float64
	target    float64
	step      float64
	remaining int

	lo float64
	hi float64
}

// NewParam creates a parameter bounded to [lo, hi].
func (c *Context) NewParam(value, lo, hi float64) *Param {
	v := core.Clamp(value, lo, hi)

	return &Param{ctx: c, value: v, target: v, lo: lo, hi: hi}
}

// Set jumps to v, cancelling any ramp in progress.
func (p *Param) Set(v float64) {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()

	p.setLocked(v)
}

// RampTo glides from the current value to v over d.
func (p *Param) RampTo(v float64, d time.Duration) {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()

	v = p.bound(v)

	samples := p.ctx.rampSamples(d.Seconds())
	if samples <= 0 || v == p.value {
		p.setLocked(v)
		return
	}

	p.target = v
	p.remaining = samples
	p.step = (v - p.value) / float64(samples)
}

// Value returns the value the next sample will use.
func (p *Param) Value() float64 {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()

	return p.value
}

// Target returns the value the parameter is heading to.
func (p *Param) Target() float64 {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()

	return p.target
}

// Ramping reports whether a ramp is in progress.
func (p *Param) Ramping() bool {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()

	return p.remaining > 0
}

func (p *Param) setLocked(v float64) {
	v = p.bound(v)
	p.value = v
	p.target = v
	p.step = 0
	p.remaining = 0
}

func (p *Param) bound(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return p.value
	}

	return core.Clamp(v, p.lo, p.hi)
}

// next returns the value for the current sample and advances any ramp by
// one sample. Called from processors during render.
func (p *Param) next() float64 {
	v := p.value

	if p.remaining > 0 {
		p.remaining--
		if p.remaining == 0 {
			p.value = p.target
		} else {
			p.value += p.step
		}
	}

	return v
}

// steady reports whether the value is constant for the rest of the block.
func (p *Param) steady() bool {
	return p.remaining == 0
}

// skip advances the ramp by n samples and returns the value at the start.
// Used by processors that update their internals once per block.
func (p *Param) skip(n int) float64 {
	v := p.value
	if p.remaining == 0 {
		return v
	}

	if n >= p.remaining {
		p.value = p.target
		p.remaining = 0
		p.step = 0

		return v
	}

	p.remaining -= n
	p.value += p.step * float64(n)

	return v
}
