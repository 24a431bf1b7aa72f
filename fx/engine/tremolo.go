package engine

// Tremolo modulates amplitude with an LFO of selectable shape. Like Chorus
// it passes audio through untouched until started.
type Tremolo struct {
	Rate  *Param // Hz
	Depth *Param

	ctx     *Context
	shape   Waveform
	osc     lfo
	started bool
}

// NewTremolo creates a stopped tremolo.
func NewTremolo(c *Context, rate, depth float64, shape Waveform) *Tremolo {
	return &Tremolo{
		Rate:  c.NewParam(rate, 0.01, 20),
		Depth: c.NewParam(depth, 0, 1),
		ctx:   c,
		shape: shape,
		osc:   lfo{sampleRate: c.sampleRate},
	}
}

// Start runs the LFO.
func (t *Tremolo) Start() {
	t.ctx.mu.Lock()
	t.started = true
	t.ctx.mu.Unlock()
}

// Started reports whether Start has been called.
func (t *Tremolo) Started() bool {
	t.ctx.mu.Lock()
	defer t.ctx.mu.Unlock()

	return t.started
}

// SetShape switches the LFO waveform without a ramp.
func (t *Tremolo) SetShape(w Waveform) {
	t.ctx.mu.Lock()
	t.shape = w
	t.ctx.mu.Unlock()
}

// Shape returns the current LFO waveform.
func (t *Tremolo) Shape() Waveform {
	t.ctx.mu.Lock()
	defer t.ctx.mu.Unlock()

	return t.shape
}

func (t *Tremolo) Process(buf Buffer) {
	if !t.started {
		t.Rate.skip(buf.Frames())
		t.Depth.skip(buf.Frames())

		return
	}

	for i := range buf.L {
		rate := t.Rate.next()
		depth := t.Depth.next()

		g := 1 - depth*(1-t.osc.value(t.shape, 0))
		buf.L[i] *= g
		buf.R[i] *= g

		t.osc.advance(rate)
	}
}
