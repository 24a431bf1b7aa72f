package engine

import (
	"fmt"

	"github.com/cwbudde/algo-dsp/dsp/effects/modulation"
)

const (
	chorusBaseDelay = 0.012 // seconds
	chorusMaxSweep  = 0.008 // seconds at depth 1
)

// The right channel runs one more voice than the left for stereo width.
var chorusStages = [2]int{3, 4}

// Chorus is a stereo multi-voice chorus. Rate, depth and mix are applied
// once per block. Until Start is called the unit passes its input through
// unchanged.
type Chorus struct {
	Rate  *Param // Hz
	Depth *Param
	Mix   *Param

	ctx      *Context
	channels [2]*modulation.Chorus
	applied  [3]float64
	started  bool

	fault
}

// NewChorus creates a stopped chorus.
func NewChorus(c *Context, rate, depth, mix float64) (*Chorus, error) {
	ch := &Chorus{
		Rate:  c.NewParam(rate, 0.01, 20),
		Depth: c.NewParam(depth, 0, 1),
		Mix:   c.NewParam(mix, 0, 1),
		ctx:   c,
		fault: fault{ctx: c},
	}

	for i := range ch.channels {
		mc, err := modulation.NewChorus()
		if err != nil {
			return nil, fmt.Errorf("engine: chorus: %w", err)
		}

		if err := mc.SetSampleRate(c.sampleRate); err != nil {
			return nil, fmt.Errorf("engine: chorus: %w", err)
		}

		if err := mc.SetBaseDelay(chorusBaseDelay); err != nil {
			return nil, fmt.Errorf("engine: chorus base delay: %w", err)
		}

		if err := mc.SetStages(chorusStages[i]); err != nil {
			return nil, fmt.Errorf("engine: chorus stages: %w", err)
		}

		ch.channels[i] = mc
	}

	if err := ch.apply(ch.Rate.value, ch.Depth.value, ch.Mix.value); err != nil {
		return nil, err
	}

	return ch, nil
}

// Start runs the LFO.
func (ch *Chorus) Start() {
	ch.ctx.mu.Lock()
	ch.started = true
	ch.ctx.mu.Unlock()
}

// Started reports whether Start has been called.
func (ch *Chorus) Started() bool {
	ch.ctx.mu.Lock()
	defer ch.ctx.mu.Unlock()

	return ch.started
}

func (ch *Chorus) Process(buf Buffer) {
	n := buf.Frames()
	rate, depth, mix := ch.Rate.skip(n), ch.Depth.skip(n), ch.Mix.skip(n)

	if !ch.started {
		return
	}

	ch.note(ch.apply(rate, depth, mix))

	ch.channels[0].ProcessInPlace(buf.L)
	ch.channels[1].ProcessInPlace(buf.R)
}

// apply pushes changed settings to both channels. Depth 1 sweeps the delay
// by chorusMaxSweep.
func (ch *Chorus) apply(rate, depth, mix float64) error {
	next := [3]float64{rate, depth, mix}
	if next == ch.applied {
		return nil
	}

	for _, mc := range ch.channels {
		if err := mc.SetSpeedHz(rate); err != nil {
			return fmt.Errorf("engine: chorus rate: %w", err)
		}

		if err := mc.SetDepth(depth * chorusMaxSweep); err != nil {
			return fmt.Errorf("engine: chorus depth: %w", err)
		}

		if err := mc.SetMix(mix); err != nil {
			return fmt.Errorf("engine: chorus mix: %w", err)
		}
	}

	ch.applied = next

	return nil
}
