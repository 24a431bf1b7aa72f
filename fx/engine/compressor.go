package engine

import (
	"fmt"

	"github.com/cwbudde/algo-dsp/dsp/effects/dynamics"
)

const compressorKneeDB = 6

// Compressor is a stereo feed-forward compressor. Each channel runs its own
// detector; parameters are applied to both once per block.
type Compressor struct {
	Threshold *Param // dB
	Ratio     *Param
	Attack    *Param // seconds
	Release   *Param // seconds

	fault

	channels [2]*dynamics.Compressor
	applied  [4]float64
}

// NewCompressor creates a compressor. attack and release are in seconds.
func NewCompressor(c *Context, threshold, ratio, attack, release float64) (*Compressor, error) {
	comp := &Compressor{
		Threshold: c.NewParam(threshold, -100, 0),
		Ratio:     c.NewParam(ratio, 1, 20),
		Attack:    c.NewParam(attack, 0.0001, 1),
		Release:   c.NewParam(release, 0.001, 5),
		fault:     fault{ctx: c},
	}

	for ch := range comp.channels {
		dc, err := dynamics.NewCompressor(c.sampleRate)
		if err != nil {
			return nil, fmt.Errorf("engine: compressor: %w", err)
		}

		if err := dc.SetKnee(compressorKneeDB); err != nil {
			return nil, fmt.Errorf("engine: compressor knee: %w", err)
		}

		if err := dc.SetAutoMakeup(false); err != nil {
			return nil, fmt.Errorf("engine: compressor makeup: %w", err)
		}

		comp.channels[ch] = dc
	}

	if err := comp.apply(comp.Threshold.value, comp.Ratio.value, comp.Attack.value, comp.Release.value); err != nil {
		return nil, err
	}

	return comp, nil
}

func (comp *Compressor) Process(buf Buffer) {
	n := buf.Frames()

	comp.note(comp.apply(comp.Threshold.skip(n), comp.Ratio.skip(n), comp.Attack.skip(n), comp.Release.skip(n)))

	comp.channels[0].ProcessInPlace(buf.L)
	comp.channels[1].ProcessInPlace(buf.R)
}

// apply pushes changed settings to the detectors. The dynamics package
// takes attack and release in milliseconds.
func (comp *Compressor) apply(threshold, ratio, attack, release float64) error {
	next := [4]float64{threshold, ratio, attack, release}
	if next == comp.applied {
		return nil
	}

	for _, dc := range comp.channels {
		if err := dc.SetThreshold(threshold); err != nil {
			return fmt.Errorf("engine: compressor threshold: %w", err)
		}

		if err := dc.SetRatio(ratio); err != nil {
			return fmt.Errorf("engine: compressor ratio: %w", err)
		}

		if err := dc.SetAttack(attack * 1000); err != nil {
			return fmt.Errorf("engine: compressor attack: %w", err)
		}

		if err := dc.SetRelease(release * 1000); err != nil {
			return fmt.Errorf("engine: compressor release: %w", err)
		}
	}

	comp.applied = next

	return nil
}
