package compiler

import (
	"log/slog"

	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/engine"
	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/graph"
)

// instantiate builds the engine unit for one node. It returns a nil
// processor for kinds the engine does not know.
func (c *Compiler) instantiate(n graph.Node) (engine.Processor, error) {
	ctx := c.ctx

	switch p := n.Params.(type) {
	case graph.IOParams:
		return engine.NewGain(ctx, 1), nil

	case graph.GainParams:
		return engine.NewGain(ctx, Convert(graph.KindGain, "gain", p.Gain)), nil

	case graph.DelayParams:
		d, err := engine.NewDelay(ctx,
			Convert(graph.KindDelay, "time", p.Time),
			Convert(graph.KindDelay, "feedback", p.Feedback),
			Convert(graph.KindDelay, "mix", p.Mix),
		)
		if err != nil {
			return nil, wrap(n.Kind, err)
		}

		return d, nil

	case graph.ReverbParams:
		r, err := engine.NewReverb(ctx,
			Convert(graph.KindReverb, "decay", p.Decay),
			Convert(graph.KindReverb, "preDelay", p.PreDelay),
			Convert(graph.KindReverb, "mix", p.Mix),
		)
		if err != nil {
			return nil, wrap(n.Kind, err)
		}

		return r, nil

	case graph.FilterParams:
		return engine.NewFilter(ctx,
			FilterResponse(p.Type),
			Convert(graph.KindFilter, "frequency", p.Frequency),
			Convert(graph.KindFilter, "Q", p.Q),
		), nil

	case graph.DistortionParams:
		d, err := engine.NewDistortion(ctx,
			DistortionMode(p.Type),
			Convert(graph.KindDistortion, "amount", p.Amount),
			Convert(graph.KindDistortion, "mix", p.Mix),
			graph.BitcrushBits,
		)
		if err != nil {
			return nil, wrap(n.Kind, err)
		}

		return d, nil

	case graph.CompressorParams:
		comp, err := engine.NewCompressor(ctx,
			Convert(graph.KindCompressor, "threshold", p.Threshold),
			Convert(graph.KindCompressor, "ratio", p.Ratio),
			Convert(graph.KindCompressor, "attack", p.Attack),
			Convert(graph.KindCompressor, "release", p.Release),
		)
		if err != nil {
			return nil, wrap(n.Kind, err)
		}

		return comp, nil

	case graph.ChorusParams:
		ch, err := engine.NewChorus(ctx,
			Convert(graph.KindChorus, "rate", p.Rate),
			Convert(graph.KindChorus, "depth", p.Depth),
			Convert(graph.KindChorus, "mix", p.Mix),
		)
		if err != nil {
			return nil, wrap(n.Kind, err)
		}

		return ch, nil

	case graph.TremoloParams:
		return engine.NewTremolo(ctx,
			Convert(graph.KindTremolo, "rate", p.Rate),
			Convert(graph.KindTremolo, "depth", p.Depth),
			Waveform(p.Shape),
		), nil

	case graph.PannerParams:
		return engine.NewPanner(ctx, Convert(graph.KindPanner, "pan", p.Pan)), nil

	case graph.UnknownParams:
		c.log.Warn("unknown node type; node skipped", slog.String("node", n.ID), slog.String("type", p.Type))
		return nil, nil

	default:
		c.log.Warn("node has no parameters; node skipped", slog.String("node", n.ID), slog.String("type", n.TypeName()))
		return nil, nil
	}
}

// Convert clamps an authored parameter value to its schema range and
// converts it to the unit the engine expects (dB to linear, ms to s).
// Parameters without a schema entry pass through unchanged.
func Convert(kind graph.Kind, param string, v float64) float64 {
	spec, ok := graph.Lookup(kind, param)
	if !ok {
		return v
	}

	return spec.ToSubstrate(v)
}

// FilterResponse maps a filter type onto its engine design.
func FilterResponse(t graph.FilterType) engine.FilterResponse {
	switch t {
	case graph.FilterHighpass:
		return engine.Highpass
	case graph.FilterBandpass:
		return engine.Bandpass
	case graph.FilterNotch:
		return engine.Notch
	default:
		return engine.Lowpass
	}
}

// DistortionMode maps a distortion type onto its engine curve.
func DistortionMode(t graph.DistortionType) engine.DistortionMode {
	switch t {
	case graph.DistortionHard:
		return engine.HardClip
	case graph.DistortionBitcrush:
		return engine.Bitcrush
	default:
		return engine.SoftClip
	}
}

// Waveform maps a tremolo shape onto its engine LFO waveform.
func Waveform(s graph.Shape) engine.Waveform {
	switch s {
	case graph.ShapeSquare:
		return engine.Square
	case graph.ShapeTriangle:
		return engine.Triangle
	default:
		return engine.Sine
	}
}
