package graph

import (
	"strings"

	"github.com/cwbudde/algo-dsp/dsp/core"
)

// Update describes how a live parameter change reaches a unit.
type Update uint8

const (
	// Ramped values glide linearly to the new target over the ramp window.
	Ramped Update = iota
	// Immediate values (enumerations) switch without a ramp.
	Immediate
	// Fixed values are baked in at construction and have no live path.
	Fixed
)

func (u Update) String() string {
	switch u {
	case Ramped:
		return "ramped"
	case Immediate:
		return "immediate"
	case Fixed:
		return "fixed"
	default:
		return "unknown"
	}
}

// Conversion maps an authored value onto the unit the substrate expects.
type Conversion uint8

const (
	ConvertNone Conversion = iota
	ConvertDBToLinear
	ConvertMsToSeconds
)

// ParamSpec describes one parameter of a kind: its authored unit, range,
// default and live update behavior.
type ParamSpec struct {
	Name    string
	Unit    string
	Min     float64
	Max     float64
	Default float64
	Options []string
	Update  Update
	Convert Conversion
}

// IsEnum reports whether the parameter takes one of a fixed set of names.
func (s ParamSpec) IsEnum() bool {
	return len(s.Options) > 0
}

// Clamp limits v to the parameter's range.
func (s ParamSpec) Clamp(v float64) float64 {
	if s.IsEnum() {
		return v
	}

	return core.Clamp(v, s.Min, s.Max)
}

// ToSubstrate clamps an authored value and converts it to substrate units.
func (s ParamSpec) ToSubstrate(v float64) float64 {
	v = s.Clamp(v)

	switch s.Convert {
	case ConvertDBToLinear:
		return core.DBToLinear(v)
	case ConvertMsToSeconds:
		return v / 1000
	default:
		return v
	}
}

// AcceptsOption reports whether name is one of the parameter's options.
func (s ParamSpec) AcceptsOption(name string) bool {
	for _, o := range s.Options {
		if strings.EqualFold(o, name) {
			return true
		}
	}

	return false
}

var schemas = map[Kind][]ParamSpec{
	KindGain: {
		{Name: "gain", Unit: "dB", Min: -60, Max: 24, Default: 0, Update: Ramped, Convert: ConvertDBToLinear},
	},
	KindDelay: {
		{Name: "time", Unit: "ms", Min: 1, Max: 2000, Default: 250, Update: Ramped, Convert: ConvertMsToSeconds},
		{Name: "feedback", Min: 0, Max: 0.95, Default: 0.3, Update: Ramped},
		{Name: "mix", Min: 0, Max: 1, Default: 0.5, Update: Ramped},
	},
	KindReverb: {
		{Name: "decay", Unit: "s", Min: 0.1, Max: 20, Default: 2, Update: Fixed},
		{Name: "preDelay", Unit: "ms", Min: 0, Max: 500, Default: 10, Update: Fixed, Convert: ConvertMsToSeconds},
		{Name: "mix", Min: 0, Max: 1, Default: 0.3, Update: Ramped},
		{Name: "roomSize", Min: 0, Max: 1, Default: 0, Update: Fixed},
	},
	KindFilter: {
		{
			Name: "type", Update: Immediate,
			Options: []string{string(FilterLowpass), string(FilterHighpass), string(FilterBandpass), string(FilterNotch)},
		},
		{Name: "frequency", Unit: "Hz", Min: 20, Max: 20000, Default: 1000, Update: Ramped},
		{Name: "Q", Min: 0.0001, Max: 30, Default: 1, Update: Ramped},
	},
	KindDistortion: {
		{
			Name: "type", Update: Immediate,
			Options: []string{string(DistortionSoft), string(DistortionHard), string(DistortionBitcrush)},
		},
		{Name: "amount", Min: 0, Max: 1, Default: 0.5, Update: Ramped},
		{Name: "mix", Min: 0, Max: 1, Default: 1, Update: Ramped},
	},
	KindCompressor: {
		{Name: "threshold", Unit: "dB", Min: -100, Max: 0, Default: -24, Update: Ramped},
		{Name: "ratio", Min: 1, Max: 20, Default: 4, Update: Ramped},
		{Name: "attack", Unit: "ms", Min: 0.1, Max: 1000, Default: 10, Update: Ramped, Convert: ConvertMsToSeconds},
		{Name: "release", Unit: "ms", Min: 1, Max: 3000, Default: 250, Update: Ramped, Convert: ConvertMsToSeconds},
	},
	KindChorus: {
		{Name: "rate", Unit: "Hz", Min: 0.01, Max: 20, Default: 1.5, Update: Ramped},
		{Name: "depth", Min: 0, Max: 1, Default: 0.5, Update: Ramped},
		{Name: "mix", Min: 0, Max: 1, Default: 0.5, Update: Ramped},
	},
	KindTremolo: {
		{Name: "rate", Unit: "Hz", Min: 0.01, Max: 20, Default: 5, Update: Ramped},
		{Name: "depth", Min: 0, Max: 1, Default: 0.5, Update: Ramped},
		{
			Name: "shape", Update: Immediate,
			Options: []string{string(ShapeSine), string(ShapeSquare), string(ShapeTriangle)},
		},
	},
	KindPanner: {
		{Name: "pan", Min: -1, Max: 1, Default: 0, Update: Ramped},
	},
}

// Schema returns the parameter specs of kind k. Input, output and unknown
// kinds have none.
func Schema(k Kind) []ParamSpec {
	return schemas[k]
}

// Lookup finds the spec of parameter name on kind k. Names match
// case-insensitively so that "q" and "Q" address the same parameter.
func Lookup(k Kind, name string) (ParamSpec, bool) {
	for _, s := range schemas[k] {
		if s.Name == name || strings.EqualFold(s.Name, name) {
			return s, true
		}
	}

	return ParamSpec{}, false
}
