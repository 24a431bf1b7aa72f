package graph

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/cwbudde/algo-dsp/dsp/core"
)

// Params is the typed parameter set of a node. Each kind has exactly one
// implementation, so a type switch over Params is a switch over kinds.
type Params interface {
	Kind() Kind
	isParams()
}

// FilterType selects the biquad response of a filter node.
type FilterType string

const (
	FilterLowpass  FilterType = "lowpass"
	FilterHighpass FilterType = "highpass"
	FilterBandpass FilterType = "bandpass"
	FilterNotch    FilterType = "notch"
)

// DistortionType selects the shaping curve of a distortion node.
type DistortionType string

const (
	DistortionSoft     DistortionType = "soft"
	DistortionHard     DistortionType = "hard"
	DistortionBitcrush DistortionType = "bitcrush"
)

// Shape is the LFO waveform of a tremolo node.
type Shape string

const (
	ShapeSine     Shape = "sine"
	ShapeSquare   Shape = "square"
	ShapeTriangle Shape = "triangle"
)

// ParseFilterType returns the filter type for s, or false if s names none.
func ParseFilterType(s string) (FilterType, bool) {
	switch t := FilterType(strings.ToLower(strings.TrimSpace(s))); t {
	case FilterLowpass, FilterHighpass, FilterBandpass, FilterNotch:
		return t, true
	}

	return FilterLowpass, false
}

// ParseDistortionType returns the distortion type for s, or false if s names none.
func ParseDistortionType(s string) (DistortionType, bool) {
	switch t := DistortionType(strings.ToLower(strings.TrimSpace(s))); t {
	case DistortionSoft, DistortionHard, DistortionBitcrush:
		return t, true
	}

	return DistortionSoft, false
}

// ParseShape returns the LFO shape for s, or false if s names none.
func ParseShape(s string) (Shape, bool) {
	switch t := Shape(strings.ToLower(strings.TrimSpace(s))); t {
	case ShapeSine, ShapeSquare, ShapeTriangle:
		return t, true
	}

	return ShapeSine, false
}

// IOParams carries no parameters; input and output nodes are unity pass-throughs.
type IOParams struct {
	kind Kind
}

// GainParams configures a gain node. Gain is in decibels.
type GainParams struct {
	Gain float64
}

// DelayParams configures a feedback delay. Time is in milliseconds.
type DelayParams struct {
	Time     float64
	Feedback float64
	Mix      float64
}

// ReverbParams configures the algorithmic reverb. Decay is in seconds and
// PreDelay in milliseconds; both are fixed once the unit exists. RoomSize is
// optional (zero means unset).
type ReverbParams struct {
	Decay    float64
	PreDelay float64
	Mix      float64
	RoomSize float64
}

// Size returns a 0..1 proxy for how large the reverb sounds: RoomSize when
// authored, otherwise the decay time scaled so that 5 s maps to 1.
func (p ReverbParams) Size() float64 {
	if p.RoomSize > 0 {
		return core.Clamp(p.RoomSize, 0, 1)
	}

	return core.Clamp(p.Decay/5, 0, 1)
}

// FilterParams configures a biquad filter.
type FilterParams struct {
	Type      FilterType
	Frequency float64
	Q         float64
}

// DistortionParams configures the waveshaper or bit crusher.
type DistortionParams struct {
	Type   DistortionType
	Amount float64
	Mix    float64
}

// Bits returns the bit depth used by the bitcrush variant.
func (p DistortionParams) Bits() int {
	return BitcrushBits(p.Amount)
}

// BitcrushBits maps a 0..1 distortion amount to a quantiser bit depth.
func BitcrushBits(amount float64) int {
	bits := int(math.Round(16 - amount*14))
	if bits < 1 {
		return 1
	}

	return bits
}

// CompressorParams configures the dynamics processor. Threshold is in dB,
// Attack and Release in milliseconds.
type CompressorParams struct {
	Threshold float64
	Ratio     float64
	Attack    float64
	Release   float64
}

// ChorusParams configures the chorus modulator.
type ChorusParams struct {
	Rate  float64
	Depth float64
	Mix   float64
}

// TremoloParams configures the tremolo modulator.
type TremoloParams struct {
	Rate  float64
	Depth float64
	Shape Shape
}

// PannerParams configures the stereo panner. Pan is in [-1, 1].
type PannerParams struct {
	Pan float64
}

// UnknownParams holds the raw parameters of a node whose type is not one of
// the known kinds.
type UnknownParams struct {
	Type string
	Raw  map[string]any
}

// Num returns a numeric raw parameter.
func (p UnknownParams) Num(key string) (float64, bool) {
	v, ok := p.Raw[key]
	if !ok {
		return 0, false
	}

	return toFloat(v)
}

func (p IOParams) Kind() Kind {
	if p.kind == KindOutput {
		return KindOutput
	}

	return KindInput
}
func (GainParams) Kind() Kind       { return KindGain }
func (DelayParams) Kind() Kind      { return KindDelay }
func (ReverbParams) Kind() Kind     { return KindReverb }
func (FilterParams) Kind() Kind     { return KindFilter }
func (DistortionParams) Kind() Kind { return KindDistortion }
func (CompressorParams) Kind() Kind { return KindCompressor }
func (ChorusParams) Kind() Kind     { return KindChorus }
func (TremoloParams) Kind() Kind    { return KindTremolo }
func (PannerParams) Kind() Kind     { return KindPanner }
func (UnknownParams) Kind() Kind    { return KindUnknown }

func (IOParams) isParams()         {}
func (GainParams) isParams()       {}
func (DelayParams) isParams()      {}
func (ReverbParams) isParams()     {}
func (FilterParams) isParams()     {}
func (DistortionParams) isParams() {}
func (CompressorParams) isParams() {}
func (ChorusParams) isParams()     {}
func (TremoloParams) isParams()    {}
func (PannerParams) isParams()     {}
func (UnknownParams) isParams()    {}

// DefaultParams returns the parameter set of kind k with every field at its
// schema default.
func DefaultParams(k Kind) Params {
	return decodeParams(k, k.String(), nil)
}

// decodeParams builds the typed parameters for kind k from a raw JSON
// object. Missing or malformed values fall back to schema defaults; authored
// values are kept as written so the validator sees what the author wrote.
func decodeParams(k Kind, typeName string, raw map[string]any) Params {
	r := rawParams{kind: k, values: raw}

	switch k {
	case KindInput:
		return IOParams{kind: KindInput}
	case KindOutput:
		return IOParams{kind: KindOutput}
	case KindGain:
		return GainParams{Gain: r.num("gain")}
	case KindDelay:
		return DelayParams{Time: r.num("time"), Feedback: r.num("feedback"), Mix: r.num("mix")}
	case KindReverb:
		return ReverbParams{
			Decay:    r.num("decay"),
			PreDelay: r.num("preDelay"),
			Mix:      r.num("mix"),
			RoomSize: r.num("roomSize"),
		}
	case KindFilter:
		t, _ := ParseFilterType(r.str("type"))
		return FilterParams{Type: t, Frequency: r.num("frequency"), Q: r.num("Q")}
	case KindDistortion:
		t, _ := ParseDistortionType(r.str("type"))
		return DistortionParams{Type: t, Amount: r.num("amount"), Mix: r.num("mix")}
	case KindCompressor:
		return CompressorParams{
			Threshold: r.num("threshold"),
			Ratio:     r.num("ratio"),
			Attack:    r.num("attack"),
			Release:   r.num("release"),
		}
	case KindChorus:
		return ChorusParams{Rate: r.num("rate"), Depth: r.num("depth"), Mix: r.num("mix")}
	case KindTremolo:
		s, _ := ParseShape(r.str("shape"))
		return TremoloParams{Rate: r.num("rate"), Depth: r.num("depth"), Shape: s}
	case KindPanner:
		return PannerParams{Pan: r.num("pan")}
	default:
		cp := make(map[string]any, len(raw))
		for key, v := range raw {
			cp[key] = v
		}

		return UnknownParams{Type: typeName, Raw: cp}
	}
}

type rawParams struct {
	kind   Kind
	values map[string]any
}

func (r rawParams) lookup(key string) (any, bool) {
	if v, ok := r.values[key]; ok {
		return v, true
	}

	for k, v := range r.values {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}

	return nil, false
}

func (r rawParams) num(key string) float64 {
	def := 0.0
	if spec, ok := Lookup(r.kind, key); ok {
		def = spec.Default
	}

	v, ok := r.lookup(key)
	if !ok {
		return def
	}

	f, ok := toFloat(v)
	if !ok {
		return def
	}

	return f
}

func (r rawParams) str(key string) string {
	if v, ok := r.lookup(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}

	if spec, ok := Lookup(r.kind, key); ok && len(spec.Options) > 0 {
		return spec.Options[0]
	}

	return ""
}

func toFloat(v any) (float64, bool) {
	var f float64

	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return 0, false
		}

		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}

		f = n
	case bool:
		if t {
			f = 1
		}
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}

	return f, true
}
