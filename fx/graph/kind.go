package graph

import "strings"

// Kind identifies the processing unit a node declares.
//
// The set is closed. Types the engine does not know decode to KindUnknown
// and keep their raw name in UnknownParams.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindInput
	KindOutput
	KindGain
	KindDelay
	KindReverb
	KindFilter
	KindDistortion
	KindCompressor
	KindChorus
	KindTremolo
	KindPanner
)

var kindNames = [...]string{
	KindUnknown:    "unknown",
	KindInput:      "input",
	KindOutput:     "output",
	KindGain:       "gain",
	KindDelay:      "delay",
	KindReverb:     "reverb",
	KindFilter:     "filter",
	KindDistortion: "distortion",
	KindCompressor: "compressor",
	KindChorus:     "chorus",
	KindTremolo:    "tremolo",
	KindPanner:     "panner",
}

// Kinds lists every known kind in declaration order.
func Kinds() []Kind {
	return []Kind{
		KindInput, KindOutput, KindGain, KindDelay, KindReverb, KindFilter,
		KindDistortion, KindCompressor, KindChorus, KindTremolo, KindPanner,
	}
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}

	return kindNames[KindUnknown]
}

// ParseKind maps a type name to its Kind. Matching ignores case and
// surrounding whitespace.
func ParseKind(name string) (Kind, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, k := range Kinds() {
		if kindNames[k] == name {
			return k, true
		}
	}

	return KindUnknown, false
}

// IsEndpoint reports whether k is the input or output kind.
func (k Kind) IsEndpoint() bool {
	return k == KindInput || k == KindOutput
}

// IsModulator reports whether k is driven by an LFO that must be started.
func (k Kind) IsModulator() bool {
	return k == KindChorus || k == KindTremolo
}
