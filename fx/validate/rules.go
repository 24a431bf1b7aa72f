package validate

import (
	"strings"

	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/graph"
)

// Thresholds of the per-node and cross-node heuristics.
const (
	maxSafeFeedback     = 0.85
	awkwardDelayLowMs   = 150
	awkwardDelayHighMs  = 200
	muddyFeedback       = 0.7
	heavyMix            = 0.5
	largeReverbSize     = 0.8
	resonantQ           = 15
	resonantMaxHz       = 100
	crushedThresholdDB  = -35
	extremeRatio        = 8
	pumpingAttackMs     = 5
	dizzyRateHz         = 7
	dizzyDepth          = 0.8
	heavyDistortion     = 0.6
	longReverbSize      = 0.6
	rumbleCutoffHz      = 200
	modulatorRateParam  = "rate"
	modulatorDepthParam = "depth"
)

func checkSweetSpots(r *report, def graph.Definition) {
	for _, n := range def.Nodes {
		switch p := n.Params.(type) {
		case graph.DelayParams:
			checkDelay(r, n.ID, p)
		case graph.ReverbParams:
			if p.Size() > largeReverbSize && p.Mix > heavyMix {
				r.warn("Reverb %q is drowning in reverb: large room (%.2f) with mix %.2f", n.ID, p.Size(), p.Mix)
				r.suggest("Lower the mix of reverb %q below 0.5 or shrink the room", n.ID)
			}
		case graph.FilterParams:
			if p.Q > resonantQ && p.Frequency < resonantMaxHz {
				r.warn("Filter %q has a high Q (%.1f) at a low frequency (%.0f Hz): the resonant peak risks clipping", n.ID, p.Q, p.Frequency)
				r.suggest("Lower the Q of filter %q below 15 or move its frequency above 100 Hz", n.ID)
			}
		case graph.CompressorParams:
			if p.Threshold < crushedThresholdDB && p.Ratio > extremeRatio {
				r.warn("Compressor %q is extremely over-compressed: threshold %.0f dB with ratio %.1f:1", n.ID, p.Threshold, p.Ratio)
				r.suggest("Raise the threshold of compressor %q above -35 dB or lower its ratio", n.ID)
			}

			if p.Attack < pumpingAttackMs && p.Ratio > extremeRatio {
				r.warn("Compressor %q has a %.1f ms attack with ratio %.1f:1 and may cause pumping artifacts", n.ID, p.Attack, p.Ratio)
				r.suggest("Lengthen the attack of compressor %q to at least 5 ms", n.ID)
			}
		case graph.ChorusParams:
			checkModulation(r, n.ID, n.TypeName(), p.Rate, p.Depth)
		case graph.TremoloParams:
			checkModulation(r, n.ID, n.TypeName(), p.Rate, p.Depth)
		case graph.UnknownParams:
			// Phasers are not built, but their settings are still worth a look.
			if strings.EqualFold(p.Type, "phaser") {
				rate, okRate := p.Num(modulatorRateParam)
				depth, okDepth := p.Num(modulatorDepthParam)

				if okRate && okDepth {
					checkModulation(r, n.ID, p.Type, rate, depth)
				}
			}
		}
	}
}

func checkDelay(r *report, id string, p graph.DelayParams) {
	if p.Feedback > maxSafeFeedback {
		r.warn("Delay %q feedback %.2f risks runaway feedback", id, p.Feedback)
		r.suggest("Reduce feedback on delay %q to 0.85 or less", id)
	}

	if p.Time > awkwardDelayLowMs && p.Time < awkwardDelayHighMs {
		r.warn("Delay %q time %.0f ms is in an awkward range: neither slapback nor rhythmic", id, p.Time)
		r.suggest("Use under 150 ms on delay %q for slapback or over 200 ms for rhythmic echoes", id)
	}

	if p.Feedback > muddyFeedback && p.Mix > heavyMix {
		r.warn("Delay %q combines high feedback (%.2f) with a wet mix (%.2f) and will sound muddy", id, p.Feedback, p.Mix)
		r.suggest("Lower either the feedback or the mix of delay %q", id)
	}
}

func checkModulation(r *report, id, kind string, rate, depth float64) {
	if rate > dizzyRateHz && depth > dizzyDepth {
		r.warn("%s %q at %.1f Hz with depth %.2f is disorienting", capitalize(kind), id, rate, depth)
		r.suggest("Slow %s %q below 7 Hz or reduce its depth", kind, id)
	}
}

func checkCombinations(r *report, def graph.Definition) {
	checkGainStaging(r, def)
	checkReverbRumble(r, def)

	var delayID, reverbID string

	for _, n := range def.Nodes {
		switch p := n.Params.(type) {
		case graph.DelayParams:
			if delayID == "" && p.Mix > heavyMix {
				delayID = n.ID
			}
		case graph.ReverbParams:
			if reverbID == "" && p.Mix > heavyMix {
				reverbID = n.ID
			}
		}
	}

	if delayID != "" && reverbID != "" {
		r.warn("Delay %q and reverb %q are both mixed above 0.5: the ambience will wash out the dry signal", delayID, reverbID)
		r.suggest("Keep only one of delay %q and reverb %q as the dominant wet effect", delayID, reverbID)
	}
}

func checkGainStaging(r *report, def graph.Definition) {
	if len(def.NodesOfKind(graph.KindGain)) > 0 {
		return
	}

	for _, n := range def.Nodes {
		if p, ok := n.Params.(graph.DistortionParams); ok && p.Amount > heavyDistortion {
			r.suggest("Add a gain node to stage the level around distortion %q (amount %.2f)", n.ID, p.Amount)
			return
		}
	}
}

// checkReverbRumble looks for a high-pass filter ahead of every long reverb.
// On the traced chain "ahead" means earlier in the chain; reverbs off the
// chain accept a high-pass anywhere in the graph.
func checkReverbRumble(r *report, def graph.Definition) {
	chain := Chain(def)
	position := make(map[string]int, len(chain))

	for i, n := range chain {
		position[n.ID] = i
	}

	for _, n := range def.Nodes {
		p, ok := n.Params.(graph.ReverbParams)
		if !ok || p.Size() <= longReverbSize {
			continue
		}

		pos, onChain := position[n.ID]

		cleaned := false

		for _, f := range def.NodesOfKind(graph.KindFilter) {
			fp, _ := f.Params.(graph.FilterParams)
			if fp.Type != graph.FilterHighpass || fp.Frequency > rumbleCutoffHz {
				continue
			}

			if fpos, fOnChain := position[f.ID]; onChain && (!fOnChain || fpos > pos) {
				continue
			}

			cleaned = true

			break
		}

		if !cleaned {
			r.suggest("Add a high-pass filter around 200 Hz before reverb %q to keep low-end rumble out of the tail", n.ID)
		}
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}

	return strings.ToUpper(s[:1]) + s[1:]
}
