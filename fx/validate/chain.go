package validate

import "github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/graph"

// Chain walks from the input node along the first outgoing connection of
// each node until it reaches the output, a dangling reference or a node it
// has already seen. The input node is included; the output is included if
// reached.
//
// Branching graphs are not analyzed: only the first branch of every fork is
// followed, so processors on the other branches are invisible to the
// ordering rules.
func Chain(def graph.Definition) []graph.Node {
	inputs := def.NodesOfKind(graph.KindInput)
	if len(inputs) == 0 {
		return nil
	}

	var (
		chain = []graph.Node{inputs[0]}
		seen  = map[string]bool{inputs[0].ID: true}
		cur   = inputs[0]
	)

	for cur.Kind != graph.KindOutput {
		out := def.Outgoing(cur.ID)
		if len(out) == 0 {
			break
		}

		next, ok := def.Node(out[0].To.NodeID)
		if !ok || seen[next.ID] {
			break
		}

		seen[next.ID] = true
		chain = append(chain, next)
		cur = next
	}

	return chain
}

func checkOrdering(r *report, def graph.Definition) {
	chain := Chain(def)

	var (
		reverb     *graph.Node
		distortion *graph.Node

		reverbFilter, reverbDistortion, distortionCompressor bool
	)

	for i := range chain {
		n := &chain[i]

		switch n.Kind {
		case graph.KindReverb:
			if reverb == nil {
				reverb = n
			}
		case graph.KindFilter:
			if reverb != nil && !reverbFilter {
				reverbFilter = true

				r.warn("Reverb %q comes before filter %q: this may sound muddy because the bass gets reverbed", reverb.ID, n.ID)
				r.suggest("Move filter %q before reverb %q so the reverb only sees the filtered signal", n.ID, reverb.ID)
			}
		case graph.KindDistortion:
			if distortion == nil {
				distortion = n
			}

			if reverb != nil && !reverbDistortion {
				reverbDistortion = true

				r.suggest("Reverb %q feeds distortion %q: distorting a reverb tail is unusual, keep it only if intentional", reverb.ID, n.ID)
			}
		case graph.KindCompressor:
			if distortion != nil && !distortionCompressor {
				distortionCompressor = true

				r.warn("Compressor %q after distortion %q amplifies noise and harshness", n.ID, distortion.ID)
				r.suggest("Move compressor %q before distortion %q to control dynamics ahead of the saturation", n.ID, distortion.ID)
			}
		}
	}
}
