package validate

import (
	"strings"
	"unicode"

	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/graph"
)

const (
	minControlsForDiversity = 4
	minDistinctKinds        = 3
	maxKindShare            = 0.7
)

var (
	blendWords = []string{"mix", "wet", "dry"}
	levelWords = []string{"level", "output", "input", "drive", "gain"}
)

func checkControls(r *report, controls []graph.Control) {
	if len(controls) >= minControlsForDiversity {
		var (
			order  []graph.ControlKind
			counts = make(map[graph.ControlKind]int)
		)

		for _, c := range controls {
			if counts[c.Kind] == 0 {
				order = append(order, c.Kind)
			}

			counts[c.Kind]++
		}

		if len(order) < minDistinctKinds {
			r.warn("Control panel uses only %d kind(s) of control across %d controls; mix knobs, sliders and switches for a more usable layout", len(order), len(controls))
		}

		for _, k := range order {
			share := float64(counts[k]) / float64(len(controls))
			if share > maxKindShare {
				r.warn("%.0f%% of the controls are %ss; vary the control types", share*100, kindName(k))
			}
		}
	}

	for _, c := range controls {
		if c.Kind == graph.ControlSlider {
			continue
		}

		words := labelWords(c.Label)

		switch {
		case containsAny(words, blendWords):
			r.suggest("Control %q (%s) sets a wet/dry balance; a slider reads better for mix amounts", c.Label, kindName(c.Kind))
		case containsAny(words, levelWords):
			r.suggest("Control %q (%s) sets a level; a slider reads better for gain staging", c.Label, kindName(c.Kind))
		}
	}
}

func labelWords(label string) []string {
	return strings.FieldsFunc(strings.ToLower(label), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}

func containsAny(words, targets []string) bool {
	for _, w := range words {
		for _, t := range targets {
			if w == t {
				return true
			}
		}
	}

	return false
}

func kindName(k graph.ControlKind) string {
	if k == "" {
		return "unknown"
	}

	return string(k)
}
