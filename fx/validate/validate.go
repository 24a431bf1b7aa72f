// Package validate critiques effect graphs against audio-engineering
// heuristics.
//
// Validation is advisory and pure: it never mutates its input, never fails,
// and returns the same Result for the same definition and controls. Whether
// a graph compiles is a separate question answered by the compiler.
package validate

import (
	"fmt"

	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/graph"
)

// Result is the outcome of a validation pass. Passed is true iff Warnings
// is empty; Suggestions never affect it.
type Result struct {
	Passed      bool     `json:"passed"`
	Warnings    []string `json:"warnings"`
	Suggestions []string `json:"suggestions"`
}

// report accumulates findings in rule order.
type report struct {
	warnings    []string
	suggestions []string
}

func (r *report) warn(format string, args ...any) {
	r.warnings = append(r.warnings, fmt.Sprintf(format, args...))
}

func (r *report) suggest(format string, args ...any) {
	r.suggestions = append(r.suggestions, fmt.Sprintf(format, args...))
}

func (r *report) result() Result {
	res := Result{
		Warnings:    r.warnings,
		Suggestions: r.suggestions,
	}

	if res.Warnings == nil {
		res.Warnings = []string{}
	}

	if res.Suggestions == nil {
		res.Suggestions = []string{}
	}

	res.Passed = len(res.Warnings) == 0

	return res
}

// Validate runs every rule against def and, when given, the controls bound
// to it. Rules run in a fixed order: signal-chain ordering, per-node sweet
// spots, cross-node combinations and finally control-surface diversity.
func Validate(def graph.Definition, controls []graph.Control) Result {
	var r report

	checkOrdering(&r, def)
	checkSweetSpots(&r, def)
	checkCombinations(&r, def)
	checkControls(&r, controls)

	return r.result()
}

// Graph validates a definition without controls.
func Graph(def graph.Definition) Result {
	return Validate(def, nil)
}
