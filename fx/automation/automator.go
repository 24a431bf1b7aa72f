// Package automation applies live parameter edits to compiled graphs.
package automation

import (
	"log/slog"
	"sync"
	"time"

	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/compiler"
	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/engine"
	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/graph"
)

// DefaultRamp is the glide applied to numeric edits.
const DefaultRamp = 20 * time.Millisecond

// Outcome reports what an edit did.
type Outcome uint8

const (
	// Ignored edits named a missing node, an unknown parameter or a bad value.
	Ignored Outcome = iota
	// Ramped edits glide to the new value over the ramp window.
	Ramped
	// Immediate edits switched an enumerated setting at once.
	Immediate
	// Fixed edits targeted a construction-time parameter and had no effect.
	Fixed
)

func (o Outcome) String() string {
	switch o {
	case Ramped:
		return "ramped"
	case Immediate:
		return "immediate"
	case Fixed:
		return "fixed"
	default:
		return "ignored"
	}
}

// Snapshot holds the authored value of every parameter edited since the
// graph was built, keyed by node id and parameter name.
type Snapshot map[string]map[string]graph.Value

// Option configures an Automator.
type Option func(*Automator)

// WithLogger sets the logger for ignored edits.
func WithLogger(l *slog.Logger) Option {
	return func(a *Automator) {
		if l != nil {
			a.log = l
		}
	}
}

// WithRamp sets the glide time of numeric edits.
func WithRamp(d time.Duration) Option {
	return func(a *Automator) {
		if d >= 0 {
			a.ramp = d
		}
	}
}

// Automator routes (node, parameter, value) edits to the units of a
// compiler's live graph.
type Automator struct {
	compiler *compiler.Compiler
	log      *slog.Logger
	ramp     time.Duration

	mu       sync.Mutex
	snapshot Snapshot
}

// New creates an automator editing the graph owned by c.
func New(c *compiler.Compiler, opts ...Option) *Automator {
	a := &Automator{
		compiler: c,
		log:      slog.Default(),
		ramp:     DefaultRamp,
		snapshot: make(Snapshot),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Ramp returns the glide time applied to numeric edits.
func (a *Automator) Ramp() time.Duration { return a.ramp }

// Update applies one edit. Numeric parameters glide over the ramp window,
// enumerated ones switch immediately and construction-time ones are left
// alone. Edits that cannot apply are logged and ignored.
func (a *Automator) Update(nodeID, param string, v graph.Value) Outcome {
	return a.update(nodeID, param, v, a.ramp)
}

// UpdateNumber is Update for a numeric value.
func (a *Automator) UpdateNumber(nodeID, param string, v float64) Outcome {
	return a.Update(nodeID, param, graph.Number(v))
}

// Snapshot returns a copy of the edited parameter values.
func (a *Automator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(Snapshot, len(a.snapshot))
	for id, params := range a.snapshot {
		cp := make(map[string]graph.Value, len(params))
		for k, v := range params {
			cp[k] = v
		}

		out[id] = cp
	}

	return out
}

// Apply replays a snapshot onto the current graph without ramps. It is
// meant for a graph that was just built from the same definition.
func (a *Automator) Apply(s Snapshot) {
	for id, params := range s {
		for name, v := range params {
			a.update(id, name, v, 0)
		}
	}
}

// Reset forgets all recorded edits. Call it after building a new graph.
func (a *Automator) Reset() {
	a.mu.Lock()
	a.snapshot = make(Snapshot)
	a.mu.Unlock()
}

func (a *Automator) update(nodeID, param string, v graph.Value, ramp time.Duration) Outcome {
	inst, ok := a.compiler.Instance(nodeID)
	if !ok {
		a.log.Warn("node not found", slog.String("node", nodeID), slog.String("param", param))
		return Ignored
	}

	spec, ok := graph.Lookup(inst.Kind, param)
	if !ok {
		a.log.Warn("unknown parameter", slog.String("node", nodeID), slog.String("type", inst.Kind.String()), slog.String("param", param))
		return Ignored
	}

	var outcome Outcome

	switch spec.Update {
	case graph.Fixed:
		a.log.Debug("parameter is fixed at construction; rebuild to change it",
			slog.String("node", nodeID), slog.String("param", spec.Name))

		return Fixed
	case graph.Immediate:
		if !a.applyOption(inst, spec, v) {
			return Ignored
		}

		outcome = Immediate
	case graph.Ramped:
		f, ok := v.Float()
		if !ok {
			a.log.Warn("parameter needs a number", slog.String("node", nodeID), slog.String("param", spec.Name), slog.String("value", v.String()))
			return Ignored
		}

		p := paramOf(inst.Unit(), spec.Name)
		if p == nil {
			a.log.Warn("unit has no such parameter", slog.String("node", nodeID), slog.String("param", spec.Name))
			return Ignored
		}

		target := spec.ToSubstrate(f)
		if ramp > 0 {
			p.RampTo(target, ramp)
		} else {
			p.Set(target)
		}

		outcome = Ramped
	}

	a.record(nodeID, spec.Name, v)

	return outcome
}

func (a *Automator) applyOption(inst *compiler.Instance, spec graph.ParamSpec, v graph.Value) bool {
	name := v.String()
	if !spec.AcceptsOption(name) {
		a.log.Warn("invalid option", slog.String("node", inst.ID), slog.String("param", spec.Name), slog.String("value", name))
		return false
	}

	switch u := inst.Unit().(type) {
	case *engine.Filter:
		t, _ := graph.ParseFilterType(name)
		u.SetResponse(compiler.FilterResponse(t))
	case *engine.Distortion:
		t, _ := graph.ParseDistortionType(name)
		if err := u.SetMode(compiler.DistortionMode(t)); err != nil {
			a.log.Warn("distortion mode change failed", slog.String("node", inst.ID), slog.Any("error", err))
			return false
		}
	case *engine.Tremolo:
		s, _ := graph.ParseShape(name)
		u.SetShape(compiler.Waveform(s))
	default:
		return false
	}

	return true
}

func (a *Automator) record(nodeID, param string, v graph.Value) {
	a.mu.Lock()
	defer a.mu.Unlock()

	params, ok := a.snapshot[nodeID]
	if !ok {
		params = make(map[string]graph.Value)
		a.snapshot[nodeID] = params
	}

	params[param] = v
}

// paramOf returns the engine parameter behind a schema name.
func paramOf(unit engine.Processor, name string) *engine.Param {
	switch u := unit.(type) {
	case *engine.Gain:
		if name == "gain" {
			return u.Gain
		}
	case *engine.Delay:
		switch name {
		case "time":
			return u.Time
		case "feedback":
			return u.Feedback
		case "mix":
			return u.Mix
		}
	case *engine.Reverb:
		if name == "mix" {
			return u.Mix
		}
	case *engine.Filter:
		switch name {
		case "frequency":
			return u.Frequency
		case "Q":
			return u.Q
		}
	case *engine.Distortion:
		switch name {
		case "amount":
			return u.Amount
		case "mix":
			return u.Mix
		}
	case *engine.Compressor:
		switch name {
		case "threshold":
			return u.Threshold
		case "ratio":
			return u.Ratio
		case "attack":
			return u.Attack
		case "release":
			return u.Release
		}
	case *engine.Chorus:
		switch name {
		case "rate":
			return u.Rate
		case "depth":
			return u.Depth
		case "mix":
			return u.Mix
		}
	case *engine.Tremolo:
		switch name {
		case "rate":
			return u.Rate
		case "depth":
			return u.Depth
		}
	case *engine.Panner:
		if name == "pan" {
			return u.Pan
		}
	}

	return nil
}
