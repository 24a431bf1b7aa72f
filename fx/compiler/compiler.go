package compiler

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/engine"
	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/graph"
)

// ErrMissingEndpoints is returned by Build when the definition yields no
// input or no output unit.
//
//nolint:staticcheck // message is user facing and matched verbatim
var ErrMissingEndpoints = errors.New("Effect definition must have input and output nodes")

// Instance is one live unit created from a graph node.
type Instance struct {
	ID   string
	Kind graph.Kind
	Node *engine.Node
}

// Unit returns the processor running in the instance, for type assertion to
// the concrete engine unit.
func (i *Instance) Unit() engine.Processor {
	return i.Node.Processor()
}

// Endpoints are the handles a router splices the compiled graph with.
type Endpoints struct {
	Input  *engine.Node
	Output *engine.Node
}

// Valid reports whether both handles are set.
func (e Endpoints) Valid() bool {
	return e.Input != nil && e.Output != nil
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithLogger sets the logger used for non-fatal build problems.
func WithLogger(l *slog.Logger) Option {
	return func(c *Compiler) {
		if l != nil {
			c.log = l
		}
	}
}

// Compiler realises graph definitions as connected engine nodes. It owns
// every unit it creates; at most one compiled graph is alive at a time.
type Compiler struct {
	mu sync.RWMutex

	ctx *engine.Context
	log *slog.Logger

	instances map[string]*Instance
	order     []string
	endpoints Endpoints
	def       graph.Definition
}

// New creates a compiler placing units in ctx.
func New(ctx *engine.Context, opts ...Option) *Compiler {
	c := &Compiler{
		ctx:       ctx,
		log:       slog.Default(),
		instances: make(map[string]*Instance),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Context returns the engine context units are created in.
func (c *Compiler) Context() *engine.Context {
	return c.ctx
}

// Build tears down any previously compiled graph, creates one unit per
// known node, checks for the input and output units, then wires the
// connections in declaration order.
//
// Unknown node types and connections naming missing nodes are logged and
// skipped. When the input or output unit is missing Build returns
// ErrMissingEndpoints and no handles; the units already created stay owned
// by the compiler until Destroy.
func (c *Compiler) Build(def graph.Definition) (Endpoints, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.destroyLocked()
	c.def = def

	var in, out *engine.Node

	for _, n := range def.Nodes {
		if _, dup := c.instances[n.ID]; dup {
			c.log.Warn("duplicate node id; node skipped", slog.String("node", n.ID))
			continue
		}

		unit, err := c.instantiate(n)
		if err != nil {
			c.log.Warn("node not built", slog.String("node", n.ID), slog.String("type", n.TypeName()), slog.Any("error", err))
			continue
		}

		if unit == nil {
			continue
		}

		inst := &Instance{ID: n.ID, Kind: n.Kind, Node: c.ctx.NewNode(n.ID, unit)}
		c.instances[n.ID] = inst
		c.order = append(c.order, n.ID)

		if s, ok := unit.(engine.Starter); ok && n.Kind.IsModulator() {
			s.Start()
		}

		switch {
		case n.Kind == graph.KindInput && in == nil:
			in = inst.Node
		case n.Kind == graph.KindOutput && out == nil:
			out = inst.Node
		case n.Kind.IsEndpoint():
			c.log.Warn("extra endpoint node; only the first is used", slog.String("node", n.ID), slog.String("type", n.Kind.String()))
		}
	}

	if in == nil || out == nil {
		return Endpoints{}, ErrMissingEndpoints
	}

	wired := 0

	for _, conn := range def.Connections {
		from, ok := c.instances[conn.From.NodeID]
		if !ok {
			c.log.Warn("connection source not found; connection skipped", slog.String("from", conn.From.NodeID), slog.String("to", conn.To.NodeID))
			continue
		}

		to, ok := c.instances[conn.To.NodeID]
		if !ok {
			c.log.Warn("connection target not found; connection skipped", slog.String("from", conn.From.NodeID), slog.String("to", conn.To.NodeID))
			continue
		}

		if err := from.Node.Connect(to.Node); err != nil {
			c.log.Warn("connection failed", slog.String("from", conn.From.NodeID), slog.String("to", conn.To.NodeID), slog.Any("error", err))
			continue
		}

		wired++
	}

	c.endpoints = Endpoints{Input: in, Output: out}

	c.log.Debug("graph built",
		slog.Int("nodes", len(def.Nodes)),
		slog.Int("units", len(c.instances)),
		slog.Int("connections", wired),
	)

	return c.endpoints, nil
}

// Destroy disconnects and disposes every owned unit and clears the handles.
func (c *Compiler) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.destroyLocked()
	c.def = graph.Definition{}
}

func (c *Compiler) destroyLocked() {
	if len(c.instances) == 0 && !c.endpoints.Valid() {
		return
	}

	for _, id := range c.order {
		c.instances[id].Node.DisconnectAll()
	}

	for _, id := range c.order {
		c.instances[id].Node.Dispose()
	}

	c.log.Debug("graph destroyed", slog.Int("units", len(c.order)))

	c.instances = make(map[string]*Instance)
	c.order = nil
	c.endpoints = Endpoints{}
}

// Instance returns the live unit built for node id.
func (c *Compiler) Instance(id string) (*Instance, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	inst, ok := c.instances[id]

	return inst, ok
}

// Instances returns the live units in declaration order.
func (c *Compiler) Instances() []*Instance {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*Instance, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.instances[id])
	}

	return out
}

// LiveUnits returns the number of units currently owned.
func (c *Compiler) LiveUnits() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.instances)
}

// Endpoints returns the handles of the live graph, if one was built.
func (c *Compiler) Endpoints() (Endpoints, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.endpoints, c.endpoints.Valid()
}

// Definition returns the definition most recently passed to Build.
func (c *Compiler) Definition() graph.Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.def
}

func wrap(kind graph.Kind, err error) error {
	return fmt.Errorf("compiler: build %s: %w", kind, err)
}
