package engine

import (
	"slices"

	vecmath "github.com/cwbudde/algo-vecmath"
)

// Processor transforms one block in place. The block holds the sum of every
// input connected to the node when Process is called. Processors with no
// inputs (sources) receive a silent block and write into it.
type Processor interface {
	Process(buf Buffer)
}

// Starter is implemented by processors that stay idle until started.
type Starter interface {
	Start()
}

// Node is a processing unit placed in a context. Its input is an explicit
// summing junction: all upstream nodes are rendered and added together
// before the processor runs.
type Node struct {
	ctx  *Context
	name string
	proc Processor

	inputs  []*Node
	outputs []*Node

	sum  Buffer
	last Buffer

	tick     uint64
	busy     bool
	disposed bool
}

// NewNode places proc in the context under a descriptive name.
func (c *Context) NewNode(name string, proc Processor) *Node {
	n := &Node{
		ctx:  c,
		name: name,
		proc: proc,
		sum:  NewBuffer(c.blockSize),
		last: NewBuffer(c.blockSize),
	}

	c.mu.Lock()
	c.live[n] = struct{}{}
	c.mu.Unlock()

	return n
}

// Name returns the label the node was created with.
func (n *Node) Name() string { return n.name }

// Processor returns the unit the node runs.
func (n *Node) Processor() Processor { return n.proc }

// Context returns the owning context.
func (n *Node) Context() *Context { return n.ctx }

// Connect routes the output of n into the summing junction of dst.
// Connecting the same pair twice has no further effect.
func (n *Node) Connect(dst *Node) error {
	if dst.ctx != n.ctx {
		return ErrForeignNode
	}

	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()

	if n.disposed || dst.disposed {
		return ErrDisposed
	}

	if slices.Contains(n.outputs, dst) {
		return nil
	}

	n.outputs = append(n.outputs, dst)
	dst.inputs = append(dst.inputs, n)

	return nil
}

// Disconnect removes the connection from n to dst, if any.
func (n *Node) Disconnect(dst *Node) {
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()

	n.outputs = removeNode(n.outputs, dst)
	dst.inputs = removeNode(dst.inputs, n)
}

// DisconnectAll removes every outgoing connection of n.
func (n *Node) DisconnectAll() {
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()

	n.disconnectOutputsLocked()
}

// Inputs returns the number of nodes feeding n.
func (n *Node) Inputs() int {
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()

	return len(n.inputs)
}

// Dispose disconnects n on both sides and removes it from its context.
// Disposing twice is a no-op.
func (n *Node) Dispose() {
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()

	n.disposeLocked()
}

// Disposed reports whether Dispose has been called.
func (n *Node) Disposed() bool {
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()

	return n.disposed
}

func (n *Node) disposeLocked() {
	if n.disposed {
		return
	}

	n.disconnectOutputsLocked()

	for _, src := range n.inputs {
		src.outputs = removeNode(src.outputs, n)
	}

	n.inputs = nil
	n.disposed = true
	delete(n.ctx.live, n)
}

func (n *Node) disconnectOutputsLocked() {
	for _, dst := range n.outputs {
		dst.inputs = removeNode(dst.inputs, n)
	}

	n.outputs = nil
}

// pull renders n for the given tick. A node reached again within the same
// tick, either because it fans out or because it sits on a feedback loop,
// returns its most recent completed block.
func (n *Node) pull(tick uint64, frames int) Buffer {
	if n.tick == tick || n.busy {
		return n.last.Slice(0, frames)
	}

	n.busy = true

	work := n.sum.Slice(0, frames)
	work.Zero()

	for _, src := range n.inputs {
		in := src.pull(tick, frames)
		vecmath.AddBlockInPlace(work.L, in.L)
		vecmath.AddBlockInPlace(work.R, in.R)
	}

	n.proc.Process(work)

	n.sum, n.last = n.last, n.sum
	n.tick = tick
	n.busy = false

	return n.last.Slice(0, frames)
}

func removeNode(list []*Node, target *Node) []*Node {
	return slices.DeleteFunc(list, func(n *Node) bool { return n == target })
}
