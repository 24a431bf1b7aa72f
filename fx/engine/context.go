package engine

import (
	"errors"
	"fmt"
	"math"
	"sync"
)

var (
	// ErrDisposed is returned when operating on a node that has been disposed.
	ErrDisposed = errors.New("engine: node disposed")
	// ErrForeignNode is returned when connecting nodes of different contexts.
	ErrForeignNode = errors.New("engine: node belongs to another context")
	// ErrClosed is returned by a context after Close.
	ErrClosed = errors.New("engine: context closed")
)

// Context is a rendering substrate instance. It owns every node created
// from it and renders them in fixed-size blocks.
//
// Rendering, graph mutation and parameter changes are serialised by the
// context's mutex, so control code may edit a context from another
// goroutine while it renders. A block is never interrupted by an edit.
type Context struct {
	mu sync.Mutex

	sampleRate float64
	blockSize  int

	live   map[*Node]struct{}
	tick   uint64
	frames int64
	closed bool
}

// NewContext creates a context running at sampleRate with the given block size.
func NewContext(sampleRate float64, blockSize int) (*Context, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("engine: sample rate must be > 0 and finite: %f", sampleRate)
	}

	if blockSize <= 0 {
		return nil, fmt.Errorf("engine: block size must be > 0: %d", blockSize)
	}

	return &Context{
		sampleRate: sampleRate,
		blockSize:  blockSize,
		live:       make(map[*Node]struct{}),
	}, nil
}

// SampleRate returns the context sample rate in Hz.
func (c *Context) SampleRate() float64 { return c.sampleRate }

// BlockSize returns the number of frames rendered per tick.
func (c *Context) BlockSize() int { return c.blockSize }

// LiveNodes returns the number of nodes created and not yet disposed.
func (c *Context) LiveNodes() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.live)
}

// Frames returns the number of frames rendered so far.
func (c *Context) Frames() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.frames
}

// Render pulls len(out) frames from dst into out, in blocks of at most
// BlockSize frames.
func (c *Context) Render(dst *Node, out Buffer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	if dst.ctx != c {
		return ErrForeignNode
	}

	if dst.disposed {
		return ErrDisposed
	}

	total := out.Frames()
	for off := 0; off < total; off += c.blockSize {
		n := min(c.blockSize, total-off)

		c.tick++
		block := dst.pull(c.tick, n)
		out.Slice(off, off+n).CopyFrom(block)
		c.frames += int64(n)
	}

	return nil
}

// Close disposes every node of the context. Further renders fail.
func (c *Context) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for n := range c.live {
		n.disposeLocked()
	}

	c.closed = true
}

func (c *Context) rampSamples(seconds float64) int {
	return int(math.Round(seconds * c.sampleRate))
}

// fault keeps the last setting a unit failed to push into its processor
// while rendering, where there is no caller to return the error to.
type fault struct {
	ctx *Context
	err error
}

// note records err and reports whether the setting was applied.
func (f *fault) note(err error) bool {
	if err != nil {
		f.err = err
		return false
	}

	return true
}

// Err returns the last setting rejected while rendering, or nil.
func (f *fault) Err() error {
	f.ctx.mu.Lock()
	defer f.ctx.mu.Unlock()

	return f.err
}
