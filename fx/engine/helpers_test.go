package engine

import "testing"

// sliceSource plays fixed mono samples on both channels, then silence.
type sliceSource struct {
	samples []float64
	pos     int
}

func (s *sliceSource) Process(buf Buffer) {
	for i := range buf.L {
		var v float64
		if s.pos < len(s.samples) {
			v = s.samples[s.pos]
			s.pos++
		}

		buf.L[i] += v
		buf.R[i] += v
	}
}

// dcSource outputs a constant on both channels.
type dcSource struct {
	value float64
}

func (d dcSource) Process(buf Buffer) {
	for i := range buf.L {
		buf.L[i] = d.value
		buf.R[i] = d.value
	}
}

type passthrough struct{}

func (passthrough) Process(Buffer) {}

func newTestContext(t *testing.T, sampleRate float64, block int) *Context {
	t.Helper()

	c, err := NewContext(sampleRate, block)
	if err != nil {
		t.Fatalf("NewContext() error = %v", err)
	}

	t.Cleanup(c.Close)

	return c
}

func render(t *testing.T, c *Context, dst *Node, frames int) Buffer {
	t.Helper()

	out := NewBuffer(frames)
	if err := c.Render(dst, out); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	return out
}

func mustConnect(t *testing.T, src, dst *Node) {
	t.Helper()

	if err := src.Connect(dst); err != nil {
		t.Fatalf("Connect(%s -> %s) error = %v", src.Name(), dst.Name(), err)
	}
}
