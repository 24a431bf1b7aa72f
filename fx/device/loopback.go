package device

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/engine"
)

// Signal generates capture audio for a loopback input. Fill is called with
// consecutive blocks.
type Signal interface {
	Fill(buf engine.Buffer)
}

// SignalFunc adapts a function to Signal.
type SignalFunc func(buf engine.Buffer)

func (f SignalFunc) Fill(buf engine.Buffer) { f(buf) }

// Sine returns a signal producing a sine at freq Hz on both channels.
func Sine(freq, sampleRate, amp float64) Signal {
	var phase float64

	inc := 2 * math.Pi * freq / sampleRate

	return SignalFunc(func(buf engine.Buffer) {
		for i := range buf.L {
			v := amp * math.Sin(phase)
			buf.L[i], buf.R[i] = v, v

			phase += inc
			if phase >= 2*math.Pi {
				phase -= 2 * math.Pi
			}
		}
	})
}

// Loopback is an in-process Backend with virtual devices. It backs the
// command line tool, the browser build and tests.
type Loopback struct {
	mu        sync.Mutex
	devices   []Info
	signals   map[string]Signal
	removed   map[string]bool
	denied    bool
	canSelect bool
	selected  string
	opened    int
}

// LoopbackOption configures a Loopback.
type LoopbackOption func(*Loopback)

// WithOutputSelection makes the loopback implement output routing.
func WithOutputSelection() LoopbackOption {
	return func(l *Loopback) { l.canSelect = true }
}

// NewLoopback creates a backend with one default output device and no
// inputs.
func NewLoopback(opts ...LoopbackOption) *Loopback {
	l := &Loopback{
		devices: []Info{{ID: "loopback-out", Label: "Loopback Output", Direction: Output, Channels: 2, Default: true}},
		signals: make(map[string]Signal),
		removed: make(map[string]bool),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// AddInput registers a capture device fed by sig.
func (l *Loopback) AddInput(info Info, sig Signal) {
	l.mu.Lock()
	defer l.mu.Unlock()

	info.Direction = Input
	if info.Channels <= 0 {
		info.Channels = 1
	}

	l.devices = append(l.devices, info)
	l.signals[info.ID] = sig
	delete(l.removed, info.ID)
}

// AddOutput registers a playback device.
func (l *Loopback) AddOutput(info Info) {
	l.mu.Lock()
	defer l.mu.Unlock()

	info.Direction = Output
	l.devices = append(l.devices, info)
}

// Remove unplugs a device. Open streams on it start failing.
func (l *Loopback) Remove(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.removed[id] = true

	kept := l.devices[:0]
	for _, d := range l.devices {
		if d.ID != id {
			kept = append(kept, d)
		}
	}

	l.devices = kept
}

// Deny makes subsequent OpenInput calls fail with ErrPermissionDenied.
func (l *Loopback) Deny(denied bool) {
	l.mu.Lock()
	l.denied = denied
	l.mu.Unlock()
}

// OpenStreams returns how many input streams are open.
func (l *Loopback) OpenStreams() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.opened
}

// Selected returns the output chosen through SelectOutput.
func (l *Loopback) Selected() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.selected
}

func (l *Loopback) Devices(ctx context.Context) ([]Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]Info(nil), l.devices...), nil
}

func (l *Loopback) OpenInput(ctx context.Context, id string) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.denied {
		return nil, ErrPermissionDenied
	}

	info, ok := Find(l.devices, Input, id)
	if !ok {
		return nil, fmt.Errorf("%w: input %q", ErrNotFound, id)
	}

	l.opened++

	return &loopbackStream{backend: l, info: info, sig: l.signals[id]}, nil
}

// SelectOutput implements OutputSelector when the loopback was created
// with WithOutputSelection.
func (l *Loopback) SelectOutput(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.canSelect {
		return errors.ErrUnsupported
	}

	if _, ok := Find(l.devices, Output, id); !ok {
		return fmt.Errorf("%w: output %q", ErrNotFound, id)
	}

	l.selected = id

	return nil
}

// CanSelectOutput reports whether output routing is available.
func (l *Loopback) CanSelectOutput() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.canSelect
}

type loopbackStream struct {
	backend *Loopback
	info    Info
	sig     Signal
	closed  bool
}

func (s *loopbackStream) Read(buf engine.Buffer) error {
	s.backend.mu.Lock()
	removed := s.backend.removed[s.info.ID]
	s.backend.mu.Unlock()

	switch {
	case s.closed:
		return ErrClosed
	case removed:
		return fmt.Errorf("%w: input %q was removed", ErrNotFound, s.info.ID)
	case s.sig == nil:
		buf.Zero()
		return nil
	}

	s.sig.Fill(buf)

	if s.info.Channels == 1 {
		copy(buf.R, buf.L)
	}

	return nil
}

func (s *loopbackStream) Channels() int { return s.info.Channels }

func (s *loopbackStream) Close() error {
	if s.closed {
		return nil
	}

	s.closed = true

	s.backend.mu.Lock()
	s.backend.opened--
	s.backend.mu.Unlock()

	return nil
}

// Capture is a Sink that keeps everything written to it.
type Capture struct {
	mu  sync.Mutex
	buf engine.Buffer
}

func (c *Capture) Write(buf engine.Buffer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.buf.L = append(c.buf.L, buf.L...)
	c.buf.R = append(c.buf.R, buf.R...)

	return nil
}

// Frames returns the number of frames captured so far.
func (c *Capture) Frames() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.buf.L)
}

// Buffer returns a copy of the captured audio.
func (c *Capture) Buffer() engine.Buffer {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := engine.NewBuffer(len(c.buf.L))
	out.CopyFrom(c.buf)

	return out
}
