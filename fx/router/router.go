// Package router owns the live signal path around a compiled effect graph:
// the active source, the wet and dry paths, the master stage, metering taps
// and the recorder.
//
// The path is
//
//	source → input tap → [graph] → wet ┐
//	         input tap ─────────→ dry  ┴→ master → output tap → recorder → destination
//
// With no graph spliced in, the input tap feeds the wet gain directly.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/compiler"
	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/device"
	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/engine"
	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/meter"
	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/pcm"
)

const (
	// DefaultCrossfade is the bypass crossfade window.
	DefaultCrossfade = 10 * time.Millisecond
	// DefaultRecordingLimit is the hard cap on one recording.
	DefaultRecordingLimit = 10 * time.Minute

	defaultFFTSize   = 2048
	defaultBands     = 32
	defaultSmoothing = 0.8
)

var (
	// ErrClosed is returned by a router after Close.
	ErrClosed = errors.New("router: closed")
	// ErrNoSource is returned when an operation needs an active source.
	ErrNoSource = errors.New("router: no active source")
	// ErrRecording is returned when a recording is already running.
	ErrRecording = errors.New("router: already recording")
	// ErrNotRecording is returned by StopRecording with nothing to stop.
	ErrNotRecording = errors.New("router: not recording")
	// ErrLiveExport is returned when exporting while the source is a live
	// input, which cannot be replayed offline.
	ErrLiveExport = errors.New("router: live input cannot be exported")
	// ErrNoInputDevice is returned when no capture device is available.
	ErrNoInputDevice = errors.New("router: no input device available")
)

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.log = l
		}
	}
}

// WithBackend sets the device backend used for live input and output
// selection.
func WithBackend(b device.Backend) Option {
	return func(r *Router) { r.backend = b }
}

// WithCrossfade sets the bypass crossfade window.
func WithCrossfade(d time.Duration) Option {
	return func(r *Router) {
		if d >= 0 {
			r.crossfade = d
		}
	}
}

// WithRecordingLimit sets the hard cap on one recording.
func WithRecordingLimit(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.recordingLimit = d
		}
	}
}

// WithSpectrum sets the analyzer FFT size, band count and smoothing.
func WithSpectrum(fftSize, bands int, smoothing float64) Option {
	return func(r *Router) {
		r.fftSize, r.bands, r.smoothing = fftSize, bands, smoothing
	}
}

// WithRecordingLimitHandler registers fn to run when a recording hits its
// cap and is stopped by the router.
func WithRecordingLimitHandler(fn func(Recording)) Option {
	return func(r *Router) { r.onLimit = fn }
}

// Router is the live signal path. Its control methods may be called from any
// goroutine while another goroutine renders.
type Router struct {
	ctx     *engine.Context
	log     *slog.Logger
	backend device.Backend

	crossfade      time.Duration
	recordingLimit time.Duration
	fftSize        int
	bands          int
	smoothing      float64
	onLimit        func(Recording)

	path *path

	mu           sync.Mutex
	closed       bool
	graph        compiler.Endpoints
	bypassed     bool
	source       Source
	sourceNode   *engine.Node
	devices      []device.Info
	inputDevice  string
	outputDevice string
	take         *take
	finished     *Recording

	meterMu  sync.Mutex
	analyzer *meter.Analyzer
	latest   []float64
}

// New creates a router rendering in ctx. The caller keeps ownership of ctx.
func New(ctx *engine.Context, opts ...Option) (*Router, error) {
	r := &Router{
		ctx:            ctx,
		log:            slog.Default(),
		crossfade:      DefaultCrossfade,
		recordingLimit: DefaultRecordingLimit,
		fftSize:        defaultFFTSize,
		bands:          defaultBands,
		smoothing:      defaultSmoothing,
		outputDevice:   device.SystemDefault,
	}

	for _, opt := range opts {
		opt(r)
	}

	a, err := meter.NewAnalyzer(r.fftSize, r.bands, ctx.SampleRate(), r.smoothing)
	if err != nil {
		return nil, fmt.Errorf("router: %w", err)
	}

	p, err := newPath(ctx, r.fftSize)
	if err != nil {
		return nil, err
	}

	r.analyzer = a
	r.latest = make([]float64, r.fftSize)
	r.path = p

	return r, nil
}

// Context returns the engine context the router renders in.
func (r *Router) Context() *engine.Context { return r.ctx }

// SetGraph splices a compiled graph between the input tap and the wet gain,
// replacing any graph spliced before.
func (r *Router) SetGraph(ep compiler.Endpoints) error {
	if !ep.Valid() {
		return compiler.ErrMissingEndpoints
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}

	r.path.unsplice(r.graph)
	r.graph = compiler.Endpoints{}

	if err := r.path.splice(ep); err != nil {
		r.path.unsplice(ep)
		return err
	}

	r.graph = ep
	r.log.Debug("graph spliced", slog.String("input", ep.Input.Name()), slog.String("output", ep.Output.Name()))

	return nil
}

// ClearGraph removes the spliced graph; the input tap feeds the wet gain
// directly afterwards.
func (r *Router) ClearGraph() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}

	r.path.unsplice(r.graph)
	r.graph = compiler.Endpoints{}
}

// HasGraph reports whether a compiled graph is spliced in. A graph whose
// compiler has since destroyed it no longer counts.
func (r *Router) HasGraph() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.dropStaleGraphLocked()

	return r.graph.Valid()
}

// dropStaleGraphLocked unsplices a graph whose endpoints were disposed
// behind the router's back, so the wet path falls back to pass-through.
func (r *Router) dropStaleGraphLocked() {
	if !r.graph.Valid() || r.closed {
		return
	}

	if !r.graph.Input.Disposed() && !r.graph.Output.Disposed() {
		return
	}

	r.path.unsplice(r.graph)
	r.graph = compiler.Endpoints{}
	r.log.Warn("spliced graph was destroyed; passing the input through")
}

// Bypass crossfades between the processed and the dry signal. Repeating a
// call with the same value only restarts the crossfade toward the same end
// state.
func (r *Router) Bypass(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.bypassed = on
	r.path.bypass(on, r.crossfade)
	r.log.Debug("bypass", slog.Bool("on", on))
}

// Bypassed reports the requested bypass state.
func (r *Router) Bypassed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.bypassed
}

// SetVolume glides the master gain to a linear level.
func (r *Router) SetVolume(linear float64) {
	r.path.masterGain.Gain.RampTo(linear, r.crossfade)
}

// Volume returns the master gain target.
func (r *Router) Volume() float64 {
	return r.path.masterGain.Gain.Target()
}

// Render pulls len(out) frames of the destination into out.
func (r *Router) Render(out engine.Buffer) error {
	r.mu.Lock()
	r.dropStaleGraphLocked()
	r.mu.Unlock()

	if err := r.ctx.Render(r.path.output, out); err != nil {
		return fmt.Errorf("router: render: %w", err)
	}

	return nil
}

// Run renders one block per block period into sink until ctx is done.
func (r *Router) Run(ctx context.Context, sink device.Sink) error {
	block := r.ctx.BlockSize()
	period := time.Duration(float64(block) / r.ctx.SampleRate() * float64(time.Second))
	buf := engine.NewBuffer(block)

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.Render(buf); err != nil {
				return err
			}

			if err := sink.Write(buf); err != nil {
				return fmt.Errorf("router: write output: %w", err)
			}
		}
	}
}

// Close stops the source and any recording and removes the router's nodes
// from the context. The context itself stays open.
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}

	r.closed = true

	err := r.stopSourceLocked()
	r.take = nil
	r.path.recorder.Disarm()
	r.path.unsplice(r.graph)
	r.graph = compiler.Endpoints{}
	r.path.dispose()

	return err
}

// path is the fixed node chain around the source and graph.
type path struct {
	inTap      *engine.Node
	wet        *engine.Node
	dry        *engine.Node
	master     *engine.Node
	outTap     *engine.Node
	record     *engine.Node
	output     *engine.Node
	wetGain    *engine.Gain
	dryGain    *engine.Gain
	masterGain *engine.Gain
	inMeter    *engine.Tap
	outMeter   *engine.Tap
	recorder   *engine.Recorder
}

func newPath(ctx *engine.Context, history int) (*path, error) {
	p := &path{
		wetGain:    engine.NewGain(ctx, 1),
		dryGain:    engine.NewGain(ctx, 0),
		masterGain: engine.NewGain(ctx, 1),
		inMeter:    engine.NewTap(history),
		outMeter:   engine.NewTap(history),
		recorder:   engine.NewRecorder(),
	}

	p.inTap = ctx.NewNode("input-tap", p.inMeter)
	p.wet = ctx.NewNode("wet", p.wetGain)
	p.dry = ctx.NewNode("dry", p.dryGain)
	p.master = ctx.NewNode("master", p.masterGain)
	p.outTap = ctx.NewNode("output-tap", p.outMeter)
	p.record = ctx.NewNode("recorder", p.recorder)
	p.output = ctx.NewNode("destination", engine.NewGain(ctx, 1))

	links := [][2]*engine.Node{
		{p.inTap, p.wet},
		{p.inTap, p.dry},
		{p.wet, p.master},
		{p.dry, p.master},
		{p.master, p.outTap},
		{p.outTap, p.record},
		{p.record, p.output},
	}

	for _, l := range links {
		if err := l[0].Connect(l[1]); err != nil {
			p.dispose()
			return nil, fmt.Errorf("router: connect %s to %s: %w", l[0].Name(), l[1].Name(), err)
		}
	}

	return p, nil
}

func (p *path) splice(ep compiler.Endpoints) error {
	p.inTap.Disconnect(p.wet)

	if err := p.inTap.Connect(ep.Input); err != nil {
		return fmt.Errorf("router: splice graph input: %w", err)
	}

	if err := ep.Output.Connect(p.wet); err != nil {
		return fmt.Errorf("router: splice graph output: %w", err)
	}

	return nil
}

// unsplice restores the direct input tap to wet link. Endpoints of a graph
// that was already destroyed are skipped.
func (p *path) unsplice(ep compiler.Endpoints) {
	if ep.Input != nil && !ep.Input.Disposed() {
		p.inTap.Disconnect(ep.Input)
	}

	if ep.Output != nil && !ep.Output.Disposed() {
		ep.Output.Disconnect(p.wet)
	}

	p.inTap.Disconnect(p.wet)
	_ = p.inTap.Connect(p.wet)
}

func (p *path) bypass(on bool, fade time.Duration) {
	wet, dry := 1.0, 0.0
	if on {
		wet, dry = 0, 1
	}

	p.wetGain.Gain.RampTo(wet, fade)
	p.dryGain.Gain.RampTo(dry, fade)
}

func (p *path) dispose() {
	for _, n := range []*engine.Node{p.inTap, p.wet, p.dry, p.master, p.outTap, p.record, p.output} {
		if n != nil {
			n.Dispose()
		}
	}
}

// clip converts a rendered buffer into a clip with the given channel count.
func clipOf(buf engine.Buffer, sampleRate float64, channels int) (pcm.Clip, error) {
	if channels != 1 {
		channels = 2
	}

	c, err := pcm.FromBuffer(buf, sampleRate, channels)
	if err != nil {
		return pcm.Clip{}, fmt.Errorf("router: %w", err)
	}

	return c, nil
}
