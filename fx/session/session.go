// Package session ties the effect pipeline together for front ends: one
// engine context with a router, a compiler and an automator, loaded from an
// effect document and validated on every load.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/automation"
	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/compiler"
	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/device"
	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/engine"
	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/graph"
	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/router"
	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/validate"
	"github.com/Snow-Parrot-Labs/PromptFX-sub000/internal/config"
)

// Options configures a Session.
type Options struct {
	SampleRate float64
	BlockSize  int

	Ramp           time.Duration
	Crossfade      time.Duration
	RecordingLimit time.Duration

	FFTSize   int
	Bands     int
	Smoothing float64

	// MeterInterval is the RunMeters period.
	MeterInterval time.Duration

	// InputDevice and OutputDevice are bound through Backend when the
	// session starts. Empty ids keep the system defaults.
	InputDevice  string
	OutputDevice string

	Backend device.Backend
	Logger  *slog.Logger
}

// OptionsFrom maps loaded settings onto session options.
func OptionsFrom(s config.Settings) Options {
	return Options{
		SampleRate:     float64(*s.Audio.SampleRateHz),
		BlockSize:      *s.Audio.BlockSize,
		Ramp:           s.Automation.Ramp(),
		Crossfade:      s.Router.Crossfade(),
		RecordingLimit: s.Router.RecordingLimit(),
		FFTSize:        *s.Router.FFTSize,
		Bands:          *s.Router.SpectrumBands,
		Smoothing:      *s.Router.SpectrumSmoothing,
		MeterInterval:  s.Router.MeterInterval(),
		InputDevice:    *s.Router.DefaultInputDevice,
		OutputDevice:   *s.Router.DefaultOutputDevice,
	}
}

// Session is a live effect pipeline.
type Session struct {
	ctx       *engine.Context
	log       *slog.Logger
	compiler  *compiler.Compiler
	automator *automation.Automator
	router    *router.Router
	meterRate time.Duration

	mu       sync.Mutex
	def      graph.Definition
	controls []graph.Control
	report   validate.Result
	loaded   bool
	buf      engine.Buffer
}

// New creates a session with its own engine context. Zero values keep the
// defaults of the components. ctx bounds the device selection done at
// start; an output device the backend cannot select is logged and playback
// stays on the system default.
func New(ctx context.Context, opts Options) (*Session, error) {
	if opts.SampleRate == 0 {
		opts.SampleRate = 48000
	}

	if opts.BlockSize == 0 {
		opts.BlockSize = 128
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if opts.MeterInterval <= 0 {
		opts.MeterInterval = router.DefaultMeterInterval
	}

	ec, err := engine.NewContext(opts.SampleRate, opts.BlockSize)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	ropts := []router.Option{
		router.WithLogger(opts.Logger),
		router.WithBackend(opts.Backend),
		router.WithRecordingLimit(opts.RecordingLimit),
	}
	if opts.Crossfade > 0 {
		ropts = append(ropts, router.WithCrossfade(opts.Crossfade))
	}
	if opts.FFTSize > 0 && opts.Bands > 0 {
		ropts = append(ropts, router.WithSpectrum(opts.FFTSize, opts.Bands, opts.Smoothing))
	}

	r, err := router.New(ec, ropts...)
	if err != nil {
		ec.Close()
		return nil, fmt.Errorf("session: %w", err)
	}

	if err := bindDevices(ctx, r, opts); err != nil {
		_ = r.Close()
		ec.Close()
		return nil, err
	}

	c := compiler.New(ec, compiler.WithLogger(opts.Logger))

	aopts := []automation.Option{automation.WithLogger(opts.Logger)}
	if opts.Ramp > 0 {
		aopts = append(aopts, automation.WithRamp(opts.Ramp))
	}

	return &Session{
		ctx:       ec,
		log:       opts.Logger,
		compiler:  c,
		automator: automation.New(c, aopts...),
		router:    r,
		meterRate: opts.MeterInterval,
	}, nil
}

func bindDevices(ctx context.Context, r *router.Router, opts Options) error {
	if opts.Backend == nil {
		return nil
	}

	if opts.InputDevice != "" {
		if err := r.SetInputDevice(ctx, opts.InputDevice); err != nil {
			return fmt.Errorf("session: input device: %w", err)
		}
	}

	if opts.OutputDevice != "" {
		out, err := r.SetOutputDevice(ctx, opts.OutputDevice)
		if err != nil {
			opts.Logger.Warn("output device unavailable", slog.String("device", opts.OutputDevice),
				slog.String("using", out), slog.Any("error", err))
		}
	}

	return nil
}

// Router returns the session's signal router.
func (s *Session) Router() *router.Router { return s.router }

// Automator returns the automator editing the loaded graph.
func (s *Session) Automator() *automation.Automator { return s.automator }

// Compiler returns the compiler owning the loaded graph.
func (s *Session) Compiler() *compiler.Compiler { return s.compiler }

// Context returns the engine context.
func (s *Session) Context() *engine.Context { return s.ctx }

// Load validates def and controls, rebuilds the graph and splices it into
// the router. The validation result is returned even when the build fails;
// on failure the router falls back to the dry input path.
func (s *Session) Load(def graph.Definition, controls []graph.Control) (validate.Result, error) {
	res := validate.Validate(def, controls)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.def, s.controls, s.report = def, controls, res
	s.loaded = false

	s.router.ClearGraph()
	s.automator.Reset()

	ep, err := s.compiler.Build(def)
	if err != nil {
		s.compiler.Destroy()
		return res, fmt.Errorf("session: build: %w", err)
	}

	if err := s.router.SetGraph(ep); err != nil {
		return res, fmt.Errorf("session: %w", err)
	}

	s.loaded = true
	s.log.Info("effect loaded",
		slog.Int("nodes", len(def.Nodes)), slog.Int("units", s.compiler.LiveUnits()),
		slog.Bool("passed", res.Passed), slog.Int("warnings", len(res.Warnings)))

	return res, nil
}

// LoadJSON decodes an effect document holding nodes, connections and an
// optional controls list, then loads it.
func (s *Session) LoadJSON(data []byte) (validate.Result, error) {
	def, err := graph.Parse(data)
	if err != nil {
		return validate.Result{}, err
	}

	controls, err := graph.ParseControls(data)
	if err != nil {
		return validate.Result{}, err
	}

	return s.Load(def, controls)
}

// Loaded reports whether a graph is compiled and spliced in.
func (s *Session) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loaded
}

// Definition returns the last loaded definition.
func (s *Session) Definition() graph.Definition {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.def
}

// Report returns the validation result of the last load.
func (s *Session) Report() validate.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.report
}

// Update applies a live parameter edit.
func (s *Session) Update(nodeID, param string, v graph.Value) automation.Outcome {
	return s.automator.Update(nodeID, param, v)
}

// Export renders the active source through the loaded definition and every
// edit made since it was loaded.
func (s *Session) Export(ctx context.Context, duration, tail time.Duration) (router.Export, error) {
	s.mu.Lock()
	def := s.def
	if !s.loaded {
		def = graph.Definition{}
	}
	s.mu.Unlock()

	return s.router.Export(ctx, router.ExportOptions{
		Definition: def,
		Snapshot:   s.automator.Snapshot(),
		Duration:   duration,
		Tail:       tail,
	})
}

// RenderInterleaved fills dst with interleaved stereo samples. len(dst)
// must be even.
func (s *Session) RenderInterleaved(dst []float32) error {
	if len(dst)%2 != 0 {
		return errors.New("session: interleaved buffer has odd length")
	}

	frames := len(dst) / 2

	s.mu.Lock()
	if s.buf.Frames() < frames {
		s.buf = engine.NewBuffer(frames)
	}
	buf := s.buf.Slice(0, frames)
	s.mu.Unlock()

	if err := s.router.Render(buf); err != nil {
		return err
	}

	for i := range frames {
		dst[2*i] = float32(buf.L[i])
		dst[2*i+1] = float32(buf.R[i])
	}

	return nil
}

// MeterInterval returns the metering period the session was configured with.
func (s *Session) MeterInterval() time.Duration { return s.meterRate }

// RunMeters polls the router's meters at the configured interval until ctx
// is done. Call it on its own goroutine.
func (s *Session) RunMeters(ctx context.Context, fn func(router.Snapshot)) error {
	return s.router.RunMeters(ctx, s.meterRate, fn)
}

// Close stops the router and the context.
func (s *Session) Close() error {
	err := s.router.Close()
	s.compiler.Destroy()
	s.ctx.Close()

	return err
}
