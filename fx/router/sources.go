package router

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/device"
	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/engine"
	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/pcm"
)

// TestToneHz is the frequency of the built-in test tone.
const TestToneHz = 440.0

const testToneLevel = 0.25

// SourceKind names the kind of the active source.
type SourceKind uint8

const (
	SourceNone SourceKind = iota
	SourceFile
	SourceLiveInput
	SourceTestTone
	SourceTone
)

func (k SourceKind) String() string {
	switch k {
	case SourceFile:
		return "file"
	case SourceLiveInput:
		return "live-input"
	case SourceTestTone:
		return "test-tone"
	case SourceTone:
		return "tone"
	default:
		return "none"
	}
}

// Source is an audio source the router can own. Sources are created by the
// router's Play and Use methods.
type Source interface {
	engine.Processor

	Kind() SourceKind
	// Channels is the native channel count of the material.
	Channels() int
	// Stop releases the source's resources.
	Stop() error

	// offline returns a fresh copy for rendering on another context, or
	// an error if the source cannot be reproduced.
	offline(ctx *engine.Context) (Source, error)
}

// FileSource plays a decoded clip, resampled linearly to the context rate.
type FileSource struct {
	clip pcm.Clip
	buf  engine.Buffer
	loop bool
	step float64

	mu   sync.Mutex
	pos  float64
	done bool
}

func newFileSource(clip pcm.Clip, sampleRate float64, loop bool) *FileSource {
	return &FileSource{
		clip: clip,
		buf:  clip.Buffer(),
		loop: loop,
		step: float64(clip.SampleRate) / sampleRate,
	}
}

func (s *FileSource) Kind() SourceKind { return SourceFile }

func (s *FileSource) Channels() int { return s.clip.NumChannels() }

func (s *FileSource) Stop() error {
	s.mu.Lock()
	s.done = true
	s.mu.Unlock()

	return nil
}

// Done reports whether playback reached the end of a non-looping clip.
func (s *FileSource) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.done
}

// Clip returns the material being played.
func (s *FileSource) Clip() pcm.Clip { return s.clip }

func (s *FileSource) Process(buf engine.Buffer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := float64(s.buf.Frames())

	for i := range buf.L {
		if s.done || n == 0 {
			buf.L[i], buf.R[i] = 0, 0
			continue
		}

		buf.L[i] = interpolate(s.buf.L, s.pos)
		buf.R[i] = interpolate(s.buf.R, s.pos)

		s.pos += s.step
		if s.pos >= n {
			if s.loop {
				s.pos = math.Mod(s.pos, n)
			} else {
				s.done = true
			}
		}
	}
}

func (s *FileSource) offline(ctx *engine.Context) (Source, error) {
	return newFileSource(s.clip, ctx.SampleRate(), false), nil
}

func interpolate(x []float64, pos float64) float64 {
	i := int(pos)
	frac := pos - float64(i)

	if i+1 >= len(x) {
		return x[i] * (1 - frac)
	}

	return x[i] + frac*(x[i+1]-x[i])
}

// ToneSource is an oscillator source: either the fixed test tone or a
// tone generator with adjustable frequency and level.
type ToneSource struct {
	osc  *engine.Oscillator
	kind SourceKind
	wave engine.OscWave
}

func newToneSource(ctx *engine.Context, kind SourceKind, wave engine.OscWave, freq, level float64) *ToneSource {
	return &ToneSource{
		osc:  engine.NewOscillator(ctx, wave, freq, level),
		kind: kind,
		wave: wave,
	}
}

func (s *ToneSource) Kind() SourceKind { return s.kind }

func (s *ToneSource) Channels() int { return 1 }

func (s *ToneSource) Stop() error { return nil }

func (s *ToneSource) Process(buf engine.Buffer) { s.osc.Process(buf) }

// Frequency is the oscillator frequency in Hz.
func (s *ToneSource) Frequency() *engine.Param { return s.osc.Frequency }

// Level is the linear output level.
func (s *ToneSource) Level() *engine.Param { return s.osc.Level }

func (s *ToneSource) offline(ctx *engine.Context) (Source, error) {
	return newToneSource(ctx, s.kind, s.wave, s.osc.Frequency.Target(), s.osc.Level.Target()), nil
}

// LiveInput streams a capture device. The stream can be replaced while the
// source is playing; read failures produce silence until it is.
type LiveInput struct {
	log *slog.Logger

	mu       sync.Mutex
	deviceID string
	stream   device.Stream
	failed   bool
}

func newLiveInput(log *slog.Logger, deviceID string, s device.Stream) *LiveInput {
	return &LiveInput{log: log, deviceID: deviceID, stream: s}
}

func (s *LiveInput) Kind() SourceKind { return SourceLiveInput }

func (s *LiveInput) Channels() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream == nil {
		return 1
	}

	return s.stream.Channels()
}

// DeviceID returns the capture device currently bound.
func (s *LiveInput) DeviceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.deviceID
}

// Failed reports whether the current stream stopped delivering audio.
func (s *LiveInput) Failed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.failed
}

func (s *LiveInput) Process(buf engine.Buffer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream == nil || s.failed {
		buf.Zero()
		return
	}

	if err := s.stream.Read(buf); err != nil {
		s.failed = true
		buf.Zero()
		s.log.Warn("live input stopped delivering audio", slog.String("device", s.deviceID), slog.Any("error", err))
	}
}

// swap binds a new stream and returns the previous one.
func (s *LiveInput) swap(deviceID string, stream device.Stream) device.Stream {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.stream
	s.deviceID = deviceID
	s.stream = stream
	s.failed = false

	return old
}

func (s *LiveInput) Stop() error {
	old := s.swap("", nil)
	if old == nil {
		return nil
	}

	if err := old.Close(); err != nil {
		return fmt.Errorf("router: close live input: %w", err)
	}

	return nil
}

func (s *LiveInput) offline(*engine.Context) (Source, error) {
	return nil, ErrLiveExport
}
