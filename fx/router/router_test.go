package router

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/automation"
	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/compiler"
	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/device"
	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/engine"
	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/graph"
	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/pcm"
)

const sampleRate = 48000

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

func newTestRouter(t *testing.T, opts ...Option) (*Router, *device.Loopback, *syncBuffer) {
	t.Helper()

	ctx, err := engine.NewContext(sampleRate, 128)
	require.NoError(t, err)
	t.Cleanup(ctx.Close)

	logs := &syncBuffer{}
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	lb := device.NewLoopback()
	lb.AddInput(device.Info{ID: "mic", Label: "Mic", Default: true}, device.Sine(1000, sampleRate, 0.5))
	lb.AddInput(device.Info{ID: "line", Label: "Line In", Channels: 2}, device.SignalFunc(func(buf engine.Buffer) {
		for i := range buf.L {
			buf.L[i], buf.R[i] = 0.25, 0.25
		}
	}))

	opts = append([]Option{WithLogger(logger), WithBackend(lb), WithSpectrum(1024, 16, 0)}, opts...)

	r, err := New(ctx, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	return r, lb, logs
}

func dcClip(v float64, frames, channels int) pcm.Clip {
	c := pcm.Clip{SampleRate: sampleRate}
	for range channels {
		ch := make([]float64, frames)
		for i := range ch {
			ch[i] = v
		}

		c.Channels = append(c.Channels, ch)
	}

	return c
}

func halfGain() graph.Definition {
	return graph.Linear(
		graph.NewNode("in", graph.KindInput),
		graph.Node{ID: "g", Kind: graph.KindGain, Params: graph.GainParams{Gain: -6.0206}},
		graph.NewNode("out", graph.KindOutput),
	)
}

func render(t *testing.T, r *Router, frames int) engine.Buffer {
	t.Helper()

	out := engine.NewBuffer(frames)
	require.NoError(t, r.Render(out))

	return out
}

func splice(t *testing.T, r *Router, def graph.Definition) *compiler.Compiler {
	t.Helper()

	c := compiler.New(r.Context())
	ep, err := c.Build(def)
	require.NoError(t, err)
	require.NoError(t, r.SetGraph(ep))

	return c
}

func TestPassThroughWithoutGraph(t *testing.T) {
	t.Parallel()

	r, _, _ := newTestRouter(t)

	_, err := r.PlayFile(dcClip(0.5, 1000, 1), true)
	require.NoError(t, err)
	assert.Equal(t, SourceFile, r.ActiveSource())
	assert.False(t, r.HasGraph())

	out := render(t, r, 4096)
	for i := range out.L {
		require.InDelta(t, 0.5, out.L[i], 1e-12, "frame %d", i)
		require.InDelta(t, 0.5, out.R[i], 1e-12, "frame %d", i)
	}
}

func TestGraphSpliceAndClear(t *testing.T) {
	t.Parallel()

	r, _, _ := newTestRouter(t)
	_, err := r.PlayFile(dcClip(0.5, 256, 1), true)
	require.NoError(t, err)

	c := splice(t, r, halfGain())
	assert.True(t, r.HasGraph())
	assert.InDelta(t, 0.25, render(t, r, 256).L[100], 1e-4)

	// Rebuilding destroys the old graph; the router accepts the new one.
	ep, err := c.Build(halfGain())
	require.NoError(t, err)
	require.NoError(t, r.SetGraph(ep))
	assert.InDelta(t, 0.25, render(t, r, 256).L[100], 1e-4)

	r.ClearGraph()
	assert.False(t, r.HasGraph())
	assert.InDelta(t, 0.5, render(t, r, 256).L[100], 1e-12)

	require.ErrorIs(t, r.SetGraph(compiler.Endpoints{}), compiler.ErrMissingEndpoints)
}

func TestDestroyedGraphFallsBackToPassThrough(t *testing.T) {
	t.Parallel()

	r, _, _ := newTestRouter(t)
	_, err := r.PlayFile(dcClip(0.5, 256, 1), true)
	require.NoError(t, err)

	c := splice(t, r, halfGain())
	c.Destroy()
	r.ClearGraph()

	assert.InDelta(t, 0.5, render(t, r, 256).L[10], 1e-12)
}

func TestStaleGraphIsDroppedWithoutClear(t *testing.T) {
	t.Parallel()

	t.Run("destroy", func(t *testing.T) {
		t.Parallel()

		r, _, _ := newTestRouter(t)
		_, err := r.PlayFile(dcClip(0.5, 256, 1), true)
		require.NoError(t, err)

		c := splice(t, r, halfGain())
		assert.InDelta(t, 0.25, render(t, r, 256).L[200], 1e-4)

		c.Destroy()
		assert.InDelta(t, 0.5, render(t, r, 256).L[10], 1e-12)
		assert.False(t, r.HasGraph())
	})

	t.Run("failed rebuild", func(t *testing.T) {
		t.Parallel()

		r, _, _ := newTestRouter(t)
		_, err := r.PlayFile(dcClip(0.5, 256, 1), true)
		require.NoError(t, err)

		c := splice(t, r, halfGain())

		_, err = c.Build(graph.Linear(graph.NewNode("out", graph.KindOutput)))
		require.ErrorIs(t, err, compiler.ErrMissingEndpoints)

		assert.False(t, r.HasGraph())
		assert.InDelta(t, 0.5, render(t, r, 256).L[10], 1e-12)
	})
}

func TestBypassCrossfadeSettles(t *testing.T) {
	t.Parallel()

	r, _, _ := newTestRouter(t)
	_, err := r.PlayFile(dcClip(0.5, 256, 1), true)
	require.NoError(t, err)
	splice(t, r, halfGain())

	r.Bypass(true)
	render(t, r, 64)
	r.Bypass(true)
	assert.True(t, r.Bypassed())

	out := render(t, r, 2048)
	assert.InDelta(t, 0.5, out.L[2047], 1e-9)
	assert.InDelta(t, 0.0, r.path.wetGain.Gain.Value(), 1e-12)
	assert.InDelta(t, 1.0, r.path.dryGain.Gain.Value(), 1e-12)

	r.Bypass(false)
	out = render(t, r, 2048)
	assert.InDelta(t, 0.25, out.L[2047], 1e-4)
	assert.False(t, r.Bypassed())
}

func TestBypassIsNotInstant(t *testing.T) {
	t.Parallel()

	r, _, _ := newTestRouter(t, WithCrossfade(10*time.Millisecond))
	_, err := r.PlayFile(dcClip(0.5, 256, 1), true)
	require.NoError(t, err)
	splice(t, r, halfGain())

	r.Bypass(true)
	out := render(t, r, 240)

	// Halfway through the 480-sample window both paths are audible.
	assert.InDelta(t, 0.375, out.L[239], 0.01)
}

func TestVolume(t *testing.T) {
	t.Parallel()

	r, _, _ := newTestRouter(t)
	_, err := r.PlayFile(dcClip(0.5, 256, 1), true)
	require.NoError(t, err)

	r.SetVolume(0.5)
	assert.InDelta(t, 0.5, r.Volume(), 0)
	assert.InDelta(t, 0.25, render(t, r, 2048).L[2047], 1e-9)
}

func TestSourceSwitchingTearsDownPrevious(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r, lb, _ := newTestRouter(t)
	base := r.Context().LiveNodes()

	require.NoError(t, r.UseLiveInput(ctx, "mic"))
	assert.Equal(t, SourceLiveInput, r.ActiveSource())
	assert.Equal(t, 1, lb.OpenStreams())
	assert.Equal(t, base+1, r.Context().LiveNodes())

	require.NoError(t, r.PlayTestTone())
	assert.Equal(t, SourceTestTone, r.ActiveSource())
	assert.Equal(t, 0, lb.OpenStreams())
	assert.Equal(t, base+1, r.Context().LiveNodes())

	tone, err := r.PlayTone(engine.OscSquare, 220, 0.5)
	require.NoError(t, err)
	assert.Equal(t, SourceTone, r.ActiveSource())
	assert.InDelta(t, 220, tone.Frequency().Target(), 0)
	assert.InDelta(t, 0.5, render(t, r, 16).L[1], 1e-12)

	require.NoError(t, r.StopSource())
	assert.Equal(t, SourceNone, r.ActiveSource())
	assert.Nil(t, r.Source())
	assert.Equal(t, base, r.Context().LiveNodes())
	assert.InDelta(t, 0, render(t, r, 16).L[3], 0)
}

func TestTestToneFrequency(t *testing.T) {
	t.Parallel()

	r, _, _ := newTestRouter(t)
	require.NoError(t, r.PlayTestTone())

	out := render(t, r, sampleRate)

	crossings := 0
	for i := 1; i < len(out.L); i++ {
		if out.L[i-1] < 0 && out.L[i] >= 0 {
			crossings++
		}
	}

	assert.InDelta(t, TestToneHz, crossings, 1)
}

func TestUseLiveInputDefaultsAndFailures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r, lb, logs := newTestRouter(t)

	require.NoError(t, r.UseLiveInput(ctx, ""))
	assert.Equal(t, "mic", r.InputDevice())
	assert.Len(t, device.Filter(r.Devices(), device.Input), 2)

	require.NoError(t, r.PlayTestTone())

	lb.Deny(true)
	require.ErrorIs(t, r.UseLiveInput(ctx, "mic"), device.ErrPermissionDenied)
	assert.Equal(t, SourceTestTone, r.ActiveSource(), "failed acquisition keeps the previous source")
	lb.Deny(false)

	require.ErrorIs(t, r.UseLiveInput(ctx, "nope"), device.ErrNotFound)

	require.NoError(t, r.UseLiveInput(ctx, "mic"))
	live, ok := r.Source().(*LiveInput)
	require.True(t, ok)

	lb.Remove("mic")
	out := render(t, r, 256)
	assert.True(t, live.Failed())
	assert.InDelta(t, 0, out.L[200], 0)
	assert.Contains(t, logs.String(), "live input stopped delivering audio")

	empty := device.NewLoopback()
	r2, err := New(r.Context(), WithBackend(empty))
	require.NoError(t, err)
	defer r2.Close()

	require.ErrorIs(t, r2.UseLiveInput(ctx, ""), ErrNoInputDevice)
}

func TestSetInputDeviceHotSwaps(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r, lb, _ := newTestRouter(t)

	require.NoError(t, r.SetInputDevice(ctx, "line"))
	assert.Equal(t, "line", r.InputDevice())
	assert.Equal(t, 0, lb.OpenStreams(), "selection alone opens nothing")

	require.NoError(t, r.UseLiveInput(ctx, "mic"))
	live := r.Source().(*LiveInput)

	require.NoError(t, r.SetInputDevice(ctx, "line"))
	assert.Same(t, live, r.Source(), "the source is kept across a swap")
	assert.Equal(t, "line", live.DeviceID())
	assert.Equal(t, 2, live.Channels())
	assert.Equal(t, 1, lb.OpenStreams())
	assert.InDelta(t, 0.25, render(t, r, 128).L[64], 1e-12)

	require.ErrorIs(t, r.SetInputDevice(ctx, "gone"), device.ErrNotFound)
	assert.Equal(t, "line", live.DeviceID())
}

func TestUseLiveInputPrefersSelectedDevice(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r, _, _ := newTestRouter(t)

	require.NoError(t, r.SetInputDevice(ctx, "line"))
	require.NoError(t, r.UseLiveInput(ctx, ""))

	live := r.Source().(*LiveInput)
	assert.Equal(t, "line", live.DeviceID())
	assert.Equal(t, "line", r.InputDevice())
}

func TestSetOutputDevice(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	r, _, _ := newTestRouter(t)
	got, err := r.SetOutputDevice(ctx, "loopback-out")
	require.NoError(t, err)
	assert.Equal(t, device.SystemDefault, got)

	lb := device.NewLoopback(device.WithOutputSelection())
	lb.AddOutput(device.Info{ID: "phones", Label: "Headphones", Channels: 2})

	r2, err := New(r.Context(), WithBackend(lb))
	require.NoError(t, err)
	defer r2.Close()

	got, err = r2.SetOutputDevice(ctx, "phones")
	require.NoError(t, err)
	assert.Equal(t, "phones", got)
	assert.Equal(t, "phones", lb.Selected())

	got, err = r2.SetOutputDevice(ctx, "gone")
	require.ErrorIs(t, err, device.ErrNotFound)
	assert.Equal(t, "phones", got)

	r3, err := New(r.Context())
	require.NoError(t, err)
	defer r3.Close()

	got, err = r3.SetOutputDevice(ctx, "phones")
	require.NoError(t, err)
	assert.Equal(t, device.SystemDefault, got)
}

func TestMeters(t *testing.T) {
	t.Parallel()

	r, _, _ := newTestRouter(t)
	_, err := r.PlayFile(dcClip(0.5, 256, 1), true)
	require.NoError(t, err)
	r.SetVolume(0.25)
	render(t, r, 2048)

	s := r.Meters()
	assert.InDelta(t, -6.0206, s.Input.DB, 1e-3)
	assert.InDelta(t, 0.5, s.Input.Normalized, 1e-9)
	assert.InDelta(t, 0.5, s.Output.Normalized, 1e-9, "peak includes the start of the volume ramp")
	assert.Len(t, s.Spectrum, 16)

	render(t, r, 2048)
	s = r.Meters()
	assert.InDelta(t, 0.125, s.Output.Normalized, 1e-9)

	s = r.Meters()
	assert.InDelta(t, 0, s.Input.Normalized, 0, "levels reset after each reading")
}

func TestRunMetersPollsUntilCancelled(t *testing.T) {
	t.Parallel()

	r, _, _ := newTestRouter(t)
	require.NoError(t, r.PlayTestTone())

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan Snapshot, 16)
	done := make(chan error, 1)

	go func() {
		done <- r.RunMeters(ctx, time.Millisecond, func(s Snapshot) {
			select {
			case got <- s:
			default:
			}
		})
	}()

	for range 2 {
		render(t, r, 512)

		select {
		case s := <-got:
			assert.Len(t, s.Spectrum, 16)
		case <-time.After(2 * time.Second):
			t.Fatal("no snapshot delivered")
		}
	}

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("RunMeters did not return after cancel")
	}
}

func TestRecording(t *testing.T) {
	t.Parallel()

	r, _, _ := newTestRouter(t)
	_, err := r.PlayFile(dcClip(0.5, 256, 1), true)
	require.NoError(t, err)

	_, err = r.StopRecording()
	require.ErrorIs(t, err, ErrNotRecording)

	id, err := r.StartRecording()
	require.NoError(t, err)
	assert.True(t, r.Recording())

	_, err = r.StartRecording()
	require.ErrorIs(t, err, ErrRecording)

	render(t, r, 1000)
	assert.InDelta(t, float64(1000*time.Second/sampleRate), float64(r.RecordedDuration()), float64(time.Microsecond))

	rec, err := r.StopRecording()
	require.NoError(t, err)
	assert.Zero(t, r.RecordedDuration())
	assert.Equal(t, id, rec.ID)
	assert.False(t, rec.Capped)
	assert.False(t, r.Recording())
	assert.Equal(t, 1, rec.Clip.NumChannels())
	assert.Equal(t, sampleRate, rec.Clip.SampleRate)
	assert.Equal(t, 1000, rec.Clip.Frames())
	assert.InDelta(t, 0.5, rec.Clip.Channels[0][999], 1e-12)

	_, err = pcm.DecodeBytes(mustBytes(t, rec.Clip))
	require.NoError(t, err)
}

func TestRecordingStopsAtLimit(t *testing.T) {
	t.Parallel()

	limited := make(chan Recording, 1)
	r, _, logs := newTestRouter(t,
		WithRecordingLimit(10*time.Millisecond),
		WithRecordingLimitHandler(func(rec Recording) { limited <- rec }),
	)
	_, err := r.PlayFile(dcClip(0.5, 256, 2), true)
	require.NoError(t, err)

	id, err := r.StartRecording()
	require.NoError(t, err)
	render(t, r, 2048)

	var rec Recording
	select {
	case rec = <-limited:
	case <-time.After(2 * time.Second):
		t.Fatal("recording limit handler not called")
	}

	assert.Equal(t, id, rec.ID)
	assert.True(t, rec.Capped)
	assert.Equal(t, 480, rec.Clip.Frames())
	assert.Equal(t, 2, rec.Clip.NumChannels())
	assert.False(t, r.Recording())
	assert.Contains(t, logs.String(), "recording limit reached")

	collected, err := r.StopRecording()
	require.NoError(t, err)
	assert.Equal(t, id, collected.ID)

	_, err = r.StopRecording()
	require.ErrorIs(t, err, ErrNotRecording)
}

func TestExportRendersOffline(t *testing.T) {
	t.Parallel()

	r, _, _ := newTestRouter(t)
	_, err := r.PlayFile(dcClip(0.5, 4800, 1), false)
	require.NoError(t, err)
	splice(t, r, halfGain())

	before := r.Context().Frames()

	e, err := r.Export(context.Background(), ExportOptions{
		Definition: halfGain(),
		Snapshot:   automation.Snapshot{"g": {"gain": graph.Number(0)}},
	})
	require.NoError(t, err)

	assert.Equal(t, before, r.Context().Frames(), "live context untouched")
	assert.NotEqual(t, e.ID.String(), "00000000-0000-0000-0000-000000000000")
	assert.Equal(t, 4800, e.Clip.Frames())
	assert.Equal(t, 1, e.Clip.NumChannels())
	assert.InDelta(t, 0.5, e.Clip.Channels[0][2400], 1e-9, "snapshot edit replayed")

	plain, err := r.Export(context.Background(), ExportOptions{Duration: 50 * time.Millisecond, Tail: 10 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, 2880, plain.Clip.Frames())
	assert.InDelta(t, 0.5, plain.Clip.Channels[0][100], 1e-12)
}

func TestExportKeepsBypassAndRejectsLive(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r, _, _ := newTestRouter(t)

	_, err := r.Export(ctx, ExportOptions{})
	require.ErrorIs(t, err, ErrNoSource)

	_, err = r.PlayFile(dcClip(0.5, 480, 1), false)
	require.NoError(t, err)
	r.Bypass(true)

	e, err := r.Export(ctx, ExportOptions{Definition: halfGain()})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, e.Clip.Channels[0][10], 1e-12)

	tone, err := r.PlayTone(engine.OscSine, 1000, 0.5)
	require.NoError(t, err)
	require.NotNil(t, tone)

	e, err = r.Export(ctx, ExportOptions{Duration: 10 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, 480, e.Clip.Frames())

	require.NoError(t, r.UseLiveInput(ctx, "mic"))
	_, err = r.Export(ctx, ExportOptions{})
	require.ErrorIs(t, err, ErrLiveExport)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	require.NoError(t, r.PlayTestTone())
	_, err = r.Export(cancelled, ExportOptions{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunDrivesSink(t *testing.T) {
	t.Parallel()

	r, _, _ := newTestRouter(t)
	require.NoError(t, r.PlayTestTone())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var sink device.Capture
	require.NoError(t, r.Run(ctx, &sink))

	assert.Positive(t, sink.Frames())
	assert.Zero(t, sink.Frames()%128)
}

func TestCloseReleasesNodes(t *testing.T) {
	t.Parallel()

	ctx, err := engine.NewContext(sampleRate, 128)
	require.NoError(t, err)
	defer ctx.Close()

	lb := device.NewLoopback()
	lb.AddInput(device.Info{ID: "mic"}, nil)

	r, err := New(ctx, WithBackend(lb))
	require.NoError(t, err)
	require.NoError(t, r.UseLiveInput(context.Background(), "mic"))
	_, err = r.StartRecording()
	require.NoError(t, err)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	assert.Equal(t, 0, ctx.LiveNodes())
	assert.Equal(t, 0, lb.OpenStreams())
	require.ErrorIs(t, r.PlayTestTone(), ErrClosed)

	_, err = r.StartRecording()
	require.ErrorIs(t, err, ErrClosed)
}

func TestFileSourceResamplesAndEnds(t *testing.T) {
	t.Parallel()

	clip := pcm.Clip{SampleRate: 24000, Channels: [][]float64{{0, 1, 2, 3}}}
	src := newFileSource(clip, 48000, false)

	buf := engine.NewBuffer(8)
	src.Process(buf)

	for i, want := range []float64{0, 0.5, 1, 1.5, 2, 2.5, 3} {
		assert.InDelta(t, want, buf.L[i], 1e-12, "frame %d", i)
		assert.InDelta(t, want, buf.R[i], 1e-12, "frame %d", i)
	}

	assert.True(t, src.Done())

	src.Process(buf)
	assert.InDelta(t, 0, buf.L[0], 0)

	looped := newFileSource(clip, 24000, true)
	buf = engine.NewBuffer(6)
	looped.Process(buf)
	assert.Equal(t, []float64{0, 1, 2, 3, 0, 1}, buf.L)
	assert.False(t, looped.Done())
}

func mustBytes(t *testing.T, c pcm.Clip) []byte {
	t.Helper()

	b, err := c.Bytes()
	require.NoError(t, err)

	return b
}
