package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/automation"
	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/compiler"
	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/device"
	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/graph"
	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/pcm"
	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/router"
	"github.com/Snow-Parrot-Labs/PromptFX-sub000/internal/config"
)

const halfGainDoc = `{
	"nodes": [
		{"id": "in", "type": "input"},
		{"id": "g", "type": "gain", "params": {"gain": -6.0206}},
		{"id": "out", "type": "output"}
	],
	"connections": [
		{"from": {"nodeId": "in"}, "to": {"nodeId": "g"}},
		{"from": {"nodeId": "g"}, "to": {"nodeId": "out"}}
	],
	"controls": [
		{"id": "c1", "type": "knob", "label": "Output Level", "nodeId": "g", "param": "gain"}
	]
}`

func newTestSession(t *testing.T) *Session {
	t.Helper()

	s, err := New(context.Background(), OptionsFrom(config.Default()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	clip := pcm.Clip{SampleRate: 48000, Channels: [][]float64{make([]float64, 4800)}}
	for i := range clip.Channels[0] {
		clip.Channels[0][i] = 0.5
	}

	_, err = s.Router().PlayFile(clip, true)
	require.NoError(t, err)

	return s
}

func TestLoadJSONBuildsAndValidates(t *testing.T) {
	t.Parallel()

	s := newTestSession(t)

	res, err := s.LoadJSON([]byte(halfGainDoc))
	require.NoError(t, err)
	assert.True(t, s.Loaded())
	assert.True(t, s.Router().HasGraph())
	assert.True(t, res.Passed)
	require.Len(t, res.Suggestions, 1)
	assert.Contains(t, res.Suggestions[0], "sets a level")
	assert.Equal(t, res, s.Report())
	assert.Len(t, s.Definition().Nodes, 3)

	out := make([]float32, 512)
	require.NoError(t, s.RenderInterleaved(out))
	assert.InDelta(t, 0.25, out[300], 1e-4)
	assert.InDelta(t, 0.25, out[301], 1e-4)

	require.Error(t, s.RenderInterleaved(make([]float32, 3)))
}

func TestLoadMissingEndpointsFallsBackToDry(t *testing.T) {
	t.Parallel()

	s := newTestSession(t)
	_, err := s.LoadJSON([]byte(halfGainDoc))
	require.NoError(t, err)

	res, err := s.Load(graph.Linear(
		graph.Node{ID: "g", Kind: graph.KindGain, Params: graph.GainParams{Gain: -6}},
		graph.NewNode("out", graph.KindOutput),
	), nil)
	require.ErrorIs(t, err, compiler.ErrMissingEndpoints)
	assert.True(t, res.Passed)
	assert.False(t, s.Loaded())
	assert.False(t, s.Router().HasGraph())
	assert.Zero(t, s.Compiler().LiveUnits())

	out := make([]float32, 256)
	require.NoError(t, s.RenderInterleaved(out))
	assert.InDelta(t, 0.5, out[200], 1e-6)

	_, err = s.LoadJSON([]byte(`{"nodes": [`))
	require.ErrorIs(t, err, graph.ErrInvalidJSON)
}

func TestUpdateFeedsExport(t *testing.T) {
	t.Parallel()

	s := newTestSession(t)
	_, err := s.LoadJSON([]byte(halfGainDoc))
	require.NoError(t, err)

	assert.Equal(t, automation.Ramped, s.Update("g", "gain", graph.Number(0)))
	assert.Equal(t, automation.Ignored, s.Update("nope", "gain", graph.Number(0)))

	e, err := s.Export(context.Background(), 20*time.Millisecond, 0)
	require.NoError(t, err)
	assert.Equal(t, 960, e.Clip.Frames())
	assert.InDelta(t, 0.5, e.Clip.Channels[0][500], 1e-9)

	// A reload forgets edits made to the previous graph.
	_, err = s.LoadJSON([]byte(halfGainDoc))
	require.NoError(t, err)

	e, err = s.Export(context.Background(), 20*time.Millisecond, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, e.Clip.Channels[0][500], 1e-4)
}

func TestNewBindsConfiguredDevices(t *testing.T) {
	t.Parallel()

	lb := device.NewLoopback(device.WithOutputSelection())
	lb.AddInput(device.Info{ID: "line", Label: "Line In", Channels: 2}, device.Sine(440, 48000, 0.5))
	lb.AddOutput(device.Info{ID: "phones", Label: "Headphones", Channels: 2})

	settings := config.Default()
	interval := 10.0
	settings.Router.MeterIntervalMs = &interval

	opts := OptionsFrom(settings)
	opts.InputDevice = "line"
	opts.OutputDevice = "phones"
	opts.Backend = lb

	s, err := New(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	assert.Equal(t, "line", s.Router().InputDevice())
	assert.Equal(t, "phones", s.Router().OutputDevice())
	assert.Equal(t, "phones", lb.Selected())
	assert.Equal(t, 10*time.Millisecond, s.MeterInterval())

	require.NoError(t, s.Router().UseLiveInput(context.Background(), ""))
	assert.Equal(t, "line", s.Router().InputDevice())

	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()

	var snaps []router.Snapshot
	require.NoError(t, s.RunMeters(ctx, func(snap router.Snapshot) { snaps = append(snaps, snap) }))
	assert.GreaterOrEqual(t, len(snaps), 2)
}

func TestNewKeepsDefaultOutputWhenMissing(t *testing.T) {
	t.Parallel()

	lb := device.NewLoopback(device.WithOutputSelection())

	opts := OptionsFrom(config.Default())
	opts.OutputDevice = "gone"
	opts.Backend = lb

	s, err := New(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	assert.NotEqual(t, "gone", s.Router().OutputDevice())
}
