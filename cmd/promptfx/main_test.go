package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/graph"
	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/pcm"
	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/validate"
)

const echoDoc = `{
	"nodes": [
		{"id": "in", "type": "input"},
		{"id": "d1", "type": "delay", "params": {"time": 120, "feedback": %s, "mix": 0.3}},
		{"id": "out", "type": "output"}
	],
	"connections": [
		{"from": {"nodeId": "in"}, "to": {"nodeId": "d1"}},
		{"from": {"nodeId": "d1"}, "to": {"nodeId": "out"}}
	],
	"controls": [
		{"id": "k1", "type": "knob", "label": "Feedback", "nodeId": "d1", "param": "feedback"}
	]
}`

type fixture struct {
	dir    string
	config string
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	dir := t.TempDir()
	cfg := filepath.Join(dir, "settings.json")
	require.NoError(t, os.WriteFile(cfg, []byte(`{"logging": {"level": "error"}}`), 0o600))

	return fixture{dir: dir, config: cfg}
}

func (f fixture) write(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(f.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func (f fixture) run(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer

	code := run(append([]string{"-config", f.config}, args...), &stdout, &stderr)

	return code, stdout.String(), stderr.String()
}

func echo(feedback string) string {
	return strings.Replace(echoDoc, "%s", feedback, 1)
}

func TestValidateOnly(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	doc := f.write(t, "fx.json", echo("0.4"))

	code, out, _ := f.run(doc)
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "Validation: passed")

	code, out, _ = f.run("-controls", doc)
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "k1")
	assert.Contains(t, out, "d1.feedback")
}

func TestStrictFailsOnWarnings(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	doc := f.write(t, "fx.json", echo("0.9"))

	code, out, _ := f.run("-json", doc)
	assert.Equal(t, 0, code)

	var res validate.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.False(t, res.Passed)
	assert.NotEmpty(t, res.Warnings)

	code, _, _ = f.run("-strict", doc)
	assert.Equal(t, 2, code)
}

func TestRenderTone(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	doc := f.write(t, "fx.json", echo("0.4"))
	out := filepath.Join(f.dir, "tone.wav")

	code, stdout, stderr := f.run("-tone", "220", "-wave", "square", "-duration", "100ms", "-tail", "50ms",
		"-set", "d1.mix=0", "-out", out, doc)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Wrote")

	clip, err := pcm.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, 1, clip.NumChannels())
	assert.Equal(t, 48000, clip.SampleRate)
	assert.Equal(t, 7200, clip.Frames())
	assert.InDelta(t, 0.5, clip.Peak(), 0.01)
}

func TestRenderPrintsLevelsPerMeterInterval(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	cfg := f.write(t, "meters.json", `{"logging": {"level": "error"}, "router": {"meterIntervalMs": 25}}`)
	doc := f.write(t, "fx.json", echo("0.4"))
	out := filepath.Join(f.dir, "tone.wav")

	var stdout, stderr bytes.Buffer
	code := run([]string{"-config", cfg, "-tone", "220", "-duration", "100ms", "-tail", "0s", "-levels", "-out", out, doc},
		&stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	assert.Contains(t, stdout.String(), "Peak dBFS")
	for _, at := range []string{"0s", "25ms", "50ms", "75ms"} {
		assert.Contains(t, stdout.String(), "\n"+at+" ")
	}
	assert.NotContains(t, stdout.String(), "\n100ms ")
}

func TestRenderFileKeepsChannels(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	doc := f.write(t, "fx.json", echo("0.4"))

	in := pcm.Clip{SampleRate: 48000, Channels: [][]float64{make([]float64, 2400), make([]float64, 2400)}}
	in.Channels[0][0] = 0.5
	inPath := filepath.Join(f.dir, "dry.wav")
	require.NoError(t, pcm.WriteFile(inPath, in))

	out := filepath.Join(f.dir, "wet.wav")
	code, _, stderr := f.run("-in", inPath, "-tail", "0s", "-bypass", "-out", out, doc)
	require.Equal(t, 0, code, stderr)

	clip, err := pcm.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, 2, clip.NumChannels())
	assert.Equal(t, 2400, clip.Frames())
	assert.InDelta(t, 0.5, clip.Channels[0][0], 1e-3)
}

func TestErrors(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	code, _, _ := f.run()
	assert.Equal(t, 2, code)

	code, _, _ = f.run("-set", "nodot", "x.json")
	assert.Equal(t, 2, code)

	noInput := f.write(t, "bad.json", `{"nodes": [{"id": "out", "type": "output"}], "connections": []}`)
	code, out, stderr := f.run(noInput)
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "Validation:")
	assert.Contains(t, stderr, "Effect definition must have input and output nodes")

	broken := f.write(t, "broken.json", `{"nodes": [`)
	code, _, stderr = f.run(broken)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "error:")

	code, _, stderr = f.run("-tone", "100", "-wave", "noise", "-out", filepath.Join(f.dir, "x.wav"), f.write(t, "ok.json", echo("0.4")))
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "unknown waveform")
}

func TestParseEdit(t *testing.T) {
	t.Parallel()

	node, param, v := parseEdit("d1.feedback=0.4")
	assert.Equal(t, "d1", node)
	assert.Equal(t, "feedback", param)
	assert.Equal(t, graph.Number(0.4), v)

	_, param, v = parseEdit("t.shape=square")
	assert.Equal(t, "shape", param)
	assert.Equal(t, graph.Text("square"), v)
}
