package device

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/engine"
)

func TestLoopbackEnumeratesAndOpens(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := NewLoopback()
	l.AddInput(Info{ID: "mic", Label: "Mic"}, Sine(1000, 48000, 0.5))
	l.AddInput(Info{ID: "line", Label: "Line In", Channels: 2}, nil)

	devices, err := l.Devices(ctx)
	require.NoError(t, err)
	require.Len(t, Filter(devices, Input), 2)
	require.Len(t, Filter(devices, Output), 1)

	mic, ok := Find(devices, Input, "mic")
	require.True(t, ok)
	assert.Equal(t, 1, mic.Channels)

	s, err := l.OpenInput(ctx, "mic")
	require.NoError(t, err)
	assert.Equal(t, 1, l.OpenStreams())

	buf := engine.NewBuffer(64)
	require.NoError(t, s.Read(buf))
	assert.Equal(t, buf.L, buf.R)
	assert.InDelta(t, 0, buf.L[0], 1e-12)
	assert.Greater(t, buf.L[5], 0.0)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 0, l.OpenStreams())
	assert.ErrorIs(t, s.Read(buf), ErrClosed)

	silent, err := l.OpenInput(ctx, "line")
	require.NoError(t, err)
	buf.L[0] = 1
	require.NoError(t, silent.Read(buf))
	assert.InDelta(t, 0, buf.L[0], 0)
}

func TestLoopbackFailures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := NewLoopback()
	l.AddInput(Info{ID: "mic"}, Sine(440, 48000, 0.1))

	_, err := l.OpenInput(ctx, "nope")
	require.ErrorIs(t, err, ErrNotFound)

	l.Deny(true)
	_, err = l.OpenInput(ctx, "mic")
	require.ErrorIs(t, err, ErrPermissionDenied)
	l.Deny(false)

	s, err := l.OpenInput(ctx, "mic")
	require.NoError(t, err)

	l.Remove("mic")
	require.ErrorIs(t, s.Read(engine.NewBuffer(8)), ErrNotFound)

	devices, err := l.Devices(ctx)
	require.NoError(t, err)
	assert.Empty(t, Filter(devices, Input))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = l.Devices(cancelled)
	require.ErrorIs(t, err, context.Canceled)
}

func TestLoopbackOutputSelection(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	plain := NewLoopback()
	require.True(t, errors.Is(plain.SelectOutput(ctx, "loopback-out"), errors.ErrUnsupported))

	l := NewLoopback(WithOutputSelection())
	l.AddOutput(Info{ID: "phones", Label: "Headphones", Channels: 2})

	require.NoError(t, l.SelectOutput(ctx, "phones"))
	assert.Equal(t, "phones", l.Selected())
	require.ErrorIs(t, l.SelectOutput(ctx, "gone"), ErrNotFound)
}

func TestCaptureSink(t *testing.T) {
	t.Parallel()

	var c Capture

	buf := engine.NewBuffer(4)
	buf.L[0], buf.R[3] = 1, -1

	require.NoError(t, c.Write(buf))
	require.NoError(t, c.Write(buf))

	got := c.Buffer()
	assert.Equal(t, 8, c.Frames())
	assert.InDelta(t, 1, got.L[4], 0)
	assert.InDelta(t, -1, got.R[7], 0)
}
