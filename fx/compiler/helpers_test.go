package compiler

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"

	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/engine"
	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/graph"
)

// logBuffer collects text log output safely across goroutines.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (l *logBuffer) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.buf.Write(p)
}

func (l *logBuffer) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.buf.String()
}

func newTestCompiler(t *testing.T) (*Compiler, *logBuffer) {
	t.Helper()

	ctx, err := engine.NewContext(48000, 128)
	if err != nil {
		t.Fatalf("NewContext() error = %v", err)
	}

	t.Cleanup(ctx.Close)

	logs := &logBuffer{}
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	return New(ctx, WithLogger(logger)), logs
}

func node(id string, kind graph.Kind, params graph.Params) graph.Node {
	if params == nil {
		return graph.NewNode(id, kind)
	}

	return graph.Node{ID: id, Kind: kind, Params: params}
}

func delayChain(time, feedback, mix float64) graph.Definition {
	return graph.Linear(
		node("in", graph.KindInput, nil),
		node("d1", graph.KindDelay, graph.DelayParams{Time: time, Feedback: feedback, Mix: mix}),
		node("out", graph.KindOutput, nil),
	)
}
