package router

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/automation"
	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/compiler"
	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/engine"
	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/graph"
	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/pcm"
)

// DefaultExportDuration is the length of an export of a generated source
// when none is requested.
const DefaultExportDuration = 5 * time.Second

const exportChunkBlocks = 64

// ExportOptions describes an offline render of the current source.
type ExportOptions struct {
	// Definition is compiled into the offline path. A definition without
	// nodes exports the source unprocessed.
	Definition graph.Definition
	// Snapshot holds live edits replayed onto the offline graph.
	Snapshot automation.Snapshot
	// Duration is the length to render. Zero renders a file source to its
	// end and a generated source for DefaultExportDuration.
	Duration time.Duration
	// Tail is rendered after the source ends, for delay and reverb decay.
	Tail time.Duration
}

// Export is an offline render.
type Export struct {
	ID   uuid.UUID
	Clip pcm.Clip
}

// Export renders the active source through a fresh build of opts.Definition
// in a private context. The live context is not touched, so playback keeps
// running while the export renders on the caller's goroutine.
func (r *Router) Export(ctx context.Context, opts ExportOptions) (Export, error) {
	r.mu.Lock()
	src := r.source
	bypassed := r.bypassed
	r.mu.Unlock()

	if src == nil {
		return Export{}, ErrNoSource
	}

	offline, err := engine.NewContext(r.ctx.SampleRate(), r.ctx.BlockSize())
	if err != nil {
		return Export{}, fmt.Errorf("router: export: %w", err)
	}
	defer offline.Close()

	copySrc, err := src.offline(offline)
	if err != nil {
		return Export{}, err
	}

	p, err := newPath(offline, 1)
	if err != nil {
		return Export{}, err
	}

	p.bypass(bypassed, 0)
	p.masterGain.Gain.Set(r.Volume())

	if err := offline.NewNode("source", copySrc).Connect(p.inTap); err != nil {
		return Export{}, fmt.Errorf("router: export: %w", err)
	}

	if len(opts.Definition.Nodes) > 0 {
		c := compiler.New(offline, compiler.WithLogger(r.log))

		ep, err := c.Build(opts.Definition)
		if err != nil {
			return Export{}, fmt.Errorf("router: export: %w", err)
		}

		automation.New(c, automation.WithLogger(r.log)).Apply(opts.Snapshot)

		if err := p.splice(ep); err != nil {
			return Export{}, err
		}
	}

	frames := exportFrames(copySrc, opts, offline.SampleRate())
	out := engine.NewBuffer(frames)
	chunk := exportChunkBlocks * offline.BlockSize()

	for off := 0; off < frames; off += chunk {
		if err := ctx.Err(); err != nil {
			return Export{}, err
		}

		if err := offline.Render(p.output, out.Slice(off, min(frames, off+chunk))); err != nil {
			return Export{}, fmt.Errorf("router: export: %w", err)
		}
	}

	clip, err := clipOf(out, offline.SampleRate(), copySrc.Channels())
	if err != nil {
		return Export{}, err
	}

	e := Export{ID: uuid.New(), Clip: clip}
	r.log.Info("export rendered", slog.String("id", e.ID.String()),
		slog.String("source", copySrc.Kind().String()), slog.Duration("length", clip.Duration()))

	return e, nil
}

func exportFrames(src Source, opts ExportOptions, sampleRate float64) int {
	d := opts.Duration
	if d <= 0 {
		d = DefaultExportDuration
		if f, ok := src.(*FileSource); ok {
			d = f.Clip().Duration()
		}
	}

	return int(math.Round((d + max(0, opts.Tail)).Seconds() * sampleRate))
}
