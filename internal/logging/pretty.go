package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

const (
	ansiReset      = "\x1b[0m"
	ansiRed        = "\x1b[31m"
	ansiYellow     = "\x1b[33m"
	ansiBlue       = "\x1b[34m"
	ansiMagenta    = "\x1b[35m"
	ansiBrightGray = "\x1b[90m"
)

const attrPadding = "                    "

// PrettyHandler writes one human readable line per record followed by its
// attributes as a tree. Colors are used only when writing to a terminal.
type PrettyHandler struct {
	mu    *sync.Mutex
	w     io.Writer
	level slog.Leveler
	color bool

	attrs  []slog.Attr
	groups []string
}

// NewPrettyHandler creates a handler writing to w.
func NewPrettyHandler(w io.Writer, level slog.Leveler) *PrettyHandler {
	return &PrettyHandler{
		mu:    &sync.Mutex{},
		w:     w,
		level: level,
		color: isTerminal(w),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return term.IsTerminal(int(f.Fd()))
}

func (h *PrettyHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr(nil), h.attrs...), h.qualify(attrs)...)

	return &next
}

func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}

	next := *h
	next.groups = append(append([]string(nil), h.groups...), name)

	return &next
}

func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder

	if !r.Time.IsZero() {
		b.WriteString(r.Time.Format("2006/01/02 15:04:05"))
		b.WriteByte(' ')
	}

	tag, color := levelTag(r.Level)
	h.paint(&b, color, tag)
	b.WriteByte(' ')
	b.WriteString(r.Message)
	b.WriteByte('\n')

	attrs := append([]slog.Attr(nil), h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, h.qualify([]slog.Attr{a})...)
		return true
	})

	h.tree(&b, attrs, attrPadding)

	h.mu.Lock()
	defer h.mu.Unlock()

	_, err := io.WriteString(h.w, b.String())

	return err
}

// qualify prefixes attribute keys with the open groups.
func (h *PrettyHandler) qualify(attrs []slog.Attr) []slog.Attr {
	if len(h.groups) == 0 {
		return attrs
	}

	prefix := strings.Join(h.groups, ".") + "."
	out := make([]slog.Attr, len(attrs))

	for i, a := range attrs {
		out[i] = slog.Attr{Key: prefix + a.Key, Value: a.Value}
	}

	return out
}

func (h *PrettyHandler) tree(b *strings.Builder, attrs []slog.Attr, padding string) {
	kept := attrs[:0:0]
	for _, a := range attrs {
		if !a.Equal(slog.Attr{}) {
			kept = append(kept, a)
		}
	}

	for i, a := range kept {
		last := i == len(kept)-1

		b.WriteString(padding)
		if last {
			b.WriteString("└─ ")
		} else {
			b.WriteString("├─ ")
		}

		v := a.Value.Resolve()
		if v.Kind() == slog.KindGroup {
			h.paint(b, ansiBrightGray, a.Key)
			b.WriteByte('\n')

			child := padding + "│   "
			if last {
				child = padding + "    "
			}

			h.tree(b, v.Group(), child)

			continue
		}

		h.paint(b, ansiBrightGray, a.Key+":")
		b.WriteByte(' ')

		if err, ok := v.Any().(error); ok {
			h.paint(b, ansiRed, err.Error())
		} else {
			fmt.Fprint(b, v.Any())
		}

		b.WriteByte('\n')
	}
}

func (h *PrettyHandler) paint(b *strings.Builder, color, s string) {
	if !h.color {
		b.WriteString(s)
		return
	}

	b.WriteString(color)
	b.WriteString(s)
	b.WriteString(ansiReset)
}

func levelTag(l slog.Level) (string, string) {
	switch {
	case l >= slog.LevelError:
		return "ERR", ansiRed
	case l >= slog.LevelWarn:
		return "WRN", ansiYellow
	case l >= slog.LevelInfo:
		return "INF", ansiBlue
	default:
		return "DBG", ansiMagenta
	}
}
