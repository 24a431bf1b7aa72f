// Command promptfx checks an effect document and renders audio through it.
//
// Usage:
//
//	promptfx [flags] effect.json
//
// Without -out it prints the validation report only. With -out it renders
// the chosen source through the effect and writes a 16-bit WAV file.
//
// Examples:
//
//	promptfx effect.json
//	promptfx -controls effect.json
//	promptfx -in dry.wav -out wet.wav effect.json
//	promptfx -tone 220 -wave saw -duration 3s -set d1.feedback=0.4 -out tone.wav effect.json
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/automation"
	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/engine"
	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/graph"
	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/meter"
	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/pcm"
	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/session"
	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/validate"
	"github.com/Snow-Parrot-Labs/PromptFX-sub000/internal/config"
	"github.com/Snow-Parrot-Labs/PromptFX-sub000/internal/logging"
)

var waves = map[string]engine.OscWave{
	"sine":     engine.OscSine,
	"square":   engine.OscSquare,
	"saw":      engine.OscSawtooth,
	"triangle": engine.OscTriangle,
}

// edits collects repeated -set node.param=value flags.
type edits []string

func (e *edits) String() string { return strings.Join(*e, ",") }

func (e *edits) Set(v string) error {
	if !strings.Contains(v, ".") || !strings.Contains(v, "=") {
		return fmt.Errorf("expected node.param=value, got %q", v)
	}

	*e = append(*e, v)

	return nil
}

type options struct {
	configPath string
	in         string
	out        string
	tone       float64
	wave       string
	level      float64
	duration   time.Duration
	tail       time.Duration
	bypass     bool
	controls   bool
	asJSON     bool
	strict     bool
	levels     bool
	set        edits
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("promptfx", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var o options
	fs.StringVar(&o.configPath, "config", "", "settings file (default $"+config.EnvPath+" or "+config.DefaultPath+")")
	fs.StringVar(&o.in, "in", "", "WAV file to play through the effect")
	fs.StringVar(&o.out, "out", "", "write the rendered effect to this WAV file")
	fs.Float64Var(&o.tone, "tone", 0, "use a tone generator at this frequency in Hz instead of -in")
	fs.StringVar(&o.wave, "wave", "sine", "tone generator waveform: sine, square, saw, triangle")
	fs.Float64Var(&o.level, "level", 0.5, "tone generator level, 0..1")
	fs.DurationVar(&o.duration, "duration", 0, "render length (default: the input file, or 5s for tones)")
	fs.DurationVar(&o.tail, "tail", -1, "extra render time after the source ends (default from settings)")
	fs.BoolVar(&o.bypass, "bypass", false, "render the dry signal")
	fs.BoolVar(&o.controls, "controls", false, "list the document's panel controls")
	fs.BoolVar(&o.asJSON, "json", false, "print the validation report as JSON")
	fs.BoolVar(&o.strict, "strict", false, "exit with status 2 when validation reports warnings")
	fs.BoolVar(&o.levels, "levels", false, "with -out, print the peak level of every meter interval")
	fs.Var(&o.set, "set", "parameter edit node.param=value before rendering (repeatable)")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: promptfx [flags] effect.json\n\n")
		fmt.Fprintf(stderr, "Validates an effect document and optionally renders audio through it.\n\n")
		fmt.Fprintf(stderr, "Flags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  promptfx effect.json\n")
		fmt.Fprintf(stderr, "  promptfx -in dry.wav -out wet.wav effect.json\n")
		fmt.Fprintf(stderr, "  promptfx -tone 220 -wave saw -set d1.feedback=0.4 -out tone.wav effect.json\n")
	}

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}

	settings, err := config.Load(o.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	log, closeLog, err := newLogger(settings, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	defer closeLog()

	if err := execute(fs.Arg(0), o, settings, log, stdout); err != nil {
		if errors.Is(err, errStrict) {
			return 2
		}

		fmt.Fprintf(stderr, "error: %v\n", err)

		return 1
	}

	return 0
}

var errStrict = errors.New("validation reported warnings")

func newLogger(s config.Settings, fallback io.Writer) (*slog.Logger, func(), error) {
	level, err := logging.ParseLevel(*s.Logging.Level)
	if err != nil {
		return nil, nil, err
	}

	w := fallback
	closeFn := func() {}

	if *s.Logging.Output != "stderr" {
		out, c, err := logging.Output(*s.Logging.Output)
		if err != nil {
			return nil, nil, err
		}

		w, closeFn = out, func() { _ = c() }
	}

	return logging.New(w, *s.Logging.Format, level), closeFn, nil
}

func execute(path string, o options, settings config.Settings, log *slog.Logger, stdout io.Writer) error {
	doc, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	ctx := context.Background()

	opts := session.OptionsFrom(settings)
	opts.Logger = log

	s, err := session.New(ctx, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	res, loadErr := s.LoadJSON(doc)
	if errors.Is(loadErr, graph.ErrInvalidJSON) {
		return loadErr
	}

	if err := printReport(stdout, res, o.asJSON); err != nil {
		return err
	}

	if o.controls {
		controls, err := graph.ParseControls(doc)
		if err != nil {
			return err
		}

		printControls(stdout, controls)
	}

	if loadErr != nil {
		return loadErr
	}

	if o.out != "" {
		if err := render(ctx, s, o, settings, log, stdout); err != nil {
			return err
		}
	}

	if o.strict && !res.Passed {
		return errStrict
	}

	return nil
}

func render(ctx context.Context, s *session.Session, o options, settings config.Settings, log *slog.Logger, stdout io.Writer) error {
	r := s.Router()

	switch {
	case o.in != "":
		clip, err := pcm.ReadFile(o.in)
		if err != nil {
			return err
		}

		if _, err := r.PlayFile(clip, false); err != nil {
			return err
		}
	case o.tone > 0:
		wave, ok := waves[strings.ToLower(o.wave)]
		if !ok {
			return fmt.Errorf("unknown waveform %q", o.wave)
		}

		if _, err := r.PlayTone(wave, o.tone, o.level); err != nil {
			return err
		}
	default:
		if err := r.PlayTestTone(); err != nil {
			return err
		}
	}

	for _, e := range o.set {
		nodeID, param, v := parseEdit(e)
		if out := s.Update(nodeID, param, v); out == automation.Ignored {
			log.Warn("edit ignored", slog.String("edit", e))
		}
	}

	r.Bypass(o.bypass)

	tail := o.tail
	if tail < 0 {
		tail = settings.Router.ExportTail()
	}

	e, err := s.Export(ctx, o.duration, tail)
	if err != nil {
		return err
	}

	if err := pcm.WriteFile(o.out, e.Clip); err != nil {
		return err
	}

	peak := meter.FromLinear(e.Clip.Peak())

	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "\nWrote\t%s\n", o.out)
	fmt.Fprintf(tw, "Export\t%s\n", e.ID)
	fmt.Fprintf(tw, "Length\t%s\n", e.Clip.Duration().Round(time.Millisecond))
	fmt.Fprintf(tw, "Channels\t%d\n", e.Clip.NumChannels())
	fmt.Fprintf(tw, "Peak\t%.1f dBFS\n", peak.DB)

	if err := tw.Flush(); err != nil {
		return err
	}

	if o.levels {
		return printLevels(stdout, e.Clip, s.MeterInterval())
	}

	return nil
}

// printLevels prints the peak of every interval-long window of the clip,
// the reading a live meter polled at that interval would show.
func printLevels(w io.Writer, clip pcm.Clip, interval time.Duration) error {
	step := max(1, int(math.Round(interval.Seconds()*float64(clip.SampleRate))))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "\nTime\tPeak dBFS\n")
	fmt.Fprintf(tw, "----\t---------\n")

	for start := 0; start < clip.Frames(); start += step {
		end := min(clip.Frames(), start+step)

		var peak float64
		for _, ch := range clip.Channels {
			p, _ := meter.Measure(ch[start:end])
			peak = max(peak, p)
		}

		at := time.Duration(float64(start) / float64(clip.SampleRate) * float64(time.Second))
		fmt.Fprintf(tw, "%s\t%.1f\n", at.Round(time.Millisecond), meter.FromLinear(peak).DB)
	}

	return tw.Flush()
}

// parseEdit splits node.param=value. Values that parse as numbers are sent
// as numbers, everything else as text.
func parseEdit(e string) (string, string, graph.Value) {
	target, raw, _ := strings.Cut(e, "=")
	nodeID, param, _ := strings.Cut(target, ".")

	if f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
		return nodeID, param, graph.Number(f)
	}

	return nodeID, param, graph.Text(raw)
}

func printReport(w io.Writer, res validate.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(res)
	}

	status := "passed"
	if !res.Passed {
		status = "warnings"
	}

	fmt.Fprintf(w, "Validation: %s\n", status)

	for _, m := range res.Warnings {
		fmt.Fprintf(w, "  warning:    %s\n", m)
	}

	for _, m := range res.Suggestions {
		fmt.Fprintf(w, "  suggestion: %s\n", m)
	}

	return nil
}

func printControls(w io.Writer, controls []graph.Control) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "\nID\tType\tLabel\tTarget\n")
	fmt.Fprintf(tw, "--\t----\t-----\t------\n")

	for _, c := range controls {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s.%s\n", c.ID, c.Kind, c.Label, c.NodeID, c.Param)
	}

	tw.Flush()
}
