//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"syscall/js"

	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/engine"
	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/graph"
	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/router"
	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/session"
	"github.com/Snow-Parrot-Labs/PromptFX-sub000/internal/config"
)

var (
	fx         *session.Session
	funcs      []js.Func
	stopMeters context.CancelFunc
)

var waves = map[string]engine.OscWave{
	"sine":     engine.OscSine,
	"square":   engine.OscSquare,
	"sawtooth": engine.OscSawtooth,
	"triangle": engine.OscTriangle,
}

func main() {
	api := js.Global().Get("Object").New()
	api.Set("init", export(func(args []js.Value) any {
		opts := session.OptionsFrom(config.Default())
		if len(args) > 0 {
			opts.SampleRate = args[0].Float()
		}

		if fx != nil {
			cancelMeters()
			_ = fx.Close()
		}

		s, err := session.New(context.Background(), opts)
		if err != nil {
			return err.Error()
		}
		fx = s
		return js.Null()
	}))

	// loadEffect returns the validation report as JSON, or an object with an
	// error field when the document could not be built.
	api.Set("loadEffect", export(func(args []js.Value) any {
		if fx == nil || len(args) < 1 {
			return js.Null()
		}
		res, err := fx.LoadJSON([]byte(args[0].String()))
		out := map[string]any{"report": res}
		if err != nil {
			out["error"] = err.Error()
		}
		return toJSON(out)
	}))

	api.Set("update", export(func(args []js.Value) any {
		if fx == nil || len(args) < 3 {
			return js.Null()
		}
		v := args[2]
		var val graph.Value
		if v.Type() == js.TypeNumber {
			val = graph.Number(v.Float())
		} else {
			val = graph.Text(v.String())
		}
		return fx.Update(args[0].String(), args[1].String(), val).String()
	}))

	api.Set("bypass", export(func(args []js.Value) any {
		if fx == nil || len(args) < 1 {
			return js.Null()
		}
		fx.Router().Bypass(args[0].Bool())
		return js.Null()
	}))

	api.Set("setVolume", export(func(args []js.Value) any {
		if fx == nil || len(args) < 1 {
			return js.Null()
		}
		fx.Router().SetVolume(args[0].Float())
		return js.Null()
	}))

	api.Set("playTestTone", export(func(args []js.Value) any {
		if fx == nil {
			return js.Null()
		}
		if err := fx.Router().PlayTestTone(); err != nil {
			return err.Error()
		}
		return js.Null()
	}))

	api.Set("playTone", export(func(args []js.Value) any {
		if fx == nil || len(args) < 3 {
			return js.Null()
		}
		wave, ok := waves[args[0].String()]
		if !ok {
			return "unknown waveform " + args[0].String()
		}
		if _, err := fx.Router().PlayTone(wave, args[1].Float(), args[2].Float()); err != nil {
			return err.Error()
		}
		return js.Null()
	}))

	api.Set("stopSource", export(func(args []js.Value) any {
		if fx != nil {
			_ = fx.Router().StopSource()
		}
		return js.Null()
	}))

	api.Set("render", export(func(args []js.Value) any {
		if fx == nil || len(args) < 1 {
			return js.Global().Get("Float32Array").New(0)
		}
		n := args[0].Int() &^ 1
		buf := make([]float32, n)
		if err := fx.RenderInterleaved(buf); err != nil {
			return js.Global().Get("Float32Array").New(0)
		}
		arr := js.Global().Get("Float32Array").New(n)
		for i := 0; i < n; i++ {
			arr.SetIndex(i, buf[i])
		}
		return arr
	}))

	api.Set("meters", export(func(args []js.Value) any {
		if fx == nil {
			return js.Null()
		}
		return toJSON(fx.Router().Meters())
	}))

	// startMeters calls back with a JSON snapshot every meter interval until
	// stopMeters. Starting again replaces the previous callback.
	api.Set("startMeters", export(func(args []js.Value) any {
		if fx == nil || len(args) < 1 || args[0].Type() != js.TypeFunction {
			return js.Null()
		}
		cancelMeters()
		cb := args[0]
		ctx, cancel := context.WithCancel(context.Background())
		stopMeters = cancel
		go func(s *session.Session) {
			_ = s.RunMeters(ctx, func(snap router.Snapshot) {
				cb.Invoke(toJSON(snap))
			})
		}(fx)
		return fx.MeterInterval().Milliseconds()
	}))

	api.Set("stopMeters", export(func(args []js.Value) any {
		cancelMeters()
		return js.Null()
	}))

	api.Set("startRecording", export(func(args []js.Value) any {
		if fx == nil {
			return js.Null()
		}
		id, err := fx.Router().StartRecording()
		if err != nil {
			return err.Error()
		}
		return id.String()
	}))

	// stopRecording returns the take as WAV bytes.
	api.Set("stopRecording", export(func(args []js.Value) any {
		if fx == nil {
			return js.Null()
		}
		rec, err := fx.Router().StopRecording()
		if err != nil {
			return err.Error()
		}
		data, err := rec.Clip.Bytes()
		if err != nil {
			return err.Error()
		}
		arr := js.Global().Get("Uint8Array").New(len(data))
		js.CopyBytesToJS(arr, data)
		return arr
	}))

	js.Global().Set("PromptFX", api)
	select {}
}

func cancelMeters() {
	if stopMeters != nil {
		stopMeters()
		stopMeters = nil
	}
}

func toJSON(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return js.Null()
	}
	return string(data)
}

func export(fn func([]js.Value) any) js.Func {
	f := js.FuncOf(func(_ js.Value, args []js.Value) any {
		return fn(args)
	})
	funcs = append(funcs, f)
	return f
}
