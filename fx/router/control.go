package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/device"
	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/engine"
	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/pcm"
)

// PlayFile makes a decoded clip the active source.
func (r *Router) PlayFile(clip pcm.Clip, loop bool) (*FileSource, error) {
	if clip.Frames() == 0 {
		return nil, pcm.ErrEmptyClip
	}

	src := newFileSource(clip, r.ctx.SampleRate(), loop)
	if err := r.activate(src); err != nil {
		return nil, err
	}

	return src, nil
}

// PlayTestTone makes a 440 Hz sine the active source.
func (r *Router) PlayTestTone() error {
	return r.activate(newToneSource(r.ctx, SourceTestTone, engine.OscSine, TestToneHz, testToneLevel))
}

// PlayTone makes a tone generator the active source. Its frequency and
// level stay adjustable through the returned source.
func (r *Router) PlayTone(wave engine.OscWave, freq, level float64) (*ToneSource, error) {
	src := newToneSource(r.ctx, SourceTone, wave, freq, level)
	if err := r.activate(src); err != nil {
		return nil, err
	}

	return src, nil
}

// UseLiveInput opens a capture device and makes it the active source. An
// empty id picks the input chosen with SetInputDevice, then the default
// input, then the first one listed. If the device
// cannot be opened the previous source keeps playing.
func (r *Router) UseLiveInput(ctx context.Context, id string) error {
	id, stream, err := r.openInput(ctx, id)
	if err != nil {
		return err
	}

	if err := r.activate(newLiveInput(r.log, id, stream)); err != nil {
		_ = stream.Close()
		return err
	}

	r.mu.Lock()
	r.inputDevice = id
	r.mu.Unlock()

	return nil
}

// SetInputDevice selects the capture device. While live input is the active
// source the stream is swapped without interrupting the graph.
func (r *Router) SetInputDevice(ctx context.Context, id string) error {
	r.mu.Lock()
	live, ok := r.source.(*LiveInput)
	if !ok {
		r.inputDevice = id
		r.mu.Unlock()

		return nil
	}
	r.mu.Unlock()

	id, stream, err := r.openInput(ctx, id)
	if err != nil {
		return err
	}

	if old := live.swap(id, stream); old != nil {
		if err := old.Close(); err != nil {
			r.log.Warn("previous input did not close", slog.Any("error", err))
		}
	}

	r.mu.Lock()
	r.inputDevice = id
	r.mu.Unlock()

	r.log.Info("input device switched", slog.String("device", id))

	return nil
}

// InputDevice returns the selected capture device id.
func (r *Router) InputDevice() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.inputDevice
}

// SetOutputDevice routes playback to the output with the given id and
// returns the active output. Backends that cannot route leave playback on
// the system default and report device.SystemDefault.
func (r *Router) SetOutputDevice(ctx context.Context, id string) (string, error) {
	sel, ok := r.backend.(device.OutputSelector)
	if !ok {
		return device.SystemDefault, nil
	}

	err := sel.SelectOutput(ctx, id)
	if errors.Is(err, errors.ErrUnsupported) {
		r.log.Debug("output selection unsupported; using system default")
		return device.SystemDefault, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err != nil {
		return r.outputDevice, fmt.Errorf("router: select output: %w", err)
	}

	r.outputDevice = id

	return id, nil
}

// OutputDevice returns the active output id.
func (r *Router) OutputDevice() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.outputDevice
}

// RefreshDevices enumerates the backend's devices and caches the list. It
// blocks until the backend answers or ctx is done.
func (r *Router) RefreshDevices(ctx context.Context) ([]device.Info, error) {
	if r.backend == nil {
		return nil, nil
	}

	list, err := r.backend.Devices(ctx)
	if err != nil {
		return nil, fmt.Errorf("router: list devices: %w", err)
	}

	r.mu.Lock()
	r.devices = list
	r.mu.Unlock()

	return append([]device.Info(nil), list...), nil
}

// Devices returns the list cached by the last RefreshDevices.
func (r *Router) Devices() []device.Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]device.Info(nil), r.devices...)
}

// Source returns the active source, or nil.
func (r *Router) Source() Source {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.source
}

// ActiveSource returns the kind of the active source.
func (r *Router) ActiveSource() SourceKind {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.source == nil {
		return SourceNone
	}

	return r.source.Kind()
}

// StopSource stops and removes the active source.
func (r *Router) StopSource() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.stopSourceLocked()
}

func (r *Router) openInput(ctx context.Context, id string) (string, device.Stream, error) {
	if r.backend == nil {
		return "", nil, ErrNoInputDevice
	}

	if id == "" {
		r.mu.Lock()
		id = r.inputDevice
		r.mu.Unlock()
	}

	if id == "" {
		list, err := r.RefreshDevices(ctx)
		if err != nil {
			return "", nil, err
		}

		inputs := device.Filter(list, device.Input)
		if len(inputs) == 0 {
			return "", nil, ErrNoInputDevice
		}

		id = inputs[0].ID
		for _, in := range inputs {
			if in.Default {
				id = in.ID
				break
			}
		}
	}

	stream, err := r.backend.OpenInput(ctx, id)
	if err != nil {
		return "", nil, fmt.Errorf("router: open input %q: %w", id, err)
	}

	return id, stream, nil
}

// activate tears down the current source, then connects src to the input
// tap.
func (r *Router) activate(src Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}

	if err := r.stopSourceLocked(); err != nil {
		r.log.Warn("previous source did not stop cleanly", slog.Any("error", err))
	}

	n := r.ctx.NewNode("source:"+src.Kind().String(), src)
	if err := n.Connect(r.path.inTap); err != nil {
		n.Dispose()
		return fmt.Errorf("router: connect source: %w", err)
	}

	r.source = src
	r.sourceNode = n
	r.log.Info("source started", slog.String("source", src.Kind().String()))

	return nil
}

func (r *Router) stopSourceLocked() error {
	if r.source == nil {
		return nil
	}

	r.sourceNode.Dispose()
	err := r.source.Stop()

	r.log.Info("source stopped", slog.String("source", r.source.Kind().String()))
	r.source, r.sourceNode = nil, nil

	return err
}
