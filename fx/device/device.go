// Package device abstracts audio device enumeration, live input capture
// and output selection.
//
// A Backend is the platform seam: the router never talks to hardware
// directly. Every call is fallible and may block, so callers pass a
// context and decide themselves whether to retry.
package device

import (
	"context"
	"errors"

	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/engine"
)

var (
	// ErrPermissionDenied is returned when the user or platform refuses
	// access to a capture device.
	ErrPermissionDenied = errors.New("device: permission denied")
	// ErrNotFound is returned for unknown or removed device ids.
	ErrNotFound = errors.New("device: not found")
	// ErrClosed is returned when reading from a closed stream.
	ErrClosed = errors.New("device: stream closed")
)

// SystemDefault is reported as the active output when the backend cannot
// route to a specific device.
const SystemDefault = "system default"

// Direction tells capture devices from playback devices.
type Direction uint8

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	if d == Output {
		return "output"
	}

	return "input"
}

// Info describes one device.
type Info struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	Direction Direction `json:"direction"`
	Channels  int       `json:"channels"`
	Default   bool      `json:"default"`
}

// Stream delivers captured audio one block at a time.
type Stream interface {
	// Read fills buf with the next frames of audio. Mono devices fill
	// both channels with the same signal.
	Read(buf engine.Buffer) error
	// Channels returns the device's native channel count.
	Channels() int
	Close() error
}

// Sink consumes rendered audio.
type Sink interface {
	Write(buf engine.Buffer) error
}

// Backend enumerates devices and opens capture streams.
type Backend interface {
	Devices(ctx context.Context) ([]Info, error)
	OpenInput(ctx context.Context, id string) (Stream, error)
}

// OutputSelector is implemented by backends that can route playback to a
// chosen output device.
type OutputSelector interface {
	SelectOutput(ctx context.Context, id string) error
}

// Filter returns the devices of d in list order.
func Filter(devices []Info, d Direction) []Info {
	var out []Info

	for _, info := range devices {
		if info.Direction == d {
			out = append(out, info)
		}
	}

	return out
}

// Find returns the device with the given id and direction.
func Find(devices []Info, d Direction, id string) (Info, bool) {
	for _, info := range devices {
		if info.Direction == d && info.ID == id {
			return info, true
		}
	}

	return Info{}, false
}
