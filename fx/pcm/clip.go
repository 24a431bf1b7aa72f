// Package pcm packages rendered audio into 16-bit RIFF/WAVE containers.
package pcm

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-audio/audio"

	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/engine"
)

// BitDepth is the sample width of every encoded clip.
const BitDepth = 16

var (
	// ErrEmptyClip is returned when encoding a clip without frames.
	ErrEmptyClip = errors.New("pcm: clip has no frames")
	// ErrFormat is returned for clips or files with an unusable format.
	ErrFormat = errors.New("pcm: unsupported format")
)

// Clip is planar floating-point audio with its format.
type Clip struct {
	SampleRate int
	// Channels holds one slice per channel, all of equal length.
	Channels [][]float64
}

// FromBuffer copies the first channels of buf (1 or 2) into a clip.
func FromBuffer(buf engine.Buffer, sampleRate float64, channels int) (Clip, error) {
	if channels < 1 || channels > 2 {
		return Clip{}, fmt.Errorf("%w: %d channels", ErrFormat, channels)
	}

	clip := Clip{SampleRate: int(math.Round(sampleRate))}
	for ch := range channels {
		clip.Channels = append(clip.Channels, append([]float64(nil), buf.Channel(ch)...))
	}

	return clip, nil
}

// NumChannels returns the channel count.
func (c Clip) NumChannels() int { return len(c.Channels) }

// Frames returns the number of samples per channel.
func (c Clip) Frames() int {
	if len(c.Channels) == 0 {
		return 0
	}

	return len(c.Channels[0])
}

// Duration returns the playing time of the clip.
func (c Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}

	return time.Duration(float64(c.Frames()) / float64(c.SampleRate) * float64(time.Second))
}

// Buffer returns the clip as a stereo engine buffer. Mono clips are copied
// to both channels.
func (c Clip) Buffer() engine.Buffer {
	buf := engine.NewBuffer(c.Frames())
	if len(c.Channels) == 0 {
		return buf
	}

	copy(buf.L, c.Channels[0])

	if len(c.Channels) > 1 {
		copy(buf.R, c.Channels[1])
	} else {
		copy(buf.R, c.Channels[0])
	}

	return buf
}

// Peak returns the largest absolute sample value across channels.
func (c Clip) Peak() float64 {
	var peak float64

	for _, ch := range c.Channels {
		for _, v := range ch {
			peak = math.Max(peak, math.Abs(v))
		}
	}

	return peak
}

func (c Clip) check() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrFormat, c.SampleRate)
	}

	if len(c.Channels) == 0 {
		return fmt.Errorf("%w: no channels", ErrFormat)
	}

	n := len(c.Channels[0])
	for i, ch := range c.Channels {
		if len(ch) != n {
			return fmt.Errorf("%w: channel %d has %d frames, want %d", ErrFormat, i, len(ch), n)
		}
	}

	if n == 0 {
		return ErrEmptyClip
	}

	return nil
}

// intBuffer interleaves and quantizes the clip to 16-bit integers.
func (c Clip) intBuffer() *audio.IntBuffer {
	chans := len(c.Channels)
	frames := c.Frames()
	data := make([]int, frames*chans)

	for i := range frames {
		for ch := range chans {
			data[i*chans+ch] = quantize(c.Channels[ch][i])
		}
	}

	return &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: chans, SampleRate: c.SampleRate},
		Data:           data,
		SourceBitDepth: BitDepth,
	}
}

func quantize(v float64) int {
	if math.IsNaN(v) {
		return 0
	}

	v = math.Max(-1, math.Min(1, v))

	return int(math.Round(v * math.MaxInt16))
}

// fromIntBuffer converts decoded integer samples back to planar floats.
func fromIntBuffer(buf *audio.IntBuffer, bitDepth int) (Clip, error) {
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 {
		return Clip{}, fmt.Errorf("%w: missing format", ErrFormat)
	}

	var (
		scale  float64
		offset int
	)

	switch bitDepth {
	case 8:
		scale, offset = 127, 128
	case 16:
		scale = math.MaxInt16
	case 24:
		scale = 1<<23 - 1
	case 32:
		scale = math.MaxInt32
	default:
		return Clip{}, fmt.Errorf("%w: %d-bit samples", ErrFormat, bitDepth)
	}

	chans := buf.Format.NumChannels
	frames := len(buf.Data) / chans

	clip := Clip{SampleRate: buf.Format.SampleRate, Channels: make([][]float64, chans)}
	for ch := range clip.Channels {
		clip.Channels[ch] = make([]float64, frames)
	}

	for i := range frames {
		for ch := range chans {
			clip.Channels[ch][i] = float64(buf.Data[i*chans+ch]-offset) / scale
		}
	}

	return clip, nil
}
