package pcm

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/wav"
)

// wavFormatPCM is the WAVE format tag for integer PCM.
const wavFormatPCM = 1

// Encode writes c as a 16-bit little-endian PCM WAVE stream.
func Encode(w io.WriteSeeker, c Clip) error {
	if err := c.check(); err != nil {
		return err
	}

	enc := wav.NewEncoder(w, c.SampleRate, BitDepth, c.NumChannels(), wavFormatPCM)
	if err := enc.Write(c.intBuffer()); err != nil {
		return fmt.Errorf("pcm: write samples: %w", err)
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("pcm: finish container: %w", err)
	}

	return nil
}

// Bytes returns c encoded as a complete WAVE file.
func (c Clip) Bytes() ([]byte, error) {
	var sb seekBuffer
	if err := Encode(&sb, c); err != nil {
		return nil, err
	}

	return sb.Bytes(), nil
}

// WriteFile encodes c into the file at path.
func WriteFile(path string, c Clip) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("pcm: create %s: %w", path, err)
	}

	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("pcm: close %s: %w", path, cerr)
		}
	}()

	return Encode(f, c)
}

// Decode reads an integer PCM WAVE stream. Any bit depth the container
// supports is accepted; samples are scaled to [-1, 1].
func Decode(r io.ReadSeeker) (Clip, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		if err := dec.Err(); err != nil {
			return Clip{}, fmt.Errorf("%w: %w", ErrFormat, err)
		}

		return Clip{}, fmt.Errorf("%w: not a playable wave file", ErrFormat)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Clip{}, fmt.Errorf("pcm: read samples: %w", err)
	}

	return fromIntBuffer(buf, int(dec.SampleBitDepth()))
}

// DecodeBytes decodes a WAVE file held in memory.
func DecodeBytes(data []byte) (Clip, error) {
	return Decode(bytes.NewReader(data))
}

// ReadFile decodes the WAVE file at path.
func ReadFile(path string) (Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return Clip{}, fmt.Errorf("pcm: open %s: %w", path, err)
	}
	defer f.Close()

	return Decode(f)
}

// seekBuffer is an in-memory io.WriteSeeker. The encoder seeks back to
// patch chunk sizes once all samples are written.
type seekBuffer struct {
	buf []byte
	pos int
}

var errNegativeSeek = errors.New("pcm: negative seek position")

func (s *seekBuffer) Write(p []byte) (int, error) {
	if end := s.pos + len(p); end > len(s.buf) {
		s.buf = append(s.buf, make([]byte, end-len(s.buf))...)
	}

	n := copy(s.buf[s.pos:], p)
	s.pos += n

	return n, nil
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var base int64

	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = int64(s.pos)
	case io.SeekEnd:
		base = int64(len(s.buf))
	default:
		return 0, fmt.Errorf("pcm: invalid whence %d", whence)
	}

	next := base + offset
	if next < 0 {
		return 0, errNegativeSeek
	}

	s.pos = int(next)

	return next, nil
}

func (s *seekBuffer) Bytes() []byte { return s.buf }
