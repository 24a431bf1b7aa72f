package engine

import (
	"math"

	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design"
)

// FilterResponse selects the biquad design of a Filter.
type FilterResponse uint8

const (
	Lowpass FilterResponse = iota
	Highpass
	Bandpass
	Notch
)

// filterChunk is how often coefficients are recomputed while a frequency or
// Q ramp is running.
const filterChunk = 32

// Filter is a stereo biquad filter.
type Filter struct {
	Frequency *Param // Hz
	Q         *Param

	sampleRate float64
	response   FilterResponse
	sections   [2]*biquad.Section

	curFreq float64
	curQ    float64
	dirty   bool
}

// NewFilter creates a filter with the given response, frequency and Q.
func NewFilter(c *Context, response FilterResponse, freq, q float64) *Filter {
	f := &Filter{
		Frequency:  c.NewParam(freq, 10, c.sampleRate*0.49),
		Q:          c.NewParam(q, 0.0001, 100),
		sampleRate: c.sampleRate,
		response:   response,
	}

	coeffs := f.design(f.Frequency.value, f.Q.value)
	for ch := range f.sections {
		f.sections[ch] = biquad.NewSection(coeffs)
	}

	f.curFreq, f.curQ = f.Frequency.value, f.Q.value

	return f
}

// SetResponse switches the filter design without a ramp.
func (f *Filter) SetResponse(r FilterResponse) {
	ctx := f.Frequency.ctx
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	if f.response != r {
		f.response = r
		f.dirty = true
	}
}

// Response returns the current filter design.
func (f *Filter) Response() FilterResponse {
	ctx := f.Frequency.ctx
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	return f.response
}

func (f *Filter) Process(buf Buffer) {
	n := buf.Frames()

	for off := 0; off < n; off += filterChunk {
		end := min(off+filterChunk, n)

		freq := f.Frequency.skip(end - off)
		q := f.Q.skip(end - off)

		if f.dirty || freq != f.curFreq || q != f.curQ {
			coeffs := f.design(freq, q)
			for _, s := range f.sections {
				s.Coefficients = coeffs
			}

			f.curFreq, f.curQ, f.dirty = freq, q, false
		}

		f.sections[0].ProcessBlock(buf.L[off:end])
		f.sections[1].ProcessBlock(buf.R[off:end])
	}
}

func (f *Filter) design(freq, q float64) biquad.Coefficients {
	freq = math.Min(freq, f.sampleRate*0.49)

	switch f.response {
	case Highpass:
		return design.Highpass(freq, q, f.sampleRate)
	case Bandpass:
		return design.Bandpass(freq, q, f.sampleRate)
	case Notch:
		return design.Notch(freq, q, f.sampleRate)
	default:
		return design.Lowpass(freq, q, f.sampleRate)
	}
}
