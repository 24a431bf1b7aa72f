package meter

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-dsp/dsp/core"
	"github.com/cwbudde/algo-dsp/dsp/window"
	algofft "github.com/cwbudde/algo-fft"
	vecmath "github.com/cwbudde/algo-vecmath"
)

// Display range of band magnitudes, in dBFS. Values at or below MinDB map
// to 0 and values at or above MaxDB map to 1.
const (
	MinDB = -100.0
	MaxDB = -30.0

	lowestBandHz = 20.0
	eps          = 1e-12
)

// ErrFFTSize is returned for FFT sizes that are not a power of two in
// [32, 32768].
var ErrFFTSize = errors.New("meter: fft size must be a power of two between 32 and 32768")

// Analyzer reduces the newest block of a signal to a few log-spaced band
// magnitudes. It keeps smoothing state between calls and is not safe for
// concurrent use.
type Analyzer struct {
	size       int
	sampleRate float64
	smoothing  float64

	plan       *algofft.Plan[complex128]
	win        []float64
	windowGain float64

	frame []float64
	in    []complex128
	out   []complex128
	re    []float64
	im    []float64
	mag   []float64

	edges  []int
	bands  []float64
	primed bool
}

// NewAnalyzer creates an analyzer with a periodic Hann window. smoothing in
// [0, 0.95] blends each snapshot with the previous one.
func NewAnalyzer(fftSize, bands int, sampleRate, smoothing float64) (*Analyzer, error) {
	if fftSize < 32 || fftSize > 32768 || fftSize&(fftSize-1) != 0 {
		return nil, fmt.Errorf("%w: %d", ErrFFTSize, fftSize)
	}

	if bands < 1 {
		return nil, fmt.Errorf("meter: band count %d must be positive", bands)
	}

	if sampleRate <= 0 {
		return nil, fmt.Errorf("meter: sample rate %g must be positive", sampleRate)
	}

	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return nil, fmt.Errorf("meter: fft plan: %w", err)
	}

	win := window.Generate(window.TypeHann, fftSize, window.WithPeriodic())

	var sum float64
	for _, w := range win {
		sum += w
	}

	bins := fftSize/2 + 1

	a := &Analyzer{
		size:       fftSize,
		sampleRate: sampleRate,
		smoothing:  core.Clamp(smoothing, 0, 0.95),
		plan:       plan,
		win:        win,
		windowGain: sum / float64(fftSize),
		frame:      make([]float64, fftSize),
		in:         make([]complex128, fftSize),
		out:        make([]complex128, fftSize),
		re:         make([]float64, bins),
		im:         make([]float64, bins),
		mag:        make([]float64, bins),
		bands:      make([]float64, bands),
	}
	a.edges = bandEdges(bands, bins, fftSize, sampleRate)

	return a, nil
}

// Size returns the number of samples one analysis consumes.
func (a *Analyzer) Size() int { return a.size }

// Bands returns the number of bands per snapshot.
func (a *Analyzer) Bands() int { return len(a.bands) }

// Analyze computes band magnitudes in 0..1 from the last Size samples of x
// (zero-padded at the front when x is shorter) and returns a fresh slice.
func (a *Analyzer) Analyze(x []float64) []float64 {
	clear(a.frame)

	if len(x) > a.size {
		x = x[len(x)-a.size:]
	}

	copy(a.frame[a.size-len(x):], x)
	vecmath.MulBlockInPlace(a.frame, a.win)

	for i, v := range a.frame {
		a.in[i] = complex(v, 0)
	}

	if err := a.plan.Forward(a.out, a.in); err != nil {
		return make([]float64, len(a.bands))
	}

	last := len(a.mag) - 1
	for k := range a.mag {
		a.re[k] = real(a.out[k])
		a.im[k] = imag(a.out[k])
	}

	vecmath.Magnitude(a.mag, a.re, a.im)

	norm := float64(a.size) * math.Max(a.windowGain, eps)
	for k := range a.mag {
		a.mag[k] /= norm
		if k > 0 && k < last {
			a.mag[k] *= 2
		}
	}

	for b := range a.bands {
		lo, hi := a.edges[b], a.edges[b+1]

		var peak float64
		for k := lo; k < hi; k++ {
			peak = math.Max(peak, a.mag[k])
		}

		db := 20 * math.Log10(math.Max(eps, peak))
		v := core.Clamp((db-MinDB)/(MaxDB-MinDB), 0, 1)

		if a.primed {
			v = a.smoothing*a.bands[b] + (1-a.smoothing)*v
		}

		a.bands[b] = v
	}

	a.primed = true

	return append([]float64(nil), a.bands...)
}

// Reset drops the smoothing history.
func (a *Analyzer) Reset() {
	clear(a.bands)
	a.primed = false
}

// BandCenter returns the geometric center frequency of band b in Hz.
func (a *Analyzer) BandCenter(b int) float64 {
	binHz := a.sampleRate / float64(a.size)
	lo := float64(a.edges[b]) * binHz
	hi := float64(a.edges[b+1]-1) * binHz

	return math.Sqrt(math.Max(lo, binHz) * math.Max(hi, binHz))
}

// bandEdges splits bins [1, bins) into n log-spaced ranges from 20 Hz to
// Nyquist. Every band covers at least one bin; edges are strictly
// increasing where the resolution allows it.
func bandEdges(n, bins, size int, sampleRate float64) []int {
	edges := make([]int, n+1)
	binHz := sampleRate / float64(size)
	nyquist := sampleRate / 2
	lo := math.Min(lowestBandHz, nyquist/2)

	edges[0] = 1
	for b := 1; b < n; b++ {
		f := lo * math.Pow(nyquist/lo, float64(b)/float64(n))
		k := int(math.Round(f / binHz))
		edges[b] = max(edges[b-1]+1, k)
	}

	edges[n] = bins

	for b := n - 1; b >= 0; b-- {
		if edges[b] >= edges[b+1] {
			edges[b] = max(0, edges[b+1]-1)
		}
	}

	return edges
}
