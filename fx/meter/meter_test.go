package meter

import (
	"errors"
	"math"
	"testing"

	"github.com/Snow-Parrot-Labs/PromptFX-sub000/internal/testutil"
)

func TestLevelConversions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		amp      float64
		wantDB   float64
		wantNorm float64
	}{
		{"full scale", 1, 0, 1},
		{"half", 0.5, -6.0206, 0.5},
		{"negative amplitude", -0.5, -6.0206, 0.5},
		{"silence", 0, FloorDB, 0},
		{"below floor", 1e-9, FloorDB, 0},
		{"over full scale", 2, 6.0206, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := FromLinear(tt.amp)
			testutil.RequireNear(t, "db", got.DB, tt.wantDB, 1e-3)
			testutil.RequireNear(t, "normalized", got.Normalized, tt.wantNorm, 1e-9)
		})
	}

	if got := FromDB(math.NaN()); got.DB != FloorDB || got.Normalized != 0 {
		t.Fatalf("FromDB(NaN) = %+v, want floor", got)
	}
}

func TestMeasure(t *testing.T) {
	t.Parallel()

	peak, rms := Measure(testutil.DC(-0.5, 64))
	testutil.RequireNear(t, "peak", peak, 0.5, 1e-12)
	testutil.RequireNear(t, "rms", rms, 0.5, 1e-12)

	peak, rms = Measure(testutil.Sine(1000, 48000, 1, 4800))
	testutil.RequireNear(t, "sine rms", rms, 1/math.Sqrt2, 1e-3)
	testutil.RequireNear(t, "sine peak", peak, 1, 1e-3)

	if p, r := Measure(nil); p != 0 || r != 0 {
		t.Fatalf("Measure(nil) = %v, %v", p, r)
	}
}

func TestAnalyzerFindsToneBand(t *testing.T) {
	t.Parallel()

	a, err := NewAnalyzer(2048, 16, 48000, 0)
	if err != nil {
		t.Fatalf("NewAnalyzer() error = %v", err)
	}

	bands := a.Analyze(testutil.Sine(1000, 48000, 0.5, 4096))
	if len(bands) != 16 {
		t.Fatalf("len(bands) = %d, want 16", len(bands))
	}

	best := 0
	for i, v := range bands {
		if v < 0 || v > 1 {
			t.Fatalf("band %d = %v outside 0..1", i, v)
		}

		if v > bands[best] {
			best = i
		}
	}

	toneBin := int(math.Round(1000 / (48000.0 / 2048)))
	if toneBin < a.edges[best] || toneBin >= a.edges[best+1] {
		t.Fatalf("loudest band %d covers bins [%d,%d), want bin %d", best, a.edges[best], a.edges[best+1], toneBin)
	}

	if bands[best] < 0.99 {
		t.Fatalf("tone band = %v, want near 1", bands[best])
	}

	if c := a.BandCenter(best); c < 500 || c > 2000 {
		t.Fatalf("BandCenter(%d) = %v Hz, want near 1 kHz", best, c)
	}
}

func TestAnalyzerSilenceAndSmoothing(t *testing.T) {
	t.Parallel()

	a, err := NewAnalyzer(1024, 8, 48000, 0.5)
	if err != nil {
		t.Fatalf("NewAnalyzer() error = %v", err)
	}

	tone := a.Analyze(testutil.Sine(2000, 48000, 0.5, 1024))
	decay := a.Analyze(make([]float64, 1024))

	for i := range tone {
		testutil.RequireNear(t, "smoothed band", decay[i], tone[i]*0.5, 1e-9)
	}

	a.Reset()

	for i, v := range a.Analyze(make([]float64, 10)) {
		if v != 0 {
			t.Fatalf("silent band %d = %v, want 0", i, v)
		}
	}
}

func TestAnalyzerEdgesAreOrdered(t *testing.T) {
	t.Parallel()

	a, err := NewAnalyzer(256, 32, 44100, 0)
	if err != nil {
		t.Fatalf("NewAnalyzer() error = %v", err)
	}

	for b := 0; b < a.Bands(); b++ {
		if a.edges[b] >= a.edges[b+1] {
			t.Fatalf("band %d is empty: [%d,%d)", b, a.edges[b], a.edges[b+1])
		}
	}

	if a.edges[a.Bands()] != a.Size()/2+1 {
		t.Fatalf("last edge = %d, want %d", a.edges[a.Bands()], a.Size()/2+1)
	}
}

func TestNewAnalyzerRejectsBadSizes(t *testing.T) {
	t.Parallel()

	if _, err := NewAnalyzer(1000, 8, 48000, 0); !errors.Is(err, ErrFFTSize) {
		t.Fatalf("NewAnalyzer(1000) error = %v, want ErrFFTSize", err)
	}

	if _, err := NewAnalyzer(1024, 0, 48000, 0); err == nil {
		t.Fatal("NewAnalyzer with zero bands should fail")
	}
}
