package router

import (
	"context"
	"time"

	"github.com/Snow-Parrot-Labs/PromptFX-sub000/fx/meter"
)

// DefaultMeterInterval is the metering poll period used when RunMeters is
// given none.
const DefaultMeterInterval = 50 * time.Millisecond

// Snapshot is one metering reading.
type Snapshot struct {
	Input    meter.Level `json:"input"`
	Output   meter.Level `json:"output"`
	Spectrum []float64   `json:"spectrum"`
	At       time.Time   `json:"at"`
}

// Meters reads the taps: peak levels since the previous reading and the
// output spectrum over the most recent samples.
func (r *Router) Meters() Snapshot {
	inPeak, _ := r.path.inMeter.Levels()
	outPeak, _ := r.path.outMeter.Levels()

	r.meterMu.Lock()
	defer r.meterMu.Unlock()

	r.path.outMeter.Latest(r.latest)

	return Snapshot{
		Input:    meter.FromLinear(inPeak),
		Output:   meter.FromLinear(outPeak),
		Spectrum: r.analyzer.Analyze(r.latest),
		At:       time.Now(),
	}
}

// RunMeters calls fn with a fresh Snapshot every interval until ctx is
// done. It runs independently of rendering; call it on its own goroutine.
func (r *Router) RunMeters(ctx context.Context, interval time.Duration, fn func(Snapshot)) error {
	if interval <= 0 {
		interval = DefaultMeterInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			fn(r.Meters())
		}
	}
}
