// Package meter turns tapped audio into display-ready level and spectrum
// snapshots.
package meter

import (
	"math"

	"github.com/cwbudde/algo-dsp/dsp/core"
	vecmath "github.com/cwbudde/algo-vecmath"
)

// FloorDB is the level reported for silence.
const FloorDB = -100.0

// Level is one meter reading: the level in dBFS and the same level as a
// linear amplitude clamped to 0..1 for display.
type Level struct {
	DB         float64 `json:"db"`
	Normalized float64 `json:"normalized"`
}

// FromLinear converts a linear amplitude into a Level.
func FromLinear(amp float64) Level {
	amp = math.Abs(amp)
	if amp == 0 || math.IsNaN(amp) {
		return Level{DB: FloorDB}
	}

	db := math.Max(FloorDB, core.LinearToDB(amp))

	return FromDB(db)
}

// FromDB converts a dBFS reading into a Level.
func FromDB(db float64) Level {
	if math.IsNaN(db) || db <= FloorDB {
		return Level{DB: FloorDB}
	}

	return Level{DB: db, Normalized: core.Clamp(core.DBToLinear(db), 0, 1)}
}

// Measure returns the peak and RMS amplitude of x.
func Measure(x []float64) (peak, rms float64) {
	if len(x) == 0 {
		return 0, 0
	}

	peak = vecmath.MaxAbs(x)
	rms = math.Sqrt(vecmath.DotProduct(x, x) / float64(len(x)))

	return peak, rms
}
