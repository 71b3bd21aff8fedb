// Package stats summarizes recent accepted readings for periodic log output.
package stats

import (
	"math"

	"github.com/mrcode/nightscout-bridge/internal/models"
)

// Summary aggregates a window of readings. Percentages are of the reading
// count, not of wall time; with a fixed polling cadence the two track each
// other closely.
type Summary struct {
	Count          int
	MeanMgdl       float64
	TimeInRangePct float64
	LowPct         float64
	HighPct        float64
}

// Summarize computes glucose statistics over the readings against the
// [lowMgdl, highMgdl] target range. An empty slice yields a zero Summary.
func Summarize(readings []*models.GlucoseReading, lowMgdl, highMgdl int) Summary {
	s := Summary{Count: len(readings)}
	if s.Count == 0 {
		return s
	}

	sum := 0
	low, high := 0, 0
	for _, r := range readings {
		v := r.ValueMgdl()
		sum += v
		switch {
		case v < lowMgdl:
			low++
		case v > highMgdl:
			high++
		}
	}

	n := float64(s.Count)
	s.MeanMgdl = round1(float64(sum) / n)
	s.LowPct = round1(float64(low) / n * 100)
	s.HighPct = round1(float64(high) / n * 100)
	s.TimeInRangePct = round1(float64(s.Count-low-high) / n * 100)
	return s
}

// Delta returns the mg/dL change between the two most recent readings in a
// chronologically ordered slice, and false with fewer than two readings.
func Delta(readings []*models.GlucoseReading) (int, bool) {
	if len(readings) < 2 {
		return 0, false
	}
	last := readings[len(readings)-1]
	prev := readings[len(readings)-2]
	return last.ValueMgdl() - prev.ValueMgdl(), true
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
