// Package dedup suppresses repeat emission of events the app re-displays
// across polling cycles, and reconciles locally derived sensor/reservoir
// ages against the remote store.
//
// All state here is single-writer: only the polling cycle mutates it, and
// cycles never overlap, so no locking is needed.
package dedup

import (
	"time"

	"github.com/mrcode/nightscout-bridge/internal/models"
)

const (
	// bolusWindow matches the precision of the dialog's explicit
	// elapsed-minutes field.
	bolusWindow = 2 * time.Minute
	// carbWindow is much wider: graph-position interpolation is far coarser
	// than an elapsed-minutes readout.
	carbWindow = 30 * time.Minute
)

// BolusDeduplicator remembers the last accepted bolus. The device keeps
// re-displaying the same historical bolus until a new one occurs, and
// amount + time proximity is the only identity available — no persistent
// event ID is exposed.
type BolusDeduplicator struct {
	window     time.Duration
	lastAmount float64
	lastTime   time.Time
	seen       bool
}

// NewBolusDeduplicator creates a deduplicator with the default window.
func NewBolusDeduplicator() *BolusDeduplicator {
	return &BolusDeduplicator{window: bolusWindow}
}

// Filter strips the bolus fields from the reading when they repeat the last
// accepted event; otherwise the event becomes the new remembered one.
// Duplicate means exactly equal amount and implied delivery times within the
// window.
func (d *BolusDeduplicator) Filter(r *models.GlucoseReading, now time.Time) {
	if r.Bolus == nil {
		return
	}
	at := r.Bolus.Time(now)
	if d.seen && r.Bolus.Amount == d.lastAmount && absDuration(at.Sub(d.lastTime)) < d.window {
		r.Bolus = nil
		return
	}
	d.lastAmount = r.Bolus.Amount
	d.lastTime = at
	d.seen = true
}

// CarbDeduplicator is the graph-OCR analogue of BolusDeduplicator, keyed on
// grams within a wide time window.
type CarbDeduplicator struct {
	window    time.Duration
	lastGrams float64
	lastTime  time.Time
	seen      bool
}

// NewCarbDeduplicator creates a deduplicator with the default window.
func NewCarbDeduplicator() *CarbDeduplicator {
	return &CarbDeduplicator{window: carbWindow}
}

// Accept returns true when the carb event is new; a true result updates the
// remembered event.
func (d *CarbDeduplicator) Accept(grams float64, at time.Time) bool {
	if d.seen && grams == d.lastGrams && absDuration(at.Sub(d.lastTime)) < d.window {
		return false
	}
	d.lastGrams = grams
	d.lastTime = at
	d.seen = true
	return true
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
