// Package models contains data structures used throughout the application
package models

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// mmolPerMgdl is the conversion factor between mg/dL and mmol/L.
const mmolPerMgdl = 18.0182

// Safety bounds for a scraped glucose candidate, applied to the integer
// exactly as the app displays it. Anything outside is treated as a misread
// screen, never clamped.
const (
	MinGlucose = 40
	MaxGlucose = 400
)

// ErrValueOutOfRange is returned when a candidate glucose value fails the
// [MinGlucose, MaxGlucose] safety gate.
var ErrValueOutOfRange = errors.New("glucose value out of safe range")

// Unit is the glucose display unit of the scraped app.
type Unit string

// Supported glucose units
const (
	UnitMgdl  Unit = "mg/dL"
	UnitMmolL Unit = "mmol/L"
)

// Trend is the glucose trend direction, named as Nightscout directions.
type Trend string

// Trend directions
const (
	TrendDoubleUp      Trend = "DoubleUp"
	TrendSingleUp      Trend = "SingleUp"
	TrendFortyFiveUp   Trend = "FortyFiveUp"
	TrendFlat          Trend = "Flat"
	TrendFortyFiveDown Trend = "FortyFiveDown"
	TrendSingleDown    Trend = "SingleDown"
	TrendDoubleDown    Trend = "DoubleDown"
	TrendUnknown       Trend = "NONE"
)

// trendGlyphs maps the arrow characters the app renders (and a few
// two-character fallbacks some layouts use) to trend directions.
// Order matters: longer glyph sequences are listed before their prefixes.
var trendGlyphs = []struct {
	Glyph string
	Trend Trend
}{
	{"⇈", TrendDoubleUp},
	{"↑↑", TrendDoubleUp},
	{"⇊", TrendDoubleDown},
	{"↓↓", TrendDoubleDown},
	{"↗", TrendFortyFiveUp},
	{"↘", TrendFortyFiveDown},
	{"↑", TrendSingleUp},
	{"↓", TrendSingleDown},
	{"→", TrendFlat},
}

// TrendFromGlyph returns the trend for the first known arrow glyph contained
// in s, or (TrendUnknown, false) when s carries no arrow.
func TrendFromGlyph(s string) (Trend, bool) {
	for _, g := range trendGlyphs {
		if strings.Contains(s, g.Glyph) {
			return g.Trend, true
		}
	}
	return TrendUnknown, false
}

// Arrow returns the Unicode arrow character for the trend.
func (t Trend) Arrow() string {
	arrows := map[Trend]string{
		TrendDoubleUp:      "⇈",
		TrendSingleUp:      "↑",
		TrendFortyFiveUp:   "↗",
		TrendFlat:          "→",
		TrendFortyFiveDown: "↘",
		TrendSingleDown:    "↓",
		TrendDoubleDown:    "⇊",
	}
	if arrow, ok := arrows[t]; ok {
		return arrow
	}
	return "-"
}

// NightscoutTrend returns the numeric trend code Nightscout uses (1-7).
func (t Trend) NightscoutTrend() int {
	codes := map[Trend]int{
		TrendDoubleUp:      1,
		TrendSingleUp:      2,
		TrendFortyFiveUp:   3,
		TrendFlat:          4,
		TrendFortyFiveDown: 5,
		TrendSingleDown:    6,
		TrendDoubleDown:    7,
	}
	if code, ok := codes[t]; ok {
		return code
	}
	return 0
}

// BolusEvent is a bolus as displayed by the app: a dose plus how long ago it
// was delivered. Amount and age always come from the same source string.
type BolusEvent struct {
	Amount     float64 `msgpack:"amount"`
	AgeMinutes int     `msgpack:"ageMinutes"`
}

// Time returns the absolute delivery time implied by the elapsed age.
func (b *BolusEvent) Time(now time.Time) time.Time {
	return now.Add(-time.Duration(b.AgeMinutes) * time.Minute)
}

// GlucoseReading is one validated observation scraped from the app's main
// screen, optionally enriched with fields from the detail dialog. Instances
// only exist if the value passed the range gate in NewGlucoseReading.
type GlucoseReading struct {
	Value      int       `msgpack:"value"` // device units as displayed
	Unit       Unit      `msgpack:"unit"`
	Trend      Trend     `msgpack:"trend"`
	Device     string    `msgpack:"device"`
	CapturedAt time.Time `msgpack:"capturedAt"`

	// Detail dialog enrichments, nil when not observed this cycle.
	ActiveInsulin    *float64    `msgpack:"activeInsulin,omitempty"`    // units
	BasalRate        *float64    `msgpack:"basalRate,omitempty"`        // units/hour
	Reservoir        *float64    `msgpack:"reservoir,omitempty"`        // units
	PumpBattery      *int        `msgpack:"pumpBattery,omitempty"`      // percent
	GlucoseTarget    *float64    `msgpack:"glucoseTarget,omitempty"`    // device units
	InsulinToday     *float64    `msgpack:"insulinToday,omitempty"`     // units
	InsulinYesterday *float64    `msgpack:"insulinYesterday,omitempty"` // units
	Bolus            *BolusEvent `msgpack:"bolus,omitempty"`
	PumpConnAge      *int        `msgpack:"pumpConnAge,omitempty"`   // minutes
	SensorDataAge    *int        `msgpack:"sensorDataAge,omitempty"` // minutes
}

// NewGlucoseReading constructs a reading, enforcing the safety invariant:
// the displayed value must be a strictly positive integer in [40, 400],
// regardless of unit. This is the only place the range check lives; callers
// that fail here must treat the cycle as "no reading", never fall back to a
// partial value.
func NewGlucoseReading(value int, unit Unit, trend Trend, device string, capturedAt time.Time) (*GlucoseReading, error) {
	if unit != UnitMgdl && unit != UnitMmolL {
		return nil, fmt.Errorf("unknown unit %q", unit)
	}
	if value < MinGlucose || value > MaxGlucose {
		return nil, fmt.Errorf("value %d %s: %w", value, unit, ErrValueOutOfRange)
	}
	return &GlucoseReading{
		Value:      value,
		Unit:       unit,
		Trend:      trend,
		Device:     device,
		CapturedAt: capturedAt,
	}, nil
}

// ValueMgdl returns the glucose value in mg/dL.
func (r *GlucoseReading) ValueMgdl() int {
	if r.Unit == UnitMmolL {
		return int(math.Round(float64(r.Value) * mmolPerMgdl))
	}
	return r.Value
}

// ValueMmolL returns the glucose value in mmol/L.
func (r *GlucoseReading) ValueMmolL() float64 {
	if r.Unit == UnitMmolL {
		return float64(r.Value)
	}
	return float64(r.Value) / mmolPerMgdl
}

// MgdlToMmol converts a mg/dL value to mmol/L.
func MgdlToMmol(mgdl float64) float64 {
	return mgdl / mmolPerMgdl
}

// MmolToMgdl converts a mmol/L value to mg/dL.
func MmolToMgdl(mmol float64) float64 {
	return mmol * mmolPerMgdl
}
