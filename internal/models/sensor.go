package models

import "time"

// SensorInfo describes the currently worn glucose sensor as read from the
// app's navigation menu. A new instance supersedes the previous one each
// age-check cycle; instances are never merged.
type SensorInfo struct {
	Name         string     // serial/name annotation, empty if not shown
	StartedAt    time.Time  // now - observed wear duration
	EndsAt       *time.Time // now + remaining session duration, nil if not shown
	DurationText string     // raw source string, kept for diagnostics
}

// InsulinInfo describes the reservoir fill as read from the app's menu.
type InsulinInfo struct {
	FilledAt     time.Time // now - observed fill age
	DurationText string
}

// GraphTreatment is a treatment recovered from the OCR'd graph view. It is
// ephemeral: produced per OCR pass, consumed by deduplication, then either
// uploaded as a treatment event or discarded.
type GraphTreatment struct {
	Insulin *float64  // units
	Carbs   *float64  // grams
	Time    time.Time // interpolated from graph position
}

// HasInsulin returns true if this treatment carries an insulin dose.
func (t *GraphTreatment) HasInsulin() bool {
	return t.Insulin != nil && *t.Insulin > 0
}

// HasCarbs returns true if this treatment carries carbohydrates.
func (t *GraphTreatment) HasCarbs() bool {
	return t.Carbs != nil && *t.Carbs > 0
}

// HasBoth returns true if this treatment carries both insulin and carbs.
func (t *GraphTreatment) HasBoth() bool {
	return t.HasInsulin() && t.HasCarbs()
}

// TimeLabel is a time-axis label recognized on the graph view, scoped to a
// single OCR interpolation pass.
type TimeLabel struct {
	Hour   int
	Minute int
	X      int // horizontal pixel center
}

// MinuteOfDay returns the label's minute offset from midnight.
func (l TimeLabel) MinuteOfDay() int {
	return l.Hour*60 + l.Minute
}
