package models

import (
	"time"

	"github.com/google/uuid"
)

// Nightscout event types this bridge emits or queries.
const (
	EventMealBolus       = "Meal Bolus"
	EventCorrectionBolus = "Correction Bolus"
	EventCarbCorrection  = "Carb Correction"
	EventSensorChange    = "Sensor Change"
	EventInsulinChange   = "Insulin Change"
)

// Treatment represents a discrete Nightscout treatment event (insulin dose,
// carb intake, sensor or reservoir change).
type Treatment struct {
	ID        string  `json:"_id,omitempty"`
	UUID      string  `json:"uuid,omitempty"` // client-side identity, set on creation
	EventType string  `json:"eventType"`
	CreatedAt string  `json:"created_at"`
	Insulin   float64 `json:"insulin,omitempty"` // units
	Carbs     float64 `json:"carbs,omitempty"`   // grams
	Notes     string  `json:"notes,omitempty"`
	EnteredBy string  `json:"enteredBy,omitempty"`
	Device    string  `json:"device,omitempty"`
}

// Time returns the time of the treatment, zero if unparseable.
func (t *Treatment) Time() time.Time {
	parsed, err := time.Parse(time.RFC3339, t.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

// HasInsulin returns true if this treatment includes insulin.
func (t *Treatment) HasInsulin() bool {
	return t.Insulin > 0
}

// HasCarbs returns true if this treatment includes carbohydrates.
func (t *Treatment) HasCarbs() bool {
	return t.Carbs > 0
}

func newTreatment(eventType string, at time.Time, device string) *Treatment {
	return &Treatment{
		UUID:      uuid.NewString(),
		EventType: eventType,
		CreatedAt: at.UTC().Format(time.RFC3339),
		EnteredBy: device,
		Device:    device,
	}
}

// NewBolusTreatment builds a correction-bolus event for a scraped dose.
func NewBolusTreatment(amount float64, at time.Time, device string) *Treatment {
	t := newTreatment(EventCorrectionBolus, at, device)
	t.Insulin = amount
	return t
}

// NewCarbTreatment builds a carb-correction event for an OCR-derived meal.
func NewCarbTreatment(grams float64, at time.Time, device string) *Treatment {
	t := newTreatment(EventCarbCorrection, at, device)
	t.Carbs = grams
	return t
}

// NewSensorChangeTreatment marks a sensor insertion at the given time.
func NewSensorChangeTreatment(at time.Time, device, notes string) *Treatment {
	t := newTreatment(EventSensorChange, at, device)
	t.Notes = notes
	return t
}

// NewInsulinChangeTreatment marks a reservoir fill at the given time.
func NewInsulinChangeTreatment(at time.Time, device string) *Treatment {
	return newTreatment(EventInsulinChange, at, device)
}
