package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrcode/nightscout-bridge/internal/models"
)

func readingWithBolus(t *testing.T, amount float64, ageMinutes int) *models.GlucoseReading {
	t.Helper()
	r, err := models.NewGlucoseReading(120, models.UnitMgdl, models.TrendFlat, "test", time.Now())
	require.NoError(t, err)
	r.Bolus = &models.BolusEvent{Amount: amount, AgeMinutes: ageMinutes}
	return r
}

func TestBolusDeduplicator_RepeatedDisplaySuppressed(t *testing.T) {
	d := NewBolusDeduplicator()
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

	first := readingWithBolus(t, 4.5, 5)
	d.Filter(first, now)
	assert.NotNil(t, first.Bolus, "first sighting must pass")

	// Five minutes later the app shows the same bolus, now ten minutes old.
	// Same implied delivery time, same amount: duplicate.
	second := readingWithBolus(t, 4.5, 10)
	d.Filter(second, now.Add(5*time.Minute))
	assert.Nil(t, second.Bolus)
}

func TestBolusDeduplicator_DifferentAmountPasses(t *testing.T) {
	d := NewBolusDeduplicator()
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

	d.Filter(readingWithBolus(t, 4.5, 5), now)

	// Same implied time but a different dose is a distinct event.
	other := readingWithBolus(t, 2.0, 5)
	d.Filter(other, now)
	assert.NotNil(t, other.Bolus)
}

func TestBolusDeduplicator_OutsideWindowPasses(t *testing.T) {
	d := NewBolusDeduplicator()
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

	d.Filter(readingWithBolus(t, 4.5, 5), now)

	// Same dose but delivered an hour later.
	later := readingWithBolus(t, 4.5, 5)
	d.Filter(later, now.Add(time.Hour))
	assert.NotNil(t, later.Bolus)

	// And the new event becomes the remembered one.
	repeat := readingWithBolus(t, 4.5, 6)
	d.Filter(repeat, now.Add(61*time.Minute))
	assert.Nil(t, repeat.Bolus)
}

func TestBolusDeduplicator_NoBolusIsNoop(t *testing.T) {
	d := NewBolusDeduplicator()
	r, err := models.NewGlucoseReading(120, models.UnitMgdl, models.TrendFlat, "test", time.Now())
	require.NoError(t, err)
	d.Filter(r, time.Now())
	assert.Nil(t, r.Bolus)
}

func TestCarbDeduplicator_WideWindow(t *testing.T) {
	d := NewCarbDeduplicator()
	at := time.Date(2024, 6, 10, 18, 30, 0, 0, time.UTC)

	assert.True(t, d.Accept(30, at))
	// Re-OCR of the same marker drifts a few minutes between scans.
	assert.False(t, d.Accept(30, at.Add(10*time.Minute)))
	assert.False(t, d.Accept(30, at.Add(-12*time.Minute)))

	// Same grams well outside the window is a new meal.
	assert.True(t, d.Accept(30, at.Add(45*time.Minute)))

	// Different grams near the original time is a distinct marker.
	assert.True(t, d.Accept(55, at.Add(46*time.Minute)))
}
