package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mrcode/nightscout-bridge/internal/screen"
)

func menu(texts ...string) *screen.Node {
	root := &screen.Node{Role: "android.widget.ScrollView"}
	for _, s := range texts {
		root.Children = append(root.Children, &screen.Node{Text: s})
	}
	return root
}

func newMenuExtractor() *AgeMenuExtractor {
	return NewAgeMenuExtractor(zap.NewNop())
}

func TestParseHumanDuration_Compact(t *testing.T) {
	d, ok := ParseHumanDuration("5d 6h 58min")
	require.True(t, ok)

	wantMs := int64(5*86400000 + 6*3600000 + 58*60000)
	assert.Equal(t, wantMs, d.Milliseconds())
}

func TestParseHumanDuration_VerboseLanguagesAgree(t *testing.T) {
	variants := []string{
		"5 days 6 hours",
		"5 Tage 6 Stunden",
		"5 jours 6 heures",
	}

	want := 5*24*time.Hour + 6*time.Hour
	for _, v := range variants {
		d, ok := ParseHumanDuration(v)
		require.True(t, ok, "variant %q did not parse", v)
		assert.Equal(t, want, d, "variant %q", v)
	}
}

func TestParseHumanDuration_Cascade(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Duration
		ok   bool
	}{
		{"Bare minutes", "58 minutes", 58 * time.Minute, true},
		{"German minutes", "12 Minuten", 12 * time.Minute, true},
		{"Hours with minutes", "6 hours 5 minutes", 6*time.Hour + 5*time.Minute, true},
		{"Compact hours", "6h 5min", 6*time.Hour + 5*time.Minute, true},
		{"Single day", "1 Tag", 24 * time.Hour, true},
		{"French day", "1 jour", 24 * time.Hour, true},
		{"Unparseable", "soon", 0, false},
		{"Empty", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := ParseHumanDuration(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, d)
			}
		})
	}
}

func TestAgeMenu_SensorAndInsulin(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	info := newMenuExtractor().Extract(menu(
		"Dexcom G6",
		"SN 8ABC12",
		"Inserted since",
		"5d 6h 58min",
		"Session end",
		"4 days 18 hours",
		"Filled since",
		"2 days 3 hours",
	), now)

	require.NotNil(t, info.Sensor)
	assert.Equal(t, "SN 8ABC12", info.Sensor.Name)
	assert.Equal(t, now.Add(-(5*24*time.Hour + 6*time.Hour + 58*time.Minute)), info.Sensor.StartedAt)
	require.NotNil(t, info.Sensor.EndsAt)
	assert.Equal(t, now.Add(4*24*time.Hour+18*time.Hour), *info.Sensor.EndsAt)
	assert.Equal(t, "5d 6h 58min", info.Sensor.DurationText)

	require.NotNil(t, info.Insulin)
	assert.Equal(t, now.Add(-(2*24*time.Hour + 3*time.Hour)), info.Insulin.FilledAt)
}

func TestAgeMenu_LocalizedLabels(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

	info := newMenuExtractor().Extract(menu(
		"Eingesetzt seit", "3 Tage 4 Stunden",
		"Gefüllt seit", "30 Minuten",
	), now)

	require.NotNil(t, info.Sensor)
	assert.Equal(t, now.Add(-(3*24*time.Hour + 4*time.Hour)), info.Sensor.StartedAt)
	require.NotNil(t, info.Insulin)
	assert.Equal(t, now.Add(-30*time.Minute), info.Insulin.FilledAt)

	info = newMenuExtractor().Extract(menu(
		"Insérée depuis", "2 jours 1 heure",
		"Rempli depuis", "5 heures",
	), now)

	require.NotNil(t, info.Sensor)
	assert.Equal(t, now.Add(-(2*24*time.Hour + time.Hour)), info.Sensor.StartedAt)
	require.NotNil(t, info.Insulin)
	assert.Equal(t, now.Add(-5*time.Hour), info.Insulin.FilledAt)
}

func TestAgeMenu_SessionEndOnlyKeepsRawString(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	info := newMenuExtractor().Extract(menu(
		"Session end",
		"4 days 18 hours",
	), now)

	require.NotNil(t, info.Sensor)
	require.NotNil(t, info.Sensor.EndsAt)
	assert.Equal(t, now.Add(4*24*time.Hour+18*time.Hour), *info.Sensor.EndsAt)
	assert.Equal(t, "4 days 18 hours", info.Sensor.DurationText)
}

func TestAgeMenu_ValueFailsAllPatterns(t *testing.T) {
	info := newMenuExtractor().Extract(menu("Inserted since", "???"), time.Now())
	assert.Nil(t, info.Sensor)
}

func TestAgeMenu_LabelWithoutValue(t *testing.T) {
	info := newMenuExtractor().Extract(menu("Filled since"), time.Now())
	assert.Nil(t, info.Insulin)
}

func TestAgeMenu_BrandFollowedBySinceLabelIsNotAName(t *testing.T) {
	now := time.Now()
	info := newMenuExtractor().Extract(menu(
		"Dexcom G6",
		"Inserted since",
		"2 days",
	), now)

	require.NotNil(t, info.Sensor)
	assert.Empty(t, info.Sensor.Name)
}

func TestAgeMenu_EmptyMenu(t *testing.T) {
	info := newMenuExtractor().Extract(menu("Settings", "About"), time.Now())
	assert.Nil(t, info.Sensor)
	assert.Nil(t, info.Insulin)
}
