package extract

import (
	"time"

	"go.uber.org/zap"

	"github.com/mrcode/nightscout-bridge/internal/models"
	"github.com/mrcode/nightscout-bridge/internal/screen"
)

// Menu label keywords per field, covering the three shipped locales. Labels
// and their values are separate UI elements rendered adjacently; the value
// is always the immediately following string in document order.
var (
	insertedLabels   = []string{"inserted", "eingesetzt", "insér"}
	filledLabels     = []string{"filled", "gefüllt", "gefuellt", "rempli"}
	sessionEndLabels = []string{"session end", "sitzungsende", "fin de session"}
	sinceKeywords    = []string{"since", "seit", "depuis"}
	sensorBrands     = []string{"dexcom", "libre", "guardian", "simplera"}
)

// MenuInfo is the result of one age-check pass. Both parts are independently
// optional; a new pass supersedes the previous result entirely.
type MenuInfo struct {
	Sensor  *models.SensorInfo
	Insulin *models.InsulinInfo
}

// AgeMenuExtractor reads sensor-insertion and reservoir-fill durations from
// the app's navigation menu.
type AgeMenuExtractor struct {
	log *zap.Logger
}

// NewAgeMenuExtractor creates an age menu extractor.
func NewAgeMenuExtractor(log *zap.Logger) *AgeMenuExtractor {
	return &AgeMenuExtractor{log: log}
}

// Extract scans the menu tree. A field stays nil when its label was never
// found or the adjacent value failed every duration pattern.
func (e *AgeMenuExtractor) Extract(root *screen.Node, now time.Time) MenuInfo {
	texts := screen.CollectText(root)
	var info MenuInfo

	for i, s := range texts {
		switch {
		case containsAny(s, insertedLabels):
			value, ok := valueAfter(texts, i)
			if !ok {
				continue
			}
			d, ok := ParseHumanDuration(value)
			if !ok {
				e.log.Debug("sensor age value did not parse", zap.String("value", value))
				continue
			}
			if info.Sensor == nil {
				info.Sensor = &models.SensorInfo{}
			}
			info.Sensor.StartedAt = now.Add(-d)
			info.Sensor.DurationText = value

		case containsAny(s, sessionEndLabels):
			value, ok := valueAfter(texts, i)
			if !ok {
				continue
			}
			d, ok := ParseHumanDuration(value)
			if !ok {
				continue
			}
			if info.Sensor == nil {
				info.Sensor = &models.SensorInfo{}
			}
			end := now.Add(d)
			info.Sensor.EndsAt = &end
			// The insertion-age string is the primary diagnostic record;
			// only fall back to the remaining-session one when it is absent.
			if info.Sensor.DurationText == "" {
				info.Sensor.DurationText = value
			}

		case containsAny(s, filledLabels):
			value, ok := valueAfter(texts, i)
			if !ok {
				continue
			}
			d, ok := ParseHumanDuration(value)
			if !ok {
				e.log.Debug("reservoir age value did not parse", zap.String("value", value))
				continue
			}
			info.Insulin = &models.InsulinInfo{
				FilledAt:     now.Add(-d),
				DurationText: value,
			}

		case containsAny(s, sensorBrands):
			// Device-name heuristic: the string after a known brand is its
			// serial/name, unless it is itself one of the "since" labels.
			value, ok := valueAfter(texts, i)
			if !ok || containsAny(value, sinceKeywords) {
				continue
			}
			if info.Sensor == nil {
				info.Sensor = &models.SensorInfo{}
			}
			if info.Sensor.Name == "" {
				info.Sensor.Name = value
			}
		}
	}

	return info
}

// valueAfter returns the string following index i in the collected sequence.
// This positional-adjacency convention is the single assumption the menu
// parser rests on; the source exposes no structured key-value pairs.
func valueAfter(texts []string, i int) (string, bool) {
	if i+1 >= len(texts) {
		return "", false
	}
	return texts[i+1], true
}
