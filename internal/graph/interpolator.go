// Package graph recovers carbohydrate treatments from the OCR'd landscape
// graph view, interpolating event times from pixel positions along the
// time axis.
package graph

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/mrcode/nightscout-bridge/internal/models"
)

// TextBlock is one recognized text fragment with its bounding box in
// source-image pixel coordinates. Block ordering carries no meaning.
type TextBlock struct {
	Text string
	X    int // left
	Y    int // top
	W    int
	H    int
}

// CenterX returns the horizontal center of the block.
func (b TextBlock) CenterX() int { return b.X + b.W/2 }

const (
	// axisBucketPx groups time-label candidates into vertical bands; the
	// most populated band is the axis row.
	axisBucketPx = 100
	// axisTolerancePx widens the accepted band upward.
	axisTolerancePx = 100
	// defaultAxisY is used when no HH:MM candidates exist at all.
	defaultAxisY = 600

	minCarbGrams = 1
	maxCarbGrams = 200

	// futureSlack: an interpolated time this far past "now" means the event
	// happened yesterday, not in the future.
	futureSlack = 10 * time.Minute

	minutesPerDay = 24 * 60
)

var (
	timeLabelRe = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
	carbRe      = regexp.MustCompile(`(?i)(\d{1,3})\s?g\b`)
)

// Pass is the detailed result of one interpolation pass, kept around for the
// debug overlay.
type Pass struct {
	AxisY      int
	Labels     []models.TimeLabel
	Treatments []models.GraphTreatment
}

// Interpolator turns OCR text blocks into carbohydrate treatments with
// estimated timestamps.
type Interpolator struct {
	log *zap.Logger
}

// NewInterpolator creates an interpolator.
func NewInterpolator(log *zap.Logger) *Interpolator {
	return &Interpolator{log: log}
}

// Treatments runs a full pass and returns only the derived treatments.
func (ip *Interpolator) Treatments(blocks []TextBlock, now time.Time) []models.GraphTreatment {
	return ip.Analyze(blocks, now).Treatments
}

// Analyze runs one interpolation pass over the blocks.
func (ip *Interpolator) Analyze(blocks []TextBlock, now time.Time) *Pass {
	axisY := axisThreshold(blocks)
	pass := &Pass{AxisY: axisY}

	type marker struct {
		grams float64
		x     int
	}
	var markers []marker

	// Second pass over all blocks: the axis threshold separates genuine
	// time labels (at/below) from HH:MM-shaped noise and carb markers
	// (strictly above).
	for _, b := range blocks {
		if hour, minute, ok := parseTimeLabel(b.Text); ok && b.Y >= axisY {
			pass.Labels = append(pass.Labels, models.TimeLabel{Hour: hour, Minute: minute, X: b.CenterX()})
			continue
		}
		if grams, ok := parseCarbMarker(b.Text); ok && b.Y < axisY {
			markers = append(markers, marker{grams: grams, x: b.CenterX()})
		}
	}

	sort.Slice(pass.Labels, func(i, j int) bool { return pass.Labels[i].X < pass.Labels[j].X })

	// With fewer than two labels interpolation is impossible: an
	// approximate-but-wrong meal time is worse than no meal record, so the
	// markers are discarded, never stamped with "now".
	if len(pass.Labels) < 2 {
		if len(markers) > 0 {
			ip.log.Warn("discarding carb markers, not enough time labels",
				zap.Int("markers", len(markers)), zap.Int("labels", len(pass.Labels)))
		}
		return pass
	}

	for _, mk := range markers {
		grams := mk.grams
		pass.Treatments = append(pass.Treatments, models.GraphTreatment{
			Carbs: &grams,
			Time:  interpolateTime(pass.Labels, mk.x, now),
		})
	}
	return pass
}

// axisThreshold finds the dominant vertical band of HH:MM candidates and
// returns its average top position minus the tolerance.
func axisThreshold(blocks []TextBlock) int {
	buckets := make(map[int][]int)
	for _, b := range blocks {
		if _, _, ok := parseTimeLabel(b.Text); ok {
			bucket := b.Y / axisBucketPx
			buckets[bucket] = append(buckets[bucket], b.Y)
		}
	}
	if len(buckets) == 0 {
		return defaultAxisY
	}

	best, bestCount := 0, -1
	for bucket, tops := range buckets {
		// Ties resolve to the higher band so the threshold stays
		// conservative.
		if len(tops) > bestCount || (len(tops) == bestCount && bucket < best) {
			best, bestCount = bucket, len(tops)
		}
	}

	sum := 0
	for _, y := range buckets[best] {
		sum += y
	}
	return sum/bestCount - axisTolerancePx
}

func parseTimeLabel(s string) (hour, minute int, ok bool) {
	m := timeLabelRe.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, false
	}
	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	if hour > 23 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

// parseCarbMarker matches "N g" style markers. The character before the "g"
// must not be an "m" ("30 mg" is a unit fragment, not a meal) and the "g"
// must end a word ("Glukose" and friends never match).
func parseCarbMarker(s string) (float64, bool) {
	for _, idx := range carbRe.FindAllStringSubmatchIndex(s, -1) {
		gPos := idx[1] - 1 // the "g" is the last matched byte
		if gPos > 0 && (s[gPos-1] == 'm' || s[gPos-1] == 'M') {
			continue
		}
		grams, err := strconv.Atoi(s[idx[2]:idx[3]])
		if err != nil || grams < minCarbGrams || grams > maxCarbGrams {
			continue
		}
		return float64(grams), true
	}
	return 0, false
}

// interpolateTime linearly interpolates a marker's time-of-day between the
// two labels bracketing its horizontal position, extrapolating from the
// nearest boundary pair when the marker lies outside the label range.
func interpolateTime(labels []models.TimeLabel, x int, now time.Time) time.Time {
	i := 0
	switch {
	case x <= labels[0].X:
		i = 0
	case x >= labels[len(labels)-1].X:
		i = len(labels) - 2
	default:
		for i < len(labels)-2 && labels[i+1].X < x {
			i++
		}
	}
	left, right := labels[i], labels[i+1]

	leftMin := left.MinuteOfDay()
	rightMin := right.MinuteOfDay()
	// A right label numerically before the left one means the axis crosses
	// midnight.
	if rightMin < leftMin {
		rightMin += minutesPerDay
	}

	frac := 0.0
	if dx := right.X - left.X; dx != 0 {
		frac = float64(x-left.X) / float64(dx)
	}
	minute := int(math.Round(float64(leftMin) + frac*float64(rightMin-leftMin)))
	minute = ((minute % minutesPerDay) + minutesPerDay) % minutesPerDay

	at := time.Date(now.Year(), now.Month(), now.Day(), minute/60, minute%60, 0, 0, now.Location())
	if at.After(now.Add(futureSlack)) {
		at = at.AddDate(0, 0, -1)
	}
	return at
}
