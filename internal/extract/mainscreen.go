package extract

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mrcode/nightscout-bridge/internal/models"
	"github.com/mrcode/nightscout-bridge/internal/screen"
)

// Rejection errors. ErrUnexpectedScreen is an identity mismatch (the surface
// is not the glucose screen at all, expected during normal app navigation);
// ErrSignalLoss and ErrNoCandidate mean the screen was confirmed but its
// content cannot be trusted — callers log those louder, repeated safety
// rejections indicate a real sensor problem.
var (
	ErrUnexpectedScreen = errors.New("not the expected main screen")
	ErrSignalLoss       = errors.New("signal loss indicator present")
	ErrNoCandidate      = errors.New("no standalone glucose value found")
)

// Unit marker tokens, matched case-insensitively by containment.
var (
	mgdlMarkers  = []string{"mg/dl", "mg / dl"}
	mmollMarkers = []string{"mmol/l", "mmol / l"}
)

// Mode/status vocabulary unique to the host app, per shipped locale. At
// least one must be on screen before any value is trusted.
var appMarkers = []string{
	// en
	"auto mode", "boost", "ease-off", "daily total",
	// de
	"automodus", "tagesgesamt", "abschwächung",
	// fr
	"mode auto", "total quotidien", "atténuation",
}

// Signal-loss / placeholder indicators. Any of these rejects the cycle even
// when a plausible number is also on screen.
var signalLossMarkers = []string{
	"signal loss", "no signal", "sensor error",
	"signalverlust", "kein signal", "sensorfehler",
	"perte de signal", "pas de signal", "erreur capteur", "erreur de capteur",
	"---", "--",
}

// The primary glucose figure is rendered as a large standalone numeral with
// no unit glyph in the same node.
var bareValueRe = regexp.MustCompile(`^\d{2,3}$`)

// Accessible-label equivalents of the trend arrows. Ordered so that the more
// specific phrasings match before their substrings ("rising quickly" before
// "rising").
var trendLabels = []struct {
	keyword string
	trend   models.Trend
}{
	{"rising quickly", models.TrendDoubleUp},
	{"steigt schnell", models.TrendDoubleUp},
	{"monte rapidement", models.TrendDoubleUp},
	{"falling quickly", models.TrendDoubleDown},
	{"fällt schnell", models.TrendDoubleDown},
	{"baisse rapidement", models.TrendDoubleDown},
	{"slightly rising", models.TrendFortyFiveUp},
	{"leicht steigend", models.TrendFortyFiveUp},
	{"en légère hausse", models.TrendFortyFiveUp},
	{"slightly falling", models.TrendFortyFiveDown},
	{"leicht fallend", models.TrendFortyFiveDown},
	{"en légère baisse", models.TrendFortyFiveDown},
	{"rising", models.TrendSingleUp},
	{"steigend", models.TrendSingleUp},
	{"en hausse", models.TrendSingleUp},
	{"falling", models.TrendSingleDown},
	{"fallend", models.TrendSingleDown},
	{"en baisse", models.TrendSingleDown},
	{"steady", models.TrendFlat},
	{"stabil", models.TrendFlat},
	{"stable", models.TrendFlat},
}

// MainScreenExtractor derives a validated glucose reading from the app's
// main screen, or rejects. It never returns a partial or best-guess value.
type MainScreenExtractor struct {
	log    *zap.Logger
	device string
}

// NewMainScreenExtractor creates a main screen extractor. device is the
// source identifier stamped on produced readings.
func NewMainScreenExtractor(log *zap.Logger, device string) *MainScreenExtractor {
	return &MainScreenExtractor{log: log, device: device}
}

// Extract runs the gate pipeline against the given tree. Each gate is a hard
// stop; a gate failure means "no reading this cycle", not an application
// error.
func (e *MainScreenExtractor) Extract(root *screen.Node, now time.Time) (*models.GlucoseReading, error) {
	texts := screen.CollectText(root)

	// Gate A: a glucose unit marker confirms we are looking at a glucose
	// display at all.
	unit, ok := detectUnit(texts)
	if !ok {
		return nil, fmt.Errorf("no unit marker: %w", ErrUnexpectedScreen)
	}

	// Gate B: the info control is always present on the real main screen.
	if screen.FindElement(root, screen.InfoButton) == nil {
		return nil, fmt.Errorf("no info button: %w", ErrUnexpectedScreen)
	}

	// Gate C: app-specific mode/status vocabulary.
	if !anyContains(texts, appMarkers) {
		return nil, fmt.Errorf("no app marker: %w", ErrUnexpectedScreen)
	}

	// Gate D: a stale or error display must never be forwarded as a reading.
	if marker, found := findMarker(texts, signalLossMarkers); found {
		e.log.Warn("signal loss on main screen", zap.String("marker", marker))
		return nil, ErrSignalLoss
	}

	// Candidate search: bare 2-3 digit strings only.
	var candidates []string
	for _, s := range texts {
		if bareValueRe.MatchString(s) {
			candidates = append(candidates, s)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNoCandidate
	}
	if len(candidates) > 1 {
		e.log.Warn("multiple glucose candidates, taking first in document order",
			zap.Strings("candidates", candidates))
	}
	value, err := strconv.Atoi(candidates[0])
	if err != nil {
		return nil, fmt.Errorf("parsing candidate %q: %w", candidates[0], err)
	}

	trend := detectTrend(texts)

	// Gate E (range check) lives in the constructor; out-of-range values are
	// rejected there, never clamped.
	reading, err := models.NewGlucoseReading(value, unit, trend, e.device, now)
	if err != nil {
		e.log.Warn("glucose candidate rejected", zap.Int("value", value), zap.Error(err))
		return nil, err
	}
	return reading, nil
}

// detectUnit returns the unit of the first string containing a unit marker.
func detectUnit(texts []string) (models.Unit, bool) {
	for _, s := range texts {
		if containsAny(s, mgdlMarkers) {
			return models.UnitMgdl, true
		}
		if containsAny(s, mmollMarkers) {
			return models.UnitMmolL, true
		}
	}
	return "", false
}

// detectTrend scans for the first recognized arrow glyph or label
// equivalent. A steady display often omits the flat glyph entirely, so
// absence means Flat here, not Unknown.
func detectTrend(texts []string) models.Trend {
	for _, s := range texts {
		if trend, ok := models.TrendFromGlyph(s); ok {
			return trend
		}
		lower := strings.ToLower(s)
		for _, tl := range trendLabels {
			if strings.Contains(lower, tl.keyword) {
				return tl.trend
			}
		}
	}
	return models.TrendFlat
}

func anyContains(texts []string, keywords []string) bool {
	for _, s := range texts {
		if containsAny(s, keywords) {
			return true
		}
	}
	return false
}

func findMarker(texts []string, keywords []string) (string, bool) {
	for _, s := range texts {
		if containsAny(s, keywords) {
			return s, true
		}
	}
	return "", false
}
