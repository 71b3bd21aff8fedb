package extract

import (
	"regexp"
	"strconv"

	"go.uber.org/zap"

	"github.com/mrcode/nightscout-bridge/internal/models"
	"github.com/mrcode/nightscout-bridge/internal/screen"
)

// DialogFields holds the auxiliary pump/sensor fields read from the info
// dialog. Every field is independently optional: partial results are fine
// here, these are enrichments, not the safety-critical primary value.
type DialogFields struct {
	ActiveInsulin    *float64 // units
	BasalRate        *float64 // units/hour
	Reservoir        *float64 // units
	PumpBattery      *int     // percent
	GlucoseTarget    *float64 // device units
	InsulinToday     *float64 // units
	InsulinYesterday *float64 // units
	Bolus            *models.BolusEvent
	PumpConnAge      *int // minutes
	SensorDataAge    *int // minutes
}

// Empty returns true when no field was extracted.
func (f *DialogFields) Empty() bool {
	return f.ActiveInsulin == nil && f.BasalRate == nil && f.Reservoir == nil &&
		f.PumpBattery == nil && f.GlucoseTarget == nil && f.InsulinToday == nil &&
		f.InsulinYesterday == nil && f.Bolus == nil && f.PumpConnAge == nil &&
		f.SensorDataAge == nil
}

// Apply copies the extracted fields onto a reading.
func (f *DialogFields) Apply(r *models.GlucoseReading) {
	r.ActiveInsulin = f.ActiveInsulin
	r.BasalRate = f.BasalRate
	r.Reservoir = f.Reservoir
	r.PumpBattery = f.PumpBattery
	r.GlucoseTarget = f.GlucoseTarget
	r.InsulinToday = f.InsulinToday
	r.InsulinYesterday = f.InsulinYesterday
	r.Bolus = f.Bolus
	r.PumpConnAge = f.PumpConnAge
	r.SensorDataAge = f.SensorDataAge
}

// One localized label+number(+unit) pattern per simple numeric field. The
// first matching string wins per field; scanning continues for the others.
var numericFieldRules = []struct {
	name string
	re   *regexp.Regexp
	set  func(*DialogFields, float64)
}{
	{
		"active_insulin",
		regexp.MustCompile(`(?i)(?:active insulin|aktives insulin|insuline active)\s*:?\s*(\d+(?:[.,]\d+)?)`),
		func(f *DialogFields, v float64) { f.ActiveInsulin = &v },
	},
	{
		"basal_rate",
		regexp.MustCompile(`(?i)(?:basal rate|basalrate|débit basal)\s*:?\s*(\d+(?:[.,]\d+)?)`),
		func(f *DialogFields, v float64) { f.BasalRate = &v },
	},
	{
		"reservoir",
		regexp.MustCompile(`(?i)(?:reservoir|réservoir)\s*:?\s*(\d+(?:[.,]\d+)?)`),
		func(f *DialogFields, v float64) { f.Reservoir = &v },
	},
	{
		"pump_battery",
		regexp.MustCompile(`(?i)(?:battery|batterie|pile)\s*:?\s*(\d{1,3})\s*%`),
		func(f *DialogFields, v float64) { b := int(v); f.PumpBattery = &b },
	},
	{
		"glucose_target",
		regexp.MustCompile(`(?i)(?:glucose target|target glucose|zielwert|glukoseziel|objectif glycémique|cible)\s*:?\s*(\d+(?:[.,]\d+)?)`),
		func(f *DialogFields, v float64) { f.GlucoseTarget = &v },
	},
	{
		"insulin_today",
		regexp.MustCompile(`(?i)(?:today|heute|aujourd'hui)\s*:?\s*(\d+(?:[.,]\d+)?)\s*(?:U|E|IE|UI)\b`),
		func(f *DialogFields, v float64) { f.InsulinToday = &v },
	},
	{
		"insulin_yesterday",
		regexp.MustCompile(`(?i)(?:yesterday|gestern|hier)\s*:?\s*(\d+(?:[.,]\d+)?)\s*(?:U|E|IE|UI)\b`),
		func(f *DialogFields, v float64) { f.InsulinYesterday = &v },
	},
}

// Bolus phrasings, tried in fixed priority order. Amount and elapsed minutes
// are always captured from the same string — they describe one bolus event
// and must never be paired across different source strings. A "no active
// bolus" placeholder stops the cascade without producing an event.
var bolusRules = []struct {
	re      *regexp.Regexp
	minutes func(m []string) int
	none    bool
}{
	{
		re:      regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(?:U|E|IE|UI|units?)\b.*?(\d+)\s*min(?:ute)?s?\s*ago`),
		minutes: func(m []string) int { n, _ := strconv.Atoi(m[2]); return n },
	},
	{
		re:      regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(?:U|E|IE|UI)\b.*?vor\s*(\d+)\s*min(?:ute)?n?`),
		minutes: func(m []string) int { n, _ := strconv.Atoi(m[2]); return n },
	},
	{
		re:      regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(?:U|E|IE|UI)\b.*?il y a\s*(\d+)\s*min(?:ute)?s?`),
		minutes: func(m []string) int { n, _ := strconv.Atoi(m[2]); return n },
	},
	{
		// Compact elapsed form: "2.5 U (1h 12min)".
		re: regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(?:U|E|IE|UI)\b.*?(\d+)\s*h\s*(\d+)\s*min`),
		minutes: func(m []string) int {
			h, _ := strconv.Atoi(m[2])
			mins, _ := strconv.Atoi(m[3])
			return h*60 + mins
		},
	},
	{
		re:   regexp.MustCompile(`(?i)no active bolus|kein aktiver bolus|aucun bolus actif`),
		none: true,
	},
}

// ageRule is one phrasing variant for an elapsed-age field.
type ageRule struct {
	re    *regexp.Regexp
	fixed int  // used when the pattern captures no number
	hours bool // first group is hours, second minutes
}

// newAgeRules builds the ordered phrasing variants for an age field. The
// irregular "one minute ago" singular gets its own pattern: some locales do
// not render it as a numeral, so the numeric pattern would never see it.
func newAgeRules(labels string) []ageRule {
	return []ageRule{
		{re: regexp.MustCompile(`(?i)(?:` + labels + `)\D*?(?:one minute ago|vor einer minute|il y a une minute)`), fixed: 1},
		{re: regexp.MustCompile(`(?i)(?:` + labels + `)\D*?(\d+)\s*h\s*(\d+)\s*min`), hours: true},
		{re: regexp.MustCompile(`(?i)(?:` + labels + `)\D*?(\d+)\s*min(?:ute)?[ns]?\b`)},
	}
}

var (
	pumpConnRules   = newAgeRules(`pump connection|last connection|connection|verbindung|pumpenverbindung|connexion`)
	sensorDataRules = newAgeRules(`sensor data|last sensor reading|sensordaten|letzte sensordaten|données du capteur|capteur`)
)

// DetailDialogExtractor parses the secondary info dialog for auxiliary
// numeric fields. An empty result is a valid outcome, not a failure: the
// caller falls back to main-screen-only data.
type DetailDialogExtractor struct {
	log *zap.Logger
}

// NewDetailDialogExtractor creates a detail dialog extractor.
func NewDetailDialogExtractor(log *zap.Logger) *DetailDialogExtractor {
	return &DetailDialogExtractor{log: log}
}

// Extract scans the dialog tree and fills whichever fields it can find.
func (e *DetailDialogExtractor) Extract(root *screen.Node) DialogFields {
	var fields DialogFields
	texts := screen.CollectText(root)

	filled := make(map[string]bool)
	bolusDone := false

	for _, s := range texts {
		for _, rule := range numericFieldRules {
			if filled[rule.name] {
				continue
			}
			m := rule.re.FindStringSubmatch(s)
			if m == nil {
				continue
			}
			v, err := parseDecimal(m[1])
			if err != nil {
				continue
			}
			rule.set(&fields, v)
			filled[rule.name] = true
		}

		if !bolusDone {
			bolusDone = e.tryBolus(s, &fields)
		}
		if fields.PumpConnAge == nil {
			fields.PumpConnAge = tryAge(s, pumpConnRules)
		}
		if fields.SensorDataAge == nil {
			fields.SensorDataAge = tryAge(s, sensorDataRules)
		}
	}

	if fields.Empty() {
		e.log.Debug("detail dialog yielded no fields")
	}
	return fields
}

// tryBolus applies the bolus cascade to one string. Returns true once the
// bolus question is settled for this dialog, either way.
func (e *DetailDialogExtractor) tryBolus(s string, fields *DialogFields) bool {
	for _, rule := range bolusRules {
		m := rule.re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		if rule.none {
			return true
		}
		amount, err := parseDecimal(m[1])
		if err != nil {
			return false
		}
		fields.Bolus = &models.BolusEvent{Amount: amount, AgeMinutes: rule.minutes(m)}
		return true
	}
	return false
}

func tryAge(s string, rules []ageRule) *int {
	for _, rule := range rules {
		m := rule.re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		if len(m) == 1 {
			v := rule.fixed
			return &v
		}
		if rule.hours {
			h, _ := strconv.Atoi(m[1])
			mins, _ := strconv.Atoi(m[2])
			v := h*60 + mins
			return &v
		}
		n, _ := strconv.Atoi(m[1])
		return &n
	}
	return nil
}
