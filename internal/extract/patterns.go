// Package extract recovers structured telemetry from the flattened text of
// the scraped app's screens. All parsing is best-effort over localized,
// layout-fragile input: every helper returns "no match" instead of guessing.
package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// parseDecimal parses a number that may use a decimal comma.
func parseDecimal(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
}

// Human-readable duration formats, tried strictly in this order. Each
// successive pattern is only consulted when the previous one did not match,
// so the compact form wins over the verbose ones.
var (
	durationCompactRe = regexp.MustCompile(`(?i)(\d+)\s*d\s*(\d+)\s*h\s*(\d+)\s*min`)
	durationDaysRe    = regexp.MustCompile(`(?i)(\d+)\s*(?:days?|tage?n?|jours?)\b(?:\s*(?:and|und|et)?\s*(\d+)\s*(?:hours?|stunden?|heures?|h)\b)?`)
	durationHoursRe   = regexp.MustCompile(`(?i)(\d+)\s*(?:hours?|stunden?|heures?|h)\b(?:\s*(?:and|und|et)?\s*(\d+)\s*(?:minutes?|minuten?|min)\b)?`)
	durationMinutesRe = regexp.MustCompile(`(?i)(\d+)\s*(?:minutes?|minuten?|min)\b`)
)

// ParseHumanDuration converts a displayed duration ("5d 6h 58min",
// "5 days 6 hours", "5 Tage 6 Stunden", "58 minutes", ...) into a duration.
func ParseHumanDuration(s string) (time.Duration, bool) {
	if m := durationCompactRe.FindStringSubmatch(s); m != nil {
		return composeDuration(m[1], m[2], m[3]), true
	}
	if m := durationDaysRe.FindStringSubmatch(s); m != nil {
		return composeDuration(m[1], m[2], ""), true
	}
	if m := durationHoursRe.FindStringSubmatch(s); m != nil {
		return composeDuration("", m[1], m[2]), true
	}
	if m := durationMinutesRe.FindStringSubmatch(s); m != nil {
		return composeDuration("", "", m[1]), true
	}
	return 0, false
}

func composeDuration(days, hours, minutes string) time.Duration {
	var d time.Duration
	if days != "" {
		n, _ := strconv.Atoi(days)
		d += time.Duration(n) * 24 * time.Hour
	}
	if hours != "" {
		n, _ := strconv.Atoi(hours)
		d += time.Duration(n) * time.Hour
	}
	if minutes != "" {
		n, _ := strconv.Atoi(minutes)
		d += time.Duration(n) * time.Minute
	}
	return d
}

// containsAny reports whether the lowercased s contains any of the keywords.
func containsAny(s string, keywords []string) bool {
	lower := strings.ToLower(s)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
