package legacy

import (
	"encoding/json"
	"math"
	"strings"
	"time"
)

// DateLayout is the canonical calendar date layout
const DateLayout = "2006-01-02"

// secondsCutoff separates unix seconds from unix milliseconds
const secondsCutoff = 10_000_000_000

// NormalizeImportDateStrict maps a legacy date value to YYYY-MM-DD.
//
// Strings of at least 10 characters after trimming are trusted and truncated
// to their first 10 characters. Shorter strings are rejected. Numbers below
// 1e10 in magnitude are unix seconds, larger ones unix milliseconds, both
// rendered in UTC. NaN and infinities are rejected
func NormalizeImportDateStrict(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return dateFromString(x)
	case []byte:
		return dateFromString(string(x))
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return dateFromString(string(x))
		}
		return dateFromNumber(f)
	case int:
		return dateFromNumber(float64(x))
	case int64:
		return dateFromNumber(float64(x))
	case float32:
		return dateFromNumber(float64(x))
	case float64:
		return dateFromNumber(x)
	}
	return "", false
}

func dateFromString(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) < len(DateLayout) {
		return "", false
	}
	return s[:len(DateLayout)], true
}

func dateFromNumber(f float64) (string, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", false
	}
	var t time.Time
	if math.Abs(f) < secondsCutoff {
		sec, frac := math.Modf(f)
		t = time.Unix(int64(sec), int64(frac*1e9))
	} else {
		t = time.UnixMilli(int64(f))
	}
	return t.UTC().Format(DateLayout), true
}

// ParseDate parses a normalized date into midnight UTC.
// Truncated strings that are not real calendar dates fail here
func ParseDate(s string) (time.Time, bool) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Today returns the calendar date at now for a client whose timezone offset
// follows the browser convention (minutes to add to local time to reach UTC)
func Today(now time.Time, offsetMinutes int) string {
	return now.UTC().Add(-time.Duration(offsetMinutes) * time.Minute).Format(DateLayout)
}

// BuildLeagueCreatedAtByEarliestWeekDate scans every week up front and returns,
// per league source id, the earliest week date that parses as a real date.
// Leagues with no usable week are absent from the map
func BuildLeagueCreatedAtByEarliestWeekDate(weeks []Row) map[int64]time.Time {
	out := make(map[int64]time.Time)
	for _, w := range weeks {
		league, ok := w.Int(KeyLeagueFK)
		if !ok {
			continue
		}
		ds, ok := w.Date(KeyDate)
		if !ok {
			continue
		}
		t, ok := ParseDate(ds)
		if !ok {
			continue
		}
		if cur, seen := out[league]; !seen || t.Before(cur) {
			out[league] = t
		}
	}
	return out
}
