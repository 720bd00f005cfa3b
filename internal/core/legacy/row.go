// Package legacy normalizes loosely typed rows from the legacy bowling backup
//
// Every legacy field is optional and independently nullable, and values arrive
// as whatever the decoder produced (float64 from JSON, int64 or []byte from
// SQLite). The helpers here coerce those uniformly so the reconciliation code
// only sees typed values
package legacy

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"laneledger/internal/core/normalize"
)

// Column keys used by the legacy backup format
const (
	KeyID              = "sqliteId"
	KeyName            = "name"
	KeyLocation        = "location"
	KeyBrand           = "brand"
	KeyWeight          = "weight"
	KeyLength          = "length"
	KeyNotes           = "notes"
	KeyHouseFK         = "houseFk"
	KeyLeagueFK        = "leagueFk"
	KeyWeekFK          = "weekFk"
	KeyGameFK          = "gameFk"
	KeyBallFK          = "ballFk"
	KeyPatternFK       = "patternFk"
	KeyGamesPerSession = "gamesPerSession"
	KeyDate            = "date"
	KeyWeekNumber      = "weekNumber"
	KeyGameNumber      = "gameNumber"
	KeyScore           = "score"
	KeyLane            = "lane"
	KeyFrameNum        = "frameNum"
	KeyRoll1           = "roll1"
	KeyRoll2           = "roll2"
	KeyRoll3           = "roll3"
)

// Field length caps
const (
	MaxNameRunes  = 120
	MaxNotesRunes = 2000
)

// Row is one source row keyed by legacy column name
type Row map[string]any

// ID returns the row's source primary key
func (r Row) ID() (int64, bool) { return NullableInt(r[KeyID]) }

// Int returns the integer value at key
func (r Row) Int(key string) (int64, bool) { return NullableInt(r[key]) }

// Float returns the finite numeric value at key
func (r Row) Float(key string) (float64, bool) { return NullableFloat(r[key]) }

// Name returns the normalized display name at key, empty when unrecognizable
func (r Row) Name(key string) string { return NormalizeName(r[key]) }

// Text returns normalized free text at key capped at maxRunes
func (r Row) Text(key string, maxRunes int) (string, bool) { return OptionalText(r[key], maxRunes) }

// Date returns the strict import date at key
func (r Row) Date(key string) (string, bool) { return NormalizeImportDateStrict(r[key]) }

// NullableInt coerces v into an integer. Floats are truncated toward zero,
// numeric strings are parsed, anything else is absent
func NullableInt(v any) (int64, bool) {
	switch x := v.(type) {
	case nil:
		return 0, false
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint32:
		return int64(x), true
	case float32:
		return NullableInt(float64(x))
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) || math.Abs(x) > math.MaxInt64/2 {
			return 0, false
		}
		return int64(math.Trunc(x)), true
	case json.Number:
		return NullableInt(string(x))
	case []byte:
		return NullableInt(string(x))
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return NullableInt(f)
		}
	}
	return 0, false
}

// NullableFloat coerces v into a finite float
func NullableFloat(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case nil:
		return 0, false
	case int:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case float32:
		f = float64(x)
	case float64:
		f = x
	case json.Number:
		return NullableFloat(string(x))
	case []byte:
		return NullableFloat(string(x))
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = p
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// OptionalText returns the cleaned text for v, false when v is absent or blank.
// Numbers are rendered in their shortest decimal form
func OptionalText(v any, maxRunes int) (string, bool) {
	var s string
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		s = x
	case []byte:
		s = string(x)
	case json.Number:
		s = string(x)
	case int64:
		s = strconv.FormatInt(x, 10)
	case int:
		s = strconv.Itoa(x)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return "", false
		}
		s = strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return "", false
	}
	s = normalize.Text(s, maxRunes)
	return s, s != ""
}

// NormalizeName returns a single-line display name capped at MaxNameRunes.
// An empty result means the value is unrecognizable
func NormalizeName(v any) string {
	s, ok := OptionalText(v, 0)
	if !ok {
		return ""
	}
	return normalize.Name(s, MaxNameRunes)
}

// Clamp bounds n to [lo, hi]
func Clamp(n, lo, hi int64) int64 {
	return max(lo, min(n, hi))
}
