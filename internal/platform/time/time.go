// Package time holds timestamp helpers shared by the import workflows
package time

import (
	"math"
	"time"
)

// UTCPtr returns t in UTC, or nil for the zero time so nullable columns stay NULL
func UTCPtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

// maxDriftMs is the largest millisecond count a Duration can hold
const maxDriftMs = float64(math.MaxInt64 / int64(time.Millisecond))

// Drift is the absolute distance between now and a unix timestamp in seconds,
// fractional seconds included. Distances beyond the Duration range, NaN
// included, saturate at the maximum Duration
func Drift(now time.Time, unixSecs float64) time.Duration {
	ms := math.Abs(float64(now.UnixMilli()) - unixSecs*1000)
	if !(ms < maxDriftMs) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(ms) * time.Millisecond
}
