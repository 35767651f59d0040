// Package format renders message metadata for display. Everything here is
// pure: no clocks are read except through the *At variants' now argument.
package format

import "time"

// pendingPlaceholder is shown while the store has not assigned a timestamp.
const pendingPlaceholder = "..."

const (
	timeLayout     = "3:04 PM"
	dateTimeLayout = "Jan 2 3:04 PM"
)

// Timestamp renders a message timestamp against the current wall clock.
// A nil timestamp (pending message) renders the placeholder.
func Timestamp(t *time.Time) string {
	return TimestampAt(t, time.Now())
}

// TimestampAt renders t relative to now: time-of-day when both fall on the
// same calendar date in now's location, date plus time otherwise.
func TimestampAt(t *time.Time, now time.Time) string {
	if t == nil {
		return pendingPlaceholder
	}

	local := t.In(now.Location())
	if sameDay(local, now) {
		return local.Format(timeLayout)
	}
	return local.Format(dateTimeLayout)
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
