package format

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimestampAt(t *testing.T) {
	now := time.Date(2025, time.March, 4, 18, 0, 0, 0, time.UTC)

	today := time.Date(2025, time.March, 4, 14, 5, 0, 0, time.UTC)
	yesterday := time.Date(2025, time.March, 3, 9, 30, 0, 0, time.UTC)
	lastYear := time.Date(2024, time.December, 31, 23, 59, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   *time.Time
		want string
	}{
		{"pending renders placeholder", nil, "..."},
		{"today renders time only", &today, "2:05 PM"},
		{"other day renders date and time", &yesterday, "Mar 3 9:30 AM"},
		{"other year renders date and time", &lastYear, "Dec 31 11:59 PM"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, TimestampAt(tt.in, now))
		})
	}
}

func TestTimestampAtSameDayDifferentYear(t *testing.T) {
	req := require.New(t)

	now := time.Date(2025, time.March, 4, 18, 0, 0, 0, time.UTC)
	sameYearDay := time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC)

	// Same year-day in a different year is not "today".
	req.Equal("Mar 4 10:00 AM", TimestampAt(&sameYearDay, now))
}

func TestTimestampAtUsesViewerLocation(t *testing.T) {
	req := require.New(t)

	loc := time.FixedZone("UTC+3", 3*60*60)
	now := time.Date(2025, time.March, 4, 1, 0, 0, 0, loc)

	// 23:30 UTC on March 3 is 02:30 March 4 for this viewer, so it is today.
	msg := time.Date(2025, time.March, 3, 23, 30, 0, 0, time.UTC)
	req.Equal("2:30 AM", TimestampAt(&msg, now))
}

func TestTimestampNeverPanics(t *testing.T) {
	require.NotPanics(t, func() {
		_ = Timestamp(nil)
		zero := time.Time{}
		_ = Timestamp(&zero)
	})
}
