package chrono

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUntilMidnight(t *testing.T) {
	testCases := []struct {
		name     string
		now      time.Time
		expected time.Duration
	}{
		{
			name:     "morning",
			now:      time.Date(2024, 3, 12, 9, 0, 0, 0, Jakarta()),
			expected: 15 * time.Hour,
		},
		{
			name:     "just after midnight",
			now:      time.Date(2024, 3, 12, 0, 0, 1, 0, Jakarta()),
			expected: 24*time.Hour - time.Second,
		},
		{
			name:     "end of month",
			now:      time.Date(2024, 2, 29, 23, 30, 0, 0, Jakarta()),
			expected: 30 * time.Minute,
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.expected, UntilMidnight(test.now))
		})
	}
}

func TestCurrentTerm(t *testing.T) {
	testCases := []struct {
		month    time.Month
		semester int
	}{
		{month: time.January, semester: 1},
		{month: time.May, semester: 1},
		{month: time.June, semester: 2},
		{month: time.September, semester: 2},
		{month: time.October, semester: 1},
		{month: time.December, semester: 1},
	}

	for _, test := range testCases {
		t.Run(test.month.String(), func(t *testing.T) {
			year, semester := CurrentTerm(time.Date(2024, test.month, 15, 12, 0, 0, 0, Jakarta()))
			require.Equal(t, 2024, year)
			require.Equal(t, test.semester, semester)
		})
	}
}

func TestFixedTime(t *testing.T) {
	at := time.Date(2024, 3, 12, 2, 0, 0, 0, time.UTC)
	now := FixedTime{At: at}.Now()
	require.True(t, now.Equal(at))
	require.Equal(t, 9, now.Hour())
}
