package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCalendarIsOpen(t *testing.T) {
	cal, err := NewCalendar()
	require.NoError(t, err)

	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	cases := []struct {
		name string
		at   time.Time
		open bool
	}{
		{"weekday mid-session", time.Date(2026, 8, 25, 11, 0, 0, 0, ny), true},
		{"weekday before the bell", time.Date(2026, 8, 25, 9, 29, 0, 0, ny), false},
		{"weekday at the bell", time.Date(2026, 8, 25, 9, 30, 0, 0, ny), true},
		{"last trading minute", time.Date(2026, 8, 25, 15, 59, 0, 0, ny), true},
		{"at the close", time.Date(2026, 8, 25, 16, 0, 0, 0, ny), false},
		{"saturday", time.Date(2026, 8, 22, 11, 0, 0, 0, ny), false},
		{"sunday", time.Date(2026, 8, 23, 11, 0, 0, 0, ny), false},
		{"thanksgiving", time.Date(2026, 11, 26, 11, 0, 0, 0, ny), false},
		{"independence day observed", time.Date(2026, 7, 3, 11, 0, 0, 0, ny), false},
		{"day after a holiday", time.Date(2026, 11, 27, 11, 0, 0, 0, ny), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.open, cal.IsOpen(tc.at))
		})
	}
}

func TestCalendarConvertsForeignZones(t *testing.T) {
	cal, err := NewCalendar()
	require.NoError(t, err)

	// 18:00 UTC on a summer weekday is 14:00 in New York.
	require.True(t, cal.IsOpen(time.Date(2026, 8, 25, 18, 0, 0, 0, time.UTC)))
	// 21:30 UTC is 17:30 in New York, after the close.
	require.False(t, cal.IsOpen(time.Date(2026, 8, 25, 21, 30, 0, 0, time.UTC)))
}
