// Package market knows when the exchange is open.
package market

import (
	"time"

	"github.com/pkg/errors"
)

const (
	sessionOpenMinute  = 9*60 + 30 // 09:30 ET
	sessionCloseMinute = 16 * 60   // 16:00 ET
)

// holidays lists full-day NYSE closures, yyyy-mm-dd in exchange time.
// Observed dates are used when the holiday falls on a weekend.
var holidays = map[string]struct{}{
	"2025-01-01": {}, "2025-01-20": {}, "2025-02-17": {}, "2025-04-18": {},
	"2025-05-26": {}, "2025-06-19": {}, "2025-07-04": {}, "2025-09-01": {},
	"2025-11-27": {}, "2025-12-25": {},

	"2026-01-01": {}, "2026-01-19": {}, "2026-02-16": {}, "2026-04-03": {},
	"2026-05-25": {}, "2026-06-19": {}, "2026-07-03": {}, "2026-09-07": {},
	"2026-11-26": {}, "2026-12-25": {},

	"2027-01-01": {}, "2027-01-18": {}, "2027-02-15": {}, "2027-03-26": {},
	"2027-05-31": {}, "2027-06-18": {}, "2027-07-05": {}, "2027-09-06": {},
	"2027-11-25": {}, "2027-12-24": {},
}

// Calendar answers whether the New York session is trading at a given instant.
type Calendar struct {
	loc *time.Location
}

func NewCalendar() (*Calendar, error) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return nil, errors.Wrap(err, "load exchange timezone")
	}
	return &Calendar{loc: loc}, nil
}

// Location returns the exchange timezone, for schedulers that
// want to fire in session time rather than server time.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// IsOpen reports whether the regular session is trading at t.
func (c *Calendar) IsOpen(t time.Time) bool {
	local := t.In(c.loc)

	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}

	if _, closed := holidays[local.Format("2006-01-02")]; closed {
		return false
	}

	minute := local.Hour()*60 + local.Minute()
	return minute >= sessionOpenMinute && minute < sessionCloseMinute
}
