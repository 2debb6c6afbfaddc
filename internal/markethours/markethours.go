// Package markethours implements the exchange time policy shared by the
// streaming trade filter and the intraday REST endpoint.
package markethours

import (
	"time"

	"github.com/scmhub/calendar"
)

// Regular trading hours as minutes since midnight, exchange-local.
// 09:30 (570) through 16:00 (960), both ends inclusive.
const (
	openMinute  = 570
	closeMinute = 960
)

// Policy answers regular-hours and session-open questions for a single
// exchange. The zero value is not usable; construct with NewPolicy.
type Policy struct {
	loc *time.Location
	cal *calendar.Calendar
}

// NewPolicy returns the NYSE policy. When the calendar or timezone database
// is unavailable it degrades to a Mon-Fri check in whatever location could
// be loaded.
func NewPolicy() *Policy {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}

	cal := calendar.GetCalendar("xnys")
	if cal != nil && cal.Loc != nil {
		loc = cal.Loc
	}

	return &Policy{loc: loc, cal: cal}
}

// Location returns the exchange-local timezone.
func (p *Policy) Location() *time.Location {
	return p.loc
}

// IsRegularHours reports whether t falls inside the regular session window.
// Weekends and holidays are out of scope here; this is purely the intraday
// minute check used to gate real-time trade broadcasts.
func (p *Policy) IsRegularHours(t time.Time) bool {
	local := t.In(p.loc)
	minutes := local.Hour()*60 + local.Minute()
	return minutes >= openMinute && minutes <= closeMinute
}

// IsTradingDay reports whether the date of t is a trading session.
func (p *Policy) IsTradingDay(t time.Time) bool {
	local := t.In(p.loc)
	if p.cal != nil {
		return p.cal.IsBusinessDay(local)
	}
	wd := local.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// SessionOpen returns 09:30 exchange-local of the most recent session at or
// before now. If the market has not yet opened today, or today is not a
// trading day, it walks back to the previous trading day's open.
func (p *Policy) SessionOpen(now time.Time) time.Time {
	local := now.In(p.loc)
	open := time.Date(local.Year(), local.Month(), local.Day(), 9, 30, 0, 0, p.loc)

	if local.Before(open) || !p.IsTradingDay(open) {
		open = open.AddDate(0, 0, -1)
		for !p.IsTradingDay(open) {
			open = open.AddDate(0, 0, -1)
		}
	}

	return open
}
