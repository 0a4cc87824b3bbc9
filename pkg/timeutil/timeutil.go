// Package timeutil provides calendar-date helpers for the mentoring timezone.
// DVMN timelines and leave dates are expressed in Moscow time (UTC+3).
// No external dependencies - uses only standard library.
package timeutil

import (
	"time"
)

// MoscowTZ is the Moscow timezone (UTC+3, no DST since 2014).
var MoscowTZ = time.FixedZone("Europe/Moscow", 3*60*60)

// LoadLocation resolves an IANA zone name. It falls back to MoscowTZ when the
// name is empty or the zone database is unavailable.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return MoscowTZ
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return MoscowTZ
	}
	return loc
}

// StartOfDay returns midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = MoscowTZ
	}
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, loc)
}

// CivilDate drops the clock and zone of t, keeping its year, month and day.
func CivilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysSince returns how many calendar days date lies before now, with now
// taken in loc. The day part of date is used as is. Dates after now give a
// negative result.
func DaysSince(date, now time.Time, loc *time.Location) int {
	if loc == nil {
		loc = MoscowTZ
	}
	today := CivilDate(now.In(loc))
	return int(today.Sub(CivilDate(date)).Hours() / 24)
}

// FormatDate formats t in loc with layout.
func FormatDate(t time.Time, layout string, loc *time.Location) string {
	if loc == nil {
		loc = MoscowTZ
	}
	return t.In(loc).Format(layout)
}
