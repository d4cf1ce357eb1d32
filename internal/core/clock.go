package core

import "time"

// Clock abstracts wall-clock reads so "current month" decisions are testable.
// Everything that depends on today's date takes a Clock, never time.Now.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Period identifies one calendar month.
type Period struct {
	Year  int
	Month time.Month
}

// PeriodOf returns the period the given instant falls in, evaluated in the
// instant's own location. Callers normalize locations before comparing.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// Previous returns the preceding calendar month.
func (p Period) Previous() Period {
	if p.Month == time.January {
		return Period{Year: p.Year - 1, Month: time.December}
	}
	return Period{Year: p.Year, Month: p.Month - 1}
}

// Contains reports whether t falls inside the period when evaluated in loc.
// Stored timestamps come back in UTC, so the accounting location must be
// named explicitly or instants near a month boundary land in the wrong month.
func (p Period) Contains(t time.Time, loc *time.Location) bool {
	t = t.In(loc)
	return t.Year() == p.Year && t.Month() == p.Month
}

// Window returns the half-open interval [start, end) covering the period in
// the given location.
func (p Period) Window(loc *time.Location) (start, end time.Time) {
	start = time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 1, 0)
}

func (p Period) String() string {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}
