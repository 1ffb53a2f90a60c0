package domain

import (
	"fmt"
	"time"
)

// Period is a calendar month billing window, serialized as "YYYY-MM".
type Period struct {
	Year  int
	Month time.Month
}

// ParsePeriod parses the canonical "YYYY-MM" form. Anything else, including
// out-of-range months, fails with ErrInvalidPeriod.
func ParsePeriod(value string) (Period, error) {
	if len(value) != 7 || value[4] != '-' {
		return Period{}, ErrInvalidPeriod
	}
	parsed, err := time.Parse("2006-01", value)
	if err != nil {
		return Period{}, ErrInvalidPeriod
	}
	return Period{Year: parsed.Year(), Month: parsed.Month()}, nil
}

// PeriodOf returns the billing period a timestamp falls into.
func PeriodOf(t time.Time) Period {
	t = t.UTC()
	return Period{Year: t.Year(), Month: t.Month()}
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Range returns the half-open UTC window [start, next) covering the month.
// Lessons are bucketed by start time only: a lesson starting at the first
// instant of the month belongs to it, one starting at the first instant of
// the next month does not.
func (p Period) Range() (start, next time.Time) {
	start = time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
	next = start.AddDate(0, 1, 0)
	return start, next
}

// Contains reports whether a start timestamp falls inside the period.
func (p Period) Contains(t time.Time) bool {
	start, next := p.Range()
	t = t.UTC()
	return !t.Before(start) && t.Before(next)
}
