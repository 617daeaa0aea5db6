// Package day provides the calendar-date key used for usage accounting.
package day

import (
	"fmt"
	"strings"
	"time"
)

// Layout is the textual form of a Date.
const Layout = "2006-01-02"

// Date is a calendar date in local time. Its string form sorts
// lexicographically in calendar order.
type Date struct {
	key string
}

// Of returns the calendar date of t in t's location.
func Of(t time.Time) Date {
	return Date{key: t.Format(Layout)}
}

// Parse parses a YYYY-MM-DD date.
func Parse(s string) (Date, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{key: t.Format(Layout)}, nil
}

// MustParse is like Parse but panics on error. Intended for tests.
func MustParse(s string) Date {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// String returns the YYYY-MM-DD form.
func (d Date) String() string {
	return d.key
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d.key == ""
}

// Time returns midnight UTC of d.
func (d Date) Time() time.Time {
	t, _ := time.Parse(Layout, d.key)
	return t
}

// Weekday returns the day of the week, Sunday = 0.
func (d Date) Weekday() time.Weekday {
	return d.Time().Weekday()
}

// AddDays returns the date n days after d.
func (d Date) AddDays(n int) Date {
	return Of(d.Time().AddDate(0, 0, n))
}

// Before reports whether d is earlier than other.
func (d Date) Before(other Date) bool {
	return d.key < other.key
}

// WeekdayNames lists weekday names in time.Weekday order.
var WeekdayNames = [7]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// ParseWeekday accepts full or three-letter lower/upper case weekday names.
func ParseWeekday(s string) (time.Weekday, error) {
	switch strings.ToLower(s) {
	case "sunday", "sun":
		return time.Sunday, nil
	case "monday", "mon":
		return time.Monday, nil
	case "tuesday", "tue":
		return time.Tuesday, nil
	case "wednesday", "wed":
		return time.Wednesday, nil
	case "thursday", "thu":
		return time.Thursday, nil
	case "friday", "fri":
		return time.Friday, nil
	case "saturday", "sat":
		return time.Saturday, nil
	default:
		return time.Sunday, fmt.Errorf("invalid day: %s", s)
	}
}
