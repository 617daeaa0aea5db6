// Package limits supplies the daily allowance for a date from a weekday
// table, a legacy limits file or a Rego policy.
package limits

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/goodtune/screentimer/internal/day"
)

// Source yields the allowance in minutes for a date.
type Source interface {
	LimitFor(ctx context.Context, date day.Date) (int, error)
	// Reload re-reads the source's backing definition.
	Reload() error
	Close() error
}

// Table holds one limit per weekday, indexed by time.Weekday.
type Table [7]int

// DefaultTable is used for weekdays nothing else configures.
var DefaultTable = Table{
	time.Sunday:    240,
	time.Monday:    120,
	time.Tuesday:   120,
	time.Wednesday: 120,
	time.Thursday:  120,
	time.Friday:    180,
	time.Saturday:  240,
}

// For returns the limit for date's weekday.
func (t Table) For(date day.Date) int {
	return t[date.Weekday()]
}

// Map returns the table keyed by lower-case weekday name.
func (t Table) Map() map[string]int {
	m := make(map[string]int, len(t))
	for wd, minutes := range t {
		m[day.WeekdayNames[wd]] = minutes
	}
	return m
}

// TableFromMap builds a table from weekday names (full or three-letter).
// Weekdays absent from m keep their DefaultTable value. A three-letter name
// wins over the full name of the same weekday, so a configured "sat" still
// overrides the "saturday" default merged in by the config loader.
func TableFromMap(m map[string]int) (Table, error) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})

	table := DefaultTable
	for _, name := range names {
		minutes := m[name]
		wd, err := day.ParseWeekday(name)
		if err != nil {
			return Table{}, err
		}
		if minutes < 0 {
			return Table{}, fmt.Errorf("negative limit %d for %s", minutes, name)
		}
		table[wd] = minutes
	}
	return table, nil
}
