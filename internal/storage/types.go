package storage

import (
	"fmt"
	"sort"

	"github.com/goodtune/screentimer/internal/day"
)

// UsageRecord is the minutes used on one calendar day.
type UsageRecord struct {
	Date    day.Date `json:"-"`
	Minutes int      `json:"minutes"`
}

// Markers is the persisted form of a day's notification and lock state.
type Markers struct {
	Thresholds []int `json:"thresholds"`
	Locked     bool  `json:"locked"`
}

// Normalized returns a copy with thresholds deduplicated and sorted
// in descending order.
func (m Markers) Normalized() Markers {
	seen := make(map[int]bool, len(m.Thresholds))
	out := make([]int, 0, len(m.Thresholds))
	for _, t := range m.Thresholds {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return Markers{Thresholds: out, Locked: m.Locked}
}

// PersistenceError reports a failed durable read or write.
type PersistenceError struct {
	Op   string
	Date day.Date
	Err  error
}

func (e *PersistenceError) Error() string {
	if e.Date.IsZero() {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Date, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
