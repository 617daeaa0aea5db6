// Package quota enforces the daily screen-time allowance: it counts minutes,
// warns as the allowance runs out and locks the session once it is spent.
package quota

import (
	"context"

	"github.com/goodtune/screentimer/internal/day"
)

// LimitSource yields the allowance for a date. It is consulted on every tick
// so edits take effect without a restart.
type LimitSource interface {
	LimitFor(ctx context.Context, date day.Date) (int, error)
}

// NotificationSink delivers a user-visible warning.
type NotificationSink interface {
	Notify(ctx context.Context, title, message string) error
}

// LockSink locks the user's session.
type LockSink interface {
	Lock(ctx context.Context) error
}

// DisplaySink receives the status after every tick. Show must not block.
type DisplaySink interface {
	Show(Status)
}

// Status is the outcome of one tick.
type Status struct {
	Date       day.Date `json:"date"`
	Used       int      `json:"used"`
	Limit      int      `json:"limit"`
	Remaining  int      `json:"remaining"`
	LimitKnown bool     `json:"limit_known"`
	Locked     bool     `json:"locked"`
}

// NotifyMode selects how warnings are matched against remaining minutes.
type NotifyMode string

const (
	// ModeExact warns only on the tick where remaining equals a threshold.
	ModeExact NotifyMode = "exact"
	// ModeStaircase warns on the first tick at or below each threshold.
	ModeStaircase NotifyMode = "staircase"
)

// DefaultThresholds are the remaining-minute marks that trigger a warning.
var DefaultThresholds = []int{30, 10, 1}
