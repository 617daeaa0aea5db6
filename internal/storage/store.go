package storage

import (
	"context"
	"errors"

	"github.com/goodtune/screentimer/internal/day"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// ErrCorruptRow is returned when a stored row cannot be parsed.
var ErrCorruptRow = errors.New("storage: corrupt row")

// Store represents the root storage interface.
type Store interface {
	Close() error
	Usage() UsageStore
	Markers() MarkerStore
}

// UsageStore is the durable, date-keyed counter of minutes used.
type UsageStore interface {
	// Increment adds one minute to date, creating the record if absent.
	// The write is durable before Increment returns.
	Increment(ctx context.Context, date day.Date) error
	// MinutesUsed returns the stored count for date, or 0 without error
	// if no record exists.
	MinutesUsed(ctx context.Context, date day.Date) (int, error)
	// List returns every record in insertion order.
	List(ctx context.Context) ([]UsageRecord, error)
	// Merge raises the count for rec.Date to rec.Minutes if that is higher
	// than the stored count. Counts are never lowered.
	Merge(ctx context.Context, rec UsageRecord) error
}

// MarkerStore persists the day-scoped notification and lock markers.
type MarkerStore interface {
	// GetMarkers returns the markers for date, or ErrNotFound.
	GetMarkers(ctx context.Context, date day.Date) (*Markers, error)
	SaveMarkers(ctx context.Context, date day.Date, markers Markers) error
}
