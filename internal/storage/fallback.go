package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/goodtune/screentimer/internal/day"
	"github.com/rs/zerolog"
)

// Fallback wraps a UsageStore so that persistence failures never stop
// enforcement. Minutes whose write failed are kept as pending per date and
// added to every successful read, so the count keeps advancing while the
// backend is read-only. Pending minutes are merged back on the next
// successful write. When the backend cannot be read at all the last known
// count (0 for an unseen date) is returned alongside the error.
type Fallback struct {
	next   UsageStore
	logger zerolog.Logger

	mu      sync.Mutex
	known   map[day.Date]int
	pending map[day.Date]int
}

// NewFallback wraps next.
func NewFallback(next UsageStore, logger zerolog.Logger) *Fallback {
	return &Fallback{
		next:    next,
		logger:  logger.With().Str("component", "usage-store").Logger(),
		known:   make(map[day.Date]int),
		pending: make(map[day.Date]int),
	}
}

// Increment implements UsageStore.
func (f *Fallback) Increment(ctx context.Context, date day.Date) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.next.Increment(ctx, date); err != nil {
		f.seed(ctx, date)
		f.known[date]++
		f.pending[date]++
		f.logger.Warn().
			Err(err).
			Str("date", date.String()).
			Int("minutes_in_memory", f.known[date]).
			Int("minutes_pending", f.pending[date]).
			Msg("Failed to persist usage, continuing with in-memory count")
		return wrap("increment", date, err)
	}
	f.known[date]++

	if f.pending[date] > 0 {
		f.flush(ctx, date)
	}
	return nil
}

// seed loads the persisted count for a date not read yet, so a write
// failure right after a restart continues from the stored total.
func (f *Fallback) seed(ctx context.Context, date day.Date) {
	if _, ok := f.known[date]; ok {
		return
	}
	if minutes, err := f.next.MinutesUsed(ctx, date); err == nil {
		f.known[date] = minutes
	}
}

// flush merges the in-memory total into the backend once writes work again.
func (f *Fallback) flush(ctx context.Context, date day.Date) {
	persisted, err := f.next.MinutesUsed(ctx, date)
	if err != nil {
		return
	}
	total := persisted + f.pending[date]
	if err := f.next.Merge(ctx, UsageRecord{Date: date, Minutes: total}); err != nil {
		f.logger.Warn().Err(err).Str("date", date.String()).Msg("Failed to write back pending usage")
		return
	}
	f.logger.Info().
		Str("date", date.String()).
		Int("minutes_recovered", f.pending[date]).
		Int("minutes", total).
		Msg("Pending usage written back")
	delete(f.pending, date)
	f.known[date] = total
}

// MinutesUsed implements UsageStore.
func (f *Fallback) MinutesUsed(ctx context.Context, date day.Date) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	minutes, err := f.next.MinutesUsed(ctx, date)
	if err != nil {
		f.logger.Warn().
			Err(err).
			Str("date", date.String()).
			Int("minutes_in_memory", f.known[date]).
			Msg("Failed to read usage, using in-memory count")
		return f.known[date], wrap("read", date, err)
	}
	total := minutes + f.pending[date]
	f.known[date] = total
	return total, nil
}

// List implements UsageStore.
func (f *Fallback) List(ctx context.Context) ([]UsageRecord, error) {
	records, err := f.next.List(ctx)
	if err != nil {
		return nil, wrap("list", day.Date{}, err)
	}
	return records, nil
}

// Merge implements UsageStore.
func (f *Fallback) Merge(ctx context.Context, rec UsageRecord) error {
	if err := f.next.Merge(ctx, rec); err != nil {
		return wrap("merge", rec.Date, err)
	}
	return nil
}

func wrap(op string, date day.Date, err error) error {
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Date: date, Err: err}
}
