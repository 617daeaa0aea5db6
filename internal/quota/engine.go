package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/goodtune/screentimer/internal/day"
	"github.com/goodtune/screentimer/internal/metrics"
	"github.com/goodtune/screentimer/internal/storage"
)

// Options wires an Engine to its collaborators. Markers and Display are
// optional.
type Options struct {
	Usage    storage.UsageStore
	Markers  storage.MarkerStore
	Limits   LimitSource
	Notifier *Notifier
	Enforcer *Enforcer
	Display  DisplaySink
	Logger   zerolog.Logger
}

// Engine runs the per-minute enforcement cycle. It is driven from a single
// goroutine and is not safe for concurrent use.
type Engine struct {
	usage    storage.UsageStore
	markers  storage.MarkerStore
	limits   LimitSource
	notifier *Notifier
	enforcer *Enforcer
	display  DisplaySink
	logger   zerolog.Logger

	lastProcessed day.Date
	lastLimit     int
	lastLimitDate day.Date
}

// NewEngine creates a quota engine.
func NewEngine(opts Options) *Engine {
	return &Engine{
		usage:    opts.Usage,
		markers:  opts.Markers,
		limits:   opts.Limits,
		notifier: opts.Notifier,
		enforcer: opts.Enforcer,
		display:  opts.Display,
		logger:   opts.Logger.With().Str("component", "quota-engine").Logger(),
	}
}

// OnTick records one minute of use at now and applies warnings and the lock.
// The returned error joins any persistence or limit errors met on the way;
// the tick has still been processed as far as possible.
func (e *Engine) OnTick(ctx context.Context, now time.Time) (Status, error) {
	metrics.TicksTotal.Inc()

	var errs []error
	today := day.Of(now)

	if today != e.lastProcessed {
		if err := e.rollover(ctx, today); err != nil {
			errs = append(errs, err)
		}
	}

	if err := e.usage.Increment(ctx, today); err != nil {
		errs = append(errs, e.persistenceError(err))
	}

	used, err := e.usage.MinutesUsed(ctx, today)
	if err != nil {
		errs = append(errs, e.persistenceError(err))
	}

	status := Status{Date: today, Used: used}
	limit, ok, err := e.limitFor(ctx, today)
	if err != nil {
		errs = append(errs, err)
	}

	if ok {
		remaining := limit - used
		status.Limit = limit
		status.LimitKnown = true
		status.Remaining = max(0, remaining)

		changed := e.notifier.Evaluate(ctx, remaining)
		if e.enforcer.Evaluate(ctx, used, limit) {
			changed = true
		}
		if changed && e.markers != nil {
			if err := e.saveMarkers(ctx, today); err != nil {
				errs = append(errs, err)
			}
		}
	}
	status.Locked = e.enforcer.Fired()

	e.logger.Debug().
		Str("date", today.String()).
		Int("used", status.Used).
		Int("limit", status.Limit).
		Int("remaining", status.Remaining).
		Bool("limit_known", status.LimitKnown).
		Msg("Tick processed")

	if e.display != nil {
		e.display.Show(status)
	}

	return status, errors.Join(errs...)
}

// Peek computes the status at now without recording usage or firing sinks.
func (e *Engine) Peek(ctx context.Context, now time.Time) (Status, error) {
	today := day.Of(now)
	status := Status{Date: today}

	var errs []error
	used, err := e.usage.MinutesUsed(ctx, today)
	if err != nil {
		errs = append(errs, err)
	}
	status.Used = used

	limit, err := e.limits.LimitFor(ctx, today)
	switch {
	case err == nil:
		status.Limit = limit
		status.LimitKnown = true
	case e.lastLimitDate == today:
		status.Limit = e.lastLimit
		status.LimitKnown = true
		errs = append(errs, err)
	default:
		errs = append(errs, fmt.Errorf("limit for %s: %w", today, err))
	}
	if status.LimitKnown {
		status.Remaining = max(0, status.Limit-used)
	}
	if today == e.lastProcessed {
		status.Locked = e.enforcer.Fired()
	}

	return status, errors.Join(errs...)
}

// rollover resets per-day state and restores persisted markers for today.
func (e *Engine) rollover(ctx context.Context, today day.Date) error {
	if !e.lastProcessed.IsZero() {
		e.logger.Info().
			Str("previous", e.lastProcessed.String()).
			Str("date", today.String()).
			Msg("New day, resetting warnings and lock")
	}

	e.notifier.Reset()
	e.enforcer.Reset()
	e.lastProcessed = today

	if e.markers == nil {
		return nil
	}

	markers, err := e.markers.GetMarkers(ctx, today)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		metrics.PersistenceErrors.WithLabelValues("get_markers").Inc()
		e.logger.Error().Err(err).Str("date", today.String()).Msg("Failed to restore markers")
		return &storage.PersistenceError{Op: "get_markers", Date: today, Err: err}
	}

	e.notifier.Restore(markers.Thresholds)
	e.enforcer.Restore(markers.Locked)
	e.logger.Info().
		Str("date", today.String()).
		Ints("thresholds", markers.Thresholds).
		Bool("locked", markers.Locked).
		Msg("Restored markers")
	return nil
}

// limitFor queries the limit source, falling back to the last limit seen for
// the same date. ok is false when no limit is available.
func (e *Engine) limitFor(ctx context.Context, today day.Date) (int, bool, error) {
	limit, err := e.limits.LimitFor(ctx, today)
	if err == nil {
		e.lastLimit = limit
		e.lastLimitDate = today
		return limit, true, nil
	}

	if e.lastLimitDate == today {
		e.logger.Warn().
			Err(err).
			Int("limit", e.lastLimit).
			Msg("Limit lookup failed, reusing last known limit")
		return e.lastLimit, true, fmt.Errorf("limit for %s: %w", today, err)
	}

	e.logger.Error().
		Err(err).
		Str("date", today.String()).
		Msg("Limit lookup failed, skipping warnings and lock for this tick")
	return 0, false, fmt.Errorf("limit for %s: %w", today, err)
}

func (e *Engine) saveMarkers(ctx context.Context, today day.Date) error {
	markers := storage.Markers{
		Thresholds: e.notifier.Notified(),
		Locked:     e.enforcer.Fired(),
	}
	if err := e.markers.SaveMarkers(ctx, today, markers); err != nil {
		metrics.PersistenceErrors.WithLabelValues("save_markers").Inc()
		e.logger.Error().Err(err).Str("date", today.String()).Msg("Failed to persist markers")
		return &storage.PersistenceError{Op: "save_markers", Date: today, Err: err}
	}
	return nil
}

func (e *Engine) persistenceError(err error) error {
	var perr *storage.PersistenceError
	if errors.As(err, &perr) {
		metrics.PersistenceErrors.WithLabelValues(perr.Op).Inc()
	} else {
		metrics.PersistenceErrors.WithLabelValues("usage").Inc()
	}
	return err
}
