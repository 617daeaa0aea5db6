package quota

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/goodtune/screentimer/internal/metrics"
)

// Enforcer locks the session once per day when the allowance is spent.
type Enforcer struct {
	sink   LockSink
	fired  bool
	logger zerolog.Logger
}

// NewEnforcer creates a lock enforcer.
func NewEnforcer(sink LockSink, logger zerolog.Logger) *Enforcer {
	return &Enforcer{
		sink:   sink,
		logger: logger.With().Str("component", "enforcer").Logger(),
	}
}

// Evaluate locks when used has reached limit and no lock has fired today.
// It reports whether it fired. A failed lock still counts as fired.
func (e *Enforcer) Evaluate(ctx context.Context, used, limit int) bool {
	if e.fired || used < limit {
		return false
	}
	e.fired = true
	metrics.LocksTotal.Inc()

	if err := e.sink.Lock(ctx); err != nil {
		metrics.DeliveryErrors.WithLabelValues("lock").Inc()
		e.logger.Error().
			Err(err).
			Int("used", used).
			Int("limit", limit).
			Msg("Failed to lock session")
		return true
	}

	e.logger.Info().
		Int("used", used).
		Int("limit", limit).
		Msg("Session locked")
	return true
}

// Reset clears the fired flag.
func (e *Enforcer) Reset() {
	e.fired = false
}

// Restore sets the fired flag from persisted state.
func (e *Enforcer) Restore(fired bool) {
	e.fired = fired
}

// Fired reports whether the lock has fired today.
func (e *Enforcer) Fired() bool {
	return e.fired
}
