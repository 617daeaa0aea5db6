package clock

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/goodtune/screentimer/internal/metrics"
)

// TickFunc is invoked once per interval with the current wall-clock time.
type TickFunc func(ctx context.Context, now time.Time) error

// Scheduler runs a TickFunc at a fixed interval
type Scheduler struct {
	interval time.Duration
	clock    Clock
	tick     TickFunc
	logger   zerolog.Logger
	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	// AfterTick runs after every tick, whatever its outcome.
	AfterTick func()
	// Ticks overrides the ticker channel (tests).
	Ticks <-chan time.Time
}

// NewScheduler creates a new tick scheduler
func NewScheduler(interval time.Duration, clk Clock, tick TickFunc, logger zerolog.Logger) *Scheduler {
	if clk == nil {
		clk = RealClock{}
	}
	return &Scheduler{
		interval: interval,
		clock:    clk,
		tick:     tick,
		logger:   logger.With().Str("component", "scheduler").Logger(),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins the scheduler loop in its own goroutine
func (s *Scheduler) Start(ctx context.Context) {
	go s.run(ctx)
	s.logger.Info().
		Dur("interval", s.interval).
		Msg("Tick scheduler started")
}

// Stop stops the scheduler and waits for an in-flight tick to finish
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	<-s.done
	s.logger.Info().Msg("Tick scheduler stopped")
}

// Done is closed when the loop has exited.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// run is the main scheduler loop
func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	ticks := s.Ticks
	if ticks == nil {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		ticks = ticker.C
	}

	var last time.Time
	for {
		select {
		case <-ticks:
			now := s.clock.Now()
			if !last.IsZero() && now.Sub(last) > 2*s.interval {
				metrics.TickGapsTotal.Inc()
				s.logger.Warn().
					Time("previous_tick", last).
					Dur("gap", now.Sub(last)).
					Msg("Tick gap exceeds twice the interval, system may have been suspended")
			}
			last = now
			s.runTick(ctx, now)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) runTick(ctx context.Context, now time.Time) {
	start := time.Now()
	if err := s.tick(ctx, now); err != nil {
		s.logger.Error().Err(err).Time("tick", now).Msg("Tick completed with errors")
	}
	metrics.TickDuration.Observe(time.Since(start).Seconds())

	if s.AfterTick != nil {
		s.AfterTick()
	}
}
