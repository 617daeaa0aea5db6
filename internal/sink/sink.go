// Package sink delivers warnings and session locks to the desktop.
package sink

import (
	"context"

	"github.com/rs/zerolog"
)

// LimitReachedTitle and LimitReachedMessage are announced before locking.
const (
	LimitReachedTitle   = "Screen Time Limit Reached"
	LimitReachedMessage = "Your screen time limit has been reached. The computer will now lock."
)

// Notifier delivers a user-visible message.
type Notifier interface {
	Notify(ctx context.Context, title, message string) error
}

// Locker locks the user's session.
type Locker interface {
	Lock(ctx context.Context) error
}

// Log writes notifications and locks to the log only.
type Log struct {
	logger zerolog.Logger
}

// NewLog creates a log-only sink.
func NewLog(logger zerolog.Logger) *Log {
	return &Log{logger: logger.With().Str("component", "sink").Str("backend", "log").Logger()}
}

func (l *Log) Notify(ctx context.Context, title, message string) error {
	l.logger.Info().Str("title", title).Str("message", message).Msg("Notification")
	return nil
}

func (l *Log) Lock(ctx context.Context) error {
	l.logger.Warn().Msg("Session lock requested")
	return nil
}

// Announce tells the user the limit has been reached, then locks. A failed
// announcement does not prevent the lock.
type Announce struct {
	notifier Notifier
	locker   Locker
	logger   zerolog.Logger
}

// NewAnnounce wraps locker with a limit-reached notification.
func NewAnnounce(notifier Notifier, locker Locker, logger zerolog.Logger) *Announce {
	return &Announce{
		notifier: notifier,
		locker:   locker,
		logger:   logger.With().Str("component", "sink").Logger(),
	}
}

func (a *Announce) Lock(ctx context.Context) error {
	if err := a.notifier.Notify(ctx, LimitReachedTitle, LimitReachedMessage); err != nil {
		a.logger.Error().Err(err).Msg("Failed to announce lock")
	}
	return a.locker.Lock(ctx)
}
