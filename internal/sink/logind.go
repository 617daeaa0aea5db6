package sink

import (
	"context"
	"fmt"
	"os"

	"github.com/coreos/go-systemd/v22/login1"
	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"
)

// sessionManager is the subset of *login1.Conn used for locking.
type sessionManager interface {
	GetSession(id string) (dbus.ObjectPath, error)
	LockSession(id string)
	LockSessions()
	Close()
}

// Logind locks sessions through systemd-logind.
type Logind struct {
	manager   sessionManager
	sessionID string
	logger    zerolog.Logger
}

// NewLogind connects to logind on the system bus. An empty sessionID falls
// back to XDG_SESSION_ID; if that is unset every session is locked.
func NewLogind(sessionID string, logger zerolog.Logger) (*Logind, error) {
	conn, err := login1.New()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to logind: %w", err)
	}
	if sessionID == "" {
		sessionID = os.Getenv("XDG_SESSION_ID")
	}
	return newLogind(conn, sessionID, logger), nil
}

func newLogind(manager sessionManager, sessionID string, logger zerolog.Logger) *Logind {
	return &Logind{
		manager:   manager,
		sessionID: sessionID,
		logger:    logger.With().Str("component", "sink").Str("backend", "logind").Logger(),
	}
}

func (l *Logind) Lock(ctx context.Context) error {
	if l.sessionID == "" {
		l.logger.Info().Msg("Locking all sessions")
		l.manager.LockSessions()
		return nil
	}

	// LockSession does not report failures; resolve the session first.
	path, err := l.manager.GetSession(l.sessionID)
	if err != nil {
		return fmt.Errorf("lock session %s: %w", l.sessionID, err)
	}

	l.logger.Info().Str("session_id", l.sessionID).Str("path", string(path)).Msg("Locking session")
	l.manager.LockSession(l.sessionID)
	return nil
}

// Close closes the logind connection.
func (l *Logind) Close() error {
	l.manager.Close()
	return nil
}
