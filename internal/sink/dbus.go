package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"
)

const (
	notificationsName   = "org.freedesktop.Notifications"
	notificationsPath   = "/org/freedesktop/Notifications"
	notificationsNotify = notificationsName + ".Notify"
)

// caller is the subset of dbus.BusObject used to send notifications.
type caller interface {
	CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// Desktop sends notifications through org.freedesktop.Notifications on the
// session bus.
type Desktop struct {
	conn    *dbus.Conn
	obj     caller
	appName string
	timeout time.Duration
	logger  zerolog.Logger
}

// NewDesktop connects to the session bus.
func NewDesktop(appName string, timeout time.Duration, logger zerolog.Logger) (*Desktop, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}

	d := newDesktop(conn.Object(notificationsName, notificationsPath), appName, timeout, logger)
	d.conn = conn
	return d, nil
}

func newDesktop(obj caller, appName string, timeout time.Duration, logger zerolog.Logger) *Desktop {
	return &Desktop{
		obj:     obj,
		appName: appName,
		timeout: timeout,
		logger:  logger.With().Str("component", "sink").Str("backend", "dbus").Logger(),
	}
}

func (d *Desktop) Notify(ctx context.Context, title, message string) error {
	call := d.obj.CallWithContext(ctx, notificationsNotify, 0,
		d.appName,                       // app_name
		uint32(0),                       // replaces_id
		"",                              // app_icon
		title,                           // summary
		message,                         // body
		[]string{},                      // actions
		map[string]dbus.Variant{},       // hints
		int32(d.timeout.Milliseconds()), // expire_timeout
	)
	if call.Err != nil {
		return fmt.Errorf("notify: %w", call.Err)
	}

	var id uint32
	if err := call.Store(&id); err != nil {
		return fmt.Errorf("notify reply: %w", err)
	}
	d.logger.Debug().Uint32("notification_id", id).Str("title", title).Msg("Notification sent")
	return nil
}

// Close closes the bus connection.
func (d *Desktop) Close() error {
	if d.conn == nil {
		return nil
	}
	return d.conn.Close()
}
