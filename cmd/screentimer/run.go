package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/goodtune/screentimer/internal/clock"
	"github.com/goodtune/screentimer/internal/config"
	"github.com/goodtune/screentimer/internal/display"
	"github.com/goodtune/screentimer/internal/instance"
	"github.com/goodtune/screentimer/internal/limits"
	"github.com/goodtune/screentimer/internal/metrics"
	"github.com/goodtune/screentimer/internal/quota"
	"github.com/goodtune/screentimer/internal/sink"
	"github.com/goodtune/screentimer/internal/storage"
	"github.com/goodtune/screentimer/internal/systemd"
)

var runQuiet bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the screen-time enforcer",
	Long:  `Count session minutes, warn as the daily allowance runs out and lock the session once it is spent.`,
	RunE:  runEnforcer,
}

func init() {
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "Do not print status lines to the terminal")
	rootCmd.AddCommand(runCmd)
}

func runEnforcer(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup logger
	logger, logCloser := setupLogger(cfg.Logging)
	defer logCloser.Close()
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting screentimer")

	// Refuse to double-count minutes
	lock, err := instance.Acquire(cfg.Instance.LockFile)
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Error().Err(err).Msg("Failed to release instance lock")
		}
	}()

	// Check for systemd socket activation
	sdListeners, err := systemd.GetListeners()
	if err != nil {
		return fmt.Errorf("failed to get systemd listeners: %w", err)
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	// Initialize storage
	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	logger.Info().
		Str("type", cfg.Storage.Type).
		Str("path", cfg.Storage.Path).
		Msg("Storage initialized")

	// Initialize limit source
	limitSource, err := openLimits(cfg.Quota, true, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize limit source: %w", err)
	}
	defer limitSource.Close()

	logger.Info().Str("source", cfg.Quota.LimitSource).Msg("Limit source initialized")

	// Initialize sinks
	notifier, locker, closeSinks := buildSinks(cfg, logger)
	defer closeSinks()

	// Initialize display
	board := display.NewBoard()
	latest := &display.Latest{}
	displays := display.Fanout{latest, display.Gauge{}}
	if !runQuiet {
		displays = append(displays, board)
	}

	// Initialize quota engine
	var markerStore storage.MarkerStore
	if cfg.Quota.PersistMarkers {
		markerStore = store.Markers()
	}

	engine := quota.NewEngine(quota.Options{
		Usage:    storage.NewFallback(store.Usage(), logger),
		Markers:  markerStore,
		Limits:   limitSource,
		Notifier: quota.NewNotifier(notifier, quota.NotifyMode(cfg.Quota.NotifyMode), logger),
		Enforcer: quota.NewEnforcer(locker, logger),
		Display:  displays,
		Logger:   logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if !runQuiet {
		go board.Render(ctx, cmd.OutOrStdout())
	}

	// Show where the day stands before the first minute is counted
	if status, err := engine.Peek(ctx, time.Now()); err != nil {
		logger.Warn().Err(err).Msg("Could not compute startup status")
	} else {
		displays.Show(status)
	}

	// Initialize Metrics Server
	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled || sdListeners.Metrics != nil {
		metricsAddr := fmt.Sprintf("%s:%d", cfg.Metrics.BindAddress, cfg.Metrics.Port)
		metricsServer = metrics.NewServer(metricsAddr, latest.Handler(), logger)
		if sdListeners.Metrics != nil {
			metricsServer.SetListener(sdListeners.Metrics)
		}
		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		logger.Debug().Str("addr", metricsServer.Addr()).Msg("Metrics server listening")
	}

	// Start the tick loop
	scheduler := clock.NewScheduler(cfg.Quota.TickDuration(), clock.RealClock{}, func(ctx context.Context, now time.Time) error {
		_, err := engine.OnTick(ctx, now)
		return err
	}, logger)
	scheduler.AfterTick = func() {
		if err := systemd.NotifyWatchdog(); err != nil {
			logger.Debug().Err(err).Msg("Failed to send systemd watchdog notification")
		}
	}
	scheduler.Start(ctx)

	if wd := systemd.WatchdogInterval(); wd > 0 && wd < 2*cfg.Quota.TickDuration() {
		logger.Warn().
			Dur("watchdog", wd).
			Dur("tick_interval", cfg.Quota.TickDuration()).
			Msg("systemd watchdog is shorter than two tick intervals")
	}

	logger.Info().
		Dur("tick_interval", cfg.Quota.TickDuration()).
		Str("notify_mode", cfg.Quota.NotifyMode).
		Bool("persist_markers", cfg.Quota.PersistMarkers).
		Msg("screentimer startup complete")

	// Notify systemd that we're ready
	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	} else {
		logger.Debug().Msg("Sent systemd ready notification")
	}

	// Wait for signals (shutdown or reload)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	// Signal handling loop
	for running := true; running; {
		select {
		case sig := <-sigChan:
			switch sig {
			case syscall.SIGHUP:
				logger.Info().Msg("SIGHUP received, reloading limits...")
				_ = systemd.NotifyReloading()
				if err := reloadLimits(limitSource, logger); err != nil {
					logger.Error().Err(err).Msg("Failed to reload limits")
				} else {
					logger.Info().Msg("Limits reloaded successfully")
				}
				_ = systemd.NotifyReady()
			default:
				logger.Info().Msg("Shutdown signal received, gracefully stopping...")
				running = false
			}
		case <-scheduler.Done():
			running = false
		}
	}

	// Notify systemd that we're stopping
	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}

	scheduler.Stop()

	if metricsServer != nil {
		if err := metricsServer.Stop(); err != nil {
			logger.Error().Err(err).Msg("Error stopping metrics server")
		}
	}

	logger.Info().Msg("screentimer stopped")
	return nil
}

// reloadLimits re-reads the limit source. The static table comes from the
// configuration file, so it is reloaded from there.
func reloadLimits(src limits.Source, logger zerolog.Logger) error {
	static, ok := src.(*limits.Static)
	if !ok {
		return src.Reload()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	table, err := limits.TableFromMap(cfg.Quota.DailyLimits)
	if err != nil {
		return err
	}
	static.Set(table)
	logger.Info().Interface("limits", table.Map()).Msg("Daily limits updated")
	return nil
}

// buildSinks creates the notifier and locker. Backends that cannot be
// reached fall back to logging so enforcement still runs.
func buildSinks(cfg *config.Config, logger zerolog.Logger) (quota.NotificationSink, quota.LockSink, func()) {
	var closers []func() error
	logSink := sink.NewLog(logger)

	var notifier quota.NotificationSink = logSink
	if cfg.Notifications.Backend == "dbus" {
		desktop, err := sink.NewDesktop(cfg.Notifications.AppName, cfg.Notifications.TimeoutDuration(), logger)
		if err != nil {
			logger.Warn().Err(err).Msg("Desktop notifications unavailable, logging warnings instead")
		} else {
			notifier = desktop
			closers = append(closers, desktop.Close)
		}
	}

	var locker quota.LockSink = logSink
	switch cfg.Lock.Backend {
	case "logind":
		logind, err := sink.NewLogind(cfg.Lock.SessionID, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("logind unavailable, lock requests will only be logged")
		} else {
			locker = logind
			closers = append(closers, logind.Close)
		}
	case "command":
		command, err := sink.NewCommand(cfg.Lock.Command, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("Invalid lock command, lock requests will only be logged")
		} else {
			locker = command
		}
	}

	if cfg.Lock.Announce {
		locker = sink.NewAnnounce(notifier, locker, logger)
	}

	return notifier, locker, func() {
		for _, closeFn := range closers {
			if err := closeFn(); err != nil && !errors.Is(err, os.ErrClosed) {
				logger.Error().Err(err).Msg("Failed to close sink")
			}
		}
	}
}
