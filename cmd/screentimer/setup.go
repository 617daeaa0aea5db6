package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/goodtune/screentimer/internal/config"
	"github.com/goodtune/screentimer/internal/limits"
	"github.com/goodtune/screentimer/internal/storage"
	"github.com/goodtune/screentimer/internal/storage/bolt"
	"github.com/goodtune/screentimer/internal/storage/file"
	"github.com/goodtune/screentimer/internal/storage/redis"
	"github.com/goodtune/screentimer/internal/storage/sqlite"
)

// setupLogger configures the logger based on configuration. The returned
// closer releases the log file, if any.
func setupLogger(cfg config.LoggingConfig) (zerolog.Logger, io.Closer) {
	// Set log level
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	var (
		out    io.Writer = os.Stderr
		closer io.Closer = nopCloser{}
	)
	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		out, closer = rotator, rotator
	}

	// Set output format
	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out, NoColor: cfg.File != ""}).With().Timestamp().Logger(), closer
	}

	// Default to JSON
	return zerolog.New(out).With().Timestamp().Logger(), closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openStorage opens the configured backend. Local backends keep their files
// under cfg.Path.
func openStorage(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case "file", "":
		return file.Open(cfg.Path)
	case "bolt":
		return bolt.Open(filepath.Join(cfg.Path, "screentimer.bolt"))
	case "sqlite":
		return sqlite.Open(filepath.Join(cfg.Path, "screentimer.db"))
	case "redis":
		return redis.Open(cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// openStorageReadOnly opens the configured backend for the reporting
// commands, which may run alongside the enforcer.
func openStorageReadOnly(cfg config.StorageConfig) (storage.Store, error) {
	if cfg.Type == "bolt" {
		return bolt.OpenReadOnly(filepath.Join(cfg.Path, "screentimer.bolt"))
	}
	return openStorage(cfg)
}

// openLimits builds the configured limit source. The file source is watched
// only when watch is set.
func openLimits(cfg config.QuotaConfig, watch bool, logger zerolog.Logger) (limits.Source, error) {
	switch cfg.LimitSource {
	case "file":
		src, err := limits.NewFile(cfg.LimitsFile, logger)
		if err != nil {
			return nil, err
		}
		if watch {
			if err := src.Watch(); err != nil {
				logger.Warn().Err(err).Msg("Limits file will only reload on SIGHUP")
			}
		}
		return src, nil
	case "rego":
		return limits.NewRego(cfg.PolicyDir, cfg.PolicyCacheDuration(), logger)
	default:
		table, err := limits.TableFromMap(cfg.DailyLimits)
		if err != nil {
			return nil, err
		}
		return limits.NewStatic(table), nil
	}
}
