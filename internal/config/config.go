package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/goodtune/screentimer/internal/limits"
)

// Config holds the complete application configuration
type Config struct {
	Quota         QuotaConfig        `mapstructure:"quota" yaml:"quota"`
	Storage       StorageConfig      `mapstructure:"storage" yaml:"storage"`
	Notifications NotificationConfig `mapstructure:"notifications" yaml:"notifications"`
	Lock          LockConfig         `mapstructure:"lock" yaml:"lock"`
	Logging       LoggingConfig      `mapstructure:"logging" yaml:"logging"`
	Metrics       MetricsConfig      `mapstructure:"metrics" yaml:"metrics"`
	Instance      InstanceConfig     `mapstructure:"instance" yaml:"instance"`
}

// QuotaConfig defines the daily allowance and how it is enforced
type QuotaConfig struct {
	DailyLimits    map[string]int `mapstructure:"daily_limits" yaml:"daily_limits"` // weekday name -> minutes
	LimitSource    string         `mapstructure:"limit_source" yaml:"limit_source"` // "static", "file" or "rego"
	LimitsFile     string         `mapstructure:"limits_file" yaml:"limits_file"`
	PolicyDir      string         `mapstructure:"policy_dir" yaml:"policy_dir"`
	PolicyCacheTTL string         `mapstructure:"policy_cache_ttl" yaml:"policy_cache_ttl"`
	NotifyMode     string         `mapstructure:"notify_mode" yaml:"notify_mode"` // "exact" or "staircase"
	PersistMarkers bool           `mapstructure:"persist_markers" yaml:"persist_markers"`
	TickInterval   string         `mapstructure:"tick_interval" yaml:"tick_interval"`
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Type  string      `mapstructure:"type" yaml:"type"` // "file", "bolt", "sqlite" or "redis"
	Path  string      `mapstructure:"path" yaml:"path"` // data directory for local backends
	Redis RedisConfig `mapstructure:"redis" yaml:"redis"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Host         string `mapstructure:"host" yaml:"host"`
	Port         int    `mapstructure:"port" yaml:"port"`
	Password     string `mapstructure:"password" yaml:"password"`
	DB           int    `mapstructure:"db" yaml:"db"`
	PoolSize     int    `mapstructure:"pool_size" yaml:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns" yaml:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout" yaml:"write_timeout"`
}

// NotificationConfig defines how warnings reach the user
type NotificationConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"` // "dbus" or "log"
	AppName string `mapstructure:"app_name" yaml:"app_name"`
	Timeout string `mapstructure:"timeout" yaml:"timeout"`
}

// LockConfig defines how the session is locked
type LockConfig struct {
	Backend   string   `mapstructure:"backend" yaml:"backend"` // "logind", "command" or "log"
	Command   []string `mapstructure:"command" yaml:"command"`
	SessionID string   `mapstructure:"session_id" yaml:"session_id"`
	Announce  bool     `mapstructure:"announce" yaml:"announce"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// MetricsConfig defines the metrics and status HTTP server
type MetricsConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	BindAddress string `mapstructure:"bind_address" yaml:"bind_address"`
	Port        int    `mapstructure:"port" yaml:"port"`
}

// InstanceConfig defines the single-instance guard
type InstanceConfig struct {
	LockFile string `mapstructure:"lock_file" yaml:"lock_file"`
}

// DefaultDailyLimits is the weekday table used when nothing else is configured.
var DefaultDailyLimits = limits.DefaultTable.Map()

// DefaultPath returns the default configuration file location.
func DefaultPath() string {
	return filepath.Join(configHome(), "screen-timer", "config.yaml")
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure viper
	v.SetConfigFile(configPath)
	v.SetEnvPrefix("SCREENTIMER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if !isNotFound(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	// Unmarshal config
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate config
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Defaults returns the configuration with no file or environment applied.
func Defaults() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal defaults: %w", err)
	}
	return &config, nil
}

// SetConfigFile with an explicit path reports a missing file as an
// *fs.PathError rather than viper.ConfigFileNotFoundError.
func isNotFound(err error) bool {
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		return true
	}
	return errors.Is(err, fs.ErrNotExist)
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	dataDir := filepath.Join(dataHome(), "screen-timer")

	// Quota defaults
	v.SetDefault("quota.daily_limits", DefaultDailyLimits)
	v.SetDefault("quota.limit_source", "static")
	v.SetDefault("quota.limits_file", filepath.Join(dataDir, "limits.txt"))
	v.SetDefault("quota.policy_dir", filepath.Join(configHome(), "screen-timer", "policies"))
	v.SetDefault("quota.policy_cache_ttl", "1m")
	v.SetDefault("quota.notify_mode", "exact")
	v.SetDefault("quota.persist_markers", false)
	v.SetDefault("quota.tick_interval", "1m")

	// Storage defaults
	v.SetDefault("storage.type", "file")
	v.SetDefault("storage.path", dataDir)
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 4)
	v.SetDefault("storage.redis.min_idle_conns", 1)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")

	// Notification defaults
	v.SetDefault("notifications.backend", "dbus")
	v.SetDefault("notifications.app_name", "Screen Timer")
	v.SetDefault("notifications.timeout", "10s")

	// Lock defaults
	v.SetDefault("lock.backend", "logind")
	v.SetDefault("lock.command", []string{"loginctl", "lock-session"})
	v.SetDefault("lock.session_id", "")
	v.SetDefault("lock.announce", true)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)
	v.SetDefault("logging.compress", true)

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.bind_address", "127.0.0.1")
	v.SetDefault("metrics.port", 9192)

	// Instance defaults
	v.SetDefault("instance.lock_file", filepath.Join(runtimeDir(), "screentimer.lock"))
}

// validate validates the configuration
func validate(cfg *Config) error {
	switch cfg.Quota.LimitSource {
	case "static":
		if len(cfg.Quota.DailyLimits) == 0 {
			return fmt.Errorf("quota.daily_limits is required for the static limit source")
		}
		if _, err := limits.TableFromMap(cfg.Quota.DailyLimits); err != nil {
			return fmt.Errorf("quota.daily_limits: %w", err)
		}
	case "file":
		if cfg.Quota.LimitsFile == "" {
			return fmt.Errorf("quota.limits_file is required for the file limit source")
		}
	case "rego":
		if cfg.Quota.PolicyDir == "" {
			return fmt.Errorf("quota.policy_dir is required for the rego limit source")
		}
	default:
		return fmt.Errorf("unknown quota.limit_source: %q", cfg.Quota.LimitSource)
	}

	switch cfg.Quota.NotifyMode {
	case "exact", "staircase":
	default:
		return fmt.Errorf("unknown quota.notify_mode: %q", cfg.Quota.NotifyMode)
	}

	for key, value := range map[string]string{
		"quota.tick_interval":    cfg.Quota.TickInterval,
		"quota.policy_cache_ttl": cfg.Quota.PolicyCacheTTL,
		"notifications.timeout":  cfg.Notifications.Timeout,
	} {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		if d <= 0 {
			return fmt.Errorf("invalid %s: must be positive", key)
		}
	}

	// Validate storage
	switch cfg.Storage.Type {
	case "file", "bolt", "sqlite":
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage path is required")
		}
	case "redis":
		if cfg.Storage.Redis.Host == "" {
			return fmt.Errorf("storage.redis.host is required")
		}
		if cfg.Storage.Redis.Port < 0 || cfg.Storage.Redis.Port > 65535 {
			return fmt.Errorf("invalid redis port: %d", cfg.Storage.Redis.Port)
		}
	default:
		return fmt.Errorf("unknown storage type: %q", cfg.Storage.Type)
	}

	switch cfg.Notifications.Backend {
	case "dbus", "log":
	default:
		return fmt.Errorf("unknown notifications.backend: %q", cfg.Notifications.Backend)
	}

	switch cfg.Lock.Backend {
	case "logind", "log":
	case "command":
		if len(cfg.Lock.Command) == 0 {
			return fmt.Errorf("lock.command is required for the command lock backend")
		}
	default:
		return fmt.Errorf("unknown lock.backend: %q", cfg.Lock.Backend)
	}

	switch cfg.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("unknown logging.format: %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled && (cfg.Metrics.Port <= 0 || cfg.Metrics.Port > 65535) {
		return fmt.Errorf("invalid metrics port: %d", cfg.Metrics.Port)
	}

	return nil
}

// TickDuration returns the parsed tick interval. Load has already validated it.
func (c QuotaConfig) TickDuration() time.Duration {
	d, _ := time.ParseDuration(c.TickInterval)
	return d
}

// PolicyCacheDuration returns the parsed decision cache TTL.
func (c QuotaConfig) PolicyCacheDuration() time.Duration {
	d, _ := time.ParseDuration(c.PolicyCacheTTL)
	return d
}

// TimeoutDuration returns the parsed notification expiry.
func (c NotificationConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

func configHome() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config")
	}
	return "."
}

func dataHome() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share")
	}
	return "."
}

func runtimeDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir
	}
	return os.TempDir()
}
