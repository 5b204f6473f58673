// Package config loads and validates the application configuration from a
// YAML file with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jonesrussell/gopace/internal/domain"
)

// EnvPrefix namespaces environment variable overrides, e.g.
// GOPACE_SERVER_ADDRESS.
const EnvPrefix = "GOPACE"

// Server defaults.
const (
	defaultServerAddress      = ":8080"
	defaultServerReadTimeout  = 30 * time.Second
	defaultServerWriteTimeout = 30 * time.Second
	defaultServerIdleTimeout  = 60 * time.Second
)

// Storage backends.
const (
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// ErrInvalidBackend is returned when storage.backend names an unknown store.
var ErrInvalidBackend = errors.New("storage.backend must be file, redis, or postgres")

// Config is the full application configuration.
type Config struct {
	// Profile scopes all persisted state. Required.
	Profile string `yaml:"profile" mapstructure:"profile"`

	Logging   Logging   `yaml:"logging" mapstructure:"logging"`
	Server    Server    `yaml:"server" mapstructure:"server"`
	RateLimit RateLimit `yaml:"rate_limit" mapstructure:"rate_limit"`
	Cache     Cache     `yaml:"cache" mapstructure:"cache"`
	Monitor   Monitor   `yaml:"monitor" mapstructure:"monitor"`
	Storage   Storage   `yaml:"storage" mapstructure:"storage"`
	Executor  Executor  `yaml:"executor" mapstructure:"executor"`
}

// Logging configures the zap logger.
type Logging struct {
	Level       string `yaml:"level" mapstructure:"level"`
	Development bool   `yaml:"development" mapstructure:"development"`
}

// Server configures the HTTP API server.
type Server struct {
	Address      string        `yaml:"address" mapstructure:"address"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

// RateLimit overrides the limiter's built-in per-type defaults. Keys are
// action type names ("tweets", "follows", ...); zero-valued maps keep the
// defaults.
type RateLimit struct {
	HourlyLimits    map[string]int `yaml:"hourly_limits" mapstructure:"hourly_limits"`
	MinDelaySeconds map[string]int `yaml:"min_delay_seconds" mapstructure:"min_delay_seconds"`
	BurstLimits     map[string]int `yaml:"burst_limits" mapstructure:"burst_limits"`
}

// Cache configures the action cache.
type Cache struct {
	MaxSize           int            `yaml:"max_size" mapstructure:"max_size"`
	DefaultTTLSeconds int            `yaml:"default_ttl_seconds" mapstructure:"default_ttl_seconds"`
	CategoryTTLs      map[string]int `yaml:"category_ttl_seconds" mapstructure:"category_ttl_seconds"`
}

// Monitor configures the performance monitor.
type Monitor struct {
	HistorySize           int `yaml:"history_size" mapstructure:"history_size"`
	SampleIntervalSeconds int `yaml:"sample_interval_seconds" mapstructure:"sample_interval_seconds"`
}

// Storage selects and configures the profile store backend.
type Storage struct {
	Backend  string   `yaml:"backend" mapstructure:"backend"`
	Dir      string   `yaml:"dir" mapstructure:"dir"`
	Redis    Redis    `yaml:"redis" mapstructure:"redis"`
	Postgres Postgres `yaml:"postgres" mapstructure:"postgres"`
}

// Redis configures the redis-backed profile store.
type Redis struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
	Prefix   string `yaml:"prefix" mapstructure:"prefix"`
}

// Postgres configures the postgres-backed profile store.
type Postgres struct {
	DSN string `yaml:"dsn" mapstructure:"dsn"`
}

// Executor configures loop execution.
type Executor struct {
	// LoopsFile points at the JSON loop definitions.
	LoopsFile string `yaml:"loops_file" mapstructure:"loops_file"`

	// ReadyBatchSize bounds how many due scheduled interactions are drained
	// per pass.
	ReadyBatchSize int `yaml:"ready_batch_size" mapstructure:"ready_batch_size"`
}

// Load reads configuration from path (optional; empty path uses defaults and
// environment only) and applies GOPACE_* environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers defaults for every field so env-only setups work.
func setDefaults(v *viper.Viper) {
	v.SetDefault("profile", "default")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)
	v.SetDefault("server.address", defaultServerAddress)
	v.SetDefault("server.read_timeout", defaultServerReadTimeout)
	v.SetDefault("server.write_timeout", defaultServerWriteTimeout)
	v.SetDefault("server.idle_timeout", defaultServerIdleTimeout)
	v.SetDefault("cache.max_size", 1000)
	v.SetDefault("cache.default_ttl_seconds", 3600)
	v.SetDefault("monitor.history_size", 1000)
	v.SetDefault("monitor.sample_interval_seconds", 5)
	v.SetDefault("storage.backend", BackendFile)
	v.SetDefault("storage.dir", "profiles")
	v.SetDefault("storage.redis.addr", "localhost:6379")
	v.SetDefault("storage.redis.prefix", "gopace")
	v.SetDefault("executor.ready_batch_size", 10)
}

// Validate checks the configuration for structural errors. It is called by
// Load; callers constructing a Config directly should call it themselves.
func (c *Config) Validate() error {
	if c.Profile == "" {
		return errors.New("profile must not be empty")
	}
	if c.Server.Address == "" {
		return errors.New("server.address must not be empty")
	}

	switch c.Storage.Backend {
	case BackendFile:
		if c.Storage.Dir == "" {
			return errors.New("storage.dir must be set for the file backend")
		}
	case BackendRedis:
		if c.Storage.Redis.Addr == "" {
			return errors.New("storage.redis.addr must be set for the redis backend")
		}
	case BackendPostgres:
		if c.Storage.Postgres.DSN == "" {
			return errors.New("storage.postgres.dsn must be set for the postgres backend")
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidBackend, c.Storage.Backend)
	}

	for _, m := range []map[string]int{
		c.RateLimit.HourlyLimits,
		c.RateLimit.MinDelaySeconds,
		c.RateLimit.BurstLimits,
	} {
		for name, value := range m {
			if !domain.ActionType(name).IsValid() {
				return fmt.Errorf("rate_limit: unknown action type %q", name)
			}
			if value < 0 {
				return fmt.Errorf("rate_limit: %s must be >= 0, got %d", name, value)
			}
		}
	}

	if c.Cache.MaxSize < 0 {
		return fmt.Errorf("cache.max_size must be >= 0, got %d", c.Cache.MaxSize)
	}
	if c.Monitor.HistorySize <= 0 {
		return fmt.Errorf("monitor.history_size must be > 0, got %d", c.Monitor.HistorySize)
	}
	if c.Executor.ReadyBatchSize <= 0 {
		return fmt.Errorf("executor.ready_batch_size must be > 0, got %d", c.Executor.ReadyBatchSize)
	}
	return nil
}

// HourlyLimitOverrides converts the configured hourly limits to typed keys.
func (r *RateLimit) HourlyLimitOverrides() map[domain.ActionType]int {
	return toActionTypeMap(r.HourlyLimits)
}

// MinDelayOverrides converts the configured minimum delays to durations.
func (r *RateLimit) MinDelayOverrides() map[domain.ActionType]time.Duration {
	out := make(map[domain.ActionType]time.Duration, len(r.MinDelaySeconds))
	for name, secs := range r.MinDelaySeconds {
		out[domain.ActionType(name)] = time.Duration(secs) * time.Second
	}
	return out
}

// BurstLimitOverrides converts the configured burst limits to typed keys.
func (r *RateLimit) BurstLimitOverrides() map[domain.ActionType]int {
	return toActionTypeMap(r.BurstLimits)
}

func toActionTypeMap(m map[string]int) map[domain.ActionType]int {
	out := make(map[domain.ActionType]int, len(m))
	for name, value := range m {
		out[domain.ActionType(name)] = value
	}
	return out
}
