// Package common wires the application components from configuration for
// the CLI commands.
package common

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jonesrussell/gopace/internal/actions"
	"github.com/jonesrussell/gopace/internal/cache"
	"github.com/jonesrussell/gopace/internal/config"
	"github.com/jonesrussell/gopace/internal/executor"
	"github.com/jonesrussell/gopace/internal/logger"
	"github.com/jonesrussell/gopace/internal/monitor"
	"github.com/jonesrussell/gopace/internal/observability"
	"github.com/jonesrussell/gopace/internal/ratelimit"
	"github.com/jonesrussell/gopace/internal/scheduler"
	"github.com/jonesrussell/gopace/internal/storage"
)

// App bundles the wired components of one profile.
type App struct {
	Config    *config.Config
	Logger    logger.Logger
	Store     storage.ProfileStore
	Limiter   *ratelimit.Limiter
	Cache     *cache.Cache
	Monitor   *monitor.Monitor
	Scheduler *scheduler.Scheduler
	Executor  *executor.Executor
	Metrics   *observability.Metrics
	Registry  *prometheus.Registry
}

// NewLogger builds the zap logger from config, forcing debug level when the
// --debug flag is set.
func NewLogger(cfg *config.Config, debug bool) (logger.Logger, error) {
	logCfg := logger.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	}
	if debug {
		logCfg.Level = "debug"
		logCfg.Development = true
	}
	return logger.New(logCfg)
}

// NewStore builds the configured profile store backend.
func NewStore(ctx context.Context, cfg *config.Config) (storage.ProfileStore, error) {
	switch cfg.Storage.Backend {
	case config.BackendFile:
		return storage.NewFileStore(cfg.Storage.Dir, cfg.Profile)
	case config.BackendRedis:
		return storage.NewRedisStore(storage.RedisConfig{
			Addr:     cfg.Storage.Redis.Addr,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
			Prefix:   cfg.Storage.Redis.Prefix,
		}, cfg.Profile)
	case config.BackendPostgres:
		return storage.NewPostgresStore(ctx, cfg.Storage.Postgres.DSN, cfg.Profile)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidBackend, cfg.Storage.Backend)
	}
}

// Bootstrap wires every component of the pacing subsystem from config.
func Bootstrap(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	store, err := NewStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build profile store: %w", err)
	}

	limiter := ratelimit.New(ratelimit.WithLogger(log))
	limiter.SetCustomLimits(cfg.RateLimit.HourlyLimitOverrides())
	limiter.SetMinDelays(cfg.RateLimit.MinDelayOverrides())
	limiter.SetBurstLimits(cfg.RateLimit.BurstLimitOverrides())

	cacheOpts := []cache.Option{cache.WithLogger(log)}
	if cfg.Cache.MaxSize > 0 {
		cacheOpts = append(cacheOpts, cache.WithMaxSize(cfg.Cache.MaxSize))
	}
	if cfg.Cache.DefaultTTLSeconds > 0 {
		cacheOpts = append(cacheOpts,
			cache.WithDefaultTTL(time.Duration(cfg.Cache.DefaultTTLSeconds)*time.Second))
	}
	actionCache := cache.New(cacheOpts...)

	mon := monitor.New(
		monitor.WithLogger(log),
		monitor.WithHistorySize(cfg.Monitor.HistorySize),
		monitor.WithSampleInterval(time.Duration(cfg.Monitor.SampleIntervalSeconds)*time.Second),
		monitor.WithResourceProvider(monitor.NewSystemProvider("/")),
	)

	sched := scheduler.New(ctx, store, scheduler.WithLogger(log))

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	exec, err := executor.New(executor.Dependencies{
		Logger:    log,
		Limiter:   limiter,
		Cache:     actionCache,
		Monitor:   mon,
		Scheduler: sched,
		Actions:   actions.NewDryRun(log),
		Metrics:   metrics,
	}, executor.WithReadyBatchSize(cfg.Executor.ReadyBatchSize))
	if err != nil {
		store.Close()
		return nil, err
	}

	if cfg.Executor.LoopsFile != "" {
		if err := exec.LoadLoops(cfg.Executor.LoopsFile); err != nil {
			store.Close()
			return nil, err
		}
	}

	return &App{
		Config:    cfg,
		Logger:    log,
		Store:     store,
		Limiter:   limiter,
		Cache:     actionCache,
		Monitor:   mon,
		Scheduler: sched,
		Executor:  exec,
		Metrics:   metrics,
		Registry:  registry,
	}, nil
}

// Close releases the app's background resources.
func (a *App) Close(ctx context.Context) {
	a.Monitor.Stop(ctx)
	if err := a.Store.Close(); err != nil {
		a.Logger.Warn("failed to close profile store", logger.Error(err))
	}
	_ = a.Logger.Sync()
}
