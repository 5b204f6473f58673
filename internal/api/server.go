// Package api exposes the pacing subsystem to an orchestrator or UI over
// HTTP: loop start/stop, status, statistics export, runtime limit
// overrides, and interaction scheduling.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonesrussell/gopace/internal/cache"
	"github.com/jonesrussell/gopace/internal/executor"
	"github.com/jonesrussell/gopace/internal/logger"
	"github.com/jonesrussell/gopace/internal/monitor"
	"github.com/jonesrussell/gopace/internal/observability"
	"github.com/jonesrussell/gopace/internal/ratelimit"
	"github.com/jonesrussell/gopace/internal/scheduler"
)

// Config holds HTTP server settings.
type Config struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Dependencies holds the components the API surfaces.
type Dependencies struct {
	Logger    logger.Logger
	Executor  *executor.Executor
	Limiter   *ratelimit.Limiter
	Cache     *cache.Cache
	Monitor   *monitor.Monitor
	Scheduler *scheduler.Scheduler

	// Metrics is optional; scheduling counters are skipped when nil.
	Metrics *observability.Metrics

	// Gatherer backs the /metrics endpoint. Nil disables it.
	Gatherer prometheus.Gatherer
}

// Server is the HTTP control surface.
type Server struct {
	logger logger.Logger
	deps   Dependencies
	srv    *http.Server

	// baseCtx outlives individual requests: loop execution started over
	// HTTP must not die with the request that started it.
	baseCtx context.Context
	cancel  context.CancelFunc
}

// NewServer builds the server and its routes.
func NewServer(cfg Config, deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		logger:  deps.Logger,
		deps:    deps,
		baseCtx: baseCtx,
		cancel:  cancel,
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s.registerRoutes(engine)

	s.srv = &http.Server{
		Addr:         cfg.Address,
		Handler:      engine,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func (s *Server) registerRoutes(engine *gin.Engine) {
	engine.GET("/healthz", s.handleHealth)
	engine.GET("/status", s.handleStatus)
	if s.deps.Gatherer != nil {
		engine.GET("/metrics", gin.WrapH(
			promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := engine.Group("/api/v1")
	v1.POST("/loops/start", s.handleLoopsStart)
	v1.POST("/loops/stop", s.handleLoopsStop)
	v1.GET("/stats", s.handleStats)
	v1.PUT("/limits", s.handleSetLimits)
	v1.PUT("/delays", s.handleSetDelays)
	v1.PUT("/rate", s.handleSetRate)
	v1.POST("/interactions", s.handleScheduleInteraction)
	v1.GET("/interactions/stats", s.handleInteractionStats)
}

// Handler exposes the configured HTTP handler. Used in tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start serves HTTP until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("api server listening", logger.String("address", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully, bounded by ctx, and cancels the
// context handed to loop execution started over HTTP.
func (s *Server) Shutdown(ctx context.Context) error {
	defer s.cancel()
	return s.srv.Shutdown(ctx)
}
