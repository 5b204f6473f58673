package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/gopace/internal/domain"
	"github.com/jonesrussell/gopace/internal/logger"
	"github.com/jonesrussell/gopace/internal/scheduler"
)

// stopTimeout bounds a graceful loop stop requested over the API.
const stopTimeout = 30 * time.Second

var errNegativeLimit = errors.New("limit must be >= 0")

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleStatus handles GET /status
func (s *Server) handleStatus(c *gin.Context) {
	status := s.deps.Executor.Status()
	c.JSON(http.StatusOK, gin.H{
		"state":             status.State,
		"loops":             status.Loops,
		"scheduler_enabled": s.deps.Scheduler.Enabled(),
		"global_multiplier": s.deps.Limiter.GlobalMultiplier(),
	})
}

// handleLoopsStart handles POST /api/v1/loops/start. The executor gets the
// server's base context, not the request's: net/http cancels the request
// context when the handler returns, which would kill the run goroutine.
func (s *Server) handleLoopsStart(c *gin.Context) {
	if err := s.deps.Executor.Start(s.baseCtx); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": s.deps.Executor.State().String()})
}

// handleLoopsStop handles POST /api/v1/loops/stop
func (s *Server) handleLoopsStop(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), stopTimeout)
	defer cancel()

	if err := s.deps.Executor.Stop(ctx); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": s.deps.Executor.State().String()})
}

// handleStats handles GET /api/v1/stats: the full JSON statistics export.
func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"rate_limiter": s.deps.Limiter.Statistics(),
		"cache":        s.deps.Cache.Statistics(),
		"performance":  s.deps.Monitor.Export(),
		"scheduler":    s.deps.Scheduler.Stats(),
		"executor":     s.deps.Executor.Status(),
	})
}

// limitsRequest maps action type names to per-hour limits.
type limitsRequest map[string]int

// handleSetLimits handles PUT /api/v1/limits
func (s *Server) handleSetLimits(c *gin.Context) {
	var req limitsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	limits, err := toTypedLimits(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.deps.Limiter.SetCustomLimits(limits)
	c.JSON(http.StatusOK, gin.H{"updated": len(limits)})
}

// handleSetDelays handles PUT /api/v1/delays. Values are seconds.
func (s *Server) handleSetDelays(c *gin.Context) {
	var req limitsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	delays := make(map[domain.ActionType]time.Duration, len(req))
	for name, secs := range req {
		t, err := domain.ParseActionType(name)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if secs < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "delay must be >= 0"})
			return
		}
		delays[t] = time.Duration(secs) * time.Second
	}

	s.deps.Limiter.SetMinDelays(delays)
	c.JSON(http.StatusOK, gin.H{"updated": len(delays)})
}

// rateRequest carries the global rate multiplier.
type rateRequest struct {
	Multiplier float64 `json:"multiplier" binding:"required"`
}

// handleSetRate handles PUT /api/v1/rate
func (s *Server) handleSetRate(c *gin.Context) {
	var req rateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.deps.Limiter.AdjustGlobalRate(req.Multiplier)
	c.JSON(http.StatusOK, gin.H{
		"multiplier": s.deps.Limiter.GlobalMultiplier(),
	})
}

// interactionRequest schedules one interaction, or many when targets is set.
type interactionRequest struct {
	Type         string   `json:"type" binding:"required"`
	Target       string   `json:"target"`
	Targets      []string `json:"targets"`
	DelaySeconds *int     `json:"delay_seconds"`
	Priority     float64  `json:"priority"`
}

// handleScheduleInteraction handles POST /api/v1/interactions
func (s *Server) handleScheduleInteraction(c *gin.Context) {
	var req interactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actionType, err := domain.ParseActionType(req.Type)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if len(req.Targets) > 0 {
		scheduled, bulkErr := s.deps.Scheduler.ScheduleBulk(ctx, actionType, req.Targets)
		if bulkErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": bulkErr.Error()})
			return
		}
		if s.deps.Metrics != nil {
			s.deps.Metrics.InteractionsScheduled.
				WithLabelValues(actionType.String()).Add(float64(scheduled))
		}
		c.JSON(http.StatusOK, gin.H{"scheduled": scheduled})
		return
	}

	sreq := scheduler.Request{
		Type:     actionType,
		Target:   req.Target,
		Priority: req.Priority,
	}
	if req.DelaySeconds != nil {
		d := time.Duration(*req.DelaySeconds) * time.Second
		sreq.Delay = &d
	}

	id, err := s.deps.Scheduler.Schedule(ctx, sreq)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.InteractionsScheduled.
			WithLabelValues(actionType.String()).Inc()
	}

	s.logger.Info("interaction scheduled via api",
		logger.String("id", id), logger.String("type", req.Type))
	c.JSON(http.StatusOK, gin.H{"id": id})
}

// handleInteractionStats handles GET /api/v1/interactions/stats
func (s *Server) handleInteractionStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Scheduler.Stats())
}

// toTypedLimits validates the action type names in a limits payload.
func toTypedLimits(req limitsRequest) (map[domain.ActionType]int, error) {
	limits := make(map[domain.ActionType]int, len(req))
	for name, limit := range req {
		t, err := domain.ParseActionType(name)
		if err != nil {
			return nil, err
		}
		if limit < 0 {
			return nil, errNegativeLimit
		}
		limits[t] = limit
	}
	return limits, nil
}
