// Package observability provides Prometheus metrics for the pacing
// subsystem, exposed through the API server's /metrics endpoint.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// MetricsNamespace is the namespace for all pacing metrics.
	MetricsNamespace = "gopace"
)

// Metrics holds all Prometheus metrics for the pacing subsystem.
type Metrics struct {
	// Action metrics
	ActionsTotal          *prometheus.CounterVec
	ActionDurationSeconds *prometheus.HistogramVec

	// Rate limiter metrics
	RateWaitSeconds *prometheus.HistogramVec
	RateMultiplier  prometheus.Gauge

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// Scheduler metrics
	InteractionsScheduled *prometheus.CounterVec
	InteractionsExecuted  *prometheus.CounterVec

	// Loop metrics
	LoopPasses  *prometheus.CounterVec
	LoopSkipped *prometheus.CounterVec
}

// NewMetrics creates and registers all pacing metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)
	m := &Metrics{}

	m.initActionMetrics(factory)
	m.initRateMetrics(factory)
	m.initCacheMetrics(factory)
	m.initSchedulerMetrics(factory)
	m.initLoopMetrics(factory)

	return m
}

func (m *Metrics) initActionMetrics(factory promauto.Factory) {
	m.ActionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "actions_total",
			Help:      "Total number of actions executed",
		},
		[]string{"type", "status"},
	)

	m.ActionDurationSeconds = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Name:      "action_duration_seconds",
			Help:      "Action execution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"type"},
	)
}

func (m *Metrics) initRateMetrics(factory promauto.Factory) {
	m.RateWaitSeconds = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Name:      "rate_wait_seconds",
			Help:      "Time spent waiting for rate limiter admission",
			Buckets:   []float64{0, 1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
		[]string{"type"},
	)

	m.RateMultiplier = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Name:      "rate_global_multiplier",
			Help:      "Current global rate multiplier",
		},
	)
}

func (m *Metrics) initCacheMetrics(factory promauto.Factory) {
	m.CacheHits = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "cache_hits_total",
			Help:      "Total number of action cache hits",
		},
	)

	m.CacheMisses = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "cache_misses_total",
			Help:      "Total number of action cache misses",
		},
	)
}

func (m *Metrics) initSchedulerMetrics(factory promauto.Factory) {
	m.InteractionsScheduled = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "interactions_scheduled_total",
			Help:      "Total number of interactions queued",
		},
		[]string{"type"},
	)

	m.InteractionsExecuted = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "interactions_executed_total",
			Help:      "Total number of interaction execution attempts",
		},
		[]string{"type", "status"},
	)
}

func (m *Metrics) initLoopMetrics(factory promauto.Factory) {
	m.LoopPasses = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "loop_passes_total",
			Help:      "Total number of completed loop passes",
		},
		[]string{"loop"},
	)

	m.LoopSkipped = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "loop_skipped_total",
			Help:      "Total number of loop passes skipped by conditions",
		},
		[]string{"loop"},
	)
}

// ObserveAction records one completed action.
func (m *Metrics) ObserveAction(actionType string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	m.ActionsTotal.WithLabelValues(actionType, status).Inc()
	m.ActionDurationSeconds.WithLabelValues(actionType).Observe(duration.Seconds())
}

// ObserveRateWait records the admission wait applied before an action.
func (m *Metrics) ObserveRateWait(actionType string, wait time.Duration) {
	m.RateWaitSeconds.WithLabelValues(actionType).Observe(wait.Seconds())
}
