package observability_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/gopace/internal/observability"
)

func TestNewMetricsRegistersAll(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)
	require.NotNil(t, m)

	m.ObserveAction("tweets", true, 2*time.Second)
	m.ObserveAction("tweets", false, time.Second)
	m.ObserveRateWait("tweets", 30*time.Second)
	m.CacheHits.Inc()
	m.CacheMisses.Inc()
	m.RateMultiplier.Set(1.5)
	m.InteractionsScheduled.WithLabelValues("follows").Inc()
	m.InteractionsExecuted.WithLabelValues("follows", "completed").Inc()
	m.LoopPasses.WithLabelValues("engagement").Inc()
	m.LoopSkipped.WithLabelValues("engagement").Inc()

	assert.Equal(t, 1.0,
		testutil.ToFloat64(m.ActionsTotal.WithLabelValues("tweets", "success")))
	assert.Equal(t, 1.0,
		testutil.ToFloat64(m.ActionsTotal.WithLabelValues("tweets", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHits))
	assert.Equal(t, 1.5, testutil.ToFloat64(m.RateMultiplier))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNewMetricsDuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	observability.NewMetrics(reg)
	assert.Panics(t, func() { observability.NewMetrics(reg) })
}
