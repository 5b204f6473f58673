package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/gopace/internal/api"
	"github.com/jonesrussell/gopace/internal/cache"
	"github.com/jonesrussell/gopace/internal/domain"
	"github.com/jonesrussell/gopace/internal/executor"
	"github.com/jonesrussell/gopace/internal/monitor"
	"github.com/jonesrussell/gopace/internal/observability"
	"github.com/jonesrussell/gopace/internal/ratelimit"
	"github.com/jonesrussell/gopace/internal/scheduler"
	"github.com/jonesrussell/gopace/internal/storage"
)

type nopActions struct{}

func (nopActions) CreatePost(context.Context, string, []string) (domain.ActionResult, error) {
	return domain.ActionResult{}, nil
}
func (nopActions) Reply(context.Context, string, string, []string) (domain.ActionResult, error) {
	return domain.ActionResult{}, nil
}
func (nopActions) Follow(context.Context, string) (domain.ActionResult, error) {
	return domain.ActionResult{}, nil
}
func (nopActions) BulkFollow(context.Context, []string) (domain.ActionResult, error) {
	return domain.ActionResult{}, nil
}
func (nopActions) Unfollow(context.Context, string) (domain.ActionResult, error) {
	return domain.ActionResult{}, nil
}
func (nopActions) Like(context.Context, string) (domain.ActionResult, error) {
	return domain.ActionResult{}, nil
}
func (nopActions) Retweet(context.Context, string) (domain.ActionResult, error) {
	return domain.ActionResult{}, nil
}
func (nopActions) SendDM(context.Context, string, string) (domain.ActionResult, error) {
	return domain.ActionResult{}, nil
}
func (nopActions) CreateList(context.Context, string, string, []string) (domain.ActionResult, error) {
	return domain.ActionResult{}, nil
}

type harness struct {
	server  *api.Server
	limiter *ratelimit.Limiter
	sched   *scheduler.Scheduler
	exec    *executor.Executor
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	limiter := ratelimit.New()
	actionCache := cache.New()
	mon := monitor.New()
	t.Cleanup(func() { mon.Stop(context.Background()) })

	store, err := storage.NewFileStore(t.TempDir(), "api")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	sched := scheduler.New(context.Background(), store)

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	exec, err := executor.New(executor.Dependencies{
		Limiter:   limiter,
		Cache:     actionCache,
		Monitor:   mon,
		Scheduler: sched,
		Actions:   nopActions{},
		Metrics:   metrics,
	})
	require.NoError(t, err)

	server := api.NewServer(api.Config{Address: ":0"}, api.Dependencies{
		Executor:  exec,
		Limiter:   limiter,
		Cache:     actionCache,
		Monitor:   mon,
		Scheduler: sched,
		Metrics:   metrics,
		Gatherer:  reg,
	})

	return &harness{server: server, limiter: limiter, sched: sched, exec: exec}
}

func (h *harness) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeJSON(t, rec)["status"])
}

func TestStatusReportsIdleExecutor(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeJSON(t, rec)
	assert.Equal(t, "idle", body["state"])
	assert.Equal(t, true, body["scheduler_enabled"])
	assert.Equal(t, 1.0, body["global_multiplier"])
}

func TestLoopsStartStop(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/v1/loops/start", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "running", decodeJSON(t, rec)["state"])

	// Double start conflicts.
	rec = h.do(t, http.MethodPost, "/api/v1/loops/start", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/v1/loops/stop", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "idle", decodeJSON(t, rec)["state"])

	rec = h.do(t, http.MethodPost, "/api/v1/loops/stop", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLoopsStartSurvivesRequestContext(t *testing.T) {
	h := newHarness(t)

	// Zero delays so passes never sit in WaitIfNeeded.
	delays := make(map[domain.ActionType]time.Duration)
	for _, at := range domain.AllActionTypes() {
		delays[at] = 0
	}
	h.limiter.SetMinDelays(delays)

	require.NoError(t, h.exec.SetLoops([]domain.LoopConfig{{
		ID:              "ticker",
		IntervalSeconds: 1,
		Actions: []domain.LoopAction{
			{Type: domain.ActionLike, Params: map[string]any{"target": "t1"}},
		},
	}}))

	// A real server cancels the request context once the response is
	// written; the run goroutine must keep executing passes regardless.
	ts := httptest.NewServer(h.server.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/v1/loops/start", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool {
		st := h.exec.Status()
		return st.State == executor.StateRunning.String() &&
			len(st.Loops) == 1 && st.Loops[0].Passes >= 2
	}, 10*time.Second, 50*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.exec.Stop(stopCtx))
}

func TestStatsExport(t *testing.T) {
	h := newHarness(t)
	h.limiter.Record(domain.ActionTweet, true)

	rec := h.do(t, http.MethodGet, "/api/v1/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeJSON(t, rec)
	for _, key := range []string{"rate_limiter", "cache", "performance", "scheduler", "executor"} {
		assert.Contains(t, body, key)
	}
}

func TestSetLimits(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPut, "/api/v1/limits", `{"tweets": 2}`)
	require.Equal(t, http.StatusOK, rec.Code)

	stats := h.limiter.Statistics()
	assert.Equal(t, 2, stats.Types[domain.ActionTweet].HourlyLimit)

	rec = h.do(t, http.MethodPut, "/api/v1/limits", `{"teleports": 2}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodPut, "/api/v1/limits", `{"tweets": -1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetDelaysAndRate(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPut, "/api/v1/delays", `{"likes": 10}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodPut, "/api/v1/rate", `{"multiplier": 2.5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2.5, h.limiter.GlobalMultiplier())

	// Out-of-range multipliers are clamped, not rejected.
	rec = h.do(t, http.MethodPut, "/api/v1/rate", `{"multiplier": 99}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ratelimit.MaxGlobalMultiplier, h.limiter.GlobalMultiplier())
}

func TestScheduleInteraction(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/v1/interactions",
		`{"type": "follows", "target": "alice", "delay_seconds": 0}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decodeJSON(t, rec)["id"])

	require.Len(t, h.sched.Ready(10), 1)

	rec = h.do(t, http.MethodPost, "/api/v1/interactions",
		`{"type": "nope", "target": "alice"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/v1/interactions",
		`{"type": "follows", "targets": ["a", "b", "c"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(3), decodeJSON(t, rec)["scheduled"])
}

func TestInteractionStats(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/api/v1/interactions/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON(t, rec)
	assert.Contains(t, body, "total_scheduled")
	assert.Contains(t, body, "scheduler_enabled")
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gopace_")
}

func TestShutdown(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, h.server.Shutdown(ctx))
}
