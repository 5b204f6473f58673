// Package monitor provides operation timing, background resource sampling,
// and threshold-triggered optimization recommendations for paced actions.
package monitor

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/gopace/internal/logger"
)

const (
	// DefaultHistorySize is the per-operation-type sample history bound.
	DefaultHistorySize = 1000

	// DefaultSampleInterval is the resource sampler period.
	DefaultSampleInterval = 5 * time.Second

	// resourceHistorySize bounds the resource sample ring buffer.
	resourceHistorySize = 100

	// maxRecommendations bounds the retained recommendation list.
	maxRecommendations = 500

	// recommendationDedupeWindow is how many trailing recommendations are
	// checked when deduplicating a new one by type.
	recommendationDedupeWindow = 5

	// cpuThresholdPercent and memoryThresholdPercent trigger resource
	// recommendations when exceeded.
	cpuThresholdPercent    = 80.0
	memoryThresholdPercent = 85.0

	// recentWindow is the trailing-operation count used for the recent
	// average in operation stats.
	recentWindow = 10

	// rollingAverageWindow is the horizon of the system stats rolling average.
	rollingAverageWindow = 5 * time.Minute

	// stopJoinTimeout bounds the sampler join during shutdown.
	stopJoinTimeout = time.Second
)

// defaultThresholds returns slow-operation thresholds per operation type.
func defaultThresholds() map[string]time.Duration {
	return map[string]time.Duration{
		"tweets":  30 * time.Second,
		"follows": 15 * time.Second,
		"replies": 25 * time.Second,
	}
}

// Sample records one timed operation.
type Sample struct {
	Type      string        `json:"type"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
}

// Recommendation is a threshold-triggered optimization hint.
type Recommendation struct {
	Type       string    `json:"type"`
	Message    string    `json:"message"`
	Suggestion string    `json:"suggestion"`
	Timestamp  time.Time `json:"timestamp"`
}

// activeOperation tracks an operation between start and end.
type activeOperation struct {
	opType  string
	started time.Time
}

// Monitor tracks operation timings and system resources. All methods are
// safe for concurrent use. The background resource sampler is the only
// independent goroutine; it publishes immutable snapshots over a bounded
// channel rather than sharing mutable state with callers.
type Monitor struct {
	mu sync.Mutex

	clock  func() time.Time
	logger logger.Logger

	historySize int
	operations  map[string][]Sample
	counts      map[string]int64
	errors      map[string]int64
	active      map[string]activeOperation
	thresholds  map[string]time.Duration

	recommendations []Recommendation

	// Resource sampling.
	provider        ResourceProvider
	sampleInterval  time.Duration
	samples         chan ResourceSample
	resourceHistory []ResourceSample
	stopSampler     chan struct{}
	samplerDone     chan struct{}
	samplerRunning  bool
}

// Option is a functional option for configuring the Monitor.
type Option func(*Monitor)

// WithClock overrides the monitor's time source. Used in tests.
func WithClock(clock func() time.Time) Option {
	return func(m *Monitor) {
		m.clock = clock
	}
}

// WithLogger sets the monitor's logger.
func WithLogger(log logger.Logger) Option {
	return func(m *Monitor) {
		m.logger = log
	}
}

// WithHistorySize overrides the per-type sample history bound.
func WithHistorySize(size int) Option {
	return func(m *Monitor) {
		if size > 0 {
			m.historySize = size
		}
	}
}

// WithSampleInterval overrides the resource sampler period.
func WithSampleInterval(interval time.Duration) Option {
	return func(m *Monitor) {
		if interval > 0 {
			m.sampleInterval = interval
		}
	}
}

// WithResourceProvider sets the resource metrics capability. A nil provider
// disables resource sampling; availability is resolved here, at construction,
// never probed at runtime.
func WithResourceProvider(p ResourceProvider) Option {
	return func(m *Monitor) {
		m.provider = p
	}
}

// New creates a Monitor and, if a resource provider is configured, starts
// the background sampler. Stop must be called before teardown.
func New(opts ...Option) *Monitor {
	m := &Monitor{
		clock:          time.Now,
		logger:         logger.NewNop(),
		historySize:    DefaultHistorySize,
		operations:     make(map[string][]Sample),
		counts:         make(map[string]int64),
		errors:         make(map[string]int64),
		active:         make(map[string]activeOperation),
		thresholds:     defaultThresholds(),
		sampleInterval: DefaultSampleInterval,
		samples:        make(chan ResourceSample, resourceHistorySize),
		stopSampler:    make(chan struct{}),
		samplerDone:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.provider != nil {
		m.samplerRunning = true
		go m.sampleResources()
		m.logger.Info("started resource sampler",
			logger.Duration("interval", m.sampleInterval),
		)
	} else {
		close(m.samplerDone)
	}

	return m
}

// StartOperation begins timing an operation and returns a token for
// EndOperation.
func (m *Monitor) StartOperation(opType string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	token := fmt.Sprintf("%s_%s", opType, uuid.NewString())
	m.active[token] = activeOperation{opType: opType, started: m.clock()}
	return token
}

// EndOperation finishes timing an operation, records the sample, and emits a
// slow-operation recommendation if the duration exceeds the type's threshold.
func (m *Monitor) EndOperation(token string, success bool, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	op, ok := m.active[token]
	if !ok {
		m.logger.Warn("unknown operation token", logger.String("token", token))
		return
	}
	delete(m.active, token)

	now := m.clock()
	duration := now.Sub(op.started)

	samples := append(m.operations[op.opType], Sample{
		Type:      op.opType,
		Duration:  duration,
		Timestamp: now,
		Success:   success,
		Error:     errMsg,
	})
	if len(samples) > m.historySize {
		samples = samples[len(samples)-m.historySize:]
	}
	m.operations[op.opType] = samples

	m.counts[op.opType]++
	if !success {
		m.errors[op.opType]++
	}

	if threshold, ok := m.thresholds[op.opType]; ok && duration > threshold {
		m.addRecommendationLocked(Recommendation{
			Type: "slow_operation",
			Message: fmt.Sprintf("slow %s: %.1fs (threshold: %.0fs)",
				op.opType, duration.Seconds(), threshold.Seconds()),
			Suggestion: fmt.Sprintf("consider optimizing %s operations or increasing timeouts", op.opType),
			Timestamp:  now,
		})
	}

	m.logger.Debug("operation completed",
		logger.String("operation_type", op.opType),
		logger.Duration("duration", duration),
		logger.Bool("success", success),
	)
}

// addRecommendationLocked appends a recommendation unless one of the same
// type appears among the trailing few. Caller must hold m.mu.
func (m *Monitor) addRecommendationLocked(rec Recommendation) {
	start := len(m.recommendations) - recommendationDedupeWindow
	if start < 0 {
		start = 0
	}
	for _, existing := range m.recommendations[start:] {
		if existing.Type == rec.Type {
			return
		}
	}

	m.recommendations = append(m.recommendations, rec)
	if len(m.recommendations) > maxRecommendations {
		m.recommendations = m.recommendations[len(m.recommendations)-maxRecommendations:]
	}

	m.logger.Warn("performance warning",
		logger.String("type", rec.Type),
		logger.String("message", rec.Message),
		logger.String("suggestion", rec.Suggestion),
	)
}

// Recommendations returns up to limit of the most recent recommendations.
func (m *Monitor) Recommendations(limit int) []Recommendation {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 || limit > len(m.recommendations) {
		limit = len(m.recommendations)
	}
	out := make([]Recommendation, limit)
	copy(out, m.recommendations[len(m.recommendations)-limit:])
	return out
}

// ClearRecommendations removes all recommendations.
func (m *Monitor) ClearRecommendations() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recommendations = nil
}

// Reset clears all operation and resource statistics.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.operations = make(map[string][]Sample)
	m.counts = make(map[string]int64)
	m.errors = make(map[string]int64)
	m.recommendations = nil
	m.resourceHistory = nil
	m.logger.Info("reset performance statistics")
}
