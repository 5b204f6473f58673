// Package scheduler maintains a durable, time-ordered queue of deferred
// interactions for one profile. Interactions are drawn out when due, retried
// up to a bounded attempt budget, and every attempt is appended to a capped
// execution log.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/gopace/internal/domain"
	"github.com/jonesrussell/gopace/internal/logger"
	"github.com/jonesrussell/gopace/internal/storage"
)

// ErrInteractionNotFound is returned when no active interaction matches the
// given identifier.
var ErrInteractionNotFound = errors.New("interaction not found")

// DefaultPriority is assigned to interactions scheduled without an explicit
// priority.
const DefaultPriority = 0.5

// Bulk scheduling staggers targets by an incrementing random delay in this
// per-step range, in minutes.
const (
	bulkStaggerMinMinutes = 3
	bulkStaggerMaxMinutes = 8
)

// Request describes one interaction to schedule.
type Request struct {
	Type   domain.ActionType
	Target string

	// Delay overrides the randomized delay draw. Nil means draw uniformly
	// from the configured [min,max] range.
	Delay *time.Duration

	// Priority breaks ties between interactions due at the same time.
	// Zero means DefaultPriority.
	Priority float64
}

// Scheduler owns the active interaction list and execution log of a single
// profile. All methods are safe for concurrent use; persisted state is saved
// after every mutation, and persistence failures are logged but never
// propagated to callers.
type Scheduler struct {
	mu      sync.Mutex
	clock   func() time.Time
	rng     *rand.Rand
	logger  logger.Logger
	store   storage.ProfileStore
	config  Config
	active  []domain.Interaction
	execLog []domain.ExecutionLogEntry
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the scheduler's time source. Used in tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Scheduler) {
		s.clock = clock
	}
}

// WithLogger sets the scheduler's logger.
func WithLogger(log logger.Logger) Option {
	return func(s *Scheduler) {
		s.logger = log
	}
}

// WithRand overrides the delay randomness source. Used in tests.
func WithRand(rng *rand.Rand) Option {
	return func(s *Scheduler) {
		s.rng = rng
	}
}

// WithConfig replaces the default configuration. Persisted configuration
// loaded from the store still takes precedence.
func WithConfig(cfg Config) Option {
	return func(s *Scheduler) {
		s.config = cfg
	}
}

// New creates a Scheduler backed by the given profile store and loads any
// previously persisted configuration, schedule, and log.
func New(ctx context.Context, store storage.ProfileStore, opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:  time.Now,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		logger: logger.NewNop(),
		store:  store,
		config: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.load(ctx)
	return s
}

// load restores persisted state, keeping defaults where nothing was saved.
func (s *Scheduler) load(ctx context.Context) {
	var cfg Config
	switch err := s.store.LoadConfig(ctx, &cfg); {
	case err == nil:
		s.config = cfg
	case !errors.Is(err, storage.ErrNotFound):
		s.logger.Error("failed to load scheduler config", logger.Error(err))
	}

	schedule, err := s.store.LoadSchedule(ctx)
	switch {
	case err == nil:
		s.active = schedule
		s.sortLocked()
	case !errors.Is(err, storage.ErrNotFound):
		s.logger.Error("failed to load interaction schedule", logger.Error(err))
	}

	execLog, err := s.store.LoadLog(ctx)
	switch {
	case err == nil:
		s.execLog = execLog
	case !errors.Is(err, storage.ErrNotFound):
		s.logger.Error("failed to load execution log", logger.Error(err))
	}

	s.logger.Info("interaction scheduler loaded",
		logger.Int("scheduled", len(s.active)),
		logger.Int("log_entries", len(s.execLog)))
}

// save persists all scheduler state. Persistence failures are logged and
// swallowed so a flaky store never blocks scheduling.
func (s *Scheduler) saveLocked(ctx context.Context) {
	if err := s.store.SaveConfig(ctx, s.config); err != nil {
		s.logger.Error("failed to save scheduler config", logger.Error(err))
	}
	if err := s.store.SaveSchedule(ctx, s.active); err != nil {
		s.logger.Error("failed to save interaction schedule", logger.Error(err))
	}
	s.execLog = storage.CapLog(s.execLog)
	if err := s.store.SaveLog(ctx, s.execLog); err != nil {
		s.logger.Error("failed to save execution log", logger.Error(err))
	}
}

// sortLocked orders the active list by scheduled time ascending, breaking
// ties by priority descending.
func (s *Scheduler) sortLocked() {
	sort.SliceStable(s.active, func(i, j int) bool {
		a, b := s.active[i], s.active[j]
		if !a.ScheduledAt.Equal(b.ScheduledAt) {
			return a.ScheduledAt.Before(b.ScheduledAt)
		}
		return a.Priority > b.Priority
	})
}

// Schedule queues a single interaction and returns its identifier. Without
// an explicit delay the execution time is drawn uniformly from the configured
// [min,max] delay range.
func (s *Scheduler) Schedule(ctx context.Context, req Request) (string, error) {
	if !req.Type.IsValid() {
		return "", fmt.Errorf("schedule: unknown action type %q", req.Type)
	}
	if req.Target == "" {
		return "", errors.New("schedule: target must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	delay := s.drawDelayLocked(req.Delay)
	priority := req.Priority
	if priority == 0 {
		priority = DefaultPriority
	}

	interaction := domain.Interaction{
		ID:          uuid.NewString(),
		Type:        req.Type,
		Target:      req.Target,
		ScheduledAt: now.Add(delay),
		Priority:    priority,
		Status:      domain.InteractionScheduled,
		Attempts:    0,
		MaxAttempts: domain.DefaultMaxAttempts,
		CreatedAt:   now,
	}

	s.active = append(s.active, interaction)
	s.sortLocked()
	s.saveLocked(ctx)

	s.logger.Info("scheduled interaction",
		logger.String("id", interaction.ID),
		logger.String("type", string(req.Type)),
		logger.String("target", req.Target),
		logger.Time("at", interaction.ScheduledAt))

	return interaction.ID, nil
}

// drawDelayLocked resolves the delay for a new interaction.
func (s *Scheduler) drawDelayLocked(explicit *time.Duration) time.Duration {
	if explicit != nil {
		if *explicit < 0 {
			return 0
		}
		return *explicit
	}
	minDelay := s.config.Timing.MinDelaySeconds
	maxDelay := s.config.Timing.MaxDelaySeconds
	if maxDelay <= minDelay {
		return time.Duration(minDelay) * time.Second
	}
	secs := minDelay + s.rng.Intn(maxDelay-minDelay+1)
	return time.Duration(secs) * time.Second
}

// ScheduleBulk queues one interaction per target, staggering execution times
// by an incrementing randomized delay so the batch never lands as a burst.
// It returns the number of interactions scheduled.
func (s *Scheduler) ScheduleBulk(ctx context.Context, actionType domain.ActionType, targets []string) (int, error) {
	if !actionType.IsValid() {
		return 0, fmt.Errorf("schedule bulk: unknown action type %q", actionType)
	}

	scheduled := 0
	var offset time.Duration
	for _, target := range targets {
		if target == "" {
			continue
		}
		delay := offset
		if _, err := s.Schedule(ctx, Request{
			Type:   actionType,
			Target: target,
			Delay:  &delay,
		}); err != nil {
			s.logger.Warn("bulk schedule skipped target",
				logger.String("target", target), logger.Error(err))
			continue
		}
		scheduled++
		offset += s.staggerStep()
	}

	s.logger.Info("bulk scheduled interactions",
		logger.String("type", string(actionType)),
		logger.Int("scheduled", scheduled),
		logger.Int("requested", len(targets)))

	return scheduled, nil
}

// staggerStep draws one randomized bulk spacing increment. The rng is
// shared with delay draws and guarded by the scheduler mutex.
func (s *Scheduler) staggerStep() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	step := bulkStaggerMinMinutes + s.rng.Intn(bulkStaggerMaxMinutes-bulkStaggerMinMinutes+1)
	return time.Duration(step) * time.Minute
}

// Ready returns up to limit interactions whose scheduled time has arrived,
// in execution order. Future-dated interactions are never returned, and a
// disabled scheduler returns nothing.
func (s *Scheduler) Ready(limit int) []domain.Interaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.config.Enabled || limit <= 0 {
		return nil
	}

	now := s.clock()
	ready := make([]domain.Interaction, 0, limit)
	for i := range s.active {
		if len(ready) >= limit {
			break
		}
		if s.active[i].ScheduledAt.After(now) {
			continue
		}
		ready = append(ready, s.active[i])
	}
	return ready
}

// MarkExecuted records the outcome of one execution attempt. The attempt is
// always appended to the execution log; the interaction leaves the active
// list once it completes or exhausts its attempt budget, so a failed attempt
// below the budget remains queued for retry.
func (s *Scheduler) MarkExecuted(ctx context.Context, id string, status domain.InteractionStatus, result map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.active {
		if s.active[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("mark executed %q: %w", id, ErrInteractionNotFound)
	}

	now := s.clock()
	interaction := &s.active[idx]
	interaction.Status = status
	interaction.Attempts++
	interaction.ExecutedAt = &now

	s.execLog = append(s.execLog, domain.ExecutionLogEntry{
		ID:        id,
		Type:      interaction.Type,
		Target:    interaction.Target,
		Status:    string(status),
		Timestamp: now,
		Result:    result,
	})

	if status == domain.InteractionCompleted || interaction.Attempts >= interaction.MaxAttempts {
		s.active = append(s.active[:idx], s.active[idx+1:]...)
	} else {
		// Failed below the attempt budget: stays queued for another try.
		interaction.Status = domain.InteractionScheduled
	}

	s.saveLocked(ctx)

	s.logger.Info("interaction executed",
		logger.String("id", id),
		logger.String("status", string(status)))

	return nil
}

// UpdateConfig validates, applies, and persists a new configuration.
func (s *Scheduler) UpdateConfig(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("update scheduler config: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = cfg
	s.saveLocked(ctx)
	return nil
}

// Config returns a copy of the current configuration.
func (s *Scheduler) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

// Enabled reports whether the scheduler hands out ready interactions.
func (s *Scheduler) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config.Enabled
}
