// Package executor drives configured behavioral loops: it evaluates loop
// and action conditions, admits each action through the rate limiter,
// short-circuits on cached results, invokes the external action executor,
// and records outcomes into the limiter, monitor, and cache. Due scheduled
// interactions are drained into the same execution path every pass.
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jonesrussell/gopace/internal/cache"
	"github.com/jonesrussell/gopace/internal/domain"
	"github.com/jonesrussell/gopace/internal/logger"
	"github.com/jonesrussell/gopace/internal/monitor"
	"github.com/jonesrussell/gopace/internal/observability"
	"github.com/jonesrussell/gopace/internal/ratelimit"
	"github.com/jonesrussell/gopace/internal/scheduler"
)

// State represents the executor's lifecycle state.
type State int32

const (
	// StateIdle means the executor is not running.
	StateIdle State = iota

	// StateRunning means loops are being executed.
	StateRunning

	// StateStopping means a graceful stop is in progress.
	StateStopping
)

// String returns the string representation of a state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

const (
	// DefaultReadyBatchSize bounds how many due scheduled interactions are
	// drained per pass.
	DefaultReadyBatchSize = 10

	// idleTick bounds how long a pass sleeps when no loop is due, so due
	// scheduled interactions are still drained promptly.
	idleTick = 30 * time.Second

	// Self-throttle feedback on the global rate multiplier. Failures grow
	// it, successes decay it back toward neutral.
	throttleGrowthFactor = 1.5
	throttleDecayFactor  = 0.9
)

// ActionExecutor is the external capability that actually performs
// platform actions. Implementations live outside this subsystem and each
// call may fail with an opaque error.
type ActionExecutor interface {
	CreatePost(ctx context.Context, content string, media []string) (domain.ActionResult, error)
	Reply(ctx context.Context, target, content string, media []string) (domain.ActionResult, error)
	Follow(ctx context.Context, target string) (domain.ActionResult, error)
	BulkFollow(ctx context.Context, targets []string) (domain.ActionResult, error)
	Unfollow(ctx context.Context, target string) (domain.ActionResult, error)
	Like(ctx context.Context, target string) (domain.ActionResult, error)
	Retweet(ctx context.Context, target string) (domain.ActionResult, error)
	SendDM(ctx context.Context, target, content string) (domain.ActionResult, error)
	CreateList(ctx context.Context, name, description string, members []string) (domain.ActionResult, error)
}

// Dependencies holds the collaborators an Executor is built from. All
// fields except Metrics are required.
type Dependencies struct {
	Logger    logger.Logger
	Limiter   *ratelimit.Limiter
	Cache     *cache.Cache
	Monitor   *monitor.Monitor
	Scheduler *scheduler.Scheduler
	Actions   ActionExecutor
	Metrics   *observability.Metrics
}

// loopState tracks one configured loop between passes.
type loopState struct {
	config   domain.LoopConfig
	schedule cron.Schedule
	nextRun  time.Time
	passes   int
}

// Executor runs configured loops sequentially and cooperatively: the stop
// signal is honored at every loop and action boundary, never mid call.
type Executor struct {
	logger    logger.Logger
	limiter   *ratelimit.Limiter
	cache     *cache.Cache
	monitor   *monitor.Monitor
	scheduler *scheduler.Scheduler
	actions   ActionExecutor
	metrics   *observability.Metrics

	clock      func() time.Time
	readyBatch int

	state  atomic.Int32
	stopCh chan struct{}
	wg     sync.WaitGroup

	mu    sync.Mutex
	loops []*loopState
}

// Option configures an Executor.
type Option func(*Executor)

// WithClock overrides the executor's time source. Used in tests.
func WithClock(clock func() time.Time) Option {
	return func(e *Executor) {
		e.clock = clock
	}
}

// WithReadyBatchSize bounds how many due scheduled interactions are
// drained per pass.
func WithReadyBatchSize(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.readyBatch = n
		}
	}
}

// New creates an Executor from its collaborators.
func New(deps Dependencies, opts ...Option) (*Executor, error) {
	switch {
	case deps.Limiter == nil:
		return nil, errors.New("executor: limiter is required")
	case deps.Cache == nil:
		return nil, errors.New("executor: cache is required")
	case deps.Monitor == nil:
		return nil, errors.New("executor: monitor is required")
	case deps.Scheduler == nil:
		return nil, errors.New("executor: scheduler is required")
	case deps.Actions == nil:
		return nil, errors.New("executor: action executor is required")
	}

	e := &Executor{
		logger:     deps.Logger,
		limiter:    deps.Limiter,
		cache:      deps.Cache,
		monitor:    deps.Monitor,
		scheduler:  deps.Scheduler,
		actions:    deps.Actions,
		metrics:    deps.Metrics,
		clock:      time.Now,
		readyBatch: DefaultReadyBatchSize,
		stopCh:     make(chan struct{}),
	}
	if e.logger == nil {
		e.logger = logger.NewNop()
	}
	for _, opt := range opts {
		opt(e)
	}
	e.state.Store(int32(StateIdle))
	return e, nil
}

// SetLoops validates and installs the loop configurations, replacing any
// previous set. Invalid configuration is rejected synchronously and leaves
// the installed loops unchanged.
func (e *Executor) SetLoops(configs []domain.LoopConfig) error {
	states := make([]*loopState, 0, len(configs))
	now := e.clock()
	seen := make(map[string]struct{}, len(configs))

	for i := range configs {
		cfg := configs[i]
		if err := cfg.Validate(); err != nil {
			return err
		}
		if _, dup := seen[cfg.ID]; dup {
			return fmt.Errorf("duplicate loop id %q", cfg.ID)
		}
		seen[cfg.ID] = struct{}{}

		ls := &loopState{config: cfg, nextRun: now}
		if cfg.Cron != "" {
			schedule, err := cron.ParseStandard(cfg.Cron)
			if err != nil {
				return fmt.Errorf("loop %q: invalid cron %q: %w", cfg.ID, cfg.Cron, err)
			}
			ls.schedule = schedule
			ls.nextRun = schedule.Next(now)
		} else if cfg.IntervalSeconds <= 0 {
			return fmt.Errorf("loop %q: %w", cfg.ID, domain.ErrLoopNoSchedule)
		}
		states = append(states, ls)
	}

	e.mu.Lock()
	e.loops = states
	e.mu.Unlock()

	e.logger.Info("installed loop configuration", logger.Int("loops", len(states)))
	return nil
}

// LoadLoops reads loop configurations from a JSON file and installs them.
func (e *Executor) LoadLoops(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read loops file %s: %w", path, err)
	}
	var configs []domain.LoopConfig
	if err := json.Unmarshal(data, &configs); err != nil {
		return fmt.Errorf("parse loops file %s: %w", path, err)
	}
	return e.SetLoops(configs)
}

// Start begins loop execution in the background.
func (e *Executor) Start(ctx context.Context) error {
	if !e.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return errors.New("executor is already running")
	}

	e.mu.Lock()
	e.stopCh = make(chan struct{})
	stopCh := e.stopCh
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run(ctx, stopCh)
	}()

	e.logger.Info("loop executor started")
	return nil
}

// Stop requests a graceful stop and waits for the current action to finish,
// bounded by ctx. When ctx expires first, the executor stays in
// StateStopping until the run goroutine actually exits; restarting before
// then is rejected.
func (e *Executor) Stop(ctx context.Context) error {
	if !e.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return errors.New("executor is not running")
	}

	e.mu.Lock()
	close(e.stopCh)
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		e.state.Store(int32(StateIdle))
		close(done)
	}()

	select {
	case <-done:
		e.logger.Info("loop executor stopped")
	case <-ctx.Done():
		// The run goroutine is still inside an action; the waiter above
		// returns the executor to idle once it exits.
		e.logger.Warn("loop executor stop timed out")
	}
	return nil
}

// State returns the executor's current lifecycle state.
func (e *Executor) State() State {
	return State(e.state.Load())
}

// stopping reports whether a stop has been requested.
func (e *Executor) stopping(ctx context.Context) bool {
	e.mu.Lock()
	stopCh := e.stopCh
	e.mu.Unlock()

	select {
	case <-stopCh:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// run is the executor's main pass loop.
func (e *Executor) run(ctx context.Context, stopCh <-chan struct{}) {
	for {
		next := e.RunOnce(ctx)
		if e.stopping(ctx) {
			return
		}

		now := e.clock()
		sleep := idleTick
		if !next.IsZero() && next.After(now) && next.Sub(now) < sleep {
			sleep = next.Sub(now)
		}

		timer := time.NewTimer(sleep)
		select {
		case <-timer.C:
		case <-stopCh:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// RunOnce executes a single pass: every due loop whose conditions hold,
// then a drain of due scheduled interactions. It returns the earliest next
// loop run time, or zero when no loops are installed.
func (e *Executor) RunOnce(ctx context.Context) time.Time {
	e.mu.Lock()
	loops := make([]*loopState, len(e.loops))
	copy(loops, e.loops)
	e.mu.Unlock()

	var next time.Time
	for _, ls := range loops {
		if e.stopping(ctx) {
			return next
		}

		now := e.clock()
		e.mu.Lock()
		nextRun := ls.nextRun
		e.mu.Unlock()
		if now.Before(nextRun) {
			next = earliest(next, nextRun)
			continue
		}

		ran := false
		if !ls.config.Conditions.Met(now) {
			e.logger.Debug("loop conditions not met", logger.String("loop", ls.config.ID))
			if e.metrics != nil {
				e.metrics.LoopSkipped.WithLabelValues(ls.config.ID).Inc()
			}
		} else {
			e.runLoop(ctx, &ls.config)
			ran = true
			if e.metrics != nil {
				e.metrics.LoopPasses.WithLabelValues(ls.config.ID).Inc()
			}
		}

		e.mu.Lock()
		if ran {
			ls.passes++
		}
		ls.nextRun = e.advance(ls)
		nextRun = ls.nextRun
		e.mu.Unlock()
		next = earliest(next, nextRun)
	}

	e.drainScheduled(ctx)
	return next
}

// advance computes a loop's next run time after a pass or skip.
func (e *Executor) advance(ls *loopState) time.Time {
	now := e.clock()
	if ls.schedule != nil {
		return ls.schedule.Next(now)
	}
	return now.Add(ls.config.Interval())
}

// runLoop executes one pass of a loop's actions sequentially. A single
// action's failure never aborts the loop.
func (e *Executor) runLoop(ctx context.Context, cfg *domain.LoopConfig) {
	e.logger.Debug("running loop", logger.String("loop", cfg.ID))

	for i := range cfg.Actions {
		if e.stopping(ctx) {
			return
		}
		action := &cfg.Actions[i]
		if !action.Conditions.Met(e.clock()) {
			continue
		}
		if err := e.executeAction(ctx, action); err != nil {
			// Only cancellation propagates this far; per-action
			// failures are absorbed inside executeAction.
			return
		}
	}
}

// earliest returns the earlier of two times, treating zero as unset.
func earliest(a, b time.Time) time.Time {
	if a.IsZero() || (!b.IsZero() && b.Before(a)) {
		return b
	}
	return a
}
