// Package ratelimit provides per-action-type admission control for paced
// social-media actions. It combines hourly quotas, short burst windows,
// minimum inter-action delays, and an adaptive failure penalty.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/jonesrussell/gopace/internal/domain"
	"github.com/jonesrussell/gopace/internal/logger"
)

const (
	// HourlyWindow is the horizon of the hourly quota window.
	HourlyWindow = time.Hour

	// BurstWindow is the horizon of the burst protection window.
	BurstWindow = 10 * time.Minute

	// AdaptiveDelayStep is added to a type's adaptive delay on failure.
	AdaptiveDelayStep = 30 * time.Second

	// AdaptiveDelayDecay is subtracted from a type's adaptive delay on success.
	AdaptiveDelayDecay = 5 * time.Second

	// MaxAdaptiveDelay caps the adaptive delay per action type.
	MaxAdaptiveDelay = 5 * time.Minute

	// MinGlobalMultiplier and MaxGlobalMultiplier clamp the global rate multiplier.
	MinGlobalMultiplier = 0.1
	MaxGlobalMultiplier = 10.0

	// fallbackHourlyLimit applies to action types without a configured limit.
	fallbackHourlyLimit = 100

	// fallbackMinDelay applies to action types without a configured delay.
	fallbackMinDelay = 30 * time.Second
)

// defaultHourlyLimits returns the built-in hourly quotas per action type.
func defaultHourlyLimits() map[domain.ActionType]int {
	return map[domain.ActionType]int{
		domain.ActionTweet:    50,
		domain.ActionFollow:   400,
		domain.ActionUnfollow: 400,
		domain.ActionLike:     1000,
		domain.ActionReply:    300,
		domain.ActionRetweet:  300,
		domain.ActionDM:       1000,
	}
}

// defaultMinDelays returns the built-in minimum inter-action delays.
func defaultMinDelays() map[domain.ActionType]time.Duration {
	return map[domain.ActionType]time.Duration{
		domain.ActionTweet:    60 * time.Second,
		domain.ActionFollow:   30 * time.Second,
		domain.ActionUnfollow: 30 * time.Second,
		domain.ActionLike:     10 * time.Second,
		domain.ActionReply:    45 * time.Second,
		domain.ActionRetweet:  20 * time.Second,
		domain.ActionDM:       30 * time.Second,
	}
}

// defaultBurstLimits returns the built-in burst window caps. Only action
// types listed here are burst-protected.
func defaultBurstLimits() map[domain.ActionType]int {
	return map[domain.ActionType]int{
		domain.ActionTweet:  5,
		domain.ActionFollow: 20,
	}
}

// windowState holds the sliding-window state for one action type.
type windowState struct {
	hourly        []time.Time
	burst         []time.Time
	lastAction    time.Time
	adaptiveDelay time.Duration
}

// Limiter is the per-action-type admission controller. All methods are safe
// for concurrent use; the admission check and window append for one type are
// serialized under a single mutex so sliding-window counts cannot race.
type Limiter struct {
	mu sync.Mutex

	clock  func() time.Time
	logger logger.Logger

	windows      map[domain.ActionType]*windowState
	customLimits map[domain.ActionType]int
	minDelays    map[domain.ActionType]time.Duration
	burstLimits  map[domain.ActionType]int
	multiplier   float64
}

// Option is a functional option for configuring the Limiter.
type Option func(*Limiter)

// WithClock overrides the limiter's time source. Used in tests.
func WithClock(clock func() time.Time) Option {
	return func(l *Limiter) {
		l.clock = clock
	}
}

// WithLogger sets the limiter's logger.
func WithLogger(log logger.Logger) Option {
	return func(l *Limiter) {
		l.logger = log
	}
}

// New creates a Limiter with built-in defaults.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		clock:        time.Now,
		logger:       logger.NewNop(),
		windows:      make(map[domain.ActionType]*windowState),
		customLimits: make(map[domain.ActionType]int),
		minDelays:    defaultMinDelays(),
		burstLimits:  defaultBurstLimits(),
		multiplier:   1.0,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// state returns the window state for a type, creating it if absent.
// Caller must hold l.mu.
func (l *Limiter) state(t domain.ActionType) *windowState {
	w, ok := l.windows[t]
	if !ok {
		w = &windowState{}
		l.windows[t] = w
	}
	return w
}

// effectiveLimit returns the hourly limit for a type, preferring runtime
// overrides over built-in defaults. Caller must hold l.mu.
func (l *Limiter) effectiveLimit(t domain.ActionType) int {
	if limit, ok := l.customLimits[t]; ok {
		return limit
	}
	if limit, ok := defaultHourlyLimits()[t]; ok {
		return limit
	}
	return fallbackHourlyLimit
}

// effectiveDelay returns the total minimum delay for a type, scaled by the
// global multiplier. Caller must hold l.mu.
func (l *Limiter) effectiveDelay(w *windowState, t domain.ActionType) time.Duration {
	minDelay, ok := l.minDelays[t]
	if !ok {
		minDelay = fallbackMinDelay
	}
	total := minDelay + w.adaptiveDelay
	return time.Duration(float64(total) * l.multiplier)
}

// prune drops window entries older than their horizon. Pruning is lazy: it
// runs on every check rather than on a timer. Caller must hold l.mu.
func (l *Limiter) prune(w *windowState, now time.Time) {
	hourAgo := now.Add(-HourlyWindow)
	for len(w.hourly) > 0 && !w.hourly[0].After(hourAgo) {
		w.hourly = w.hourly[1:]
	}
	burstAgo := now.Add(-BurstWindow)
	for len(w.burst) > 0 && !w.burst[0].After(burstAgo) {
		w.burst = w.burst[1:]
	}
}

// CanPerform reports whether an action of the given type is admissible now
// without violating any configured limit.
func (l *Limiter) CanPerform(t domain.ActionType) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.canPerformLocked(t, l.clock())
}

func (l *Limiter) canPerformLocked(t domain.ActionType, now time.Time) bool {
	w := l.state(t)
	l.prune(w, now)

	if len(w.hourly) >= l.effectiveLimit(t) {
		return false
	}

	if burstLimit, ok := l.burstLimits[t]; ok && len(w.burst) >= burstLimit {
		return false
	}

	if !w.lastAction.IsZero() && now.Sub(w.lastAction) < l.effectiveDelay(w, t) {
		return false
	}

	return true
}

// WaitTime returns how long the caller must wait before an action of the
// given type becomes admissible. Zero means the action is admissible now.
func (l *Limiter) WaitTime(t domain.ActionType) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.waitTimeLocked(t, l.clock())
}

func (l *Limiter) waitTimeLocked(t domain.ActionType, now time.Time) time.Duration {
	w := l.state(t)
	l.prune(w, now)

	var wait time.Duration

	if len(w.hourly) >= l.effectiveLimit(t) && len(w.hourly) > 0 {
		if d := w.hourly[0].Add(HourlyWindow).Sub(now); d > wait {
			wait = d
		}
	}

	if burstLimit, ok := l.burstLimits[t]; ok && len(w.burst) >= burstLimit && len(w.burst) > 0 {
		if d := w.burst[0].Add(BurstWindow).Sub(now); d > wait {
			wait = d
		}
	}

	if !w.lastAction.IsZero() {
		if d := w.lastAction.Add(l.effectiveDelay(w, t)).Sub(now); d > wait {
			wait = d
		}
	}

	return wait
}

// WaitIfNeeded suspends the caller until an action of the given type is
// admissible, or until the context is cancelled.
func (l *Limiter) WaitIfNeeded(ctx context.Context, t domain.ActionType) error {
	wait := l.WaitTime(t)
	if wait <= 0 {
		return nil
	}

	l.logger.Info("rate limiting action",
		logger.String("action_type", t.String()),
		logger.Duration("wait", wait),
	)

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Record registers that an action of the given type was attempted. Failures
// grow the type's adaptive delay by a fixed step up to a cap; successes decay
// it by a smaller step, floored at zero.
func (l *Limiter) Record(t domain.ActionType, success bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	w := l.state(t)

	w.hourly = append(w.hourly, now)
	if _, ok := l.burstLimits[t]; ok {
		w.burst = append(w.burst, now)
	}
	w.lastAction = now

	if success {
		if w.adaptiveDelay > 0 {
			w.adaptiveDelay -= AdaptiveDelayDecay
			if w.adaptiveDelay < 0 {
				w.adaptiveDelay = 0
			}
		}
	} else {
		w.adaptiveDelay += AdaptiveDelayStep
		if w.adaptiveDelay > MaxAdaptiveDelay {
			w.adaptiveDelay = MaxAdaptiveDelay
		}
		l.logger.Warn("action failed, increased adaptive delay",
			logger.String("action_type", t.String()),
			logger.Duration("adaptive_delay", w.adaptiveDelay),
		)
	}

	l.prune(w, now)
}

// RecordNeutral registers an attempt that counts against the hourly and
// burst windows but carries no adaptive-delay feedback. Used for failures
// where backing off would not help.
func (l *Limiter) RecordNeutral(t domain.ActionType) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	w := l.state(t)

	w.hourly = append(w.hourly, now)
	if _, ok := l.burstLimits[t]; ok {
		w.burst = append(w.burst, now)
	}
	w.lastAction = now

	l.prune(w, now)
}

// SetCustomLimits merges runtime hourly-limit overrides over the defaults.
func (l *Limiter) SetCustomLimits(limits map[domain.ActionType]int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for t, limit := range limits {
		l.customLimits[t] = limit
	}
	l.logger.Info("updated custom rate limits", logger.Int("count", len(limits)))
}

// SetMinDelays merges runtime minimum-delay overrides over the defaults.
func (l *Limiter) SetMinDelays(delays map[domain.ActionType]time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for t, d := range delays {
		l.minDelays[t] = d
	}
	l.logger.Info("updated minimum delays", logger.Int("count", len(delays)))
}

// SetBurstLimits merges runtime burst-limit overrides over the defaults.
func (l *Limiter) SetBurstLimits(limits map[domain.ActionType]int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for t, limit := range limits {
		l.burstLimits[t] = limit
	}
	l.logger.Info("updated burst limits", logger.Int("count", len(limits)))
}

// AdjustGlobalRate scales every computed delay by the given multiplier,
// clamped to [MinGlobalMultiplier, MaxGlobalMultiplier].
func (l *Limiter) AdjustGlobalRate(multiplier float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if multiplier < MinGlobalMultiplier {
		multiplier = MinGlobalMultiplier
	}
	if multiplier > MaxGlobalMultiplier {
		multiplier = MaxGlobalMultiplier
	}
	l.multiplier = multiplier
	l.logger.Info("adjusted global rate multiplier", logger.Float64("multiplier", multiplier))
}

// GlobalMultiplier returns the current global rate multiplier.
func (l *Limiter) GlobalMultiplier() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.multiplier
}

// ResetActionType clears all windows, delays, and timestamps for one type.
func (l *Limiter) ResetActionType(t domain.ActionType) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.windows, t)
	l.logger.Info("reset rate limiting", logger.String("action_type", t.String()))
}

// ResetAll clears all limiter state and restores the default multiplier.
func (l *Limiter) ResetAll() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.windows = make(map[domain.ActionType]*windowState)
	l.customLimits = make(map[domain.ActionType]int)
	l.minDelays = defaultMinDelays()
	l.burstLimits = defaultBurstLimits()
	l.multiplier = 1.0
	l.logger.Info("reset all rate limiting state")
}
