package ratelimit

import (
	"github.com/jonesrussell/gopace/internal/domain"
)

// TypeStats holds a point-in-time view of limiter state for one action type.
type TypeStats struct {
	HourlyCount     int     `json:"hourly_count"`
	HourlyLimit     int     `json:"hourly_limit"`
	HourlyRemaining int     `json:"hourly_remaining"`
	BurstCount      int     `json:"burst_count"`
	BurstLimit      int     `json:"burst_limit"`
	WaitSeconds     float64 `json:"wait_seconds"`
	AdaptiveSeconds float64 `json:"adaptive_delay_seconds"`
	CanPerform      bool    `json:"can_perform"`
}

// Statistics is a snapshot of the limiter across all known action types.
type Statistics struct {
	Types            map[domain.ActionType]TypeStats `json:"types"`
	GlobalMultiplier float64                         `json:"global_multiplier"`
}

// Statistics returns a snapshot of the limiter's current state.
func (l *Limiter) Statistics() Statistics {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	stats := Statistics{
		Types:            make(map[domain.ActionType]TypeStats, len(defaultHourlyLimits())),
		GlobalMultiplier: l.multiplier,
	}

	for _, t := range domain.AllActionTypes() {
		w := l.state(t)
		l.prune(w, now)

		limit := l.effectiveLimit(t)
		remaining := limit - len(w.hourly)
		if remaining < 0 {
			remaining = 0
		}

		stats.Types[t] = TypeStats{
			HourlyCount:     len(w.hourly),
			HourlyLimit:     limit,
			HourlyRemaining: remaining,
			BurstCount:      len(w.burst),
			BurstLimit:      l.burstLimits[t],
			WaitSeconds:     l.waitTimeLocked(t, now).Seconds(),
			AdaptiveSeconds: w.adaptiveDelay.Seconds(),
			CanPerform:      l.canPerformLocked(t, now),
		}
	}

	return stats
}
