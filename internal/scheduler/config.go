package scheduler

import (
	"fmt"

	"github.com/jonesrussell/gopace/internal/domain"
)

// Defaults for the schedule timing draw, in seconds.
const (
	DefaultMinDelaySeconds = 180
	DefaultMaxDelaySeconds = 900
)

// RateLimits caps how many interactions of each kind may execute per hour.
// These are the scheduler's own pacing hints, distinct from the admission
// limiter's windows.
type RateLimits struct {
	FollowsPerHour   int `json:"follows_per_hour"`
	UnfollowsPerHour int `json:"unfollows_per_hour"`
	LikesPerHour     int `json:"likes_per_hour"`
	RepliesPerHour   int `json:"replies_per_hour"`
	RetweetsPerHour  int `json:"retweets_per_hour"`
}

// Timing controls when interactions are scheduled and how far apart.
type Timing struct {
	MinDelaySeconds int                `json:"min_delay_seconds"`
	MaxDelaySeconds int                `json:"max_delay_seconds"`
	ActiveHours     *domain.HourWindow `json:"active_hours,omitempty"`
	ActiveDays      []int              `json:"active_days,omitempty"`
	BurstProtection bool               `json:"burst_protection"`
	RandomizeTiming bool               `json:"randomize_timing"`
}

// Safety holds daily caps and cooldown settings.
type Safety struct {
	MaxDailyFollows     int     `json:"max_daily_follows"`
	MaxDailyUnfollows   int     `json:"max_daily_unfollows"`
	FollowUnfollowRatio float64 `json:"follow_unfollow_ratio"`
	CooldownAfterLimit  int     `json:"cooldown_after_limit"`
	RespectRateLimits   bool    `json:"respect_rate_limits"`
}

// Patterns tunes the follow-then-engage behavior.
type Patterns struct {
	FollowThenEngage            bool    `json:"follow_then_engage"`
	EngagementDelayHours        int     `json:"engagement_delay_hours"`
	UnfollowDelayDays           int     `json:"unfollow_delay_days"`
	LikeProbabilityAfterFollow  float64 `json:"like_probability_after_follow"`
	ReplyProbabilityAfterFollow float64 `json:"reply_probability_after_follow"`
}

// Config is the scheduler's persisted, per-profile configuration.
type Config struct {
	Enabled    bool       `json:"enabled"`
	RateLimits RateLimits `json:"rate_limits"`
	Timing     Timing     `json:"timing"`
	Safety     Safety     `json:"safety"`
	Patterns   Patterns   `json:"interaction_patterns"`
}

// DefaultConfig returns the built-in scheduler configuration.
func DefaultConfig() Config {
	return Config{
		Enabled: true,
		RateLimits: RateLimits{
			FollowsPerHour:   10,
			UnfollowsPerHour: 15,
			LikesPerHour:     30,
			RepliesPerHour:   5,
			RetweetsPerHour:  8,
		},
		Timing: Timing{
			MinDelaySeconds: DefaultMinDelaySeconds,
			MaxDelaySeconds: DefaultMaxDelaySeconds,
			ActiveHours:     &domain.HourWindow{Start: "08:00", End: "22:00"},
			ActiveDays:      []int{1, 2, 3, 4, 5, 6, 7},
			BurstProtection: true,
			RandomizeTiming: true,
		},
		Safety: Safety{
			MaxDailyFollows:     50,
			MaxDailyUnfollows:   75,
			FollowUnfollowRatio: 0.8,
			CooldownAfterLimit:  3600,
			RespectRateLimits:   true,
		},
		Patterns: Patterns{
			FollowThenEngage:            true,
			EngagementDelayHours:        2,
			UnfollowDelayDays:           7,
			LikeProbabilityAfterFollow:  0.6,
			ReplyProbabilityAfterFollow: 0.1,
		},
	}
}

// Validate checks the configuration for structural errors.
func (c *Config) Validate() error {
	if c.Timing.MinDelaySeconds < 0 {
		return fmt.Errorf("timing.min_delay_seconds must be >= 0, got %d", c.Timing.MinDelaySeconds)
	}
	if c.Timing.MaxDelaySeconds < c.Timing.MinDelaySeconds {
		return fmt.Errorf("timing.max_delay_seconds (%d) must be >= min_delay_seconds (%d)",
			c.Timing.MaxDelaySeconds, c.Timing.MinDelaySeconds)
	}
	if c.Timing.ActiveHours != nil {
		if err := c.Timing.ActiveHours.Validate(); err != nil {
			return err
		}
	}
	for _, d := range c.Timing.ActiveDays {
		if d < 1 || d > 7 {
			return fmt.Errorf("timing.active_days entry out of range [1,7]: %d", d)
		}
	}
	if c.Safety.FollowUnfollowRatio < 0 || c.Safety.FollowUnfollowRatio > 1 {
		return fmt.Errorf("safety.follow_unfollow_ratio must be in [0,1], got %g",
			c.Safety.FollowUnfollowRatio)
	}
	return nil
}
