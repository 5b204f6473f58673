package domain

import (
	"errors"
	"fmt"
	"time"
)

// Loop configuration errors returned at validation time.
var (
	ErrLoopMissingID      = errors.New("loop is missing required field: id")
	ErrLoopMissingActions = errors.New("loop is missing required field: actions")
	ErrLoopNoSchedule     = errors.New("loop must set interval_seconds or cron")
)

const (
	// DefaultLoopInterval is the pause between passes of a loop that does
	// not configure its own interval.
	DefaultLoopInterval = time.Hour

	// activeHoursLayout is the clock format for condition windows.
	activeHoursLayout = "15:04"
)

// LoopConfig describes one recurring bundle of paced actions.
type LoopConfig struct {
	ID              string          `json:"id" mapstructure:"id"`
	Description     string          `json:"description,omitempty" mapstructure:"description"`
	IntervalSeconds int             `json:"interval_seconds,omitempty" mapstructure:"interval_seconds"`
	Cron            string          `json:"cron,omitempty" mapstructure:"cron"`
	Conditions      *LoopConditions `json:"conditions,omitempty" mapstructure:"conditions"`
	Actions         []LoopAction    `json:"actions" mapstructure:"actions"`
}

// Interval returns the configured pause between passes of this loop.
func (l *LoopConfig) Interval() time.Duration {
	if l.IntervalSeconds > 0 {
		return time.Duration(l.IntervalSeconds) * time.Second
	}
	return DefaultLoopInterval
}

// Validate checks the loop configuration for structural errors.
func (l *LoopConfig) Validate() error {
	if l.ID == "" {
		return ErrLoopMissingID
	}
	if len(l.Actions) == 0 {
		return fmt.Errorf("loop %q: %w", l.ID, ErrLoopMissingActions)
	}
	for i := range l.Actions {
		if err := l.Actions[i].Validate(); err != nil {
			return fmt.Errorf("loop %q action %d: %w", l.ID, i, err)
		}
	}
	if l.Conditions != nil {
		if err := l.Conditions.Validate(); err != nil {
			return fmt.Errorf("loop %q: %w", l.ID, err)
		}
	}
	return nil
}

// LoopAction is a single configured action within a loop.
type LoopAction struct {
	Type       ActionType      `json:"type" mapstructure:"type"`
	Params     map[string]any  `json:"params,omitempty" mapstructure:"params"`
	Conditions *LoopConditions `json:"conditions,omitempty" mapstructure:"conditions"`
}

// Validate checks the action for structural errors.
func (a *LoopAction) Validate() error {
	if !a.Type.IsValid() {
		return fmt.Errorf("unknown action type: %q", a.Type)
	}
	if a.Conditions != nil {
		return a.Conditions.Validate()
	}
	return nil
}

// LoopConditions gates loop or action execution on the wall clock.
type LoopConditions struct {
	// ActiveHours restricts execution to a clock window, e.g. 08:00-22:00.
	ActiveHours *HourWindow `json:"active_hours,omitempty" mapstructure:"active_hours"`

	// ActiveDays restricts execution to ISO weekdays (1=Monday .. 7=Sunday).
	// Empty means all days.
	ActiveDays []int `json:"active_days,omitempty" mapstructure:"active_days"`
}

// Validate checks the conditions for structural errors.
func (c *LoopConditions) Validate() error {
	if c.ActiveHours != nil {
		if err := c.ActiveHours.Validate(); err != nil {
			return err
		}
	}
	for _, d := range c.ActiveDays {
		if d < 1 || d > 7 {
			return fmt.Errorf("active day out of range [1,7]: %d", d)
		}
	}
	return nil
}

// Met reports whether the conditions hold at the given time.
func (c *LoopConditions) Met(now time.Time) bool {
	if c == nil {
		return true
	}
	if c.ActiveHours != nil && !c.ActiveHours.Contains(now) {
		return false
	}
	if len(c.ActiveDays) > 0 {
		day := isoWeekday(now)
		found := false
		for _, d := range c.ActiveDays {
			if d == day {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// isoWeekday maps time.Weekday onto ISO numbering (Monday=1 .. Sunday=7).
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// HourWindow is an inclusive clock window in "15:04" format.
type HourWindow struct {
	Start string `json:"start" mapstructure:"start"`
	End   string `json:"end" mapstructure:"end"`
}

// Validate checks both bounds parse as clock times.
func (w *HourWindow) Validate() error {
	if _, err := time.Parse(activeHoursLayout, w.Start); err != nil {
		return fmt.Errorf("invalid active hours start %q: %w", w.Start, err)
	}
	if _, err := time.Parse(activeHoursLayout, w.End); err != nil {
		return fmt.Errorf("invalid active hours end %q: %w", w.End, err)
	}
	return nil
}

// Contains reports whether the clock time of t falls inside the window.
// Windows that cross midnight (start > end) wrap around.
func (w *HourWindow) Contains(t time.Time) bool {
	start, err := time.Parse(activeHoursLayout, w.Start)
	if err != nil {
		return true
	}
	end, err := time.Parse(activeHoursLayout, w.End)
	if err != nil {
		return true
	}

	minutes := t.Hour()*60 + t.Minute()
	startMin := start.Hour()*60 + start.Minute()
	endMin := end.Hour()*60 + end.Minute()

	if startMin <= endMin {
		return minutes >= startMin && minutes <= endMin
	}
	return minutes >= startMin || minutes <= endMin
}
