package scheduler

import (
	"time"

	"github.com/jonesrussell/gopace/internal/domain"
)

// Stats is a point-in-time summary of the scheduler's queue and recent
// execution activity.
type Stats struct {
	Enabled            bool                      `json:"scheduler_enabled"`
	TotalScheduled     int                       `json:"total_scheduled"`
	ScheduledByType    map[domain.ActionType]int `json:"scheduled_by_type"`
	ExecutionsLastHour map[domain.ActionType]int `json:"executions_last_hour"`
	ExecutionsToday    map[domain.ActionType]int `json:"executions_today"`
	TotalLogEntries    int                       `json:"total_execution_log"`
}

// Stats returns counts of queued interactions by type and of executions in
// the trailing hour and calendar day.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	hourAgo := now.Add(-time.Hour)
	year, month, day := now.Date()

	stats := Stats{
		Enabled:            s.config.Enabled,
		TotalScheduled:     len(s.active),
		ScheduledByType:    make(map[domain.ActionType]int),
		ExecutionsLastHour: make(map[domain.ActionType]int),
		ExecutionsToday:    make(map[domain.ActionType]int),
		TotalLogEntries:    len(s.execLog),
	}

	for i := range s.active {
		stats.ScheduledByType[s.active[i].Type]++
	}

	for i := range s.execLog {
		entry := &s.execLog[i]
		if entry.Timestamp.After(hourAgo) {
			stats.ExecutionsLastHour[entry.Type]++
		}
		ey, em, ed := entry.Timestamp.Date()
		if ey == year && em == month && ed == day {
			stats.ExecutionsToday[entry.Type]++
		}
	}

	return stats
}
