package monitor

import (
	"fmt"
	"time"
)

// OperationStats summarizes timing history for one operation type.
type OperationStats struct {
	TotalOperations      int     `json:"total_operations"`
	SuccessfulOperations int     `json:"successful_operations"`
	FailedOperations     int     `json:"failed_operations"`
	SuccessRate          float64 `json:"success_rate"`
	AvgDuration          float64 `json:"avg_duration_seconds"`
	MinDuration          float64 `json:"min_duration_seconds"`
	MaxDuration          float64 `json:"max_duration_seconds"`
	RecentAvgDuration    float64 `json:"recent_avg_duration_seconds"`
	ThresholdSeconds     float64 `json:"threshold_seconds,omitempty"`
}

// SystemStats summarizes resource samples: the latest snapshot plus a
// trailing rolling average.
type SystemStats struct {
	CurrentCPU        float64 `json:"current_cpu"`
	CurrentMemory     float64 `json:"current_memory"`
	CurrentDisk       float64 `json:"current_disk"`
	AvgCPU5Min        float64 `json:"avg_cpu_5min"`
	AvgMemory5Min     float64 `json:"avg_memory_5min"`
	MemoryAvailableGB float64 `json:"memory_available_gb"`
	NetworkSentMB     float64 `json:"network_sent_mb"`
	NetworkRecvMB     float64 `json:"network_recv_mb"`
}

// OptimizationIssue is one finding from Optimize.
type OptimizationIssue struct {
	Type       string `json:"type"`
	Operation  string `json:"operation"`
	Issue      string `json:"issue"`
	Suggestion string `json:"suggestion"`
}

// OptimizationReport is the result of an Optimize pass.
type OptimizationReport struct {
	Issues      []OptimizationIssue `json:"optimizations"`
	TotalIssues int                 `json:"total_issues"`
	Timestamp   time.Time           `json:"timestamp"`
}

// ExportData is a full serializable snapshot of monitor state.
type ExportData struct {
	OperationStats  map[string]OperationStats `json:"operation_stats"`
	SystemStats     *SystemStats              `json:"system_stats,omitempty"`
	Recommendations []Recommendation          `json:"recommendations"`
	ExportedAt      time.Time                 `json:"export_timestamp"`
}

const (
	bytesPerMB = 1 << 20
	bytesPerGB = 1 << 30

	// Optimize thresholds.
	lowSuccessRatePercent = 90.0
	sustainedCPUPercent   = 70.0
	sustainedMemPercent   = 80.0
)

// OperationStats returns statistics for one operation type. ok is false if
// no samples have been recorded for the type.
func (m *Monitor) OperationStats(opType string) (OperationStats, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.operationStatsLocked(opType)
}

func (m *Monitor) operationStatsLocked(opType string) (OperationStats, bool) {
	samples := m.operations[opType]
	if len(samples) == 0 {
		return OperationStats{}, false
	}

	stats := OperationStats{
		TotalOperations: len(samples),
		MinDuration:     samples[0].Duration.Seconds(),
	}

	var total time.Duration
	for _, s := range samples {
		total += s.Duration
		if s.Success {
			stats.SuccessfulOperations++
		} else {
			stats.FailedOperations++
		}
		if d := s.Duration.Seconds(); d < stats.MinDuration {
			stats.MinDuration = d
		}
		if d := s.Duration.Seconds(); d > stats.MaxDuration {
			stats.MaxDuration = d
		}
	}

	stats.SuccessRate = float64(stats.SuccessfulOperations) / float64(len(samples)) * 100
	stats.AvgDuration = total.Seconds() / float64(len(samples))

	recent := samples
	if len(recent) > recentWindow {
		recent = recent[len(recent)-recentWindow:]
	}
	var recentTotal time.Duration
	for _, s := range recent {
		recentTotal += s.Duration
	}
	stats.RecentAvgDuration = recentTotal.Seconds() / float64(len(recent))

	if threshold, ok := m.thresholds[opType]; ok {
		stats.ThresholdSeconds = threshold.Seconds()
	}

	return stats, true
}

// SystemStats returns the latest resource snapshot plus the trailing
// five-minute rolling average. ok is false if no samples exist yet.
func (m *Monitor) SystemStats() (SystemStats, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.systemStatsLocked()
}

func (m *Monitor) systemStatsLocked() (SystemStats, bool) {
	m.drainSamplesLocked()

	if len(m.resourceHistory) == 0 {
		return SystemStats{}, false
	}

	latest := m.resourceHistory[len(m.resourceHistory)-1]
	stats := SystemStats{
		CurrentCPU:        latest.CPUPercent,
		CurrentMemory:     latest.MemoryPercent,
		CurrentDisk:       latest.DiskPercent,
		MemoryAvailableGB: float64(latest.MemoryAvailable) / bytesPerGB,
		NetworkSentMB:     float64(latest.NetBytesSent) / bytesPerMB,
		NetworkRecvMB:     float64(latest.NetBytesRecv) / bytesPerMB,
	}

	cutoff := m.clock().Add(-rollingAverageWindow)
	var cpuSum, memSum float64
	count := 0
	for _, s := range m.resourceHistory {
		if s.Timestamp.After(cutoff) {
			cpuSum += s.CPUPercent
			memSum += s.MemoryPercent
			count++
		}
	}
	if count > 0 {
		stats.AvgCPU5Min = cpuSum / float64(count)
		stats.AvgMemory5Min = memSum / float64(count)
	} else {
		stats.AvgCPU5Min = latest.CPUPercent
		stats.AvgMemory5Min = latest.MemoryPercent
	}

	return stats, true
}

// Optimize derives a prioritized list of findings from operation and system
// statistics.
func (m *Monitor) Optimize() OptimizationReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	report := OptimizationReport{Timestamp: m.clock()}

	for opType := range m.operations {
		stats, ok := m.operationStatsLocked(opType)
		if !ok {
			continue
		}

		if stats.SuccessRate < lowSuccessRatePercent {
			report.Issues = append(report.Issues, OptimizationIssue{
				Type:       "reliability",
				Operation:  opType,
				Issue:      fmt.Sprintf("low success rate: %.1f%%", stats.SuccessRate),
				Suggestion: "review error handling and retry logic",
			})
		}

		if threshold, ok := m.thresholds[opType]; ok && stats.AvgDuration > threshold.Seconds() {
			report.Issues = append(report.Issues, OptimizationIssue{
				Type:       "performance",
				Operation:  opType,
				Issue:      fmt.Sprintf("slow average time: %.1fs", stats.AvgDuration),
				Suggestion: "consider optimizing the operation or increasing timeouts",
			})
		}
	}

	if sysStats, ok := m.systemStatsLocked(); ok {
		if sysStats.AvgCPU5Min > sustainedCPUPercent {
			report.Issues = append(report.Issues, OptimizationIssue{
				Type:       "system",
				Operation:  "cpu",
				Issue:      fmt.Sprintf("high CPU usage: %.1f%%", sysStats.AvgCPU5Min),
				Suggestion: "reduce concurrent operations or increase delays",
			})
		}
		if sysStats.AvgMemory5Min > sustainedMemPercent {
			report.Issues = append(report.Issues, OptimizationIssue{
				Type:       "system",
				Operation:  "memory",
				Issue:      fmt.Sprintf("high memory usage: %.1f%%", sysStats.AvgMemory5Min),
				Suggestion: "clear caches or reduce operation history",
			})
		}
	}

	report.TotalIssues = len(report.Issues)
	return report
}

// Export returns a full serializable snapshot of all monitor state.
func (m *Monitor) Export() ExportData {
	m.mu.Lock()
	defer m.mu.Unlock()

	data := ExportData{
		OperationStats: make(map[string]OperationStats, len(m.operations)),
		ExportedAt:     m.clock(),
	}

	for opType := range m.operations {
		if stats, ok := m.operationStatsLocked(opType); ok {
			data.OperationStats[opType] = stats
		}
	}

	if sysStats, ok := m.systemStatsLocked(); ok {
		data.SystemStats = &sysStats
	}

	recs := make([]Recommendation, len(m.recommendations))
	copy(recs, m.recommendations)
	data.Recommendations = recs

	return data
}
