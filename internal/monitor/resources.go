package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/net"

	"github.com/jonesrussell/gopace/internal/logger"
)

// ResourceSample is one immutable snapshot of host resource usage.
type ResourceSample struct {
	Timestamp       time.Time `json:"timestamp"`
	CPUPercent      float64   `json:"cpu_percent"`
	MemoryPercent   float64   `json:"memory_percent"`
	MemoryAvailable uint64    `json:"memory_available"`
	DiskPercent     float64   `json:"disk_percent"`
	NetBytesSent    uint64    `json:"network_bytes_sent"`
	NetBytesRecv    uint64    `json:"network_bytes_recv"`
}

// ResourceProvider is the capability interface for host resource metrics.
type ResourceProvider interface {
	// Sample returns a snapshot of current resource usage.
	Sample(ctx context.Context) (ResourceSample, error)
}

// SystemProvider implements ResourceProvider on gopsutil.
type SystemProvider struct {
	diskPath string
}

// NewSystemProvider creates a provider sampling the host system. diskPath
// is the mount point measured for disk usage; empty defaults to "/".
func NewSystemProvider(diskPath string) *SystemProvider {
	if diskPath == "" {
		diskPath = "/"
	}
	return &SystemProvider{diskPath: diskPath}
}

// Sample reads CPU, memory, disk, and network counters from the host.
func (p *SystemProvider) Sample(ctx context.Context) (ResourceSample, error) {
	sample := ResourceSample{Timestamp: time.Now()}

	cpuPercents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return sample, fmt.Errorf("cpu percent: %w", err)
	}
	if len(cpuPercents) > 0 {
		sample.CPUPercent = cpuPercents[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return sample, fmt.Errorf("virtual memory: %w", err)
	}
	sample.MemoryPercent = vm.UsedPercent
	sample.MemoryAvailable = vm.Available

	usage, err := disk.UsageWithContext(ctx, p.diskPath)
	if err != nil {
		return sample, fmt.Errorf("disk usage: %w", err)
	}
	sample.DiskPercent = usage.UsedPercent

	counters, err := net.IOCountersWithContext(ctx, false)
	if err != nil {
		return sample, fmt.Errorf("network counters: %w", err)
	}
	if len(counters) > 0 {
		sample.NetBytesSent = counters[0].BytesSent
		sample.NetBytesRecv = counters[0].BytesRecv
	}

	return sample, nil
}

// sampleResources is the background sampler goroutine. It publishes each
// snapshot onto the bounded samples channel; readers drain the channel into
// the history ring on demand, so the sampler never contends on read locks.
func (m *Monitor) sampleResources() {
	defer close(m.samplerDone)

	ticker := time.NewTicker(m.sampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopSampler:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), m.sampleInterval)
			sample, err := m.provider.Sample(ctx)
			cancel()
			if err != nil {
				m.logger.Error("resource sampling failed", logger.Error(err))
				continue
			}
			m.publishSample(sample)
		}
	}
}

// publishSample offers a snapshot to the bounded channel, dropping the
// oldest pending snapshot when full.
func (m *Monitor) publishSample(sample ResourceSample) {
	for {
		select {
		case m.samples <- sample:
			return
		default:
			select {
			case <-m.samples:
			default:
			}
		}
	}
}

// drainSamplesLocked moves pending snapshots into the bounded history ring
// and evaluates resource thresholds. Caller must hold m.mu.
func (m *Monitor) drainSamplesLocked() {
	for {
		select {
		case sample := <-m.samples:
			m.resourceHistory = append(m.resourceHistory, sample)
			if len(m.resourceHistory) > resourceHistorySize {
				m.resourceHistory = m.resourceHistory[len(m.resourceHistory)-resourceHistorySize:]
			}
			m.checkResourceThresholdsLocked(sample)
		default:
			return
		}
	}
}

// checkResourceThresholdsLocked emits deduplicated recommendations for
// sustained resource pressure. Caller must hold m.mu.
func (m *Monitor) checkResourceThresholdsLocked(sample ResourceSample) {
	if sample.CPUPercent > cpuThresholdPercent {
		m.addRecommendationLocked(Recommendation{
			Type:       "high_cpu",
			Message:    fmt.Sprintf("high CPU usage: %.1f%%", sample.CPUPercent),
			Suggestion: "consider reducing concurrent operations or increasing delays",
			Timestamp:  sample.Timestamp,
		})
	}
	if sample.MemoryPercent > memoryThresholdPercent {
		m.addRecommendationLocked(Recommendation{
			Type:       "high_memory",
			Message:    fmt.Sprintf("high memory usage: %.1f%%", sample.MemoryPercent),
			Suggestion: "consider clearing caches or reducing operation history",
			Timestamp:  sample.Timestamp,
		})
	}
}

// Stop shuts down the resource sampler, joining it with a bounded timeout.
// It proceeds regardless of whether the join completed.
func (m *Monitor) Stop(ctx context.Context) {
	m.mu.Lock()
	running := m.samplerRunning
	m.samplerRunning = false
	m.mu.Unlock()

	if !running {
		return
	}

	close(m.stopSampler)

	timer := time.NewTimer(stopJoinTimeout)
	defer timer.Stop()

	select {
	case <-m.samplerDone:
		m.logger.Info("resource sampler stopped")
	case <-timer.C:
		m.logger.Warn("resource sampler stop timed out")
	case <-ctx.Done():
		m.logger.Warn("resource sampler stop cancelled")
	}
}
