package harness

import (
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/c360studio/streamharness/component"
)

// MetricsSnapshot is a point-in-time copy of the harness metrics. Readers
// must tolerate staleness; the snapshot is recomputed on the metrics
// updater's interval.
type MetricsSnapshot struct {
	StartTime           time.Time                         `json:"start_time"`
	Uptime              time.Duration                     `json:"uptime"`
	TotalItemsProcessed int64                             `json:"total_items_processed"`
	TotalErrors         int64                             `json:"total_errors"`
	ItemsPerSecond      float64                           `json:"items_per_second"`
	ErrorRate           float64                           `json:"error_rate"`
	MemoryUsedBytes     uint64                            `json:"memory_used_bytes"`
	MemoryUsedPercent   float64                           `json:"memory_used_percent"`
	CPUPercent          float64                           `json:"cpu_percent"`
	QueueDepths         map[string]int                    `json:"queue_depths"`
	Components          map[string]component.HealthStatus `json:"components"`
}

// SystemHealthSummary is the condensed health view served by external
// health endpoints.
type SystemHealthSummary struct {
	Status              string        `json:"status"`
	HealthScore         float64       `json:"health_score"`
	Uptime              time.Duration `json:"uptime"`
	ComponentsTotal     int           `json:"components_total"`
	ComponentsHealthy   int           `json:"components_healthy"`
	ComponentsUnhealthy int           `json:"components_unhealthy"`
}

// DetailedMetrics is the full observability payload: metrics, per-component
// breakdown, breaker states, and the current alerts and recommendations.
type DetailedMetrics struct {
	Harness         MetricsSnapshot   `json:"harness"`
	State           string            `json:"state"`
	CircuitBreakers map[string]string `json:"circuit_breakers"`
	Alerts          []Alert           `json:"alerts"`
	Recommendations []string          `json:"recommendations"`
}

// metrics holds the mutable metric state. It is written by the metrics
// updater task and by the failure-recording paths, and read concurrently by
// the observability APIs, so every access goes through the mutex.
type metrics struct {
	mu sync.RWMutex

	startTime           time.Time
	totalItemsProcessed int64
	totalErrors         int64
	itemsPerSecond      float64
	errorRate           float64
	memoryUsedBytes     uint64
	memoryUsedPercent   float64
	cpuPercent          float64
	queueDepths         map[string]int
	components          map[string]component.HealthStatus
}

func newMetrics() *metrics {
	return &metrics{
		startTime:   time.Now(),
		queueDepths: make(map[string]int),
		components:  make(map[string]component.HealthStatus),
	}
}

// recordError bumps the error total outside the updater cycle so alert
// thresholds see failures promptly.
func (m *metrics) recordError() {
	m.mu.Lock()
	m.totalErrors++
	m.mu.Unlock()
}

// update recomputes derived rates and resource gauges from the current
// component health snapshots and channel depths.
func (m *metrics) update(components map[string]component.HealthStatus, depths map[string]int) {
	var totalItems int64
	for _, hs := range components {
		totalItems += hs.ItemsProcessed
	}

	memBytes, memPercent := sampleMemory()
	cpuPct := sampleCPU()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.components = components
	m.queueDepths = depths
	m.totalItemsProcessed = totalItems

	uptime := time.Since(m.startTime).Seconds()
	if uptime > 0 {
		m.itemsPerSecond = float64(totalItems) / uptime
	}
	if totalItems > 0 {
		m.errorRate = float64(m.totalErrors) / float64(totalItems)
	} else if m.totalErrors > 0 {
		m.errorRate = 1
	} else {
		m.errorRate = 0
	}

	m.memoryUsedBytes = memBytes
	m.memoryUsedPercent = memPercent
	m.cpuPercent = cpuPct
}

// snapshot returns a deep copy safe for concurrent readers.
func (m *metrics) snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	depths := make(map[string]int, len(m.queueDepths))
	for k, v := range m.queueDepths {
		depths[k] = v
	}
	comps := make(map[string]component.HealthStatus, len(m.components))
	for k, v := range m.components {
		comps[k] = v
	}

	return MetricsSnapshot{
		StartTime:           m.startTime,
		Uptime:              time.Since(m.startTime),
		TotalItemsProcessed: m.totalItemsProcessed,
		TotalErrors:         m.totalErrors,
		ItemsPerSecond:      m.itemsPerSecond,
		ErrorRate:           m.errorRate,
		MemoryUsedBytes:     m.memoryUsedBytes,
		MemoryUsedPercent:   m.memoryUsedPercent,
		CPUPercent:          m.cpuPercent,
		QueueDepths:         depths,
		Components:          comps,
	}
}

// sampleMemory reads system memory usage. Errors degrade to zero gauges
// rather than failing the updater.
func sampleMemory() (uint64, float64) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, 0
	}
	return vm.Used, vm.UsedPercent
}

// sampleCPU reads instantaneous aggregate CPU utilization.
func sampleCPU() float64 {
	percents, err := cpu.Percent(0, false)
	if err != nil || len(percents) == 0 {
		return 0
	}
	return percents[0]
}
