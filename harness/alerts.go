package harness

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AlertSeverity classifies an alert.
type AlertSeverity string

const (
	// SeverityCritical conditions need operator action now.
	SeverityCritical AlertSeverity = "critical"
	// SeverityWarning conditions need attention but the system still works.
	SeverityWarning AlertSeverity = "warning"
)

// Alert categories. Stable tags for programmatic consumption.
const (
	AlertHighErrorRate      = "high_error_rate"
	AlertElevatedErrorRate  = "elevated_error_rate"
	AlertMemoryCritical     = "memory_critical"
	AlertMemoryElevated     = "memory_elevated"
	AlertCPUHigh            = "cpu_high"
	AlertBreakerOpen        = "circuit_breaker_open"
	AlertBreakerHalfOpen    = "circuit_breaker_half_open"
	AlertComponentUnhealthy = "component_unhealthy"
	AlertLowThroughput      = "low_throughput"
	AlertErrorBacklog       = "error_backlog"
)

// Alert describes one current operational condition.
type Alert struct {
	ID        string         `json:"id"`
	Severity  AlertSeverity  `json:"severity"`
	Category  string         `json:"category"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

func newAlert(severity AlertSeverity, category, message string, details map[string]any) Alert {
	return Alert{
		ID:        uuid.NewString(),
		Severity:  severity,
		Category:  category,
		Message:   message,
		Details:   details,
		Timestamp: time.Now(),
	}
}

// generateAlerts classifies the current snapshot into alerts. Pull-based:
// alerts are computed on demand, never stored.
func generateAlerts(snap MetricsSnapshot, breakers map[string]BreakerState, opts Options) []Alert {
	var alerts []Alert

	switch {
	case snap.ErrorRate > 0.20:
		alerts = append(alerts, newAlert(SeverityCritical, AlertHighErrorRate,
			fmt.Sprintf("error rate %.1f%% exceeds 20%%", snap.ErrorRate*100),
			map[string]any{"error_rate": snap.ErrorRate, "total_errors": snap.TotalErrors}))
	case snap.ErrorRate > 0.10:
		alerts = append(alerts, newAlert(SeverityWarning, AlertElevatedErrorRate,
			fmt.Sprintf("error rate %.1f%% exceeds 10%%", snap.ErrorRate*100),
			map[string]any{"error_rate": snap.ErrorRate, "total_errors": snap.TotalErrors}))
	}

	switch {
	case snap.MemoryUsedPercent > opts.MemoryCriticalPercent:
		alerts = append(alerts, newAlert(SeverityCritical, AlertMemoryCritical,
			fmt.Sprintf("memory usage %.1f%% exceeds %.0f%%", snap.MemoryUsedPercent, opts.MemoryCriticalPercent),
			map[string]any{"memory_percent": snap.MemoryUsedPercent, "memory_bytes": snap.MemoryUsedBytes}))
	case snap.MemoryUsedPercent > opts.MemoryWarningPercent:
		alerts = append(alerts, newAlert(SeverityWarning, AlertMemoryElevated,
			fmt.Sprintf("memory usage %.1f%% exceeds %.0f%%", snap.MemoryUsedPercent, opts.MemoryWarningPercent),
			map[string]any{"memory_percent": snap.MemoryUsedPercent, "memory_bytes": snap.MemoryUsedBytes}))
	}

	if snap.CPUPercent > 80 {
		alerts = append(alerts, newAlert(SeverityWarning, AlertCPUHigh,
			fmt.Sprintf("CPU usage %.1f%% exceeds 80%%", snap.CPUPercent),
			map[string]any{"cpu_percent": snap.CPUPercent}))
	}

	for name, state := range breakers {
		switch state {
		case BreakerOpen:
			alerts = append(alerts, newAlert(SeverityCritical, AlertBreakerOpen,
				fmt.Sprintf("circuit breaker for component %q is open", name),
				map[string]any{"component": name}))
		case BreakerHalfOpen:
			alerts = append(alerts, newAlert(SeverityWarning, AlertBreakerHalfOpen,
				fmt.Sprintf("circuit breaker for component %q is half-open (probing recovery)", name),
				map[string]any{"component": name}))
		case BreakerClosed:
		}
	}

	for name, hs := range snap.Components {
		if !hs.Healthy {
			alerts = append(alerts, newAlert(SeverityCritical, AlertComponentUnhealthy,
				fmt.Sprintf("component %q is unhealthy: %s", name, hs.Status),
				map[string]any{"component": name, "last_error": hs.LastError}))
		}
	}

	if snap.Uptime > opts.ThroughputWarmup && snap.ItemsPerSecond < opts.LowThroughputFloor {
		alerts = append(alerts, newAlert(SeverityWarning, AlertLowThroughput,
			fmt.Sprintf("throughput %.2f items/sec below %.2f after warm-up", snap.ItemsPerSecond, opts.LowThroughputFloor),
			map[string]any{"items_per_second": snap.ItemsPerSecond}))
	}

	if snap.TotalErrors > opts.ErrorBacklogThreshold {
		alerts = append(alerts, newAlert(SeverityWarning, AlertErrorBacklog,
			fmt.Sprintf("%d total errors exceed backlog threshold %d", snap.TotalErrors, opts.ErrorBacklogThreshold),
			map[string]any{"total_errors": snap.TotalErrors}))
	}

	return alerts
}

// generateRecommendations produces remediation text keyed to the same
// conditions as generateAlerts. Informational only: the harness takes no
// corrective action beyond the breaker's own recovery probing.
func generateRecommendations(alerts []Alert) []string {
	var recs []string
	seen := make(map[string]bool)
	add := func(category, text string) {
		if !seen[category] {
			seen[category] = true
			recs = append(recs, text)
		}
	}

	for _, a := range alerts {
		switch a.Category {
		case AlertHighErrorRate, AlertElevatedErrorRate:
			add(a.Category, "Inspect failing components' last errors and input data; consider raising retry limits or fixing the upstream producer.")
		case AlertMemoryCritical, AlertMemoryElevated:
			add(a.Category, "Reduce channel buffer capacities or component batch sizes, or allocate more memory to the process.")
		case AlertCPUHigh:
			add(a.Category, "Offload CPU-bound work from component process loops; they share one cooperative scheduler.")
		case AlertBreakerOpen:
			add(a.Category, "A component is failing repeatedly. Check its logs and configuration; the breaker will probe recovery automatically.")
		case AlertBreakerHalfOpen:
			add(a.Category, "A component is being probed for recovery; avoid restarting the harness until probing settles.")
		case AlertComponentUnhealthy:
			add(a.Category, "Query the component's health detail and verify its external dependencies are reachable.")
		case AlertLowThroughput:
			add(a.Category, "Verify sources are producing and no channel is permanently full; inspect queue depths for a stalled consumer.")
		case AlertErrorBacklog:
			add(a.Category, "Error volume is accumulating; triage the most frequent component errors before they mask new failures.")
		}
	}
	return recs
}
