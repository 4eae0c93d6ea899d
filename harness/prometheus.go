package harness

import (
	"github.com/prometheus/client_golang/prometheus"
)

// collector exposes harness metrics to a prometheus registry without
// maintaining a parallel set of metric objects: every scrape reads the
// current snapshot and emits const metrics.
type collector struct {
	h *Harness

	itemsTotal    *prometheus.Desc
	errorsTotal   *prometheus.Desc
	itemsPerSec   *prometheus.Desc
	errorRate     *prometheus.Desc
	memoryBytes   *prometheus.Desc
	cpuPercent    *prometheus.Desc
	queueDepth    *prometheus.Desc
	compHealthy   *prometheus.Desc
	compItems     *prometheus.Desc
	compErrors    *prometheus.Desc
	breakerState  *prometheus.Desc
	harnessState  *prometheus.Desc
	uptimeSeconds *prometheus.Desc
}

func newCollector(h *Harness) *collector {
	labels := prometheus.Labels{"harness_id": h.id}
	return &collector{
		h: h,
		itemsTotal: prometheus.NewDesc("harness_items_processed_total",
			"Total items processed across all components", nil, labels),
		errorsTotal: prometheus.NewDesc("harness_errors_total",
			"Total component failures recorded", nil, labels),
		itemsPerSec: prometheus.NewDesc("harness_items_per_second",
			"Current aggregate processing rate", nil, labels),
		errorRate: prometheus.NewDesc("harness_error_rate",
			"Errors as a fraction of processed items", nil, labels),
		memoryBytes: prometheus.NewDesc("harness_memory_used_bytes",
			"System memory in use", nil, labels),
		cpuPercent: prometheus.NewDesc("harness_cpu_percent",
			"System CPU utilization percent", nil, labels),
		queueDepth: prometheus.NewDesc("harness_queue_depth",
			"Buffered items per channel", []string{"channel"}, labels),
		compHealthy: prometheus.NewDesc("harness_component_healthy",
			"1 when the component reports healthy", []string{"component"}, labels),
		compItems: prometheus.NewDesc("harness_component_items_total",
			"Items processed per component", []string{"component"}, labels),
		compErrors: prometheus.NewDesc("harness_component_errors_total",
			"Errors recorded per component", []string{"component"}, labels),
		breakerState: prometheus.NewDesc("harness_breaker_state",
			"Circuit breaker state: 0 closed, 1 half-open, 2 open", []string{"component"}, labels),
		harnessState: prometheus.NewDesc("harness_state",
			"Lifecycle state ordinal", nil, labels),
		uptimeSeconds: prometheus.NewDesc("harness_uptime_seconds",
			"Seconds since the harness was created", nil, labels),
	}
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.itemsTotal
	ch <- c.errorsTotal
	ch <- c.itemsPerSec
	ch <- c.errorRate
	ch <- c.memoryBytes
	ch <- c.cpuPercent
	ch <- c.queueDepth
	ch <- c.compHealthy
	ch <- c.compItems
	ch <- c.compErrors
	ch <- c.breakerState
	ch <- c.harnessState
	ch <- c.uptimeSeconds
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.h.Metrics()

	ch <- prometheus.MustNewConstMetric(c.itemsTotal, prometheus.CounterValue, float64(snap.TotalItemsProcessed))
	ch <- prometheus.MustNewConstMetric(c.errorsTotal, prometheus.CounterValue, float64(snap.TotalErrors))
	ch <- prometheus.MustNewConstMetric(c.itemsPerSec, prometheus.GaugeValue, snap.ItemsPerSecond)
	ch <- prometheus.MustNewConstMetric(c.errorRate, prometheus.GaugeValue, snap.ErrorRate)
	ch <- prometheus.MustNewConstMetric(c.memoryBytes, prometheus.GaugeValue, float64(snap.MemoryUsedBytes))
	ch <- prometheus.MustNewConstMetric(c.cpuPercent, prometheus.GaugeValue, snap.CPUPercent)
	ch <- prometheus.MustNewConstMetric(c.harnessState, prometheus.GaugeValue, float64(c.h.State()))
	ch <- prometheus.MustNewConstMetric(c.uptimeSeconds, prometheus.GaugeValue, snap.Uptime.Seconds())

	for name, depth := range snap.QueueDepths {
		ch <- prometheus.MustNewConstMetric(c.queueDepth, prometheus.GaugeValue, float64(depth), name)
	}

	for name, hs := range snap.Components {
		healthy := 0.0
		if hs.Healthy {
			healthy = 1.0
		}
		ch <- prometheus.MustNewConstMetric(c.compHealthy, prometheus.GaugeValue, healthy, name)
		ch <- prometheus.MustNewConstMetric(c.compItems, prometheus.CounterValue, float64(hs.ItemsProcessed), name)
		ch <- prometheus.MustNewConstMetric(c.compErrors, prometheus.CounterValue, float64(hs.ErrorCount), name)
	}

	for name, st := range c.h.breakerStates() {
		ch <- prometheus.MustNewConstMetric(c.breakerState, prometheus.GaugeValue, breakerOrdinal(st), name)
	}
}

func breakerOrdinal(st BreakerState) float64 {
	switch st {
	case BreakerHalfOpen:
		return 1
	case BreakerOpen:
		return 2
	default:
		return 0
	}
}
