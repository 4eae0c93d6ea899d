package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/c360studio/streamharness/component"
)

// healthMonitor periodically probes every active component's Health and
// feeds failures into the circuit breakers.
func (h *Harness) healthMonitor(ctx context.Context) {
	ticker := time.NewTicker(h.opts.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.checkComponentHealth()
		}
	}
}

func (h *Harness) checkComponentHealth() {
	for name, comp := range h.componentSnapshot() {
		if !h.isActive(name) {
			continue
		}
		hs := comp.Health()
		if hs.Healthy {
			continue
		}
		err := fmt.Errorf("health check failed: %s", hs.Status)
		if hs.LastError != "" {
			err = fmt.Errorf("health check failed: %s: %s", hs.Status, hs.LastError)
		}
		h.ReportComponentFailure(name, err)
	}
}

// metricsUpdater recomputes derived metrics from component health and
// channel depths on a fixed cadence.
func (h *Harness) metricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(h.opts.MetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.refreshMetrics()
		}
	}
}

func (h *Harness) refreshMetrics() {
	comps := h.componentSnapshot()
	health := make(map[string]component.HealthStatus, len(comps))
	for name, comp := range comps {
		health[name] = comp.Health()
	}

	h.mu.RLock()
	depths := make(map[string]int, len(h.connections))
	for _, conn := range h.connections {
		depths[conn.name] = conn.ch.Len()
	}
	h.mu.RUnlock()

	h.metrics.update(health, depths)
}

// shutdownMonitor cancels the run context when Stop is invoked.
func (h *Harness) shutdownMonitor(ctx context.Context, cancelRun context.CancelFunc) {
	select {
	case <-ctx.Done():
	case <-h.shutdown:
		h.logger.Info("Shutdown requested")
		cancelRun()
	}
}

func (h *Harness) componentSnapshot() map[string]component.Component {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]component.Component, len(h.components))
	for name, comp := range h.components {
		out[name] = comp
	}
	return out
}
