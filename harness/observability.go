package harness

import "github.com/c360studio/streamharness/component"

// Observability accessors. All of them operate on the most recent metrics
// snapshot plus live breaker state, and are safe to call from any goroutine
// at any point of the lifecycle.

// Metrics returns the latest metrics snapshot.
func (h *Harness) Metrics() MetricsSnapshot {
	return h.metrics.snapshot()
}

// SystemHealthSummary condenses component health into a single status and
// score. The score is the healthy fraction; status is "healthy" at 1.0,
// "unhealthy" below 0.5, "degraded" in between.
func (h *Harness) SystemHealthSummary() SystemHealthSummary {
	snap := h.metrics.snapshot()

	total := len(snap.Components)
	healthy := 0
	for _, hs := range snap.Components {
		if hs.Healthy {
			healthy++
		}
	}

	score := 1.0
	if total > 0 {
		score = float64(healthy) / float64(total)
	}
	status := "healthy"
	switch {
	case score < 0.5:
		status = "unhealthy"
	case score < 1.0:
		status = "degraded"
	}

	return SystemHealthSummary{
		Status:              status,
		HealthScore:         score,
		Uptime:              snap.Uptime,
		ComponentsTotal:     total,
		ComponentsHealthy:   healthy,
		ComponentsUnhealthy: total - healthy,
	}
}

// HealthCheck reports per-component liveness keyed by component name.
func (h *Harness) HealthCheck() map[string]bool {
	comps := h.componentSnapshot()
	out := make(map[string]bool, len(comps))
	for name, comp := range comps {
		out[name] = comp.Health().Healthy
	}
	return out
}

// ComponentHealth returns the named component's health status.
func (h *Harness) ComponentHealth(name string) (component.HealthStatus, bool) {
	comp := h.component(name)
	if comp == nil {
		return component.HealthStatus{}, false
	}
	return comp.Health(), true
}

// Alerts evaluates alert rules against the current snapshot and breaker
// states.
func (h *Harness) Alerts() []Alert {
	return generateAlerts(h.metrics.snapshot(), h.breakerStates(), h.opts)
}

// Recommendations derives remediation hints from the active alerts.
func (h *Harness) Recommendations() []string {
	return generateRecommendations(h.Alerts())
}

// DetailedMetrics bundles the full observability payload.
func (h *Harness) DetailedMetrics() DetailedMetrics {
	snap := h.metrics.snapshot()
	states := h.breakerStates()

	breakers := make(map[string]string, len(states))
	for name, st := range states {
		breakers[name] = st.String()
	}

	alerts := generateAlerts(snap, states, h.opts)
	return DetailedMetrics{
		Harness:         snap,
		State:           h.State().String(),
		CircuitBreakers: breakers,
		Alerts:          alerts,
		Recommendations: generateRecommendations(alerts),
	}
}

// BreakerState returns the named component's circuit breaker state. A
// component with no recorded failures reports a closed breaker.
func (h *Harness) BreakerState(name string) (BreakerState, bool) {
	h.mu.RLock()
	_, known := h.components[name]
	h.mu.RUnlock()
	if !known {
		return BreakerClosed, false
	}
	return h.breakerFor(name).State(), true
}

func (h *Harness) breakerStates() map[string]BreakerState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]BreakerState, len(h.breakers))
	for name, br := range h.breakers {
		out[name] = br.State()
	}
	return out
}

// Components returns the registered component names in registration order.
func (h *Harness) Components() []string {
	return h.componentOrder()
}

// ComponentCount returns the number of registered components.
func (h *Harness) ComponentCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.components)
}

// ConnectionCount returns the number of wired channels.
func (h *Harness) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}
