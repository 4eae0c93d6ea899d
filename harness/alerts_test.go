package harness

import (
	"testing"
	"time"

	"github.com/c360studio/streamharness/component"
)

func alertCategories(alerts []Alert) map[string]AlertSeverity {
	out := make(map[string]AlertSeverity, len(alerts))
	for _, a := range alerts {
		out[a.Category] = a.Severity
	}
	return out
}

func TestGenerateAlertsErrorRate(t *testing.T) {
	opts := DefaultOptions()

	tests := []struct {
		name     string
		rate     float64
		category string
		severity AlertSeverity
	}{
		{"critical above twenty percent", 0.25, AlertHighErrorRate, SeverityCritical},
		{"warning above ten percent", 0.15, AlertElevatedErrorRate, SeverityWarning},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := MetricsSnapshot{ErrorRate: tt.rate}
			cats := alertCategories(generateAlerts(snap, nil, opts))
			sev, ok := cats[tt.category]
			if !ok {
				t.Fatalf("expected %s alert, got %v", tt.category, cats)
			}
			if sev != tt.severity {
				t.Errorf("severity = %s, want %s", sev, tt.severity)
			}
		})
	}

	cats := alertCategories(generateAlerts(MetricsSnapshot{ErrorRate: 0.05}, nil, opts))
	if _, ok := cats[AlertHighErrorRate]; ok {
		t.Error("unexpected error-rate alert at 5%")
	}
	if _, ok := cats[AlertElevatedErrorRate]; ok {
		t.Error("unexpected elevated-error-rate alert at 5%")
	}
}

func TestGenerateAlertsResources(t *testing.T) {
	opts := DefaultOptions()

	snap := MetricsSnapshot{MemoryUsedPercent: 95, CPUPercent: 90}
	cats := alertCategories(generateAlerts(snap, nil, opts))
	if cats[AlertMemoryCritical] != SeverityCritical {
		t.Errorf("memory alert = %v, want critical", cats[AlertMemoryCritical])
	}
	if cats[AlertCPUHigh] != SeverityWarning {
		t.Errorf("cpu alert = %v, want warning", cats[AlertCPUHigh])
	}

	snap = MetricsSnapshot{MemoryUsedPercent: 80}
	cats = alertCategories(generateAlerts(snap, nil, opts))
	if cats[AlertMemoryElevated] != SeverityWarning {
		t.Errorf("memory alert = %v, want elevated warning", cats[AlertMemoryElevated])
	}
}

func TestGenerateAlertsBreakers(t *testing.T) {
	opts := DefaultOptions()
	breakers := map[string]BreakerState{
		"open-comp":   BreakerOpen,
		"probe-comp":  BreakerHalfOpen,
		"closed-comp": BreakerClosed,
	}

	cats := alertCategories(generateAlerts(MetricsSnapshot{}, breakers, opts))
	if cats[AlertBreakerOpen] != SeverityCritical {
		t.Errorf("open breaker alert = %v, want critical", cats[AlertBreakerOpen])
	}
	if cats[AlertBreakerHalfOpen] != SeverityWarning {
		t.Errorf("half-open breaker alert = %v, want warning", cats[AlertBreakerHalfOpen])
	}
}

func TestGenerateAlertsUnhealthyComponent(t *testing.T) {
	snap := MetricsSnapshot{
		Components: map[string]component.HealthStatus{
			"sink": {Healthy: false, Status: "stalled", LastError: "channel full"},
		},
	}
	cats := alertCategories(generateAlerts(snap, nil, DefaultOptions()))
	if cats[AlertComponentUnhealthy] != SeverityCritical {
		t.Errorf("unhealthy component alert = %v, want critical", cats[AlertComponentUnhealthy])
	}
}

func TestGenerateAlertsThroughputAndBacklog(t *testing.T) {
	opts := DefaultOptions()

	snap := MetricsSnapshot{Uptime: opts.ThroughputWarmup + time.Minute}
	cats := alertCategories(generateAlerts(snap, nil, opts))
	if _, ok := cats[AlertLowThroughput]; !ok {
		t.Error("expected low-throughput alert after warm-up with zero rate")
	}

	// Inside the warm-up window low throughput is expected, not alertable.
	snap = MetricsSnapshot{Uptime: opts.ThroughputWarmup / 2}
	cats = alertCategories(generateAlerts(snap, nil, opts))
	if _, ok := cats[AlertLowThroughput]; ok {
		t.Error("unexpected low-throughput alert during warm-up")
	}

	snap = MetricsSnapshot{TotalErrors: opts.ErrorBacklogThreshold + 1}
	cats = alertCategories(generateAlerts(snap, nil, opts))
	if _, ok := cats[AlertErrorBacklog]; !ok {
		t.Error("expected error-backlog alert")
	}
}

func TestRecommendationsDeduplicateByCategory(t *testing.T) {
	alerts := []Alert{
		newAlert(SeverityCritical, AlertBreakerOpen, "breaker open for a", nil),
		newAlert(SeverityCritical, AlertBreakerOpen, "breaker open for b", nil),
		newAlert(SeverityWarning, AlertCPUHigh, "cpu high", nil),
	}
	recs := generateRecommendations(alerts)
	if len(recs) != 2 {
		t.Fatalf("got %d recommendations, want 2: %v", len(recs), recs)
	}
}
