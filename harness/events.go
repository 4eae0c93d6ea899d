package harness

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Event types published to NATS.
const (
	EventHarnessState     = "harness_state"
	EventComponentStarted = "component_started"
	EventComponentStopped = "component_stopped"
	EventComponentFailed  = "component_failed"
	EventBreakerChanged   = "breaker_changed"
)

// Event is the lifecycle notification published for external observers.
type Event struct {
	HarnessID string    `json:"harness_id"`
	Type      string    `json:"type"`
	Component string    `json:"component,omitempty"`
	State     string    `json:"state,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// eventPublisher publishes lifecycle events to NATS subjects of the form
// "harness.events.<type>". A nil connection disables publishing entirely
// (graceful degradation); publish errors are logged, never propagated.
type eventPublisher struct {
	nc        *nats.Conn
	harnessID string
	logger    *slog.Logger
}

func newEventPublisher(nc *nats.Conn, harnessID string, logger *slog.Logger) *eventPublisher {
	return &eventPublisher{nc: nc, harnessID: harnessID, logger: logger}
}

func (p *eventPublisher) publish(eventType, componentName, state, detail string) {
	if p == nil || p.nc == nil {
		return
	}

	ev := Event{
		HarnessID: p.harnessID,
		Type:      eventType,
		Component: componentName,
		State:     state,
		Detail:    detail,
		Timestamp: time.Now(),
	}
	data, err := json.Marshal(ev)
	if err != nil {
		p.logger.Warn("Failed to marshal lifecycle event", "type", eventType, "error", err)
		return
	}

	subject := fmt.Sprintf("harness.events.%s", eventType)
	if err := p.nc.Publish(subject, data); err != nil {
		p.logger.Debug("Failed to publish lifecycle event",
			"subject", subject, "type", eventType, "error", err)
	}
}
