// Package component defines the processing-unit contract the harness
// schedules, plus the BaseComponent embedding that gives concrete components
// channel wiring, status counters, and default lifecycle behavior.
//
// Components are constructed by factories from raw JSON configuration and an
// explicit Dependencies value; there are no global registries. The harness
// owns a component exclusively once it is registered.
package component

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360studio/streamharness/channel"
)

// Component is the capability contract every processing unit implements.
//
// Lifecycle: the harness calls Setup once before any processing, Process as a
// long-lived task under supervision, and Cleanup exactly once during
// shutdown, even when Setup or Process failed. Cleanup must therefore
// tolerate a partially initialized component. Health must never block or
// panic; Ready is polled during the startup barrier.
type Component interface {
	// Name returns the component's unique identifier within a harness.
	Name() string

	// Setup performs one-time initialization. Failure prevents the
	// component from being scheduled and aborts harness startup.
	Setup(ctx context.Context) error

	// Process is the main loop: consume from input channels until they
	// signal end-of-stream, transform, and send to output channels.
	// It must return when input is exhausted or ctx is cancelled.
	Process(ctx context.Context) error

	// Cleanup releases resources. Always invoked once during shutdown.
	Cleanup(ctx context.Context) error

	// Health returns a point-in-time status snapshot. Must not block.
	Health() HealthStatus

	// Ready reports whether the component can begin processing.
	Ready() bool
}

// Wirable is implemented by components whose ports the harness can wire.
// BaseComponent provides it; components that manage their own transport may
// omit it, in which case Connect calls naming them fail.
type Wirable interface {
	AttachInput(port string, r *channel.Receiver) error
	AttachOutput(port string, s *channel.Sender) error
}

// Factory constructs a component instance from raw JSON configuration.
type Factory func(name string, rawConfig json.RawMessage, deps Dependencies) (Component, error)

// HealthStatus is the snapshot returned by Component.Health.
type HealthStatus struct {
	Healthy        bool          `json:"healthy"`
	Status         string        `json:"status"`
	LastCheck      time.Time     `json:"last_check"`
	Uptime         time.Duration `json:"uptime"`
	ItemsProcessed int64         `json:"items_processed"`
	ErrorCount     int64         `json:"error_count"`
	LastError      string        `json:"last_error,omitempty"`
}

// Status is the component's mutable status record.
type Status struct {
	Running           bool   `json:"running"`
	Healthy           bool   `json:"healthy"`
	ItemsProcessed    int64  `json:"items_processed"`
	ErrorsEncountered int64  `json:"errors_encountered"`
	LastError         string `json:"last_error,omitempty"`
}

// PlatformMeta identifies the platform a harness instance runs under.
type PlatformMeta struct {
	Org      string `json:"org"`
	Platform string `json:"platform"`
}

// Dependencies carries shared infrastructure into component factories and
// the harness. All fields are optional; accessors provide fallbacks.
type Dependencies struct {
	Logger          *slog.Logger
	MetricsRegistry *prometheus.Registry
	NATSConn        *nats.Conn
	Platform        PlatformMeta
}

// GetLogger returns the configured logger or slog.Default().
func (d Dependencies) GetLogger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}
