package component

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360studio/streamharness/channel"
)

// BaseComponent provides the shared plumbing for concrete components: named
// channel wiring, status counters, and default lifecycle behavior. Embed it
// and implement Process; override Setup/Cleanup when extra work is needed,
// calling through to the base.
type BaseComponent struct {
	name   string
	logger *slog.Logger

	mu        sync.RWMutex
	running   bool
	startTime time.Time
	lastError string

	// Input ports hold at most one receiver each; output ports may fan
	// out to multiple channels.
	inputs  map[string]*channel.Receiver
	outputs map[string][]*channel.Sender

	itemsProcessed    atomic.Int64
	errorsEncountered atomic.Int64
}

// NewBase creates the embedded base for a component.
func NewBase(name string, deps Dependencies) *BaseComponent {
	return &BaseComponent{
		name:    name,
		logger:  deps.GetLogger().With("component", name),
		inputs:  make(map[string]*channel.Receiver),
		outputs: make(map[string][]*channel.Sender),
	}
}

// Name returns the component name.
func (b *BaseComponent) Name() string { return b.name }

// Logger returns the component-scoped logger.
func (b *BaseComponent) Logger() *slog.Logger { return b.logger }

// AttachInput wires a receiver to a named input port. Each input port
// accepts at most one incoming channel.
func (b *BaseComponent) AttachInput(port string, r *channel.Receiver) error {
	if port == "" {
		return fmt.Errorf("input port name cannot be empty")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.inputs[port]; exists {
		return fmt.Errorf("input port %q of component %q already wired", port, b.name)
	}
	b.inputs[port] = r
	return nil
}

// AttachOutput wires a sender to a named output port. Output ports fan out:
// every attached channel receives each item sent on the port.
func (b *BaseComponent) AttachOutput(port string, s *channel.Sender) error {
	if port == "" {
		return fmt.Errorf("output port name cannot be empty")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.outputs[port] = append(b.outputs[port], s)
	return nil
}

// Input returns the receiver wired to the named input port, or nil.
func (b *BaseComponent) Input(port string) *channel.Receiver {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.inputs[port]
}

// InputPorts returns the names of wired input ports.
func (b *BaseComponent) InputPorts() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ports := make([]string, 0, len(b.inputs))
	for name := range b.inputs {
		ports = append(ports, name)
	}
	return ports
}

// Send fans an item out to every channel wired to the named output port.
// It fails when the port has no channels: a producing component with an
// unwired output is a wiring bug, not a silent drop.
func (b *BaseComponent) Send(ctx context.Context, port string, item any) error {
	b.mu.RLock()
	senders := b.outputs[port]
	b.mu.RUnlock()

	if len(senders) == 0 {
		return fmt.Errorf("output port %q of component %q is not wired", port, b.name)
	}
	for _, s := range senders {
		if err := s.Send(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

// CloseOutputs signals end-of-stream on every output channel. Idempotent.
func (b *BaseComponent) CloseOutputs() {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, senders := range b.outputs {
		for _, s := range senders {
			s.Close()
		}
	}
}

// Setup marks the component running. Overriding components should call
// through after their own initialization succeeds.
func (b *BaseComponent) Setup(_ context.Context) error {
	b.mu.Lock()
	b.running = true
	b.startTime = time.Now()
	b.mu.Unlock()
	return nil
}

// Cleanup clears the running flag and closes all output channels so
// downstream consumers observe end-of-stream.
func (b *BaseComponent) Cleanup(_ context.Context) error {
	b.mu.Lock()
	b.running = false
	b.mu.Unlock()
	b.CloseOutputs()
	return nil
}

// Ready reports whether Setup has completed. Components with external
// dependencies override this with a real readiness probe.
func (b *BaseComponent) Ready() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.running
}

// Running reports the running flag.
func (b *BaseComponent) Running() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.running
}

// RecordItem increments the processed-items counter.
func (b *BaseComponent) RecordItem() {
	b.itemsProcessed.Add(1)
}

// RecordError increments the error counter and remembers the message.
func (b *BaseComponent) RecordError(err error) {
	b.errorsEncountered.Add(1)
	if err != nil {
		b.mu.Lock()
		b.lastError = err.Error()
		b.mu.Unlock()
	}
}

// Status returns the component's status record.
func (b *BaseComponent) Status() Status {
	b.mu.RLock()
	running := b.running
	lastError := b.lastError
	b.mu.RUnlock()

	return Status{
		Running:           running,
		Healthy:           running && lastError == "",
		ItemsProcessed:    b.itemsProcessed.Load(),
		ErrorsEncountered: b.errorsEncountered.Load(),
		LastError:         lastError,
	}
}

// Health returns the default health snapshot: healthy while running and no
// error has been recorded since the last successful stretch.
func (b *BaseComponent) Health() HealthStatus {
	b.mu.RLock()
	running := b.running
	startTime := b.startTime
	lastError := b.lastError
	b.mu.RUnlock()

	status := "stopped"
	if running {
		status = "running"
	}
	var uptime time.Duration
	if !startTime.IsZero() {
		uptime = time.Since(startTime)
	}

	return HealthStatus{
		Healthy:        running,
		Status:         status,
		LastCheck:      time.Now(),
		Uptime:         uptime,
		ItemsProcessed: b.itemsProcessed.Load(),
		ErrorCount:     b.errorsEncountered.Load(),
		LastError:      lastError,
	}
}
