// Package harness provides the runtime orchestration engine: it registers
// components, wires bounded channels between their ports, runs every
// component concurrently under retry and circuit-breaker supervision,
// samples health and metrics in the background, and coordinates graceful
// shutdown with a guaranteed cleanup pass.
//
// Lifecycle: Created → Initialized → Running → Stopping → Stopped, with
// Failed reachable from any state on unrecoverable startup error.
// Registration and wiring happen in Created; Run performs setup on all
// components, gates on a readiness barrier, then schedules every component's
// Process as a long-lived supervised task.
package harness

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/c360studio/streamharness/channel"
	"github.com/c360studio/streamharness/component"
	"github.com/c360studio/streamharness/pkg/retry"
)

// State is the harness lifecycle state.
type State int32

const (
	// StateCreated accepts registration and wiring.
	StateCreated State = iota
	// StateInitialized means all components completed Setup.
	StateInitialized
	// StateRunning means processing tasks are scheduled.
	StateRunning
	// StateStopping means shutdown is in progress.
	StateStopping
	// StateStopped is the terminal state after a clean run.
	StateStopped
	// StateFailed is the absorbing state after an unrecoverable
	// startup error.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// connection is one wired channel between two component ports.
type connection struct {
	name     string
	ch       *channel.Channel
	fromComp string
	fromPort string
	toComp   string
	toPort   string
}

// Harness orchestrates a set of components.
type Harness struct {
	id     string
	opts   Options
	deps   component.Dependencies
	logger *slog.Logger

	mu          sync.RWMutex
	components  map[string]component.Component
	order       []string
	connections []*connection
	breakers    map[string]*CircuitBreaker
	terminal    map[string]error
	active      map[string]bool

	onStart func(name string)
	onStop  func(name, reason string)
	onError func(name string, err error)

	state   atomic.Int32
	metrics *metrics
	events  *eventPublisher

	ready      chan struct{}
	readyOnce  sync.Once
	shutdown   chan struct{}
	stopOnce   sync.Once
	runStarted atomic.Bool
	runDone    chan struct{}
	runErr     error
}

// New creates a harness. Options zero values fall back to defaults; an
// inconsistent Options produces a harness that fails on Run.
func New(opts Options, deps component.Dependencies) (*Harness, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid harness options: %w", err)
	}

	id := uuid.NewString()
	logger := deps.GetLogger().With("harness_id", id)

	h := &Harness{
		id:         id,
		opts:       opts,
		deps:       deps,
		logger:     logger,
		components: make(map[string]component.Component),
		breakers:   make(map[string]*CircuitBreaker),
		terminal:   make(map[string]error),
		active:     make(map[string]bool),
		metrics:    newMetrics(),
		events:     newEventPublisher(deps.NATSConn, id, logger),
		ready:      make(chan struct{}),
		shutdown:   make(chan struct{}),
		runDone:    make(chan struct{}),
	}

	if deps.MetricsRegistry != nil {
		if err := deps.MetricsRegistry.Register(newCollector(h)); err != nil {
			logger.Warn("Failed to register prometheus collector", "error", err)
		}
	}

	return h, nil
}

// ID returns the harness instance identifier.
func (h *Harness) ID() string { return h.id }

// State returns the current lifecycle state.
func (h *Harness) State() State { return State(h.state.Load()) }

func (h *Harness) setState(s State) {
	h.state.Store(int32(s))
	h.events.publish(EventHarnessState, "", s.String(), "")
}

// Register adds a component under its name. It fails with
// DuplicateComponentError when the name is taken, and is only valid before
// Run.
func (h *Harness) Register(name string, comp component.Component) error {
	if name == "" {
		return fmt.Errorf("component name cannot be empty")
	}
	if comp == nil {
		return fmt.Errorf("component %q is nil", name)
	}
	if h.State() != StateCreated {
		return fmt.Errorf("cannot register component %q: harness is %s", name, h.State())
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.components[name]; exists {
		return &DuplicateComponentError{Name: name}
	}
	h.components[name] = comp
	h.order = append(h.order, name)
	h.logger.Debug("Component registered", "component", name)
	return nil
}

// Connect wires a channel from a source output port to a destination input
// port. Endpoints use "component.port" notation. A capacity of zero or less
// uses the harness default. Output ports may fan out to several channels;
// each input port accepts at most one.
func (h *Harness) Connect(fromOutput, toInput string, bufferCapacity int) error {
	if h.State() != StateCreated {
		return fmt.Errorf("cannot connect %s -> %s: harness is %s", fromOutput, toInput, h.State())
	}

	fromComp, fromPort, err := splitEndpoint(fromOutput)
	if err != nil {
		return fmt.Errorf("invalid source endpoint: %w", err)
	}
	toComp, toPort, err := splitEndpoint(toInput)
	if err != nil {
		return fmt.Errorf("invalid destination endpoint: %w", err)
	}
	if bufferCapacity <= 0 {
		bufferCapacity = h.opts.DefaultBufferCapacity
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	src, ok := h.components[fromComp]
	if !ok {
		return &UnknownComponentError{Name: fromComp}
	}
	dst, ok := h.components[toComp]
	if !ok {
		return &UnknownComponentError{Name: toComp}
	}

	srcWire, ok := src.(component.Wirable)
	if !ok {
		return fmt.Errorf("component %q does not expose wirable ports", fromComp)
	}
	dstWire, ok := dst.(component.Wirable)
	if !ok {
		return fmt.Errorf("component %q does not expose wirable ports", toComp)
	}

	name := fmt.Sprintf("%s->%s", fromOutput, toInput)
	ch, err := channel.New(name, bufferCapacity)
	if err != nil {
		return err
	}
	sender, receiver := ch.Ends()

	// Wire the receiving end first: it is the side that can reject
	// (one channel per input port), and a rejected connect must leave
	// the source untouched.
	if err := dstWire.AttachInput(toPort, receiver); err != nil {
		return err
	}
	if err := srcWire.AttachOutput(fromPort, sender); err != nil {
		return err
	}

	h.connections = append(h.connections, &connection{
		name:     name,
		ch:       ch,
		fromComp: fromComp,
		fromPort: fromPort,
		toComp:   toComp,
		toPort:   toPort,
	})
	h.logger.Debug("Channel connected", "channel", name, "capacity", bufferCapacity)
	return nil
}

func splitEndpoint(s string) (comp, port string, err error) {
	comp, port, ok := strings.Cut(s, ".")
	if !ok || comp == "" || port == "" {
		return "", "", fmt.Errorf("endpoint %q must have the form \"component.port\"", s)
	}
	return comp, port, nil
}

// Run executes the harness until all component tasks complete or shutdown is
// requested. It blocks; use Start for a backgrounded run. Startup errors
// (setup failure, readiness timeout) are returned directly; execution errors
// are contained per component and surfaced through status, metrics, and
// alerts — Run only returns an execution error when every component failed
// terminally.
func (h *Harness) Run(ctx context.Context) error {
	if !h.runStarted.CompareAndSwap(false, true) {
		return fmt.Errorf("harness already started")
	}
	err := h.run(ctx)
	h.mu.Lock()
	h.runErr = err
	h.mu.Unlock()
	close(h.runDone)
	return err
}

// Start backgrounds Run. Use Wait to collect its result.
func (h *Harness) Start(ctx context.Context) {
	go func() {
		_ = h.Run(ctx)
	}()
}

// Stop triggers graceful shutdown. It returns immediately; Wait blocks
// until the run has finished.
func (h *Harness) Stop() {
	h.stopOnce.Do(func() {
		close(h.shutdown)
	})
}

// Wait blocks until Run has returned and reports its result.
func (h *Harness) Wait() error {
	<-h.runDone
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.runErr
}

// WaitUntilReady blocks until the readiness barrier has passed or the
// timeout elapses. Readiness is checked before the run-finished signal so a
// completed run that did become ready never reports a startup failure.
func (h *Harness) WaitUntilReady(timeout time.Duration) error {
	select {
	case <-h.ready:
		return nil
	default:
	}

	select {
	case <-h.ready:
		return nil
	case <-h.runDone:
		select {
		case <-h.ready:
			return nil
		default:
		}
		return fmt.Errorf("harness finished before becoming ready")
	case <-time.After(timeout):
		return fmt.Errorf("harness not ready after %s", timeout)
	}
}

func (h *Harness) run(ctx context.Context) error {
	if s := h.State(); s != StateCreated {
		return fmt.Errorf("cannot run harness in state %s", s)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	order := h.componentOrder()
	if len(order) == 0 {
		return fmt.Errorf("no components registered")
	}

	// Phase 1: setup, fail-fast. A partial system is never started, but
	// every component whose Setup was invoked gets a Cleanup, including
	// the one that failed: a half-initialized Setup may hold resources.
	var setupInvoked []string
	for _, name := range order {
		comp := h.component(name)
		setupInvoked = append(setupInvoked, name)
		if err := comp.Setup(ctx); err != nil {
			h.logger.Error("Component setup failed, aborting startup",
				"component", name, "error", err)
			h.cleanupComponents(setupInvoked)
			h.setState(StateFailed)
			return fmt.Errorf("setup component %q: %w", name, err)
		}
	}
	h.setState(StateInitialized)

	// Phase 2: readiness barrier. No Process is scheduled until every
	// component reports ready.
	if err := h.awaitReadiness(ctx, order); err != nil {
		h.cleanupComponents(setupInvoked)
		h.setState(StateFailed)
		return err
	}
	h.readyOnce.Do(func() { close(h.ready) })
	h.setState(StateRunning)
	h.logger.Info("Harness running", "components", len(order))

	// Phase 3: schedule processing under supervision, plus background
	// monitors. Cancelling runCtx cancels every component task.
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	monitorCtx, cancelMonitors := context.WithCancel(ctx)
	var monitorWG sync.WaitGroup
	monitorWG.Add(3)
	go func() {
		defer monitorWG.Done()
		h.healthMonitor(monitorCtx)
	}()
	go func() {
		defer monitorWG.Done()
		h.metricsUpdater(monitorCtx)
	}()
	go func() {
		defer monitorWG.Done()
		h.shutdownMonitor(monitorCtx, cancelRun)
	}()

	var group errgroup.Group
	for _, name := range order {
		name := name
		group.Go(func() error {
			return h.supervise(runCtx, name, h.component(name))
		})
	}
	groupErr := group.Wait()

	// Phase 4: teardown. All Process tasks have returned before any
	// Cleanup runs.
	h.setState(StateStopping)
	cancelMonitors()
	monitorWG.Wait()

	h.cleanupComponents(setupInvoked)
	h.closeAllChannels()
	h.setState(StateStopped)
	h.logger.Info("Harness stopped")

	if groupErr != nil && h.allComponentsFailed(order) {
		return fmt.Errorf("all components failed: %w", groupErr)
	}
	return nil
}

// awaitReadiness polls every component's Ready with bounded retries under
// the overall startup timeout.
func (h *Harness) awaitReadiness(ctx context.Context, order []string) error {
	startupCtx, cancel := context.WithTimeout(ctx, h.opts.StartupTimeout)
	defer cancel()

	cfg := retry.Config{
		MaxAttempts:     h.opts.ReadyAttempts,
		InitialInterval: h.opts.ReadyInterval,
		MaxInterval:     h.opts.StartupTimeout,
		Multiplier:      2.0,
	}
	for _, name := range order {
		comp := h.component(name)
		err := retry.Do(startupCtx, cfg, func() error {
			if comp.Ready() {
				return nil
			}
			return fmt.Errorf("component %q not ready", name)
		})
		if err != nil {
			h.logger.Error("Readiness barrier failed", "component", name, "error", err)
			return &ReadinessTimeoutError{Component: name, Timeout: h.opts.StartupTimeout}
		}
	}
	return nil
}

// supervise runs one component's Process under retry and circuit-breaker
// control. It returns nil when the component completes (input exhausted) or
// the run is cancelled, and the terminal error when an episode exhausts its
// retry budget without tripping the breaker.
func (h *Harness) supervise(ctx context.Context, name string, comp component.Component) error {
	br := h.breakerFor(name)
	h.setActive(name, true)
	defer h.setActive(name, false)

	h.events.publish(EventComponentStarted, name, "", "")
	h.callStartHook(name)

	for {
		if ctx.Err() != nil {
			return nil
		}

		if !br.Allow() {
			// Breaker open: scheduling is short-circuited until the
			// recovery timeout elapses.
			wait := br.RetryAfter()
			if wait <= 0 {
				wait = 10 * time.Millisecond
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wait):
			}
			continue
		}

		attempts := h.opts.MaxRetries
		if br.State() == BreakerHalfOpen {
			// Exactly one trial execution while probing recovery.
			attempts = 1
		}

		err := h.runEpisode(ctx, name, comp, attempts, br)
		if err == nil {
			// Completion ends supervision; nothing will record further
			// successes, so the breaker must not stay half-open.
			br.Reset()
			h.closeOutputsOf(name)
			h.events.publish(EventComponentStopped, name, "", "completed")
			h.callStopHook(name, "completed")
			h.logger.Info("Component completed", "component", name)
			return nil
		}
		if ctx.Err() != nil {
			// Cancellation mid-process is a normal shutdown path.
			h.callStopHook(name, "cancelled")
			return nil
		}

		if br.State() == BreakerOpen {
			// The breaker tripped before the retry budget ran out:
			// keep the task alive and probe for recovery.
			h.logger.Warn("Component circuit breaker open",
				"component", name, "error", err, "retry_after", br.RetryAfter())
			h.events.publish(EventBreakerChanged, name, BreakerOpen.String(), err.Error())
			continue
		}

		// Retry budget exhausted with the breaker still closed: fatal
		// for this component, isolated from the rest of the system.
		h.recordTerminal(name, err)
		h.closeOutputsOf(name)
		h.events.publish(EventComponentFailed, name, br.State().String(), err.Error())
		h.callStopHook(name, "failed")
		h.logger.Error("Component failed terminally",
			"component", name, "error", err, "max_retries", h.opts.MaxRetries)
		return err
	}
}

// runEpisode performs up to attempts executions of Process with exponential
// backoff between failures. Each failure is recorded against the breaker;
// the episode stops early when the breaker opens.
func (h *Harness) runEpisode(
	ctx context.Context, name string, comp component.Component, attempts int, br *CircuitBreaker,
) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = h.opts.BackoffBase
	bo.MaxInterval = h.opts.BackoffMax
	bo.MaxElapsedTime = 0

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := h.runProcess(ctx, comp)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}

		lastErr = err
		br.RecordFailure()
		h.metrics.recordError()
		h.callErrorHook(name, err)
		h.logger.Warn("Component process failed",
			"component", name, "attempt", attempt, "error", err)

		if br.State() == BreakerOpen {
			break
		}
		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(bo.NextBackOff()):
		}
	}
	return lastErr
}

// runProcess invokes Process with panic containment: a panicking component
// is a failing component, not a crashed harness.
func (h *Harness) runProcess(ctx context.Context, comp component.Component) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("process panicked: %v", r)
		}
	}()
	return comp.Process(ctx)
}

// ReportComponentFailure feeds an externally observed failure (for example a
// failed health probe) into the component's circuit breaker. It drives the
// same bookkeeping as process-loop failures.
func (h *Harness) ReportComponentFailure(name string, err error) {
	h.mu.RLock()
	_, known := h.components[name]
	h.mu.RUnlock()
	if !known {
		return
	}

	br := h.breakerFor(name)
	br.RecordFailure()
	h.metrics.recordError()
	h.callErrorHook(name, err)
	h.events.publish(EventComponentFailed, name, br.State().String(), errString(err))
	h.logger.Warn("Component failure reported", "component", name, "error", err)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// cleanupComponents invokes Cleanup on the named components in reverse
// order. Every component gets a cleanup attempt; errors are logged, never
// propagated.
func (h *Harness) cleanupComponents(names []string) {
	ctx, cancel := context.WithTimeout(context.Background(), h.opts.CleanupTimeout)
	defer cancel()

	for i := len(names) - 1; i >= 0; i-- {
		name := names[i]
		comp := h.component(name)
		if comp == nil {
			continue
		}
		if err := h.runCleanup(ctx, comp); err != nil {
			h.logger.Warn("Component cleanup failed", "component", name, "error", err)
		}
	}
}

func (h *Harness) runCleanup(ctx context.Context, comp component.Component) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cleanup panicked: %v", r)
		}
	}()
	return comp.Cleanup(ctx)
}

// closeOutputsOf closes every channel whose source is the named component,
// propagating end-of-stream so downstream consumers can finish.
func (h *Harness) closeOutputsOf(name string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, conn := range h.connections {
		if conn.fromComp == name {
			conn.ch.Close()
		}
	}
}

func (h *Harness) closeAllChannels() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, conn := range h.connections {
		conn.ch.Close()
	}
}

func (h *Harness) component(name string) component.Component {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.components[name]
}

func (h *Harness) componentOrder() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	order := make([]string, len(h.order))
	copy(order, h.order)
	return order
}

// breakerFor lazily creates the component's circuit breaker.
func (h *Harness) breakerFor(name string) *CircuitBreaker {
	h.mu.Lock()
	defer h.mu.Unlock()
	br, ok := h.breakers[name]
	if !ok {
		br = NewCircuitBreaker(h.opts.FailureThreshold, h.opts.RecoveryTimeout, h.opts.SuccessThreshold)
		h.breakers[name] = br
	}
	return br
}

func (h *Harness) recordTerminal(name string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.terminal[name] = err
}

func (h *Harness) allComponentsFailed(order []string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.terminal) == len(order) && len(order) > 0
}

func (h *Harness) setActive(name string, active bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if active {
		h.active[name] = true
	} else {
		delete(h.active, name)
	}
}

func (h *Harness) isActive(name string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.active[name]
}

// TerminalFailure returns the recorded fatal error for a component, if any.
func (h *Harness) TerminalFailure(name string) (error, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	err, ok := h.terminal[name]
	return err, ok
}

// OnComponentStart registers a callback invoked when a component's
// supervision task begins.
func (h *Harness) OnComponentStart(fn func(name string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onStart = fn
}

// OnComponentStop registers a callback invoked when a component's
// supervision task ends; reason is one of "completed", "cancelled",
// "failed".
func (h *Harness) OnComponentStop(fn func(name, reason string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onStop = fn
}

// OnComponentError registers a callback invoked on every recorded component
// failure.
func (h *Harness) OnComponentError(fn func(name string, err error)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onError = fn
}

func (h *Harness) callStartHook(name string) {
	h.mu.RLock()
	fn := h.onStart
	h.mu.RUnlock()
	if fn != nil {
		fn(name)
	}
}

func (h *Harness) callStopHook(name, reason string) {
	h.mu.RLock()
	fn := h.onStop
	h.mu.RUnlock()
	if fn != nil {
		fn(name, reason)
	}
}

func (h *Harness) callErrorHook(name string, err error) {
	h.mu.RLock()
	fn := h.onError
	h.mu.RUnlock()
	if fn != nil {
		fn(name, err)
	}
}
