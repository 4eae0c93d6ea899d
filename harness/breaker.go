package harness

import (
	"sync"
	"time"
)

// BreakerState is a circuit breaker state.
type BreakerState int

const (
	// BreakerClosed allows executions; failures are counted.
	BreakerClosed BreakerState = iota
	// BreakerOpen short-circuits executions until the recovery timeout
	// elapses.
	BreakerOpen
	// BreakerHalfOpen allows trial executions to probe for recovery.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerDefaults are the per-component circuit breaker defaults,
// overridable via Options.
const (
	DefaultFailureThreshold = 3
	DefaultRecoveryTimeout  = 30 * time.Second
	DefaultSuccessThreshold = 2
)

// CircuitBreaker tracks repeated failures for one component. After
// failureThreshold failures it opens and short-circuits scheduling; once
// recoveryTimeout has elapsed since the last failure it transitions to
// half-open on the next probe and permits trial executions. successThreshold
// consecutive successes close it again with all counters reset.
type CircuitBreaker struct {
	mu sync.Mutex

	state        BreakerState
	failureCount int
	successCount int
	lastFailure  time.Time

	failureThreshold int
	recoveryTimeout  time.Duration
	successThreshold int
}

// NewCircuitBreaker creates a breaker with the given thresholds. Zero values
// fall back to the package defaults.
func NewCircuitBreaker(failureThreshold int, recoveryTimeout time.Duration, successThreshold int) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = DefaultFailureThreshold
	}
	if recoveryTimeout <= 0 {
		recoveryTimeout = DefaultRecoveryTimeout
	}
	if successThreshold <= 0 {
		successThreshold = DefaultSuccessThreshold
	}
	return &CircuitBreaker{
		state:            BreakerClosed,
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		successThreshold: successThreshold,
	}
}

// State returns the current state, lazily moving open to half-open once the
// recovery timeout has elapsed. Any read of the state acts as a probe.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked()
}

func (b *CircuitBreaker) stateLocked() BreakerState {
	if b.state == BreakerOpen && time.Since(b.lastFailure) >= b.recoveryTimeout {
		b.state = BreakerHalfOpen
		b.successCount = 0
	}
	return b.state
}

// Allow reports whether an execution may proceed right now.
func (b *CircuitBreaker) Allow() bool {
	return b.State() != BreakerOpen
}

// RetryAfter returns how long until an open breaker will permit a probe.
// Zero means executions are allowed now.
func (b *CircuitBreaker) RetryAfter() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stateLocked() != BreakerOpen {
		return 0
	}
	remaining := b.recoveryTimeout - time.Since(b.lastFailure)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RecordFailure counts a failure. In closed state it opens the breaker once
// the failure threshold is reached; in half-open state it reverts to open
// immediately.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailure = time.Now()
	switch b.stateLocked() {
	case BreakerHalfOpen:
		b.state = BreakerOpen
		b.successCount = 0
	case BreakerClosed:
		b.failureCount++
		if b.failureCount >= b.failureThreshold {
			b.state = BreakerOpen
		}
	case BreakerOpen:
		// Already open; the timestamp update above extends the window.
	}
}

// RecordSuccess counts a success. In half-open state, successThreshold
// consecutive successes close the breaker with counters zeroed. In closed
// state a success clears the failure count.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.stateLocked() {
	case BreakerHalfOpen:
		b.successCount++
		if b.successCount >= b.successThreshold {
			b.reset()
		}
	case BreakerClosed:
		b.failureCount = 0
	case BreakerOpen:
		// Success while open is not expected; ignore.
	}
}

// Reset forces the breaker back to closed with zeroed counters.
func (b *CircuitBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reset()
}

func (b *CircuitBreaker) reset() {
	b.state = BreakerClosed
	b.failureCount = 0
	b.successCount = 0
}

// FailureCount returns the current failure count.
func (b *CircuitBreaker) FailureCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failureCount
}
