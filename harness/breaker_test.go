package harness

import (
	"testing"
	"time"
)

func TestBreakerOpensAtFailureThreshold(t *testing.T) {
	b := NewCircuitBreaker(3, time.Minute, 2)

	if b.State() != BreakerClosed {
		t.Fatal("new breaker should be closed")
	}

	b.RecordFailure()
	b.RecordFailure()
	if b.State() != BreakerClosed {
		t.Fatalf("state after 2 failures = %s, want closed", b.State())
	}

	b.RecordFailure()
	if b.State() != BreakerOpen {
		t.Fatalf("state after 3 failures = %s, want open", b.State())
	}
	if b.Allow() {
		t.Fatal("open breaker must not allow executions")
	}
}

func TestBreakerHalfOpenAfterRecoveryTimeout(t *testing.T) {
	b := NewCircuitBreaker(1, 30*time.Millisecond, 2)

	b.RecordFailure()
	if b.State() != BreakerOpen {
		t.Fatal("expected open")
	}
	if b.RetryAfter() <= 0 {
		t.Fatal("open breaker should report a positive retry delay")
	}

	time.Sleep(40 * time.Millisecond)
	if b.State() != BreakerHalfOpen {
		t.Fatalf("state after recovery timeout = %s, want half_open", b.State())
	}
	if !b.Allow() {
		t.Fatal("half-open breaker must allow a trial execution")
	}
}

func TestBreakerClosesAfterSuccessThreshold(t *testing.T) {
	b := NewCircuitBreaker(1, 10*time.Millisecond, 2)

	b.RecordFailure()
	time.Sleep(15 * time.Millisecond)
	if b.State() != BreakerHalfOpen {
		t.Fatal("expected half_open")
	}

	b.RecordSuccess()
	if b.State() != BreakerHalfOpen {
		t.Fatalf("state after 1 success = %s, want half_open", b.State())
	}

	b.RecordSuccess()
	if b.State() != BreakerClosed {
		t.Fatalf("state after 2 successes = %s, want closed", b.State())
	}
	if b.FailureCount() != 0 {
		t.Fatalf("failure count after close = %d, want 0", b.FailureCount())
	}
}

func TestBreakerFailureInHalfOpenReverts(t *testing.T) {
	b := NewCircuitBreaker(1, 10*time.Millisecond, 2)

	b.RecordFailure()
	time.Sleep(15 * time.Millisecond)
	if b.State() != BreakerHalfOpen {
		t.Fatal("expected half_open")
	}

	b.RecordFailure()
	if b.State() != BreakerOpen {
		t.Fatalf("state after half-open failure = %s, want open", b.State())
	}
}

func TestBreakerSuccessInClosedClearsFailures(t *testing.T) {
	b := NewCircuitBreaker(3, time.Minute, 2)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	if b.FailureCount() != 0 {
		t.Fatalf("failure count = %d, want 0", b.FailureCount())
	}

	// Threshold counts from scratch after the success.
	b.RecordFailure()
	b.RecordFailure()
	if b.State() != BreakerClosed {
		t.Fatal("breaker should still be closed")
	}
}

func TestBreakerDefaults(t *testing.T) {
	b := NewCircuitBreaker(0, 0, 0)
	for i := 0; i < DefaultFailureThreshold; i++ {
		b.RecordFailure()
	}
	if b.State() != BreakerOpen {
		t.Fatal("default threshold should open the breaker")
	}
}
