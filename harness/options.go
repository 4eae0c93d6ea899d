package harness

import (
	"fmt"
	"time"
)

// Options are the harness-level tunables. All intervals and thresholds are
// global defaults for the instance; components do not override them
// individually.
type Options struct {
	// StartupTimeout bounds the whole readiness barrier.
	StartupTimeout time.Duration

	// ReadyAttempts is how many times each component's Ready is polled
	// before startup fails.
	ReadyAttempts uint64
	// ReadyInterval is the initial delay between readiness polls.
	ReadyInterval time.Duration

	// HealthInterval is the health monitor's sampling period.
	HealthInterval time.Duration
	// MetricsInterval is the metrics updater's recompute period.
	MetricsInterval time.Duration

	// MaxRetries is the attempt budget of one scheduling episode.
	MaxRetries int
	// BackoffBase is the initial delay between attempts in an episode.
	BackoffBase time.Duration
	// BackoffMax caps the backoff delay.
	BackoffMax time.Duration

	// FailureThreshold opens a component's circuit breaker.
	FailureThreshold int
	// RecoveryTimeout is how long an open breaker waits before probing.
	RecoveryTimeout time.Duration
	// SuccessThreshold closes a half-open breaker.
	SuccessThreshold int

	// DefaultBufferCapacity is used by Connect when no capacity is given.
	DefaultBufferCapacity int

	// CleanupTimeout bounds the per-shutdown cleanup pass.
	CleanupTimeout time.Duration

	// Alert thresholds.
	MemoryCriticalPercent float64
	MemoryWarningPercent  float64
	ThroughputWarmup      time.Duration
	LowThroughputFloor    float64
	ErrorBacklogThreshold int64
}

// DefaultOptions returns the stock harness tuning.
func DefaultOptions() Options {
	return Options{
		StartupTimeout:        30 * time.Second,
		ReadyAttempts:         10,
		ReadyInterval:         100 * time.Millisecond,
		HealthInterval:        30 * time.Second,
		MetricsInterval:       5 * time.Second,
		MaxRetries:            3,
		BackoffBase:           500 * time.Millisecond,
		BackoffMax:            10 * time.Second,
		FailureThreshold:      DefaultFailureThreshold,
		RecoveryTimeout:       DefaultRecoveryTimeout,
		SuccessThreshold:      DefaultSuccessThreshold,
		DefaultBufferCapacity: 16,
		CleanupTimeout:        30 * time.Second,
		MemoryCriticalPercent: 90,
		MemoryWarningPercent:  75,
		ThroughputWarmup:      time.Minute,
		LowThroughputFloor:    0.01,
		ErrorBacklogThreshold: 100,
	}
}

// Validate checks option consistency and fills zero values with defaults.
func (o *Options) Validate() error {
	d := DefaultOptions()
	if o.StartupTimeout <= 0 {
		o.StartupTimeout = d.StartupTimeout
	}
	if o.ReadyAttempts == 0 {
		o.ReadyAttempts = d.ReadyAttempts
	}
	if o.ReadyInterval <= 0 {
		o.ReadyInterval = d.ReadyInterval
	}
	if o.HealthInterval <= 0 {
		o.HealthInterval = d.HealthInterval
	}
	if o.MetricsInterval <= 0 {
		o.MetricsInterval = d.MetricsInterval
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = d.MaxRetries
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = d.BackoffBase
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = d.BackoffMax
	}
	if o.BackoffMax < o.BackoffBase {
		return fmt.Errorf("backoff max %s is below backoff base %s", o.BackoffMax, o.BackoffBase)
	}
	if o.FailureThreshold <= 0 {
		o.FailureThreshold = d.FailureThreshold
	}
	if o.RecoveryTimeout <= 0 {
		o.RecoveryTimeout = d.RecoveryTimeout
	}
	if o.SuccessThreshold <= 0 {
		o.SuccessThreshold = d.SuccessThreshold
	}
	if o.DefaultBufferCapacity <= 0 {
		o.DefaultBufferCapacity = d.DefaultBufferCapacity
	}
	if o.CleanupTimeout <= 0 {
		o.CleanupTimeout = d.CleanupTimeout
	}
	if o.MemoryCriticalPercent <= 0 {
		o.MemoryCriticalPercent = d.MemoryCriticalPercent
	}
	if o.MemoryWarningPercent <= 0 {
		o.MemoryWarningPercent = d.MemoryWarningPercent
	}
	if o.MemoryWarningPercent > o.MemoryCriticalPercent {
		return fmt.Errorf("memory warning threshold %.0f%% exceeds critical threshold %.0f%%",
			o.MemoryWarningPercent, o.MemoryCriticalPercent)
	}
	if o.ThroughputWarmup <= 0 {
		o.ThroughputWarmup = d.ThroughputWarmup
	}
	if o.LowThroughputFloor <= 0 {
		o.LowThroughputFloor = d.LowThroughputFloor
	}
	if o.ErrorBacklogThreshold <= 0 {
		o.ErrorBacklogThreshold = d.ErrorBacklogThreshold
	}
	return nil
}
