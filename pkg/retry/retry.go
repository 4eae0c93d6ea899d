// Package retry provides bounded retry with exponential backoff, built on
// cenkalti/backoff. It is used for startup readiness polling and other
// transient-failure loops.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Config bounds a retry loop.
type Config struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts uint64
	// InitialInterval is the delay before the first retry.
	InitialInterval time.Duration
	// MaxInterval caps the backoff delay.
	MaxInterval time.Duration
	// Multiplier scales the delay between attempts.
	Multiplier float64
}

// Quick returns a config for fast local retries: 10 attempts over roughly a
// second. Suitable for readiness polling.
func Quick() Config {
	return Config{
		MaxAttempts:     10,
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     200 * time.Millisecond,
		Multiplier:      2.0,
	}
}

// Standard returns a config for slower external-dependency retries.
func Standard() Config {
	return Config{
		MaxAttempts:     5,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      2.0,
	}
}

// Permanent wraps an error so Do stops retrying and returns it immediately.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs fn until it succeeds, the attempt budget is exhausted, or ctx is
// cancelled. The last error from fn is returned on failure.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.InitialInterval
	bo.MaxInterval = cfg.MaxInterval
	if cfg.Multiplier > 0 {
		bo.Multiplier = cfg.Multiplier
	}
	bo.MaxElapsedTime = 0 // bounded by attempts, not wall clock

	attempts := cfg.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}

	b := backoff.WithContext(backoff.WithMaxRetries(bo, attempts-1), ctx)
	return backoff.Retry(fn, b)
}
