// Package config provides configuration loading and management for the
// stream harness runtime.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360studio/streamharness/harness"
)

// Config represents the complete harness runtime configuration
type Config struct {
	Harness  HarnessConfig  `yaml:"harness"`
	Breaker  BreakerConfig  `yaml:"breaker"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	NATS     NATSConfig     `yaml:"nats"`
	Log      LogConfig      `yaml:"log"`
	Manifest ManifestConfig `yaml:"manifest"`
}

// HarnessConfig configures the orchestration engine
type HarnessConfig struct {
	// StartupTimeout bounds the readiness barrier
	StartupTimeout time.Duration `yaml:"startup_timeout"`
	// MaxRetries is the per-episode attempt budget
	MaxRetries int `yaml:"max_retries"`
	// BackoffBase is the initial delay between retry attempts
	BackoffBase time.Duration `yaml:"backoff_base"`
	// BackoffMax caps the retry delay
	BackoffMax time.Duration `yaml:"backoff_max"`
	// DefaultBufferCapacity is used for connections that declare none
	DefaultBufferCapacity int `yaml:"default_buffer_capacity"`
	// HealthInterval is the health monitor period
	HealthInterval time.Duration `yaml:"health_interval"`
	// MetricsInterval is the metrics recompute period
	MetricsInterval time.Duration `yaml:"metrics_interval"`
	// CleanupTimeout bounds the shutdown cleanup pass
	CleanupTimeout time.Duration `yaml:"cleanup_timeout"`
}

// BreakerConfig configures the per-component circuit breakers
type BreakerConfig struct {
	// FailureThreshold is consecutive failures before the breaker opens
	FailureThreshold int `yaml:"failure_threshold"`
	// RecoveryTimeout is how long an open breaker waits before probing
	RecoveryTimeout time.Duration `yaml:"recovery_timeout"`
	// SuccessThreshold is consecutive half-open successes before closing
	SuccessThreshold int `yaml:"success_threshold"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	// Enabled turns the scrape endpoint on
	Enabled bool `yaml:"enabled"`
	// ListenAddr is the HTTP listen address (default ":9090")
	ListenAddr string `yaml:"listen_addr"`
	// Path is the scrape path (default "/metrics")
	Path string `yaml:"path"`
}

// NATSConfig configures the optional lifecycle event publisher
type NATSConfig struct {
	// URL is the NATS server URL (empty = events disabled)
	URL string `yaml:"url"`
	// Name is the client connection name
	Name string `yaml:"name"`
}

// LogConfig configures structured logging
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level"`
	// Format is "text" or "json"
	Format string `yaml:"format"`
}

// ManifestConfig configures topology loading
type ManifestConfig struct {
	// Path is the manifest file to load
	Path string `yaml:"path"`
	// Watch reloads the manifest on change
	Watch bool `yaml:"watch"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	opts := harness.DefaultOptions()
	return &Config{
		Harness: HarnessConfig{
			StartupTimeout:        opts.StartupTimeout,
			MaxRetries:            opts.MaxRetries,
			BackoffBase:           opts.BackoffBase,
			BackoffMax:            opts.BackoffMax,
			DefaultBufferCapacity: opts.DefaultBufferCapacity,
			HealthInterval:        opts.HealthInterval,
			MetricsInterval:       opts.MetricsInterval,
			CleanupTimeout:        opts.CleanupTimeout,
		},
		Breaker: BreakerConfig{
			FailureThreshold: opts.FailureThreshold,
			RecoveryTimeout:  opts.RecoveryTimeout,
			SuccessThreshold: opts.SuccessThreshold,
		},
		Metrics: MetricsConfig{
			Enabled:    false,
			ListenAddr: ":9090",
			Path:       "/metrics",
		},
		NATS: NATSConfig{
			URL:  "",
			Name: "streamharness",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Manifest: ManifestConfig{
			Path:  "pipeline.yaml",
			Watch: false,
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Harness.MaxRetries < 0 {
		return fmt.Errorf("harness.max_retries cannot be negative")
	}
	if c.Harness.DefaultBufferCapacity < 0 {
		return fmt.Errorf("harness.default_buffer_capacity cannot be negative")
	}
	if c.Breaker.FailureThreshold < 0 {
		return fmt.Errorf("breaker.failure_threshold cannot be negative")
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error: %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json: %q", c.Log.Format)
	}
	if c.Metrics.Enabled && c.Metrics.ListenAddr == "" {
		return fmt.Errorf("metrics.listen_addr is required when metrics are enabled")
	}
	if c.Manifest.Path == "" {
		return fmt.Errorf("manifest.path is required")
	}
	return nil
}

// ToOptions converts the harness and breaker sections into engine options.
// Zero values defer to the engine defaults.
func (c *Config) ToOptions() harness.Options {
	opts := harness.DefaultOptions()
	if c.Harness.StartupTimeout > 0 {
		opts.StartupTimeout = c.Harness.StartupTimeout
	}
	if c.Harness.MaxRetries > 0 {
		opts.MaxRetries = c.Harness.MaxRetries
	}
	if c.Harness.BackoffBase > 0 {
		opts.BackoffBase = c.Harness.BackoffBase
	}
	if c.Harness.BackoffMax > 0 {
		opts.BackoffMax = c.Harness.BackoffMax
	}
	if c.Harness.DefaultBufferCapacity > 0 {
		opts.DefaultBufferCapacity = c.Harness.DefaultBufferCapacity
	}
	if c.Harness.HealthInterval > 0 {
		opts.HealthInterval = c.Harness.HealthInterval
	}
	if c.Harness.MetricsInterval > 0 {
		opts.MetricsInterval = c.Harness.MetricsInterval
	}
	if c.Harness.CleanupTimeout > 0 {
		opts.CleanupTimeout = c.Harness.CleanupTimeout
	}
	if c.Breaker.FailureThreshold > 0 {
		opts.FailureThreshold = c.Breaker.FailureThreshold
	}
	if c.Breaker.RecoveryTimeout > 0 {
		opts.RecoveryTimeout = c.Breaker.RecoveryTimeout
	}
	if c.Breaker.SuccessThreshold > 0 {
		opts.SuccessThreshold = c.Breaker.SuccessThreshold
	}
	return opts
}

// Merge overlays non-zero values from other onto c
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}
	mergeDuration(&c.Harness.StartupTimeout, other.Harness.StartupTimeout)
	mergeInt(&c.Harness.MaxRetries, other.Harness.MaxRetries)
	mergeDuration(&c.Harness.BackoffBase, other.Harness.BackoffBase)
	mergeDuration(&c.Harness.BackoffMax, other.Harness.BackoffMax)
	mergeInt(&c.Harness.DefaultBufferCapacity, other.Harness.DefaultBufferCapacity)
	mergeDuration(&c.Harness.HealthInterval, other.Harness.HealthInterval)
	mergeDuration(&c.Harness.MetricsInterval, other.Harness.MetricsInterval)
	mergeDuration(&c.Harness.CleanupTimeout, other.Harness.CleanupTimeout)

	mergeInt(&c.Breaker.FailureThreshold, other.Breaker.FailureThreshold)
	mergeDuration(&c.Breaker.RecoveryTimeout, other.Breaker.RecoveryTimeout)
	mergeInt(&c.Breaker.SuccessThreshold, other.Breaker.SuccessThreshold)

	if other.Metrics.Enabled {
		c.Metrics.Enabled = true
	}
	mergeString(&c.Metrics.ListenAddr, other.Metrics.ListenAddr)
	mergeString(&c.Metrics.Path, other.Metrics.Path)

	mergeString(&c.NATS.URL, other.NATS.URL)
	mergeString(&c.NATS.Name, other.NATS.Name)

	mergeString(&c.Log.Level, other.Log.Level)
	mergeString(&c.Log.Format, other.Log.Format)

	mergeString(&c.Manifest.Path, other.Manifest.Path)
	if other.Manifest.Watch {
		c.Manifest.Watch = true
	}
}

func mergeDuration(dst *time.Duration, src time.Duration) {
	if src > 0 {
		*dst = src
	}
}

func mergeInt(dst *int, src int) {
	if src > 0 {
		*dst = src
	}
}

func mergeString(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return &config, nil
}

// SaveToFile writes configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config directory %s: %w", dir, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file %s: %w", path, err)
	}
	return nil
}
