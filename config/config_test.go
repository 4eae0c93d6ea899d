package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"negative retries", func(c *Config) { c.Harness.MaxRetries = -1 }, true},
		{"negative buffer capacity", func(c *Config) { c.Harness.DefaultBufferCapacity = -1 }, true},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, true},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, true},
		{"metrics without addr", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.ListenAddr = ""
		}, true},
		{"missing manifest path", func(c *Config) { c.Manifest.Path = "" }, true},
		{"json logs", func(c *Config) { c.Log.Format = "json" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.mutate(c)
			if err := c.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMergeOverlaysNonZeroValues(t *testing.T) {
	base := DefaultConfig()
	overlay := &Config{}
	overlay.Harness.MaxRetries = 7
	overlay.Breaker.RecoveryTimeout = 90 * time.Second
	overlay.Log.Level = "debug"
	overlay.Manifest.Watch = true

	base.Merge(overlay)

	if base.Harness.MaxRetries != 7 {
		t.Errorf("MaxRetries = %d, want 7", base.Harness.MaxRetries)
	}
	if base.Breaker.RecoveryTimeout != 90*time.Second {
		t.Errorf("RecoveryTimeout = %v, want 90s", base.Breaker.RecoveryTimeout)
	}
	if base.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", base.Log.Level)
	}
	if !base.Manifest.Watch {
		t.Error("Manifest.Watch not merged")
	}
	// Untouched fields keep their defaults.
	if base.Metrics.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %q, want default", base.Metrics.ListenAddr)
	}
}

func TestToOptions(t *testing.T) {
	c := DefaultConfig()
	c.Harness.MaxRetries = 5
	c.Breaker.FailureThreshold = 9
	c.Harness.BackoffBase = 50 * time.Millisecond

	opts := c.ToOptions()
	if opts.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", opts.MaxRetries)
	}
	if opts.FailureThreshold != 9 {
		t.Errorf("FailureThreshold = %d, want 9", opts.FailureThreshold)
	}
	if opts.BackoffBase != 50*time.Millisecond {
		t.Errorf("BackoffBase = %v, want 50ms", opts.BackoffBase)
	}
	if err := opts.Validate(); err != nil {
		t.Fatalf("converted options invalid: %v", err)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	c := DefaultConfig()
	c.Harness.MaxRetries = 4
	c.NATS.URL = "nats://localhost:4222"
	if err := c.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile: %v", err)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if loaded.Harness.MaxRetries != 4 {
		t.Errorf("MaxRetries = %d, want 4", loaded.Harness.MaxRetries)
	}
	if loaded.NATS.URL != "nats://localhost:4222" {
		t.Errorf("NATS.URL = %q", loaded.NATS.URL)
	}
}

func TestLoadFileMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "harness:\n  max_retries: 6\nlog:\n  level: warn\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	loaded, err := NewLoader(nil).LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if loaded.Harness.MaxRetries != 6 {
		t.Errorf("MaxRetries = %d, want 6", loaded.Harness.MaxRetries)
	}
	if loaded.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want warn", loaded.Log.Level)
	}
	if loaded.Metrics.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %q, want default preserved", loaded.Metrics.ListenAddr)
	}
}
