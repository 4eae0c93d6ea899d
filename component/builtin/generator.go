// Package builtin provides ready-made components for manifests and tests:
// a sequence generator source, an arithmetic transform, and a collecting
// sink. They double as reference implementations of the component contract.
package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/c360studio/streamharness/component"
)

// GeneratorConfig controls the integer sequence a generator emits.
type GeneratorConfig struct {
	// Start is the first value emitted.
	Start int `json:"start"`
	// Count is how many values to emit. Zero means emit forever.
	Count int `json:"count"`
	// IntervalMS is an optional pacing delay between emissions.
	IntervalMS int `json:"interval_ms"`
}

// DefaultGeneratorConfig returns a generator that emits 100 values starting
// at 1 with no pacing.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{Start: 1, Count: 100}
}

// Validate checks the configuration.
func (c *GeneratorConfig) Validate() error {
	if c.Count < 0 {
		return fmt.Errorf("count cannot be negative: %d", c.Count)
	}
	if c.IntervalMS < 0 {
		return fmt.Errorf("interval_ms cannot be negative: %d", c.IntervalMS)
	}
	return nil
}

// Generator is a source component emitting an integer sequence on its
// "out" port.
type Generator struct {
	*component.BaseComponent
	config GeneratorConfig
}

// NewGenerator creates a generator from raw JSON config. Nil config uses
// defaults.
func NewGenerator(name string, rawConfig json.RawMessage, deps component.Dependencies) (component.Component, error) {
	config := DefaultGeneratorConfig()
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &config); err != nil {
			return nil, fmt.Errorf("parse generator config: %w", err)
		}
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid generator config: %w", err)
	}
	return &Generator{
		BaseComponent: component.NewBase(name, deps),
		config:        config,
	}, nil
}

// Process emits the configured sequence, then completes. With Count zero it
// emits until cancelled.
func (g *Generator) Process(ctx context.Context) error {
	interval := time.Duration(g.config.IntervalMS) * time.Millisecond

	for i := 0; g.config.Count == 0 || i < g.config.Count; i++ {
		if err := g.Send(ctx, "out", g.config.Start+i); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("emit value %d: %w", g.config.Start+i, err)
		}
		g.RecordItem()

		if interval > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(interval):
			}
		}
	}
	return nil
}
