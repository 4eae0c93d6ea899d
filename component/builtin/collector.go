package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/c360studio/streamharness/component"
)

// CollectorConfig bounds the collector's retained history.
type CollectorConfig struct {
	// MaxItems caps how many items are retained; older items are dropped
	// first. Zero retains everything.
	MaxItems int `json:"max_items"`
}

// DefaultCollectorConfig retains up to 10000 items.
func DefaultCollectorConfig() CollectorConfig {
	return CollectorConfig{MaxItems: 10000}
}

// Validate checks the configuration.
func (c *CollectorConfig) Validate() error {
	if c.MaxItems < 0 {
		return fmt.Errorf("max_items cannot be negative: %d", c.MaxItems)
	}
	return nil
}

// Collector is a sink that retains items from its "in" port for later
// inspection.
type Collector struct {
	*component.BaseComponent
	config CollectorConfig

	mu    sync.Mutex
	items []any
}

// NewCollector creates a collector from raw JSON config.
func NewCollector(name string, rawConfig json.RawMessage, deps component.Dependencies) (component.Component, error) {
	config := DefaultCollectorConfig()
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &config); err != nil {
			return nil, fmt.Errorf("parse collector config: %w", err)
		}
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid collector config: %w", err)
	}
	return &Collector{
		BaseComponent: component.NewBase(name, deps),
		config:        config,
	}, nil
}

// Process drains the input until end-of-stream.
func (c *Collector) Process(ctx context.Context) error {
	in := c.Input("in")
	if in == nil {
		return fmt.Errorf("input port %q not wired", "in")
	}

	for {
		item, ok := in.Receive(ctx)
		if !ok {
			return ctx.Err()
		}
		c.mu.Lock()
		c.items = append(c.items, item)
		if c.config.MaxItems > 0 && len(c.items) > c.config.MaxItems {
			c.items = c.items[len(c.items)-c.config.MaxItems:]
		}
		c.mu.Unlock()
		c.RecordItem()
	}
}

// Items returns a copy of the retained items in arrival order.
func (c *Collector) Items() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]any, len(c.items))
	copy(out, c.items)
	return out
}

// Count returns how many items are currently retained.
func (c *Collector) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
