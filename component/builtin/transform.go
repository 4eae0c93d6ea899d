package builtin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/c360studio/streamharness/component"
)

// TransformConfig controls the arithmetic applied to each integer item.
type TransformConfig struct {
	// Multiplier scales each item.
	Multiplier int `json:"multiplier"`
	// Offset is added after scaling.
	Offset int `json:"offset"`
}

// DefaultTransformConfig returns the identity transform.
func DefaultTransformConfig() TransformConfig {
	return TransformConfig{Multiplier: 1}
}

// Validate checks the configuration.
func (c *TransformConfig) Validate() error {
	if c.Multiplier == 0 {
		return fmt.Errorf("multiplier cannot be zero")
	}
	return nil
}

// Transform reads integers from "in", applies multiplier and offset, and
// forwards the result on "out". Non-integer items fail the component.
type Transform struct {
	*component.BaseComponent
	config TransformConfig
}

// NewTransform creates a transform from raw JSON config. Nil config is the
// identity transform.
func NewTransform(name string, rawConfig json.RawMessage, deps component.Dependencies) (component.Component, error) {
	config := DefaultTransformConfig()
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &config); err != nil {
			return nil, fmt.Errorf("parse transform config: %w", err)
		}
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transform config: %w", err)
	}
	return &Transform{
		BaseComponent: component.NewBase(name, deps),
		config:        config,
	}, nil
}

// Process forwards transformed items until the input reaches end-of-stream.
func (t *Transform) Process(ctx context.Context) error {
	in := t.Input("in")
	if in == nil {
		return fmt.Errorf("input port %q not wired", "in")
	}

	for {
		item, ok := in.Receive(ctx)
		if !ok {
			return ctx.Err()
		}
		n, ok := item.(int)
		if !ok {
			err := fmt.Errorf("unexpected item type %T", item)
			t.RecordError(err)
			return err
		}
		if err := t.Send(ctx, "out", n*t.config.Multiplier+t.config.Offset); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("forward item: %w", err)
		}
		t.RecordItem()
	}
}
