package builtin

import (
	"fmt"

	"github.com/c360studio/streamharness/loader"
)

// Factory names for manifest use.
const (
	FactoryGenerator = "generator"
	FactoryTransform = "transform"
	FactoryCollector = "collector"
)

// Register adds all builtin factories to a registry.
func Register(registry *loader.Registry) error {
	if err := registry.Register(FactoryGenerator, NewGenerator); err != nil {
		return fmt.Errorf("register generator: %w", err)
	}
	if err := registry.Register(FactoryTransform, NewTransform); err != nil {
		return fmt.Errorf("register transform: %w", err)
	}
	if err := registry.Register(FactoryCollector, NewCollector); err != nil {
		return fmt.Errorf("register collector: %w", err)
	}
	return nil
}
