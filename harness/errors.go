package harness

import (
	"fmt"
	"time"
)

// DuplicateComponentError reports a Register call reusing an existing name.
type DuplicateComponentError struct {
	Name string
}

func (e *DuplicateComponentError) Error() string {
	return fmt.Sprintf("component %q is already registered", e.Name)
}

// UnknownComponentError reports a Connect call naming an unregistered
// component.
type UnknownComponentError struct {
	Name string
}

func (e *UnknownComponentError) Error() string {
	return fmt.Sprintf("component %q is not registered", e.Name)
}

// ReadinessTimeoutError reports a component that never became ready during
// the startup barrier.
type ReadinessTimeoutError struct {
	Component string
	Timeout   time.Duration
}

func (e *ReadinessTimeoutError) Error() string {
	return fmt.Sprintf("component %q not ready after %s", e.Component, e.Timeout)
}
