package loader

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Entry declares one component instance in a manifest.
type Entry struct {
	// Name is the unique instance name within the harness.
	Name string `yaml:"name"`
	// Factory selects the registered factory that builds the component.
	Factory string `yaml:"factory"`
	// Config is the factory-specific configuration.
	Config map[string]any `yaml:"config,omitempty"`
	// DependsOn lists components that must be set up before this one.
	DependsOn []string `yaml:"depends_on,omitempty"`
	// Enabled defaults to true; a disabled entry is skipped entirely.
	Enabled *bool `yaml:"enabled,omitempty"`
}

// IsEnabled reports whether the entry should be instantiated.
func (e *Entry) IsEnabled() bool {
	return e.Enabled == nil || *e.Enabled
}

// Connection declares one wired channel between two component ports, using
// "component.port" endpoint notation.
type Connection struct {
	From     string `yaml:"from"`
	To       string `yaml:"to"`
	Capacity int    `yaml:"capacity,omitempty"`
}

// Manifest is the declarative description of a component topology.
type Manifest struct {
	Components  []Entry      `yaml:"components"`
	Connections []Connection `yaml:"connections,omitempty"`
}

// ParseManifest decodes and validates a YAML manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks structural consistency: unique names, factories named,
// dependency and connection references resolving to declared components.
func (m *Manifest) Validate() error {
	if len(m.Components) == 0 {
		return fmt.Errorf("manifest declares no components")
	}

	names := make(map[string]bool, len(m.Components))
	for i, e := range m.Components {
		if e.Name == "" {
			return fmt.Errorf("component %d has no name", i)
		}
		if e.Factory == "" {
			return fmt.Errorf("component %q has no factory", e.Name)
		}
		if names[e.Name] {
			return fmt.Errorf("duplicate component name %q", e.Name)
		}
		names[e.Name] = true
	}

	for _, e := range m.Components {
		for _, dep := range e.DependsOn {
			if !names[dep] {
				return fmt.Errorf("component %q depends on undeclared component %q", e.Name, dep)
			}
			if dep == e.Name {
				return fmt.Errorf("component %q depends on itself", e.Name)
			}
		}
	}

	for i, c := range m.Connections {
		fromComp, err := endpointComponent(c.From)
		if err != nil {
			return fmt.Errorf("connection %d: %w", i, err)
		}
		toComp, err := endpointComponent(c.To)
		if err != nil {
			return fmt.Errorf("connection %d: %w", i, err)
		}
		if !names[fromComp] {
			return fmt.Errorf("connection %d references undeclared component %q", i, fromComp)
		}
		if !names[toComp] {
			return fmt.Errorf("connection %d references undeclared component %q", i, toComp)
		}
		if c.Capacity < 0 {
			return fmt.Errorf("connection %d has negative capacity %d", i, c.Capacity)
		}
	}
	return nil
}

func endpointComponent(endpoint string) (string, error) {
	comp, port, ok := strings.Cut(endpoint, ".")
	if !ok || comp == "" || port == "" {
		return "", fmt.Errorf("endpoint %q must have the form \"component.port\"", endpoint)
	}
	return comp, nil
}

// entry returns the named entry, or nil.
func (m *Manifest) entry(name string) *Entry {
	for i := range m.Components {
		if m.Components[i].Name == name {
			return &m.Components[i]
		}
	}
	return nil
}
