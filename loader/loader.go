// Package loader builds harness topologies from declarative YAML manifests.
// A Registry maps factory names to component factories; a Loader resolves a
// manifest's entries against the registry, instantiates each component, and
// wires the declared connections into a harness.
package loader

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/c360studio/streamharness/component"
	"github.com/c360studio/streamharness/harness"
)

// Registry maps factory names to component factories. Registration order is
// preserved for deterministic listings.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]component.Factory
	order     []string
}

// NewRegistry creates an empty factory registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]component.Factory)}
}

// Register adds a factory under a name. Duplicate names are rejected.
func (r *Registry) Register(name string, factory component.Factory) error {
	if name == "" {
		return fmt.Errorf("factory name cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("factory %q is nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("factory %q already registered", name)
	}
	r.factories[name] = factory
	r.order = append(r.order, name)
	return nil
}

// Get returns the named factory.
func (r *Registry) Get(name string) (component.Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// Names lists the registered factory names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Loader instantiates manifests against a factory registry.
type Loader struct {
	registry *Registry
	logger   *slog.Logger
}

// NewLoader creates a loader. A nil logger falls back to slog's default.
func NewLoader(registry *Registry, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{registry: registry, logger: logger}
}

// Load instantiates every enabled manifest entry, registers the components
// into the harness in dependency order, and wires the declared connections.
func (l *Loader) Load(m *Manifest, h *harness.Harness, deps component.Dependencies) error {
	if err := m.Validate(); err != nil {
		return err
	}

	order := l.resolveOrder(m)
	enabled := make(map[string]bool, len(order))

	for _, name := range order {
		entry := m.entry(name)
		if !entry.IsEnabled() {
			l.logger.Info("Skipping disabled component", "component", name)
			continue
		}

		factory, ok := l.registry.Get(entry.Factory)
		if !ok {
			return fmt.Errorf("component %q uses unknown factory %q (registered: %v)",
				name, entry.Factory, l.registry.Names())
		}

		rawConfig, err := marshalConfig(entry.Config)
		if err != nil {
			return fmt.Errorf("component %q: %w", name, err)
		}

		comp, err := factory(name, rawConfig, deps)
		if err != nil {
			return fmt.Errorf("build component %q: %w", name, err)
		}
		if err := h.Register(name, comp); err != nil {
			return fmt.Errorf("register component %q: %w", name, err)
		}
		enabled[name] = true
		l.logger.Debug("Component loaded", "component", name, "factory", entry.Factory)
	}

	for i, c := range m.Connections {
		fromComp, _ := endpointComponent(c.From)
		toComp, _ := endpointComponent(c.To)
		if !enabled[fromComp] || !enabled[toComp] {
			l.logger.Warn("Skipping connection to disabled component",
				"from", c.From, "to", c.To)
			continue
		}
		if err := h.Connect(c.From, c.To, c.Capacity); err != nil {
			return fmt.Errorf("connection %d (%s -> %s): %w", i, c.From, c.To, err)
		}
	}
	return nil
}

// LoadFile reads, parses, and loads a manifest file.
func (l *Loader) LoadFile(path string, h *harness.Harness, deps component.Dependencies) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read manifest %s: %w", path, err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return fmt.Errorf("manifest %s: %w", path, err)
	}
	return l.Load(m, h, deps)
}

// DiscoverManifests returns manifest paths matching a doublestar glob
// pattern (for example "deploy/**/*.yaml"), sorted for determinism.
func DiscoverManifests(pattern string) ([]string, error) {
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}
	sort.Strings(matches)
	return matches, nil
}

// LoadDir loads every manifest under dir matching the glob pattern into the
// harness. Component names must be unique across all matched manifests.
func (l *Loader) LoadDir(dir, pattern string, h *harness.Harness, deps component.Dependencies) error {
	paths, err := DiscoverManifests(filepath.Join(dir, pattern))
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no manifests match %s under %s", pattern, dir)
	}
	for _, path := range paths {
		if err := l.LoadFile(path, h, deps); err != nil {
			return err
		}
	}
	return nil
}

// resolveOrder orders entries so dependencies come before dependents. A
// dependency cycle falls back to declaration order with a warning; the
// manifest stays loadable because setup order is a soft preference, not a
// correctness requirement.
func (l *Loader) resolveOrder(m *Manifest) []string {
	indegree := make(map[string]int, len(m.Components))
	dependents := make(map[string][]string)
	declared := make([]string, 0, len(m.Components))

	for _, e := range m.Components {
		declared = append(declared, e.Name)
		indegree[e.Name] = len(e.DependsOn)
		for _, dep := range e.DependsOn {
			dependents[dep] = append(dependents[dep], e.Name)
		}
	}

	// Kahn's algorithm, seeded in declaration order for stability.
	var queue, order []string
	for _, name := range declared {
		if indegree[name] == 0 {
			queue = append(queue, name)
		}
	}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		order = append(order, name)
		for _, next := range dependents[name] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(order) != len(declared) {
		l.logger.Warn("Dependency cycle in manifest, using declaration order",
			"resolved", len(order), "declared", len(declared))
		return declared
	}
	return order
}

func marshalConfig(config map[string]any) (json.RawMessage, error) {
	if len(config) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return raw, nil
}
