package component

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/c360/embargo/errors"
)

// Factory creates a component instance from raw JSON configuration.
type Factory func(rawConfig json.RawMessage, deps Dependencies) (Discoverable, error)

// Registration describes a component type available for instantiation.
type Registration struct {
	Name        string  // Unique component type name, e.g. "delayed_publisher"
	Factory     Factory // Constructor
	Type        string  // "processor", "output"
	Description string
	Version     string
}

// Registry holds the component types known to the service. Component
// packages register themselves at wiring time; the service layer then
// instantiates components by type name from configuration.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Registration
}

// NewRegistry creates an empty component registry
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]Registration),
	}
}

// Register adds a component type to the registry
func (r *Registry) Register(reg Registration) error {
	if reg.Name == "" {
		return errors.WrapInvalid(
			errors.ErrInvalidConfig, "Registry", "Register", "registration requires a name")
	}
	if reg.Factory == nil {
		return errors.WrapInvalid(
			errors.ErrInvalidConfig, "Registry", "Register",
			fmt.Sprintf("registration %q requires a factory", reg.Name))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[reg.Name]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("component type %q already registered", reg.Name),
			"Registry", "Register", "check for duplicate")
	}

	r.entries[reg.Name] = reg
	return nil
}

// Create instantiates a component by type name with the given configuration
func (r *Registry) Create(name string, rawConfig json.RawMessage, deps Dependencies) (Discoverable, error) {
	r.mu.RLock()
	reg, ok := r.entries[name]
	r.mu.RUnlock()

	if !ok {
		return nil, errors.WrapInvalid(
			fmt.Errorf("unknown component type %q", name),
			"Registry", "Create", "lookup component type")
	}

	comp, err := reg.Factory(rawConfig, deps)
	if err != nil {
		return nil, errors.Wrap(err, "Registry", "Create", fmt.Sprintf("create %q", name))
	}

	return comp, nil
}

// Lookup returns the registration for a component type
func (r *Registry) Lookup(name string) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.entries[name]
	return reg, ok
}

// List returns the registered component type names in sorted order
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
