// Package tools provides the per-run tool registry: named definitions
// with JSON-Schema validated arguments.
package tools

import (
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/finpulse/aicomply/internal/domain"
)

type entry struct {
	def    domain.ToolDefinition
	schema *gojsonschema.Schema
}

// Registry stores tool definitions keyed by tool name. Registration
// order is preserved so the tool menu sent to the backend is stable.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
	order   []string
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds a definition. Names must be unique within a registry
// and the argument schema must compile.
func (r *Registry) Register(def domain.ToolDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool %s: handler is required", def.Name)
	}

	var compiled *gojsonschema.Schema
	if len(def.Schema) > 0 {
		var err error
		compiled, err = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(def.Schema))
		if err != nil {
			return fmt.Errorf("tool %s: invalid argument schema: %w", def.Name, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[def.Name]; exists {
		return fmt.Errorf("tool %s already registered", def.Name)
	}
	r.entries[def.Name] = entry{def: def, schema: compiled}
	r.order = append(r.order, def.Name)
	return nil
}

// MustRegister adds a definition or panics. Used for static agent
// tool menus whose schemas are compile-time constants.
func (r *Registry) MustRegister(def domain.ToolDefinition) {
	if err := r.Register(def); err != nil {
		panic(err)
	}
}

// Get fetches a definition by name.
func (r *Registry) Get(name string) (domain.ToolDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e.def, ok
}

// List returns the definitions in registration order.
func (r *Registry) List() []domain.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]domain.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.entries[name].def)
	}
	return defs
}

// ValidateArgs checks an argument mapping against the tool's schema.
// Tools registered without a schema accept any arguments.
func (r *Registry) ValidateArgs(name string, args map[string]any) error {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("tool %s not found", name)
	}
	if e.schema == nil {
		return nil
	}

	if args == nil {
		args = map[string]any{}
	}
	result, err := e.schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return fmt.Errorf("tool %s: argument validation: %w", name, err)
	}
	if !result.Valid() {
		errs := result.Errors()
		msg := "invalid arguments"
		if len(errs) > 0 {
			msg = errs[0].String()
		}
		return fmt.Errorf("tool %s: %s", name, msg)
	}
	return nil
}
