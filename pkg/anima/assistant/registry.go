// Package assistant implements the tool-calling protocol layer: a static
// registry of tool descriptors, the prompt that exposes them to the model,
// a total parser for tool calls embedded in model text, the dispatcher that
// validates and executes calls, and the per-turn orchestrator tying them
// together.
package assistant

import (
	"context"
	"fmt"
	"time"
)

// Param describes a single tool parameter.
type Param struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
	Required    bool   `yaml:"required"`

	// Default is filled in by the dispatcher when an optional parameter
	// is absent from the call.
	Default any `yaml:"default"`
}

// ToolDescriptor is the static declaration of a capability exposed to the
// model. Descriptors are registered once at startup and never mutated.
type ToolDescriptor struct {
	Name        string
	Description string
	Params      []Param

	// Timeout overrides the dispatcher's default execution timeout.
	// Zero means use the default. Heavier tools (search, retrieval)
	// run with up to 50s.
	Timeout time.Duration
}

// HandlerFunc executes a tool call with validated parameters and returns
// the normalized result payload.
type HandlerFunc func(ctx context.Context, params map[string]any) (any, error)

type registeredTool struct {
	desc    ToolDescriptor
	handler HandlerFunc
}

// Registry is a name-keyed catalog of tools. It preserves registration
// order so the rendered prompt text is deterministic. After startup the
// registry is read-only and safe for concurrent unsynchronized reads.
type Registry struct {
	tools map[string]*registeredTool
	order []string
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*registeredTool)}
}

// Register adds a tool descriptor with its handler. Registering a name
// twice is a startup configuration error and is rejected rather than
// silently overwriting the earlier descriptor.
func (r *Registry) Register(desc ToolDescriptor, handler HandlerFunc) error {
	if desc.Name == "" {
		return fmt.Errorf("tool descriptor has empty name")
	}
	if handler == nil {
		return fmt.Errorf("tool %q has nil handler", desc.Name)
	}
	if _, exists := r.tools[desc.Name]; exists {
		return fmt.Errorf("tool %q: %w", desc.Name, ErrDuplicateTool)
	}
	r.tools[desc.Name] = &registeredTool{desc: desc, handler: handler}
	r.order = append(r.order, desc.Name)
	return nil
}

// Schema returns all descriptors in registration order.
func (r *Registry) Schema() []ToolDescriptor {
	out := make([]ToolDescriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].desc)
	}
	return out
}

// Lookup returns the descriptor and handler for a tool name.
func (r *Registry) Lookup(name string) (ToolDescriptor, HandlerFunc, bool) {
	t, ok := r.tools[name]
	if !ok {
		return ToolDescriptor{}, nil, false
	}
	return t.desc, t.handler, true
}

// Has reports whether a tool is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.order)
}
