package undertow

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// ToolDefinition describes a tool for the planner's catalog prompt.
// Parameters maps parameter names to short type/usage hints.
type ToolDefinition struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Parameters  map[string]string `json:"parameters,omitempty"`
}

// Tool is an external capability a tool_call step can invoke. Parameters are
// fully resolved before Call is made: a tool never sees placeholder syntax.
type Tool interface {
	Definition() *ToolDefinition
	Call(ctx context.Context, params map[string]any) (any, error)
}

// DeferredTool is a tool whose effect is irreversible or outward-facing,
// e.g. sending an email. The executor calls Prepare during the normal step
// loop to build the payload for human review, pauses the workflow, and only
// invokes Call with that payload after an explicit approval.
type DeferredTool interface {
	Tool

	// Prepare resolves and validates the call without performing it, returning
	// the payload that Call will act on.
	Prepare(ctx context.Context, params map[string]any) (map[string]any, error)
}

// ToolRegistry holds the tools available to planned workflows. Safe for
// concurrent use.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewToolRegistry creates an empty ToolRegistry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: map[string]Tool{}}
}

// Register adds a tool. Registering two tools with the same name is an error.
func (r *ToolRegistry) Register(tool Tool) error {
	def := tool.Definition()
	if def == nil || def.Name == "" {
		return fmt.Errorf("tool definition with a name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[def.Name]; exists {
		return fmt.Errorf("tool %q is already registered", def.Name)
	}
	r.tools[def.Name] = tool
	return nil
}

// Get returns the named tool, if registered.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Definitions returns the registered tool definitions sorted by name.
func (r *ToolRegistry) Definitions() []*ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]*ToolDefinition, 0, len(r.tools))
	for _, tool := range r.tools {
		defs = append(defs, tool.Definition())
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Invoke calls the named tool with the given parameters.
func (r *ToolRegistry) Invoke(ctx context.Context, name string, params map[string]any) (any, error) {
	tool, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown tool: %q", name)
	}
	return tool.Call(ctx, params)
}
