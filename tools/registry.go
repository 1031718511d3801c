package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/loopforge/agentrun/message"
)

// Registry binds tool names to their Schema and executor, compiling each
// InputSchema once at Register time so Dispatch never pays compilation
// cost on the hot path (§4.B).
type Registry struct {
	mu    sync.RWMutex
	tools map[string]registeredTool
}

type registeredTool struct {
	tool   Tool
	schema *jsonschema.Schema // nil when InputSchema is empty
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]registeredTool)}
}

// Register binds a Tool under its Schema.Name. It fails with
// *DuplicateToolError if the name is already bound, or with a compile
// error if InputSchema is not valid JSON Schema.
func (r *Registry) Register(t Tool) error {
	schema := t.Schema()
	if schema.Name == "" {
		return fmt.Errorf("tools: cannot register tool with empty name")
	}

	var compiled *jsonschema.Schema
	if len(schema.InputSchema) > 0 {
		c := jsonschema.NewCompiler()
		url := "mem://tool/" + schema.Name
		if err := c.AddResource(url, schema.InputSchema); err != nil {
			return fmt.Errorf("tools: add schema resource for %q: %w", schema.Name, err)
		}
		s, err := c.Compile(url)
		if err != nil {
			return fmt.Errorf("tools: compile schema for %q: %w", schema.Name, err)
		}
		compiled = s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[schema.Name]; exists {
		return &DuplicateToolError{Name: schema.Name}
	}
	r.tools[schema.Name] = registeredTool{tool: t, schema: compiled}
	return nil
}

// Lookup returns the Tool bound to name, or ok=false if none is bound.
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.tools[name]
	if !ok {
		return nil, false
	}
	return rt.tool, true
}

// Schemas returns the Schema of every registered tool, in no particular
// order, for building a provider's tool-definitions list.
func (r *Registry) Schemas() []Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Schema, 0, len(r.tools))
	for _, rt := range r.tools {
		out = append(out, rt.tool.Schema())
	}
	return out
}

// Dispatch validates arguments against the tool's InputSchema, then
// invokes it. A missing tool yields *NotFoundError; a schema violation
// yields *SchemaValidationError. Both are recorded as an error ToolResult
// by the step executor rather than aborting the run (§4.F, §7).
func (r *Registry) Dispatch(ctx context.Context, name string, arguments map[string]any) (message.ToolResultContent, error) {
	r.mu.RLock()
	rt, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return message.ToolResultContent{}, &NotFoundError{Name: name}
	}

	if rt.schema != nil {
		// jsonschema.Validate expects the same representation
		// json.Unmarshal would produce (map[string]any, float64 numbers),
		// so round-trip arguments through JSON rather than passing the
		// map directly.
		raw, err := json.Marshal(arguments)
		if err != nil {
			return message.ToolResultContent{}, &SchemaValidationError{Name: name, Reason: err.Error()}
		}
		var instance any
		if err := json.Unmarshal(raw, &instance); err != nil {
			return message.ToolResultContent{}, &SchemaValidationError{Name: name, Reason: err.Error()}
		}
		if err := rt.schema.Validate(instance); err != nil {
			return message.ToolResultContent{}, &SchemaValidationError{Name: name, Reason: err.Error()}
		}
	}

	return rt.tool.Execute(ctx, arguments)
}
