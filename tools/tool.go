// Package tools defines the tool interface and a registry that binds
// tool names to schemas and executors (§4.B).
package tools

import (
	"context"

	"github.com/loopforge/agentrun/message"
)

// Schema is the authoritative, provider-independent definition of a tool.
// Provider-specific wire forms (e.g. OpenAI function-calling) are derived
// from Schema at request-build time.
type Schema struct {
	// Name is the tool identifier presented to the model.
	Name string
	// Description documents when and how the model should invoke the tool.
	Description string
	// InputSchema is a JSON Schema draft 2020-12 subset: object root,
	// typed properties, required list, enum, default.
	InputSchema map[string]any
}

// Tool binds a Schema to an executor. Execute may suspend on I/O; it must
// always return a ToolResult, even on failure, with IsError set and at
// least one text block describing the condition. A Tool MAY instead
// panic or return an error from Execute; the step executor is responsible
// for converting either into an error result (§4.B, §4.F).
type Tool interface {
	Schema() Schema
	Execute(ctx context.Context, arguments map[string]any) (message.ToolResultContent, error)
}

// Func adapts a plain function into a Tool, for simple stateless tools.
type Func struct {
	ToolSchema Schema
	Fn         func(ctx context.Context, arguments map[string]any) (message.ToolResultContent, error)
}

func (f Func) Schema() Schema { return f.ToolSchema }

func (f Func) Execute(ctx context.Context, arguments map[string]any) (message.ToolResultContent, error) {
	return f.Fn(ctx, arguments)
}
