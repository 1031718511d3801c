package tools_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loopforge/agentrun/message"
	"github.com/loopforge/agentrun/tools"
)

func echoTool() tools.Tool {
	return tools.Func{
		ToolSchema: tools.Schema{
			Name:        "echo",
			Description: "echoes the message argument back as text",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"message": map[string]any{"type": "string"},
				},
				"required": []any{"message"},
			},
		},
		Fn: func(_ context.Context, args map[string]any) (message.ToolResultContent, error) {
			return message.ToolResultContent{
				Content: []message.ContentBlock{message.TextBlock{Text: args["message"].(string)}},
			}, nil
		},
	}
}

func TestRegisterAndDispatch(t *testing.T) {
	r := tools.NewRegistry()
	require.NoError(t, r.Register(echoTool()))

	result, err := r.Dispatch(context.Background(), "echo", map[string]any{"message": "hi"})
	require.NoError(t, err)
	require.Equal(t, "hi", message.Text(result.Content))
}

func TestRegisterDuplicateFails(t *testing.T) {
	r := tools.NewRegistry()
	require.NoError(t, r.Register(echoTool()))

	err := r.Register(echoTool())
	require.Error(t, err)
	var dup *tools.DuplicateToolError
	require.ErrorAs(t, err, &dup)
	require.Equal(t, "echo", dup.Name)
}

func TestDispatchUnknownTool(t *testing.T) {
	r := tools.NewRegistry()
	_, err := r.Dispatch(context.Background(), "missing", nil)
	require.Error(t, err)
	var nf *tools.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestDispatchSchemaViolation(t *testing.T) {
	r := tools.NewRegistry()
	require.NoError(t, r.Register(echoTool()))

	_, err := r.Dispatch(context.Background(), "echo", map[string]any{"wrong": 1})
	require.Error(t, err)
	var sv *tools.SchemaValidationError
	require.ErrorAs(t, err, &sv)
	require.Equal(t, "echo", sv.Name)
}

func TestSchemasListsRegisteredTools(t *testing.T) {
	r := tools.NewRegistry()
	require.NoError(t, r.Register(echoTool()))

	schemas := r.Schemas()
	require.Len(t, schemas, 1)
	require.Equal(t, "echo", schemas[0].Name)
}

func TestLookupMissing(t *testing.T) {
	r := tools.NewRegistry()
	_, ok := r.Lookup("nope")
	require.False(t, ok)
}
