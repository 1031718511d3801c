package message_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loopforge/agentrun/message"
)

func TestNewUserHasToolCallsFalse(t *testing.T) {
	m := message.NewUser("hello")
	require.False(t, m.HasToolCalls())
	require.Equal(t, message.RoleUser, m.Role)
	require.NotEmpty(t, m.ID)
	require.False(t, m.CreatedAt.IsZero())
}

func TestAssistantHasToolCalls(t *testing.T) {
	m := message.NewAssistant(message.AssistantContent{
		Text: "thinking",
		ToolCalls: []message.ToolCallRequest{
			{CallID: "tc_1", Name: "add", Arguments: map[string]any{"a": 1.0, "b": 2.0}},
		},
	})
	require.True(t, m.HasToolCalls())
}

func TestWireToolCallRoundTrip(t *testing.T) {
	calls := []message.ToolCallRequest{
		{CallID: "tc_1", Name: "add", Arguments: map[string]any{"a": 2.0, "b": 3.0}},
	}
	wire, err := message.ToWireToolCalls(calls)
	require.NoError(t, err)
	require.Len(t, wire, 1)
	require.Equal(t, "function", wire[0].Type)

	back, err := message.FromWireToolCalls(wire)
	require.NoError(t, err)
	require.Equal(t, calls[0].CallID, back[0].CallID)
	require.Equal(t, calls[0].Name, back[0].Name)
	require.Equal(t, calls[0].Arguments["a"], back[0].Arguments["a"])
}

func TestFromWireToolCallsMalformedArguments(t *testing.T) {
	_, err := message.FromWireToolCalls([]message.WireToolCall{
		{ID: "tc_1", Type: "function", Function: message.WireToolFunction{Name: "echo", Arguments: "{not json"}},
	})
	require.Error(t, err)
	var decodeErr *message.DecodeError
	require.ErrorAs(t, err, &decodeErr)
}

func TestStorageRoundTrip(t *testing.T) {
	orig := message.NewToolResult("tc_1", []message.ContentBlock{
		message.TextBlock{Text: "5"},
		message.ResourceBlock{URI: "res://doc/1", Text: "excerpt"},
	}, false)

	data, err := message.MarshalStorage(orig)
	require.NoError(t, err)

	decoded, err := message.UnmarshalStorage(data)
	require.NoError(t, err)
	require.Equal(t, orig.ID, decoded.ID)
	require.Equal(t, orig.Role, decoded.Role)
	require.Equal(t, orig.ToolResult.CallID, decoded.ToolResult.CallID)
	require.Len(t, decoded.ToolResult.Content, 2)
	require.Equal(t, "5", message.Text(decoded.ToolResult.Content))
}

func TestUnmarshalStorageMalformed(t *testing.T) {
	_, err := message.UnmarshalStorage([]byte(`{"id":""}`))
	require.Error(t, err)
}
