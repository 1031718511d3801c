// Package toolcall normalizes the tool-call shapes a model provider or an
// MCP-compatible caller may emit into the canonical
// message.ToolCallRequest (§4.E). Three shapes are recognized: the
// canonical shape already matching message.ToolCallRequest, the OpenAI
// function-calling shape ({id, function:{name, arguments: JSON string}}),
// and the MCP convention ({name, input: mapping}).
package toolcall

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/loopforge/agentrun/message"
)

// Raw is the union of fields any of the three recognized shapes may
// populate. A caller need only set the fields its shape uses; Normalize
// infers which shape was intended from which fields are present.
type Raw struct {
	// CallID is the canonical/OpenAI-shape identifier field.
	CallID string
	// Name is the tool name, present in all three shapes.
	Name string
	// Arguments is the canonical-shape arguments map.
	Arguments map[string]any
	// ArgumentsJSON is the OpenAI function-calling shape's JSON-encoded
	// arguments string.
	ArgumentsJSON string
	// Input is the MCP convention's arguments mapping.
	Input map[string]any
}

// Normalize converts a Raw call into a canonical message.ToolCallRequest.
// A synthesized call_id ("tc_<uuid>") is assigned when the source shape
// did not supply one. Returns *message.DecodeError when ArgumentsJSON is
// present but not valid JSON; per §7, the caller must record this as an
// error ToolResult and continue the run rather than aborting it.
func Normalize(raw Raw) (message.ToolCallRequest, error) {
	callID := raw.CallID
	if callID == "" {
		callID = "tc_" + uuid.NewString()
	}

	args := raw.Arguments
	switch {
	case raw.ArgumentsJSON != "":
		if err := json.Unmarshal([]byte(raw.ArgumentsJSON), &args); err != nil {
			return message.ToolCallRequest{}, message.NewDecodeError("tool call %s: invalid arguments JSON: %v", callID, err)
		}
	case raw.Input != nil:
		args = raw.Input
	}

	return message.ToolCallRequest{
		CallID:    callID,
		Name:      raw.Name,
		Arguments: args,
	}, nil
}

// NormalizeAll normalizes a batch of raw calls, preserving order. It
// stops at the first decode failure and returns it; callers that want
// per-call isolation should call Normalize directly in their own loop
// (the step executor does this so one malformed call does not block its
// siblings).
func NormalizeAll(raws []Raw) ([]message.ToolCallRequest, error) {
	out := make([]message.ToolCallRequest, 0, len(raws))
	for _, r := range raws {
		tc, err := Normalize(r)
		if err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	return out, nil
}
