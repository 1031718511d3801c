package message

import "encoding/json"

// WireToolCall is the function-calling shape an LLM provider expects for
// an assistant's tool-call requests: an array of
// {id, type:"function", function:{name, arguments: JSON-string}}.
type WireToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function WireToolFunction `json:"function"`
}

// WireToolFunction is the nested function descriptor of a WireToolCall.
type WireToolFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToWireToolCalls converts an assistant message's tool-call requests into
// the function-calling wire shape sent to the model provider.
func ToWireToolCalls(calls []ToolCallRequest) ([]WireToolCall, error) {
	out := make([]WireToolCall, 0, len(calls))
	for _, c := range calls {
		args, err := json.Marshal(c.Arguments)
		if err != nil {
			return nil, NewDecodeError("marshal arguments for call %q: %v", c.CallID, err)
		}
		out = append(out, WireToolCall{
			ID:   c.CallID,
			Type: "function",
			Function: WireToolFunction{
				Name:      c.Name,
				Arguments: string(args),
			},
		})
	}
	return out, nil
}

// FromWireToolCalls parses the function-calling wire shape back into
// canonical tool-call requests. Identifiers and timestamps generated on
// ingest mean this direction is lossy-but-sufficient, per §4.A.
func FromWireToolCalls(raw []WireToolCall) ([]ToolCallRequest, error) {
	out := make([]ToolCallRequest, 0, len(raw))
	for _, w := range raw {
		if w.Function.Name == "" {
			return nil, NewDecodeError("wire tool call missing function name")
		}
		var args map[string]any
		if w.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(w.Function.Arguments), &args); err != nil {
				return nil, NewDecodeError("wire tool call %q: invalid arguments JSON: %v", w.ID, err)
			}
		}
		out = append(out, ToolCallRequest{
			CallID:    w.ID,
			Name:      w.Function.Name,
			Arguments: args,
		})
	}
	return out, nil
}
