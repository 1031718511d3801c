package message

import (
	"encoding/base64"
	"encoding/json"
	"time"
)

// storageRecord is the full, lossless on-wire shape of a Message used for
// checkpointing (§4.A "storage form"). Unlike the wire form sent to model
// providers, this form round-trips every field exactly.
type storageRecord struct {
	ID         string            `json:"id"`
	Role       Role              `json:"role"`
	CreatedAt  time.Time         `json:"created_at"`
	Meta       map[string]any    `json:"meta,omitempty"`
	System     *SystemContent    `json:"system,omitempty"`
	User       *UserContent      `json:"user,omitempty"`
	Assistant  *AssistantContent `json:"assistant,omitempty"`
	ToolCall   *ToolCallContent  `json:"tool_call,omitempty"`
	ToolResult *ToolResultContent `json:"tool_result,omitempty"`
}

// contentBlockJSON is the tagged-union wire representation for a
// ContentBlock, discriminated by "type".
type contentBlockJSON struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	URI      string `json:"uri,omitempty"`
}

// MarshalStorage encodes a Message to its lossless storage-form JSON,
// suitable for checkpointing by a caller per §1.
func MarshalStorage(m Message) ([]byte, error) {
	rec := storageRecord{
		ID:         m.ID,
		Role:       m.Role,
		CreatedAt:  m.CreatedAt,
		Meta:       m.Meta,
		System:     m.System,
		User:       m.User,
		Assistant:  m.Assistant,
		ToolCall:   m.ToolCall,
		ToolResult: m.ToolResult,
	}
	return json.Marshal(rec)
}

// UnmarshalStorage decodes a Message from its storage-form JSON. A
// malformed record fails with *DecodeError and the run controller must
// not continue (§4.A).
func UnmarshalStorage(data []byte) (Message, error) {
	var rec storageRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return Message{}, NewDecodeError("invalid storage record: %v", err)
	}
	if rec.ID == "" || rec.Role == "" {
		return Message{}, NewDecodeError("storage record missing id or role")
	}
	return Message{
		ID:         rec.ID,
		Role:       rec.Role,
		CreatedAt:  rec.CreatedAt,
		Meta:       rec.Meta,
		System:     rec.System,
		User:       rec.User,
		Assistant:  rec.Assistant,
		ToolCall:   rec.ToolCall,
		ToolResult: rec.ToolResult,
	}, nil
}

// marshalBlock implements a tagged-union encoding for the ContentBlock
// marker interface so blocks round-trip through the content types'
// MarshalJSON/UnmarshalJSON methods. Image data is base64-encoded.
func marshalBlock(b ContentBlock) (contentBlockJSON, error) {
	switch v := b.(type) {
	case TextBlock:
		return contentBlockJSON{Type: "text", Text: v.Text}, nil
	case ImageBlock:
		return contentBlockJSON{Type: "image", Data: base64.StdEncoding.EncodeToString(v.Data), MimeType: v.MimeType}, nil
	case ResourceBlock:
		return contentBlockJSON{Type: "resource", URI: v.URI, Text: v.Text}, nil
	default:
		return contentBlockJSON{}, NewDecodeError("unknown content block type %T", b)
	}
}

func unmarshalBlock(j contentBlockJSON) (ContentBlock, error) {
	switch j.Type {
	case "text":
		return TextBlock{Text: j.Text}, nil
	case "image":
		data, err := base64.StdEncoding.DecodeString(j.Data)
		if err != nil {
			return nil, NewDecodeError("invalid image data: %v", err)
		}
		return ImageBlock{Data: data, MimeType: j.MimeType}, nil
	case "resource":
		return ResourceBlock{URI: j.URI, Text: j.Text}, nil
	default:
		return nil, NewDecodeError("unknown content block type %q", j.Type)
	}
}

// MarshalJSON implements json.Marshaler for SystemContent's Parts field
// by delegating through the tagged-union helper.
func (c SystemContent) MarshalJSON() ([]byte, error) {
	return marshalContentJSON(c.Text, c.Parts)
}

// UnmarshalJSON implements json.Unmarshaler for SystemContent.
func (c *SystemContent) UnmarshalJSON(data []byte) error {
	text, parts, err := unmarshalContentJSON(data)
	if err != nil {
		return err
	}
	c.Text, c.Parts = text, parts
	return nil
}

// MarshalJSON implements json.Marshaler for UserContent.
func (c UserContent) MarshalJSON() ([]byte, error) {
	type alias struct {
		Text   string             `json:"text,omitempty"`
		Parts  []contentBlockJSON `json:"parts,omitempty"`
		UserID string             `json:"user_id,omitempty"`
	}
	parts, err := marshalBlocks(c.Parts)
	if err != nil {
		return nil, err
	}
	return json.Marshal(alias{Text: c.Text, Parts: parts, UserID: c.UserID})
}

// UnmarshalJSON implements json.Unmarshaler for UserContent.
func (c *UserContent) UnmarshalJSON(data []byte) error {
	var alias struct {
		Text   string             `json:"text,omitempty"`
		Parts  []contentBlockJSON `json:"parts,omitempty"`
		UserID string             `json:"user_id,omitempty"`
	}
	if err := json.Unmarshal(data, &alias); err != nil {
		return NewDecodeError("invalid user content: %v", err)
	}
	parts, err := unmarshalBlocks(alias.Parts)
	if err != nil {
		return err
	}
	c.Text, c.Parts, c.UserID = alias.Text, parts, alias.UserID
	return nil
}

// MarshalJSON implements json.Marshaler for ToolResultContent.
func (c ToolResultContent) MarshalJSON() ([]byte, error) {
	type alias struct {
		CallID  string             `json:"call_id"`
		Content []contentBlockJSON `json:"content,omitempty"`
		IsError bool               `json:"is_error"`
	}
	content, err := marshalBlocks(c.Content)
	if err != nil {
		return nil, err
	}
	return json.Marshal(alias{CallID: c.CallID, Content: content, IsError: c.IsError})
}

// UnmarshalJSON implements json.Unmarshaler for ToolResultContent.
func (c *ToolResultContent) UnmarshalJSON(data []byte) error {
	var alias struct {
		CallID  string             `json:"call_id"`
		Content []contentBlockJSON `json:"content,omitempty"`
		IsError bool               `json:"is_error"`
	}
	if err := json.Unmarshal(data, &alias); err != nil {
		return NewDecodeError("invalid tool result content: %v", err)
	}
	blocks, err := unmarshalBlocks(alias.Content)
	if err != nil {
		return err
	}
	c.CallID, c.Content, c.IsError = alias.CallID, blocks, alias.IsError
	return nil
}

func marshalContentJSON(text string, parts []ContentBlock) ([]byte, error) {
	type alias struct {
		Text  string             `json:"text,omitempty"`
		Parts []contentBlockJSON `json:"parts,omitempty"`
	}
	j, err := marshalBlocks(parts)
	if err != nil {
		return nil, err
	}
	return json.Marshal(alias{Text: text, Parts: j})
}

func unmarshalContentJSON(data []byte) (string, []ContentBlock, error) {
	var alias struct {
		Text  string             `json:"text,omitempty"`
		Parts []contentBlockJSON `json:"parts,omitempty"`
	}
	if err := json.Unmarshal(data, &alias); err != nil {
		return "", nil, NewDecodeError("invalid content: %v", err)
	}
	parts, err := unmarshalBlocks(alias.Parts)
	if err != nil {
		return "", nil, err
	}
	return alias.Text, parts, nil
}

func marshalBlocks(blocks []ContentBlock) ([]contentBlockJSON, error) {
	if len(blocks) == 0 {
		return nil, nil
	}
	out := make([]contentBlockJSON, 0, len(blocks))
	for _, b := range blocks {
		j, err := marshalBlock(b)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, nil
}

func unmarshalBlocks(raw []contentBlockJSON) ([]ContentBlock, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]ContentBlock, 0, len(raw))
	for _, j := range raw {
		b, err := unmarshalBlock(j)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}
