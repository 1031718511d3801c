// Package message defines the canonical, provider-agnostic conversation
// record used throughout the engine. A Message is one of five role
// variants (system, user, assistant, tool call, tool result); all other
// packages consume this representation rather than any single provider's
// wire shape.
package message

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies which of the five message variants a Message carries.
type Role string

// Recognized roles. Every Message has exactly one.
const (
	RoleSystem     Role = "system"
	RoleUser       Role = "user"
	RoleAssistant  Role = "assistant"
	RoleToolCall   Role = "tool_call"
	RoleToolResult Role = "tool_result"
)

// FinishReason is the model's hint for why an assistant turn ended. The
// engine only distinguishes Stop from every other value.
type FinishReason string

const (
	FinishStop      FinishReason = "stop"
	FinishToolCalls FinishReason = "tool_calls"
	FinishLength    FinishReason = "length"
	FinishError     FinishReason = "error"
)

type (
	// Message is a single, immutable turn in a conversation. Every message
	// carries an identifier, a UTC creation timestamp, and free-form
	// metadata regardless of Role; the fields relevant to Role are
	// populated, the rest are left zero.
	Message struct {
		// ID uniquely identifies this message within a run's memory.
		ID string
		// Role discriminates which variant this message represents.
		Role Role
		// CreatedAt is the UTC creation time. Immutable once appended.
		CreatedAt time.Time
		// Meta carries caller-supplied, free-form metadata. Never
		// interpreted by the engine itself.
		Meta map[string]any

		// System carries the system-role payload. Populated only when
		// Role == RoleSystem.
		System *SystemContent
		// User carries the user-role payload. Populated only when
		// Role == RoleUser.
		User *UserContent
		// Assistant carries the assistant-role payload. Populated only
		// when Role == RoleAssistant.
		Assistant *AssistantContent
		// ToolCall carries the tool-call-request payload. Populated only
		// when Role == RoleToolCall.
		ToolCall *ToolCallContent
		// ToolResult carries the tool-execution-result payload. Populated
		// only when Role == RoleToolResult.
		ToolResult *ToolResultContent
	}

	// SystemContent holds the instructions a system message establishes
	// once at the start of a run.
	SystemContent struct {
		// Text is used when the system prompt is a single string.
		Text string
		// Parts is used when the system prompt is an ordered sequence of
		// content blocks. Mutually exclusive with Text in practice, but
		// both may be read; Text takes precedence when non-empty.
		Parts []ContentBlock
	}

	// UserContent holds end-user input, either as plain text or as an
	// ordered sequence of multimodal content blocks.
	UserContent struct {
		Text string
		Parts []ContentBlock
		// UserID optionally identifies the end user who authored this
		// message, for providers that support per-user attribution.
		UserID string
	}

	// AssistantContent holds the model's turn: optional text, zero or
	// more tool-call requests, optional usage, optional finish reason.
	AssistantContent struct {
		// Text is the assistant's textual content, if any. A turn that
		// only requests tools may leave this empty.
		Text string
		// ToolCalls lists the tool invocations requested by the model,
		// in the order the model emitted them.
		ToolCalls []ToolCallRequest
		// Usage reports token accounting for this turn when the
		// provider supplied it.
		Usage *Usage
		// FinishReason is the provider's stated reason the turn ended.
		FinishReason FinishReason
	}

	// ToolCallRequest is one tool invocation requested within an
	// AssistantContent. CallID is stable across the request/result pair.
	ToolCallRequest struct {
		CallID    string
		Name      string
		Arguments map[string]any
	}

	// ToolCallContent represents a standalone tool-call message when a
	// single request is modeled as its own message (rather than embedded
	// in AssistantContent). Most call sites use AssistantContent.ToolCalls;
	// this variant exists for providers/storage forms that round-trip a
	// tool call as an independent record.
	ToolCallContent struct {
		CallID    string
		Name      string
		Arguments map[string]any
	}

	// ToolResultContent carries the outcome of executing one tool call.
	ToolResultContent struct {
		// CallID references the ToolCallRequest.CallID this result answers.
		CallID string
		// Content is the ordered list of result content blocks.
		Content []ContentBlock
		// IsError reports whether the tool invocation failed. Tools must
		// always report a result, even on failure; IsError distinguishes
		// a successful result from a reported failure.
		IsError bool
	}

	// Usage reports token counts for a single model turn. The zero value
	// means "no usage reported."
	Usage struct {
		PromptTokens     int
		CompletionTokens int
		TotalTokens      int
	}
)

// NewID returns a fresh message identifier. Exposed so callers constructing
// messages by hand (e.g. in tests) can mint IDs the same way the New*
// constructors do.
func NewID() string {
	return uuid.NewString()
}

// NewSystem builds a system message with a plain-text prompt.
func NewSystem(text string) Message {
	return Message{
		ID:        NewID(),
		Role:      RoleSystem,
		CreatedAt: time.Now().UTC(),
		System:    &SystemContent{Text: text},
	}
}

// NewUser builds a user message with a plain-text input.
func NewUser(text string) Message {
	return Message{
		ID:        NewID(),
		Role:      RoleUser,
		CreatedAt: time.Now().UTC(),
		User:      &UserContent{Text: text},
	}
}

// NewAssistant builds an assistant message from the supplied content.
func NewAssistant(content AssistantContent) Message {
	return Message{
		ID:        NewID(),
		Role:      RoleAssistant,
		CreatedAt: time.Now().UTC(),
		Assistant: &content,
	}
}

// NewToolResult builds a tool-result message referencing callID.
func NewToolResult(callID string, blocks []ContentBlock, isError bool) Message {
	return Message{
		ID:        NewID(),
		Role:      RoleToolResult,
		CreatedAt: time.Now().UTC(),
		ToolResult: &ToolResultContent{
			CallID:  callID,
			Content: blocks,
			IsError: isError,
		},
	}
}

// HasToolCalls reports whether an assistant message requested any tools.
func (m Message) HasToolCalls() bool {
	return m.Role == RoleAssistant && m.Assistant != nil && len(m.Assistant.ToolCalls) > 0
}
