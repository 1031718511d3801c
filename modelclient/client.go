// Package modelclient provides a provider-agnostic abstraction over chat
// completion APIs (Anthropic, OpenAI, Bedrock) so the step executor can
// invoke models without coupling to a specific SDK (§4.C). Adapters in
// the anthropic, openai, and bedrock subpackages translate Request and
// Response to and from provider-specific wire formats.
package modelclient

import (
	"context"
	"errors"

	"github.com/loopforge/agentrun/message"
)

// Client is the contract the step executor uses to invoke a model.
// Implementations wrap provider SDKs and translate Request/Response to
// provider-specific formats. Implementations must be safe for concurrent
// use across multiple runs.
type Client interface {
	// Complete sends a chat completion request and returns the full
	// response once generation finishes. Returns a *TransientError for
	// conditions worth retrying (rate limits, timeouts) and a
	// *PermanentError for conditions that will not resolve on retry
	// (invalid request, auth failure, unsupported model).
	Complete(ctx context.Context, req Request) (Response, error)

	// Stream sends a chat completion request and returns a Streamer that
	// yields incremental chunks. Providers that do not support streaming
	// return ErrStreamingUnsupported.
	Stream(ctx context.Context, req Request) (Streamer, error)

	// CountTokens estimates the token count of req without performing a
	// completion, for callers sizing a request against a context window.
	CountTokens(ctx context.Context, req Request) (int, error)
}

// Streamer delivers incremental model output. Successive calls to Recv
// return Chunk values until io.EOF. A Streamer is only ever driven by a
// single goroutine and must release underlying resources when Close is
// invoked.
type Streamer interface {
	Recv() (Chunk, error)
	Close() error
}

// Request captures the normalized parameters for a model invocation.
// Fields map to common provider parameters but may not all be honored by
// every backend.
type Request struct {
	// Model identifies the target model using the provider-specific
	// identifier (e.g. "claude-sonnet-4-5", "gpt-4.1").
	Model string

	// Messages is the ordered chat history, including the leading system
	// instruction per §3 invariant I-1.
	Messages []message.Message

	// Temperature controls sampling; zero means provider default.
	Temperature float32

	// Tools describes the schemas exposed to the model for tool calling.
	// Empty disables tool calling for this request.
	Tools []ToolDefinition

	// MaxTokens caps completion length; zero means provider default.
	MaxTokens int

	// ParallelToolCalls carries the step's tool-dispatch setting. The
	// adapters in this module do not forward it to their providers.
	ParallelToolCalls bool

	// ToolChoice constrains whether and which tool the model must invoke.
	// The zero value behaves like ToolChoiceAuto.
	ToolChoice ToolChoice
}

// ToolChoice controls tool invocation for a single request (§6
// configuration table). The three reserved values are ToolChoiceAuto,
// ToolChoiceRequired, and ToolChoiceNone; any other non-empty value is
// treated as the name of the single tool the model must call.
type ToolChoice string

const (
	// ToolChoiceAuto lets the model decide whether to call a tool. This
	// is the default when ToolChoice is the zero value.
	ToolChoiceAuto ToolChoice = "auto"
	// ToolChoiceRequired forces the model to call at least one tool.
	ToolChoiceRequired ToolChoice = "required"
	// ToolChoiceNone disables tool calling for the request regardless of
	// which tools are present in Request.Tools.
	ToolChoiceNone ToolChoice = "none"
)

// ToolDefinition is the wire-ready description of a tool, derived from
// tools.Schema at request-build time.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// Response wraps the generated content and any tool calls requested by
// the model.
type Response struct {
	// Text is the assistant's generated text, if any. May be empty when
	// the model only requested tool calls.
	Text string

	// ToolCalls lists tool invocations requested by the model, in the
	// order the model emitted them. The step executor must preserve this
	// order when recording results (§3 invariant I-4).
	ToolCalls []message.ToolCallRequest

	// Usage reports token counts for this call.
	Usage message.Usage

	// FinishReason explains why generation stopped.
	FinishReason message.FinishReason
}

// Chunk represents a single streaming event. Exactly one of the typed
// fields is populated, matching Type.
type Chunk struct {
	Type ChunkType

	// TextDelta holds incremental text when Type is ChunkTypeTextDelta.
	TextDelta string

	// ToolCallDelta holds a partial or complete tool call when Type is
	// ChunkTypeToolCall.
	ToolCallDelta message.ToolCallRequest

	// Usage holds the final token accounting when Type is ChunkTypeUsage.
	Usage message.Usage

	// FinishReason is set when Type is ChunkTypeStop.
	FinishReason message.FinishReason
}

// ChunkType identifies the payload carried by a Chunk.
type ChunkType string

const (
	ChunkTypeTextDelta ChunkType = "text_delta"
	ChunkTypeToolCall  ChunkType = "tool_call"
	ChunkTypeUsage     ChunkType = "usage"
	ChunkTypeStop      ChunkType = "stop"
)

// ErrStreamingUnsupported indicates the provider does not implement
// streaming for the requested model.
var ErrStreamingUnsupported = errors.New("modelclient: streaming not supported")
