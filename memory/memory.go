// Package memory defines the conversation memory abstraction: an
// append-only, ordered log of message.Message values scoped to a single
// run, with pluggable storage and retention (§4.D).
package memory

import (
	"context"

	"github.com/loopforge/agentrun/message"
)

// Store persists and retrieves the message log for a run. Implementations
// must preserve append order and must not reorder or drop messages except
// through an explicit Reset call.
type Store interface {
	// Append adds msgs to the end of runID's log, in order.
	Append(ctx context.Context, runID string, msgs ...message.Message) error

	// Load returns runID's full message log in append order. A run with
	// no recorded messages returns an empty slice, not an error.
	Load(ctx context.Context, runID string) ([]message.Message, error)

	// Reset discards runID's log entirely. Used by callers starting a
	// fresh run that happens to reuse a prior run ID (e.g. in tests).
	Reset(ctx context.Context, runID string) error

	// ApproxTokenCount estimates the token footprint of runID's current
	// log, using the same characters-per-token heuristic the modelclient
	// adapters apply to outbound requests. Callers use this to decide
	// whether a Retention pass is due before the next model call (§4.D).
	ApproxTokenCount(ctx context.Context, runID string) (int, error)

	// Len returns the number of messages currently stored for runID.
	Len(ctx context.Context, runID string) (int, error)
}

// Retention decides which subset of a log to keep for the next model
// call, so Store growth does not force every call to Store.Load to
// submit an unbounded context window. Retention never mutates the
// underlying Store; it operates on a Load result.
type Retention interface {
	// Apply returns the subset of log to present to the model, honoring
	// the invariant that a leading system message is never evicted (§3
	// invariant I-2).
	Apply(log []message.Message) []message.Message
}

// NoRetention is the identity Retention: the full log is always
// presented.
type NoRetention struct{}

// Apply returns log unchanged.
func (NoRetention) Apply(log []message.Message) []message.Message { return log }

// approxCharsPerToken is the characters-per-token ratio used wherever a
// local tokenizer is unavailable, matching modelclient's provider
// adapters (anthropic, openai, bedrock all estimate CountTokens the same
// way).
const approxCharsPerToken = 4

// ApproxTokenCount estimates the total token footprint of log by summing
// each message's text content and dividing by approxCharsPerToken. Both
// Store implementations delegate to this so the heuristic stays in one
// place.
func ApproxTokenCount(log []message.Message) int {
	total := 0
	for _, m := range log {
		total += len(textOf(m))
	}
	return total / approxCharsPerToken
}

func textOf(m message.Message) string {
	switch m.Role {
	case message.RoleSystem:
		if m.System != nil {
			return m.System.Text
		}
	case message.RoleUser:
		if m.User != nil {
			return m.User.Text
		}
	case message.RoleAssistant:
		if m.Assistant != nil {
			return m.Assistant.Text
		}
	case message.RoleToolResult:
		if m.ToolResult != nil {
			return message.Text(m.ToolResult.Content)
		}
	}
	return ""
}
