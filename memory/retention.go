package memory

import "github.com/loopforge/agentrun/message"

// WindowRetention keeps the leading system message, if any, plus the most
// recent MaxMessages non-system messages. It grounds the bounded-window
// eviction policy named in §4.D.
type WindowRetention struct {
	MaxMessages int
}

// Apply returns at most one system message followed by the most recent
// MaxMessages messages from the remainder of log.
func (r WindowRetention) Apply(log []message.Message) []message.Message {
	if len(log) == 0 {
		return log
	}
	var system *message.Message
	rest := log
	if log[0].Role == message.RoleSystem {
		system = &log[0]
		rest = log[1:]
	}
	if r.MaxMessages > 0 && len(rest) > r.MaxMessages {
		rest = rest[len(rest)-r.MaxMessages:]
	}
	out := make([]message.Message, 0, len(rest)+1)
	if system != nil {
		out = append(out, *system)
	}
	out = append(out, rest...)
	return out
}

// TokenBudgetRetention keeps the leading system message, if any, plus as
// many of the most recent messages as fit within MaxTokens, estimated via
// Estimate. Messages are dropped oldest-first once the remaining budget
// cannot fit another message.
type TokenBudgetRetention struct {
	MaxTokens int
	// Estimate returns the approximate token cost of a single message.
	// Required; there is no built-in default because cost depends on the
	// model's tokenizer.
	Estimate func(message.Message) int
}

// Apply returns at most one system message followed by the most recent
// messages that fit within MaxTokens.
func (r TokenBudgetRetention) Apply(log []message.Message) []message.Message {
	if len(log) == 0 {
		return log
	}
	var system *message.Message
	rest := log
	budget := r.MaxTokens
	if log[0].Role == message.RoleSystem {
		system = &log[0]
		rest = log[1:]
		budget -= r.Estimate(*system)
	}

	kept := make([]message.Message, 0, len(rest))
	used := 0
	for i := len(rest) - 1; i >= 0; i-- {
		cost := r.Estimate(rest[i])
		if used+cost > budget && len(kept) > 0 {
			break
		}
		kept = append(kept, rest[i])
		used += cost
	}
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}

	out := make([]message.Message, 0, len(kept)+1)
	if system != nil {
		out = append(out, *system)
	}
	out = append(out, kept...)
	return out
}
