// Package trace defines the run result model: the single serializable
// record a run controller produces (§4.H). AgentRunResult is the
// top-level record; StepResult and ToolCallRecord nest beneath it in the
// same shape the canonical JSON wire form fixes (§6). Every type here is
// a plain value assembled once by the run controller and never mutated
// after the run returns.
package trace

import (
	"encoding/json"
	"time"
)

// RunStatus is the terminal outcome of a run. A run ends in exactly one
// status (§4.G invariant, P1).
type RunStatus string

const (
	RunStatusCompleted            RunStatus = "completed"
	RunStatusMaxIterationsReached RunStatus = "max_iterations_reached"
	RunStatusError                RunStatus = "error"
	RunStatusCancelled            RunStatus = "cancelled"
)

// FinishReason is why a single step ended. Distinct from RunStatus: a
// step's finish reason explains one iteration, a RunStatus explains the
// whole run.
type FinishReason string

const (
	FinishStop      FinishReason = "stop"
	FinishToolCalls FinishReason = "tool_calls"
	FinishError     FinishReason = "error"
)

type (
	// UsageStats reports token accounting for one model turn. The zero
	// value means no usage was reported by the provider.
	UsageStats struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	}

	// ToolCallRecord is the immutable outcome of one executed tool call.
	// Created exactly once per tool call, in a step's Act phase.
	ToolCallRecord struct {
		ToolName   string         `json:"tool_name"`
		CallID     string         `json:"call_id"`
		Arguments  map[string]any `json:"arguments"`
		Result     string         `json:"result"`
		IsError    bool           `json:"is_error"`
		DurationMs float64        `json:"duration_ms"`
		Timestamp  time.Time      `json:"timestamp"`
	}

	// StepResult is the record of one Think-Act-Observe iteration (§4.F).
	// Thought is nil when the step produced no assistant text (e.g. a
	// tool-only turn some providers emit).
	StepResult struct {
		Step         int              `json:"step"`
		Thought      *string          `json:"thought"`
		ToolCalls    []ToolCallRecord `json:"tool_calls"`
		Usage        *UsageStats      `json:"usage,omitempty"`
		FinishReason FinishReason     `json:"finish_reason"`
	}

	// AgentRunResult is the single serializable source of truth for one
	// run (§4.H). It is constructed single-owner by the run controller
	// and is immutable once returned; no field duplicates information
	// derivable from Steps other than the pre-computed aggregates.
	AgentRunResult struct {
		RunID           string         `json:"run_id"`
		AgentName       string         `json:"agent_name"`
		Output          string         `json:"output"`
		Status          RunStatus      `json:"status"`
		Steps           []StepResult   `json:"steps"`
		Usage           UsageStats     `json:"usage"`
		ToolCallsTotal  int            `json:"tool_calls_total"`
		ToolCallsByName map[string]int `json:"tool_calls_by_name"`
		StartTime       time.Time      `json:"start_time"`
		EndTime         time.Time      `json:"end_time"`
		DurationSeconds float64        `json:"duration_seconds"`
		Error           *string        `json:"error"`
		MaxIterations   int            `json:"max_iterations"`
	}
)

// HasToolCalls reports whether this step requested any tool calls,
// derived rather than stored (§4.B).
func (s StepResult) HasToolCalls() bool {
	return len(s.ToolCalls) > 0
}

// Add accumulates other's fields into u and returns the sum. Used to
// build AggregatedUsage across every StepResult.Usage in a run.
func (u UsageStats) Add(other UsageStats) UsageStats {
	return UsageStats{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
	}
}

// AggregateUsage sums the Usage of every step that reported one. Steps
// with nil Usage contribute zero.
func AggregateUsage(steps []StepResult) UsageStats {
	var total UsageStats
	for _, s := range steps {
		if s.Usage != nil {
			total = total.Add(*s.Usage)
		}
	}
	return total
}

// CountToolCalls returns the total number of tool calls across steps and
// a per-tool-name breakdown, matching AgentRunResult's ToolCallsTotal and
// ToolCallsByName fields.
func CountToolCalls(steps []StepResult) (total int, byName map[string]int) {
	byName = map[string]int{}
	for _, s := range steps {
		for _, tc := range s.ToolCalls {
			total++
			byName[tc.ToolName]++
		}
	}
	return total, byName
}

// MarshalJSON renders r in the fixed canonical wire form (§6). Declared
// explicitly so ToolCallsByName marshals as {} rather than null when
// empty, matching the documented shape for a zero-tool-call run.
func (r AgentRunResult) MarshalJSON() ([]byte, error) {
	type alias AgentRunResult
	byName := r.ToolCallsByName
	if byName == nil {
		byName = map[string]int{}
	}
	steps := r.Steps
	if steps == nil {
		steps = []StepResult{}
	}
	return json.Marshal(struct {
		alias
		Steps           []StepResult   `json:"steps"`
		ToolCallsByName map[string]int `json:"tool_calls_by_name"`
	}{
		alias:           alias(r),
		Steps:           steps,
		ToolCallsByName: byName,
	})
}
