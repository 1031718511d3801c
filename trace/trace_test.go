package trace_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/loopforge/agentrun/trace"
)

func strPtr(s string) *string { return &s }

func TestStepResultHasToolCallsDerived(t *testing.T) {
	empty := trace.StepResult{FinishReason: trace.FinishStop}
	require.False(t, empty.HasToolCalls())

	withCall := trace.StepResult{
		ToolCalls: []trace.ToolCallRecord{{ToolName: "add", CallID: "tc_1"}},
	}
	require.True(t, withCall.HasToolCalls())
}

func TestUsageStatsAdd(t *testing.T) {
	a := trace.UsageStats{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}
	b := trace.UsageStats{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3}
	sum := a.Add(b)
	require.Equal(t, trace.UsageStats{PromptTokens: 11, CompletionTokens: 7, TotalTokens: 18}, sum)
}

func TestAggregateUsageSkipsNilAndSums(t *testing.T) {
	steps := []trace.StepResult{
		{Usage: &trace.UsageStats{PromptTokens: 10, TotalTokens: 10}},
		{Usage: nil},
		{Usage: &trace.UsageStats{PromptTokens: 5, TotalTokens: 5}},
	}
	got := trace.AggregateUsage(steps)
	require.Equal(t, trace.UsageStats{PromptTokens: 15, TotalTokens: 15}, got)
}

func TestCountToolCallsAggregatesByName(t *testing.T) {
	steps := []trace.StepResult{
		{ToolCalls: []trace.ToolCallRecord{{ToolName: "add"}, {ToolName: "search"}}},
		{ToolCalls: []trace.ToolCallRecord{{ToolName: "add"}}},
	}
	total, byName := trace.CountToolCalls(steps)
	require.Equal(t, 3, total)
	require.Equal(t, map[string]int{"add": 2, "search": 1}, byName)
}

func TestCountToolCallsEmpty(t *testing.T) {
	total, byName := trace.CountToolCalls(nil)
	require.Equal(t, 0, total)
	require.Equal(t, map[string]int{}, byName)
}

func TestAgentRunResultRoundTrip(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Second)
	result := trace.AgentRunResult{
		RunID:     "11111111-1111-1111-1111-111111111111",
		AgentName: "assistant",
		Output:    "5",
		Status:    trace.RunStatusCompleted,
		Steps: []trace.StepResult{
			{
				Step:    1,
				Thought: nil,
				ToolCalls: []trace.ToolCallRecord{
					{
						ToolName:   "add",
						CallID:     "tc_1",
						Arguments:  map[string]any{"a": float64(2), "b": float64(3)},
						Result:     `{"sum":5}`,
						IsError:    false,
						DurationMs: 1.5,
						Timestamp:  start,
					},
				},
				Usage:        &trace.UsageStats{PromptTokens: 20, CompletionTokens: 4, TotalTokens: 24},
				FinishReason: trace.FinishToolCalls,
			},
			{
				Step:         2,
				Thought:      strPtr("5"),
				ToolCalls:    []trace.ToolCallRecord{},
				Usage:        &trace.UsageStats{PromptTokens: 30, CompletionTokens: 1, TotalTokens: 31},
				FinishReason: trace.FinishStop,
			},
		},
		Usage:           trace.UsageStats{PromptTokens: 50, CompletionTokens: 5, TotalTokens: 55},
		ToolCallsTotal:  1,
		ToolCallsByName: map[string]int{"add": 1},
		StartTime:       start,
		EndTime:         end,
		DurationSeconds: 2,
		Error:           nil,
		MaxIterations:   10,
	}

	first, err := json.Marshal(result)
	require.NoError(t, err)

	var decoded trace.AgentRunResult
	require.NoError(t, json.Unmarshal(first, &decoded))

	second, err := json.Marshal(decoded)
	require.NoError(t, err)
	require.JSONEq(t, string(first), string(second))
}

func TestAgentRunResultMarshalDefaultsEmptyCollections(t *testing.T) {
	result := trace.AgentRunResult{
		RunID:     "11111111-1111-1111-1111-111111111111",
		AgentName: "assistant",
		Status:    trace.RunStatusCompleted,
	}
	data, err := json.Marshal(result)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, []any{}, decoded["steps"])
	require.Equal(t, map[string]any{}, decoded["tool_calls_by_name"])
}

func TestAgentRunResultCanonicalFieldNames(t *testing.T) {
	result := trace.AgentRunResult{
		RunID:           "r1",
		AgentName:       "a",
		Output:          "hi",
		Status:          trace.RunStatusError,
		Usage:           trace.UsageStats{},
		ToolCallsByName: map[string]int{},
		Error:           strPtr("deadline_exceeded"),
		MaxIterations:   10,
	}
	data, err := json.Marshal(result)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	for _, key := range []string{
		"run_id", "agent_name", "output", "status", "steps", "usage",
		"tool_calls_total", "tool_calls_by_name", "start_time", "end_time",
		"duration_seconds", "error", "max_iterations",
	} {
		require.Contains(t, decoded, key)
	}
	require.Equal(t, "deadline_exceeded", decoded["error"])
}
