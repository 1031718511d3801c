package runctl_test

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/loopforge/agentrun/memory/inmem"
	"github.com/loopforge/agentrun/message"
	"github.com/loopforge/agentrun/modelclient"
	"github.com/loopforge/agentrun/runctl"
	"github.com/loopforge/agentrun/tools"
	"github.com/loopforge/agentrun/trace"
)

// scriptedStep is one entry of a generated model script: either a step
// with toolCalls tool calls (continuing the run) or, when toolCalls==0,
// a final stop turn.
type scriptedStep struct {
	toolCalls int
}

// scriptForRun turns a generated (maxIterations, stopAt) pair into a
// model response script: stopAt-1 tool-call turns followed by a stop
// turn (stopAt capped at maxIterations), or maxIterations tool-call
// turns with no stop turn at all when stopAt is 0 (forcing
// max_iterations_reached).
func scriptForRun(maxIterations, stopAt int) []modelclient.Response {
	n := maxIterations
	if stopAt > 0 && stopAt < maxIterations {
		n = stopAt
	}
	script := make([]modelclient.Response, 0, n)
	for i := 0; i < n-1; i++ {
		script = append(script, toolCallResponse(i))
	}
	if stopAt > 0 {
		script = append(script, modelclient.Response{Text: "done", FinishReason: message.FinishStop})
	} else {
		script = append(script, toolCallResponse(n-1))
	}
	return script
}

func toolCallResponse(i int) modelclient.Response {
	return modelclient.Response{
		ToolCalls: []message.ToolCallRequest{
			{CallID: message.NewID(), Name: "add", Arguments: map[string]any{"a": float64(i), "b": 1.0}},
		},
		FinishReason: message.FinishToolCalls,
	}
}

// TestRunRespectsMaxIterationsAndCountsToolCalls checks P2 (len(steps) <=
// max_iterations, and a completed run's last step is a clean stop) and P4
// (tool_calls_total aggregates exactly the per-step tool call counts)
// across randomly generated run lengths and stop points.
func TestRunRespectsMaxIterationsAndCountsToolCalls(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("len(steps) <= max_iterations, and tool_calls_total matches steps", prop.ForAll(
		func(maxIterations, stopAt int) bool {
			registry := tools.NewRegistry()
			if err := registry.Register(addTool()); err != nil {
				return false
			}
			model := &scriptedModel{responses: scriptForRun(maxIterations, stopAt)}
			store := inmem.New()
			ctl := runctl.New("assistant", model, registry, store)

			result, err := ctl.Run(context.Background(), "conv", message.NewUser("go"), runctl.Options{
				Model:         "m",
				MaxIterations: maxIterations,
			})
			if err != nil {
				return false
			}

			if len(result.Steps) > maxIterations {
				return false
			}
			if result.Status == trace.RunStatusCompleted {
				last := result.Steps[len(result.Steps)-1]
				if last.FinishReason != trace.FinishStop || len(last.ToolCalls) != 0 {
					return false
				}
			}

			wantTotal := 0
			wantByName := map[string]int{}
			for _, step := range result.Steps {
				wantTotal += len(step.ToolCalls)
				for _, tc := range step.ToolCalls {
					wantByName[tc.ToolName]++
				}
			}
			if result.ToolCallsTotal != wantTotal {
				return false
			}
			if len(result.ToolCallsByName) != len(wantByName) {
				return false
			}
			for name, count := range wantByName {
				if result.ToolCallsByName[name] != count {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 6),
		gen.IntRange(0, 6),
	))

	properties.TestingRun(t)
}
