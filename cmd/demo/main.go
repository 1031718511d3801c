// Command demo wires a toy model client and an echo tool into an Agent
// and runs a single turn, printing the resulting trace. It exists to show
// the minimal construction path end to end, the way the teacher's own
// demo wires a stub planner into a runtime and prints the run's output.
package main

import (
	"context"
	"fmt"

	"github.com/loopforge/agentrun/agent"
	"github.com/loopforge/agentrun/memory/inmem"
	"github.com/loopforge/agentrun/message"
	"github.com/loopforge/agentrun/modelclient"
	"github.com/loopforge/agentrun/runctl"
	"github.com/loopforge/agentrun/telemetry"
	"github.com/loopforge/agentrun/tools"
	"goa.design/clue/log"
)

// echoModel is a fixed-response model client: it answers the first turn
// by calling the "echo" tool, then answers the second turn with the tool
// result folded into a final message.
type echoModel struct{ calls int }

func (m *echoModel) Complete(_ context.Context, req modelclient.Request) (modelclient.Response, error) {
	m.calls++
	if m.calls == 1 {
		return modelclient.Response{
			ToolCalls: []message.ToolCallRequest{
				{CallID: "call_1", Name: "echo", Arguments: map[string]any{"text": "hi"}},
			},
			FinishReason: message.FinishToolCalls,
		}, nil
	}
	last := req.Messages[len(req.Messages)-1]
	return modelclient.Response{
		Text:         "tool said: " + message.Text(last.ToolResult.Content),
		FinishReason: message.FinishStop,
	}, nil
}

func (m *echoModel) Stream(context.Context, modelclient.Request) (modelclient.Streamer, error) {
	return nil, modelclient.ErrStreamingUnsupported
}

func (m *echoModel) CountTokens(context.Context, modelclient.Request) (int, error) {
	return 0, nil
}

func echoTool() tools.Func {
	return tools.Func{
		ToolSchema: tools.Schema{
			Name:        "echo",
			Description: "Returns the text argument unchanged.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"text": map[string]any{"type": "string"}},
				"required":   []any{"text"},
			},
		},
		Fn: func(_ context.Context, args map[string]any) (message.ToolResultContent, error) {
			text, _ := args["text"].(string)
			return message.ToolResultContent{Content: []message.ContentBlock{message.TextBlock{Text: text}}}, nil
		},
	}
}

func main() {
	ctx := log.Context(context.Background(), log.WithFormat(log.FormatTerminal))

	registry := tools.NewRegistry()
	if err := registry.Register(echoTool()); err != nil {
		panic(err)
	}

	a := agent.New("demo.agent", &echoModel{}, registry, inmem.New(),
		agent.WithLogger(telemetry.NewClueLogger()),
	)

	result, err := a.Run(ctx, "session-1", message.NewUser("Say hi"), runctl.Options{Model: "demo"})
	if err != nil {
		panic(err)
	}

	fmt.Println("RunID:", result.RunID)
	fmt.Println("Status:", result.Status)
	fmt.Println("Output:", result.Output)
	fmt.Println("ToolCallsTotal:", result.ToolCallsTotal)
}
