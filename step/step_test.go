package step_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/loopforge/agentrun/memory/inmem"
	"github.com/loopforge/agentrun/message"
	"github.com/loopforge/agentrun/modelclient"
	"github.com/loopforge/agentrun/step"
	"github.com/loopforge/agentrun/tools"
	"github.com/loopforge/agentrun/trace"
)

type stubModel struct {
	responses []modelclient.Response
	calls     int
}

func (s *stubModel) Complete(_ context.Context, _ modelclient.Request) (modelclient.Response, error) {
	resp := s.responses[s.calls]
	s.calls++
	return resp, nil
}

func (s *stubModel) Stream(context.Context, modelclient.Request) (modelclient.Streamer, error) {
	return nil, modelclient.ErrStreamingUnsupported
}

func (s *stubModel) CountTokens(context.Context, modelclient.Request) (int, error) { return 0, nil }

func addTool() tools.Func {
	return tools.Func{
		ToolSchema: tools.Schema{
			Name:        "add",
			Description: "adds two integers",
			InputSchema: map[string]any{
				"type":     "object",
				"required": []any{"a", "b"},
				"properties": map[string]any{
					"a": map[string]any{"type": "number"},
					"b": map[string]any{"type": "number"},
				},
			},
		},
		Fn: func(_ context.Context, args map[string]any) (message.ToolResultContent, error) {
			a := args["a"].(float64)
			b := args["b"].(float64)
			return message.ToolResultContent{
				Content: []message.ContentBlock{message.TextBlock{Text: strconv.FormatFloat(a+b, 'f', -1, 64)}},
				IsError: false,
			}, nil
		},
	}
}

func TestRunNoToolCallsReturnsStop(t *testing.T) {
	model := &stubModel{responses: []modelclient.Response{
		{Text: "Hello!", FinishReason: message.FinishStop},
	}}
	registry := tools.NewRegistry()
	ex := step.New(model, registry)
	store := inmem.New()
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "run1", message.NewUser("Say hi.")))

	result, err := ex.Run(ctx, "run1", 1, store, nil, step.Options{Model: "m"})
	require.NoError(t, err)
	require.Equal(t, trace.FinishStop, result.FinishReason)
	require.Empty(t, result.ToolCalls)
	require.NotNil(t, result.Thought)
	require.Equal(t, "Hello!", *result.Thought)

	log, err := store.Load(ctx, "run1")
	require.NoError(t, err)
	require.Len(t, log, 2)
	require.Equal(t, message.RoleAssistant, log[1].Role)
}

func TestRunWithToolCallAppendsResult(t *testing.T) {
	model := &stubModel{responses: []modelclient.Response{
		{
			ToolCalls: []message.ToolCallRequest{
				{CallID: "tc_1", Name: "add", Arguments: map[string]any{"a": 3.0, "b": 5.0}},
			},
			FinishReason: message.FinishToolCalls,
		},
	}}
	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(addTool()))
	ex := step.New(model, registry)
	store := inmem.New()
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, "run1", message.NewUser("What is 3+5?")))

	result, err := ex.Run(ctx, "run1", 1, store, nil, step.Options{Model: "m"})
	require.NoError(t, err)
	require.Equal(t, trace.FinishToolCalls, result.FinishReason)
	require.Len(t, result.ToolCalls, 1)
	require.Equal(t, "add", result.ToolCalls[0].ToolName)
	require.False(t, result.ToolCalls[0].IsError)
	require.Equal(t, "8", result.ToolCalls[0].Result)

	log, err := store.Load(ctx, "run1")
	require.NoError(t, err)
	require.Len(t, log, 3)
	require.Equal(t, message.RoleToolResult, log[2].Role)
	require.Equal(t, "tc_1", log[2].ToolResult.CallID)
}

func TestRunUnknownToolRecordsErrorAndContinues(t *testing.T) {
	model := &stubModel{responses: []modelclient.Response{
		{
			ToolCalls:    []message.ToolCallRequest{{CallID: "tc_1", Name: "nope", Arguments: map[string]any{}}},
			FinishReason: message.FinishToolCalls,
		},
	}}
	registry := tools.NewRegistry()
	ex := step.New(model, registry)
	store := inmem.New()
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, "run1", message.NewUser("hi")))

	result, err := ex.Run(ctx, "run1", 1, store, nil, step.Options{Model: "m"})
	require.NoError(t, err)
	require.Len(t, result.ToolCalls, 1)
	require.True(t, result.ToolCalls[0].IsError)
	require.Equal(t, "unknown tool: nope", result.ToolCalls[0].Result)
}

func TestRunToolTimeoutRecordsError(t *testing.T) {
	blocking := tools.Func{
		ToolSchema: tools.Schema{Name: "slow"},
		Fn: func(ctx context.Context, _ map[string]any) (message.ToolResultContent, error) {
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
			}
			return message.ToolResultContent{}, ctx.Err()
		},
	}
	model := &stubModel{responses: []modelclient.Response{
		{
			ToolCalls:    []message.ToolCallRequest{{CallID: "tc_1", Name: "slow", Arguments: map[string]any{}}},
			FinishReason: message.FinishToolCalls,
		},
	}}
	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(blocking))
	ex := step.New(model, registry)
	store := inmem.New()
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, "run1", message.NewUser("hi")))

	result, err := ex.Run(ctx, "run1", 1, store, nil, step.Options{Model: "m", PerToolTimeout: 10 * time.Millisecond})
	require.NoError(t, err)
	require.True(t, result.ToolCalls[0].IsError)
}

func TestRunToolPanicRecordsErrorAndContinues(t *testing.T) {
	panicky := tools.Func{
		ToolSchema: tools.Schema{Name: "boom"},
		Fn: func(context.Context, map[string]any) (message.ToolResultContent, error) {
			panic("tool blew up")
		},
	}
	model := &stubModel{responses: []modelclient.Response{
		{
			ToolCalls:    []message.ToolCallRequest{{CallID: "tc_1", Name: "boom", Arguments: map[string]any{}}},
			FinishReason: message.FinishToolCalls,
		},
	}}
	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(panicky))
	ex := step.New(model, registry)
	store := inmem.New()
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, "run1", message.NewUser("hi")))

	result, err := ex.Run(ctx, "run1", 1, store, nil, step.Options{Model: "m"})
	require.NoError(t, err)
	require.Len(t, result.ToolCalls, 1)
	require.True(t, result.ToolCalls[0].IsError)
	require.Contains(t, result.ToolCalls[0].Result, "tool blew up")

	log, err := store.Load(ctx, "run1")
	require.NoError(t, err)
	require.Len(t, log, 3)
	require.True(t, log[2].ToolResult.IsError)
}

type recordingObserver struct {
	thoughts []string
	started  []string
	finished []trace.ToolCallRecord
}

func (o *recordingObserver) ThoughtReady(text string) {
	o.thoughts = append(o.thoughts, text)
}

func (o *recordingObserver) ToolCallStarted(callID, toolName string) {
	o.started = append(o.started, callID+":"+toolName)
}

func (o *recordingObserver) ToolCallFinished(record trace.ToolCallRecord) {
	o.finished = append(o.finished, record)
}

func TestRunObservedNilBehavesLikeRun(t *testing.T) {
	model := &stubModel{responses: []modelclient.Response{
		{Text: "Hello!", FinishReason: message.FinishStop},
	}}
	registry := tools.NewRegistry()
	ex := step.New(model, registry)
	store := inmem.New()
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, "run1", message.NewUser("Say hi.")))

	result, err := ex.RunObserved(ctx, "run1", 1, store, nil, step.Options{Model: "m"}, nil)
	require.NoError(t, err)
	require.Equal(t, trace.FinishStop, result.FinishReason)
}

func TestRunObservedNotifiesToolCallBoundaries(t *testing.T) {
	model := &stubModel{responses: []modelclient.Response{
		{
			ToolCalls: []message.ToolCallRequest{
				{CallID: "tc_1", Name: "add", Arguments: map[string]any{"a": 3.0, "b": 5.0}},
			},
			FinishReason: message.FinishToolCalls,
		},
	}}
	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(addTool()))
	ex := step.New(model, registry)
	store := inmem.New()
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, "run1", message.NewUser("What is 3+5?")))

	obs := &recordingObserver{}
	result, err := ex.RunObserved(ctx, "run1", 1, store, nil, step.Options{Model: "m"}, obs)
	require.NoError(t, err)
	require.Len(t, result.ToolCalls, 1)

	require.Equal(t, []string{"tc_1:add"}, obs.started)
	require.Len(t, obs.finished, 1)
	require.Equal(t, "tc_1", obs.finished[0].CallID)
	require.False(t, obs.finished[0].IsError)
}

func TestRunObservedSurfacesThoughtBeforeToolDispatch(t *testing.T) {
	model := &stubModel{responses: []modelclient.Response{
		{
			Text: "Let me compute that.",
			ToolCalls: []message.ToolCallRequest{
				{CallID: "tc_1", Name: "add", Arguments: map[string]any{"a": 3.0, "b": 5.0}},
			},
			FinishReason: message.FinishToolCalls,
		},
	}}
	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(addTool()))
	ex := step.New(model, registry)
	store := inmem.New()
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, "run1", message.NewUser("What is 3+5?")))

	var order []string
	obs := &orderingObserver{order: &order}
	result, err := ex.RunObserved(ctx, "run1", 1, store, nil, step.Options{Model: "m"}, obs)
	require.NoError(t, err)
	require.NotNil(t, result.Thought)
	require.Equal(t, "Let me compute that.", *result.Thought)
	require.Equal(t, []string{"thought", "started", "finished"}, order)
}

type orderingObserver struct {
	order *[]string
}

func (o *orderingObserver) ThoughtReady(string) {
	*o.order = append(*o.order, "thought")
}

func (o *orderingObserver) ToolCallStarted(string, string) {
	*o.order = append(*o.order, "started")
}

func (o *orderingObserver) ToolCallFinished(trace.ToolCallRecord) {
	*o.order = append(*o.order, "finished")
}

func TestRunParallelToolCallsPreservesOrder(t *testing.T) {
	model := &stubModel{responses: []modelclient.Response{
		{
			ToolCalls: []message.ToolCallRequest{
				{CallID: "tc_1", Name: "add", Arguments: map[string]any{"a": 1.0, "b": 1.0}},
				{CallID: "tc_2", Name: "add", Arguments: map[string]any{"a": 2.0, "b": 2.0}},
				{CallID: "tc_3", Name: "add", Arguments: map[string]any{"a": 3.0, "b": 3.0}},
			},
			FinishReason: message.FinishToolCalls,
		},
	}}
	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(addTool()))
	ex := step.New(model, registry)
	store := inmem.New()
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, "run1", message.NewUser("hi")))

	result, err := ex.Run(ctx, "run1", 1, store, nil, step.Options{Model: "m", ParallelToolCalls: true})
	require.NoError(t, err)
	require.Len(t, result.ToolCalls, 3)
	require.Equal(t, []string{"tc_1", "tc_2", "tc_3"}, []string{
		result.ToolCalls[0].CallID, result.ToolCalls[1].CallID, result.ToolCalls[2].CallID,
	})
}
