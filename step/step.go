// Package step implements the Think-Act-Observe iteration (§4.F): one
// model call, fan-out of the tool calls it requested, and assembly of
// one trace.StepResult. A Run controller drives this repeatedly until
// the run terminates.
package step

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/loopforge/agentrun/agenterrors"
	"github.com/loopforge/agentrun/memory"
	"github.com/loopforge/agentrun/message"
	"github.com/loopforge/agentrun/modelclient"
	"github.com/loopforge/agentrun/telemetry"
	"github.com/loopforge/agentrun/toolcall"
	"github.com/loopforge/agentrun/tools"
	"github.com/loopforge/agentrun/trace"
)

// Options configures one Executor.
type Options struct {
	// Model is the provider-specific model identifier passed through to
	// modelclient.Request.Model.
	Model string
	// Temperature is forwarded to modelclient.Request.Temperature.
	Temperature float32
	// MaxTokens is forwarded to modelclient.Request.MaxTokens.
	MaxTokens int
	// ParallelToolCalls enables concurrent dispatch of the tool calls
	// within one step (§4.F.4). Results are always collated back into
	// model-emitted order regardless of this setting.
	ParallelToolCalls bool
	// PerToolTimeout bounds a single tool invocation. Zero selects the
	// default of 30 seconds (§6 configuration table).
	PerToolTimeout time.Duration
	// ToolChoice is forwarded to modelclient.Request.ToolChoice. The zero
	// value behaves like modelclient.ToolChoiceAuto.
	ToolChoice modelclient.ToolChoice
	// Verbose enables additional Debug-level logging of the Think/Act
	// phases via the executor's Logger (§6 configuration table).
	Verbose bool
}

func (o Options) perToolTimeout() time.Duration {
	if o.PerToolTimeout <= 0 {
		return 30 * time.Second
	}
	return o.PerToolTimeout
}

// Executor performs one Think-Act-Observe iteration per Run call. It is
// safe for concurrent use across runs; it holds no per-run state.
type Executor struct {
	model    modelclient.Client
	registry *tools.Registry
	logger   telemetry.Logger
	tracer   telemetry.Tracer
	metrics  telemetry.Metrics
}

// Option customizes an Executor.
type Option func(*Executor)

// WithLogger configures the executor's logger. Defaults to a no-op.
func WithLogger(l telemetry.Logger) Option { return func(e *Executor) { e.logger = l } }

// WithTracer configures the executor's tracer. Defaults to a no-op.
func WithTracer(t telemetry.Tracer) Option { return func(e *Executor) { e.tracer = t } }

// WithMetrics configures the executor's metrics sink. Defaults to a no-op.
func WithMetrics(m telemetry.Metrics) Option { return func(e *Executor) { e.metrics = m } }

// New builds an Executor bound to model and registry.
func New(model modelclient.Client, registry *tools.Registry, opts ...Option) *Executor {
	e := &Executor{
		model:    model,
		registry: registry,
		logger:   telemetry.NoopLogger{},
		tracer:   telemetry.NoopTracer{},
		metrics:  telemetry.NoopMetrics{},
	}
	for _, o := range opts {
		if o != nil {
			o(e)
		}
	}
	return e
}

// Observer receives fine-grained notifications during one step, for
// callers building a streaming view (§4.H) on top of the otherwise
// synchronous Run call. RunObserved calls each method synchronously, so a
// slow method delays the step; with ParallelToolCalls the tool-call
// methods may be called from several goroutines at once. A nil Observer
// is ignored.
type Observer interface {
	// ThoughtReady fires once Think produces assistant text for a turn
	// that also requested tool calls, before any of those calls are
	// dispatched. A turn with no tool calls never triggers this; its
	// text surfaces as the step's Thought result instead (§4.H ordering:
	// StepStarted, Delta*, ToolCallStarted, ToolCallFinished, StepFinished).
	ThoughtReady(text string)
	// ToolCallStarted fires immediately before a tool call is dispatched.
	ToolCallStarted(callID, toolName string)
	// ToolCallFinished fires once a tool call's record is available.
	ToolCallFinished(record trace.ToolCallRecord)
}

// Run performs one iteration against the current memory snapshot,
// appending whatever messages the iteration produces, and returns the
// resulting StepResult. stepIndex is 1-based, matching trace.StepResult.Step.
func (e *Executor) Run(ctx context.Context, runID string, stepIndex int, store memory.Store, retention memory.Retention, opts Options) (trace.StepResult, error) {
	return e.RunObserved(ctx, runID, stepIndex, store, retention, opts, nil)
}

// RunObserved behaves exactly like Run but additionally notifies obs of
// tool-call boundaries as they occur, so a streaming caller can forward
// ToolCallStarted/ToolCallFinished events without waiting for the whole
// step to finish.
func (e *Executor) RunObserved(ctx context.Context, runID string, stepIndex int, store memory.Store, retention memory.Retention, opts Options, obs Observer) (trace.StepResult, error) {
	ctx, span := e.tracer.Start(ctx, "step.run", oteltrace.WithAttributes(
		attribute.String("agentrun.run_id", runID),
		attribute.Int("agentrun.step", stepIndex),
	))
	defer span.End()

	started := time.Now()

	// Think.
	history, err := store.Load(ctx, runID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load memory failed")
		return trace.StepResult{}, fmt.Errorf("step: load memory: %w", err)
	}
	if retention != nil {
		history = retention.Apply(history)
	}

	req := modelclient.Request{
		Model:             opts.Model,
		Messages:          history,
		Temperature:       opts.Temperature,
		Tools:             toolDefinitions(e.registry),
		MaxTokens:         opts.MaxTokens,
		ParallelToolCalls: opts.ParallelToolCalls,
		ToolChoice:        opts.ToolChoice,
	}
	if opts.Verbose {
		e.logger.Debug(ctx, "step: invoking model", "run_id", runID, "step", stepIndex, "model", opts.Model, "tool_choice", string(opts.ToolChoice))
	}
	resp, err := e.model.Complete(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "model completion failed")
		return trace.StepResult{}, err
	}

	assistantMsg := message.NewAssistant(message.AssistantContent{
		Text:         resp.Text,
		ToolCalls:    resp.ToolCalls,
		Usage:        &resp.Usage,
		FinishReason: resp.FinishReason,
	})
	if err := store.Append(ctx, runID, assistantMsg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "append assistant message failed")
		return trace.StepResult{}, fmt.Errorf("step: append assistant message: %w", err)
	}

	usage := &trace.UsageStats{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}

	// Decide.
	if len(resp.ToolCalls) == 0 {
		var thought *string
		if resp.Text != "" {
			thought = &resp.Text
		}
		e.metrics.RecordTimer("agentrun.step.duration", time.Since(started), "finish_reason", "stop")
		span.SetStatus(codes.Ok, "")
		return trace.StepResult{
			Step:         stepIndex,
			Thought:      thought,
			ToolCalls:    []trace.ToolCallRecord{},
			Usage:        usage,
			FinishReason: trace.FinishStop,
		}, nil
	}

	// Act.
	if resp.Text != "" && obs != nil {
		obs.ThoughtReady(resp.Text)
	}
	if opts.Verbose {
		e.logger.Debug(ctx, "step: dispatching tool calls", "run_id", runID, "step", stepIndex, "count", len(resp.ToolCalls))
	}
	records, resultMsgs := e.act(ctx, runID, resp.ToolCalls, opts, obs)
	if err := store.Append(ctx, runID, resultMsgs...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "append tool results failed")
		return trace.StepResult{}, fmt.Errorf("step: append tool results: %w", err)
	}

	var thought *string
	if resp.Text != "" {
		thought = &resp.Text
	}
	e.metrics.RecordTimer("agentrun.step.duration", time.Since(started), "finish_reason", "tool_calls")
	span.SetStatus(codes.Ok, "")
	return trace.StepResult{
		Step:         stepIndex,
		Thought:      thought,
		ToolCalls:    records,
		Usage:        usage,
		FinishReason: trace.FinishToolCalls,
	}, nil
}

// act executes every tool call requested by the model, in model-emitted
// order, honoring opts.ParallelToolCalls. It returns the ToolCallRecord
// for each call (preserving model-emitted order) and the corresponding
// ToolResult messages to append to memory.
func (e *Executor) act(ctx context.Context, runID string, calls []message.ToolCallRequest, opts Options, obs Observer) ([]trace.ToolCallRecord, []message.Message) {
	records := make([]trace.ToolCallRecord, len(calls))
	msgs := make([]message.Message, len(calls))

	run := func(i int) {
		if obs != nil {
			obs.ToolCallStarted(calls[i].CallID, calls[i].Name)
		}
		records[i], msgs[i] = e.execOne(ctx, runID, calls[i], opts.perToolTimeout())
		if obs != nil {
			obs.ToolCallFinished(records[i])
		}
	}

	if opts.ParallelToolCalls && len(calls) > 1 {
		var wg sync.WaitGroup
		wg.Add(len(calls))
		for i := range calls {
			i := i
			go func() {
				defer wg.Done()
				run(i)
			}()
		}
		wg.Wait()
	} else {
		for i := range calls {
			run(i)
		}
	}

	return records, msgs
}

// execOne executes a single normalized tool call and returns its
// ToolCallRecord and ToolResult message. A missing tool, a malformed
// argument decode, or a tool error are all recorded as an error result;
// none of them abort the step (§4.F.3, §7).
func (e *Executor) execOne(ctx context.Context, runID string, raw message.ToolCallRequest, timeout time.Duration) (trace.ToolCallRecord, message.Message) {
	ctx, span := e.tracer.Start(ctx, "step.tool_call", oteltrace.WithAttributes(
		attribute.String("agentrun.run_id", runID),
		attribute.String("agentrun.tool", raw.Name),
		attribute.String("agentrun.call_id", raw.CallID),
	))
	defer span.End()

	tc, err := toolcall.Normalize(toolcall.Raw{
		CallID:    raw.CallID,
		Name:      raw.Name,
		Arguments: raw.Arguments,
	})
	if err != nil {
		decodeErr := &agenterrors.ToolArgumentDecodeError{CallID: raw.CallID, Name: raw.Name, Cause: err}
		span.RecordError(decodeErr)
		span.SetStatus(codes.Error, "tool argument decode failed")
		return e.errorResult(raw.CallID, raw.Name, time.Now(), decodeErr.Error())
	}

	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resultCh := make(chan dispatchOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- dispatchOutcome{err: &agenterrors.ToolExecutionError{
					CallID: tc.CallID, Name: tc.Name, Cause: fmt.Errorf("panic: %v", r),
				}}
			}
		}()
		result, err := e.registry.Dispatch(callCtx, tc.Name, tc.Arguments)
		resultCh <- dispatchOutcome{result: result, err: err}
	}()

	var outcome dispatchOutcome
	select {
	case outcome = <-resultCh:
	case <-callCtx.Done():
		e.logger.Warn(ctx, "tool call timed out", "tool", tc.Name, "call_id", tc.CallID, "timeout_ms", timeout.Milliseconds())
		outcome = dispatchOutcome{err: &agenterrors.ToolExecutionError{CallID: tc.CallID, Name: tc.Name, Cause: callCtx.Err()}}
	}
	duration := time.Since(start)

	if outcome.err != nil {
		var notFound *tools.NotFoundError
		var schemaErr *tools.SchemaValidationError
		msg := outcome.err.Error()
		switch {
		case errors.As(outcome.err, &notFound):
			msg = fmt.Sprintf("unknown tool: %s", tc.Name)
		case errors.As(outcome.err, &schemaErr):
			// keep schemaErr.Error() verbatim, already descriptive
		default:
			wrapped := &agenterrors.ToolExecutionError{CallID: tc.CallID, Name: tc.Name, Cause: outcome.err}
			msg = wrapped.Error()
		}
		span.RecordError(outcome.err)
		span.SetStatus(codes.Error, "tool execution failed")
		record, resultMsg := e.errorResult(tc.CallID, tc.Name, start, msg)
		record.Arguments = tc.Arguments
		record.DurationMs = float64(duration.Microseconds()) / 1000.0
		return record, resultMsg
	}

	span.SetStatus(codes.Ok, "")
	record := trace.ToolCallRecord{
		ToolName:   tc.Name,
		CallID:     tc.CallID,
		Arguments:  tc.Arguments,
		Result:     message.Text(outcome.result.Content),
		IsError:    outcome.result.IsError,
		DurationMs: float64(duration.Microseconds()) / 1000.0,
		Timestamp:  start,
	}
	resultMsg := message.NewToolResult(tc.CallID, outcome.result.Content, outcome.result.IsError)
	return record, resultMsg
}

type dispatchOutcome struct {
	result message.ToolResultContent
	err    error
}

func (e *Executor) errorResult(callID, name string, ts time.Time, text string) (trace.ToolCallRecord, message.Message) {
	record := trace.ToolCallRecord{
		ToolName:  name,
		CallID:    callID,
		Result:    text,
		IsError:   true,
		Timestamp: ts,
	}
	resultMsg := message.NewToolResult(callID, []message.ContentBlock{message.TextBlock{Text: text}}, true)
	return record, resultMsg
}

func toolDefinitions(registry *tools.Registry) []modelclient.ToolDefinition {
	if registry == nil {
		return nil
	}
	schemas := registry.Schemas()
	defs := make([]modelclient.ToolDefinition, 0, len(schemas))
	for _, s := range schemas {
		defs = append(defs, modelclient.ToolDefinition{
			Name:        s.Name,
			Description: s.Description,
			InputSchema: s.InputSchema,
		})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}
