// Package stream implements the streaming variant of the run controller
// (§4.H): the same Think-Act-Observe loop as runctl, but yielding a
// lazy, finite, cancellable sequence of hooks.Event values in place of a
// single returned AgentRunResult. Event ordering is total within a run:
// StepStarted, zero or more Delta, ToolCallStarted/ToolCallFinished per
// tool call, StepFinished, repeated per step, and finally one
// RunFinished.
package stream

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/loopforge/agentrun/agenterrors"
	"github.com/loopforge/agentrun/hooks"
	"github.com/loopforge/agentrun/memory"
	"github.com/loopforge/agentrun/message"
	"github.com/loopforge/agentrun/modelclient"
	"github.com/loopforge/agentrun/runctl"
	"github.com/loopforge/agentrun/step"
	"github.com/loopforge/agentrun/telemetry"
	"github.com/loopforge/agentrun/tools"
	"github.com/loopforge/agentrun/trace"
)

// newRunID returns a fresh UUID v4 string for AgentRunResult.RunID.
// Exposed as a var so tests can substitute a deterministic generator.
var newRunID = uuid.NewString

// Controller drives runs exactly like runctl.Controller but emits
// hooks.Event values as it goes instead of returning only a final
// result.
//
// Token-level Delta events require a provider streaming transport; none
// of the modelclient adapters implement Stream yet (each returns
// modelclient.ErrStreamingUnsupported, see their Complete-only design
// notes), so this Controller degrades gracefully: it calls Complete for
// the Think phase and emits the full assistant text as a single Delta,
// keeping the event sequence's ordering and cardinality contract intact
// even though no provider-side incremental streaming is wired yet.
type Controller struct {
	model     modelclient.Client
	registry  *tools.Registry
	executor  *step.Executor
	store     memory.Store
	retention memory.Retention
	agentName string
	logger    telemetry.Logger
	tracer    telemetry.Tracer
	metrics   telemetry.Metrics
}

// Option customizes a Controller.
type Option func(*Controller)

// WithRetention sets the Retention applied to memory before every model call.
func WithRetention(r memory.Retention) Option { return func(c *Controller) { c.retention = r } }

// WithLogger configures the controller's logger. Defaults to a no-op.
func WithLogger(l telemetry.Logger) Option { return func(c *Controller) { c.logger = l } }

// WithTracer configures the controller's tracer. Defaults to a no-op.
func WithTracer(t telemetry.Tracer) Option { return func(c *Controller) { c.tracer = t } }

// WithMetrics configures the controller's metrics sink. Defaults to a no-op.
func WithMetrics(m telemetry.Metrics) Option { return func(c *Controller) { c.metrics = m } }

// New builds a streaming Controller for agentName.
func New(agentName string, model modelclient.Client, registry *tools.Registry, store memory.Store, opts ...Option) *Controller {
	c := &Controller{
		model:     model,
		registry:  registry,
		store:     store,
		retention: memory.NoRetention{},
		agentName: agentName,
		logger:    telemetry.NoopLogger{},
		tracer:    telemetry.NoopTracer{},
		metrics:   telemetry.NoopMetrics{},
	}
	for _, o := range opts {
		if o != nil {
			o(c)
		}
	}
	c.executor = step.New(model, registry,
		step.WithLogger(c.logger),
		step.WithTracer(c.tracer),
		step.WithMetrics(c.metrics),
	)
	return c
}

// eventObserver adapts step.Observer to publish hooks events inline as
// tool calls start and finish.
type eventObserver struct {
	runID string
	step  int
	ch    chan<- hooks.Event
}

func (o eventObserver) ThoughtReady(text string) {
	o.ch <- hooks.NewDelta(o.runID, o.step, text)
}

func (o eventObserver) ToolCallStarted(callID, toolName string) {
	o.ch <- hooks.NewToolCallStarted(o.runID, o.step, toolName, callID)
}

func (o eventObserver) ToolCallFinished(record trace.ToolCallRecord) {
	o.ch <- hooks.NewToolCallFinished(o.runID, o.step, record)
}

// Run streams one run's events on the returned channel, which is closed
// once RunFinished has been sent or ctx is done. The caller must drain
// the channel; Run's goroutine blocks on an unbuffered send until it
// does (§4.C backpressure contract, applied uniformly to this package).
func (c *Controller) Run(ctx context.Context, memoryKey string, userInput message.Message, opts runctl.Options) <-chan hooks.Event {
	ch := make(chan hooks.Event)
	go c.run(ctx, memoryKey, userInput, opts, ch)
	return ch
}

func (c *Controller) run(ctx context.Context, memoryKey string, userInput message.Message, opts runctl.Options, ch chan<- hooks.Event) {
	defer close(ch)

	if opts.OverallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.OverallTimeout)
		defer cancel()
	}

	runID := newRunID()
	startTime := time.Now().UTC()
	maxIterations := opts.MaxIterationsOrDefault()
	stepOpts := opts.StepOptions()

	existing, err := c.store.Load(ctx, memoryKey)
	if err != nil {
		c.emitError(ch, runID, c.agentName, startTime, maxIterations, err)
		return
	}
	if len(existing) == 0 && opts.SystemInstruction != "" {
		if err := c.store.Append(ctx, memoryKey, message.NewSystem(opts.SystemInstruction)); err != nil {
			c.emitError(ch, runID, c.agentName, startTime, maxIterations, err)
			return
		}
	}
	if err := c.store.Append(ctx, memoryKey, userInput); err != nil {
		c.emitError(ch, runID, c.agentName, startTime, maxIterations, err)
		return
	}

	var (
		steps    []trace.StepResult
		status   trace.RunStatus
		output   string
		errMsg   *string
		lastStep *trace.StepResult
	)

loop:
	for i := 1; i <= maxIterations; i++ {
		if ctxErr := agenterrors.FromContextErr(ctx); ctxErr != nil {
			switch ctxErr.(type) {
			case *agenterrors.DeadlineExceeded:
				status = trace.RunStatusError
				msg := "deadline_exceeded"
				errMsg = &msg
			default:
				status = trace.RunStatusCancelled
			}
			break loop
		}

		select {
		case ch <- hooks.NewStepStarted(runID, i):
		case <-ctx.Done():
			status = trace.RunStatusCancelled
			break loop
		}

		obs := eventObserver{runID: runID, step: i, ch: ch}
		result, err := c.executor.RunObserved(ctx, memoryKey, i, c.store, c.retention, stepOpts, obs)
		if err != nil {
			status = trace.RunStatusError
			msg := err.Error()
			errMsg = &msg
			break loop
		}

		// A turn that also requested tool calls already had its Delta
		// emitted by eventObserver.ThoughtReady, ahead of
		// ToolCallStarted/ToolCallFinished (§4.H ordering). Only a
		// tool-call-free turn's text is emitted here.
		if len(result.ToolCalls) == 0 && result.Thought != nil && *result.Thought != "" {
			select {
			case ch <- hooks.NewDelta(runID, i, *result.Thought):
			case <-ctx.Done():
				status = trace.RunStatusCancelled
				break loop
			}
		}

		select {
		case ch <- hooks.NewStepFinished(runID, result):
		case <-ctx.Done():
			status = trace.RunStatusCancelled
			break loop
		}

		steps = append(steps, result)
		r := result
		lastStep = &r

		if result.FinishReason == trace.FinishStop {
			status = trace.RunStatusCompleted
			if result.Thought != nil {
				output = *result.Thought
			}
			break loop
		}
	}

	if status == "" {
		status = trace.RunStatusMaxIterationsReached
		if lastStep != nil && lastStep.Thought != nil {
			output = *lastStep.Thought
		}
	}

	endTime := time.Now().UTC()
	usage := trace.AggregateUsage(steps)
	total, byName := trace.CountToolCalls(steps)

	final := trace.AgentRunResult{
		RunID:           runID,
		AgentName:       c.agentName,
		Output:          output,
		Status:          status,
		Steps:           steps,
		Usage:           usage,
		ToolCallsTotal:  total,
		ToolCallsByName: byName,
		StartTime:       startTime,
		EndTime:         endTime,
		DurationSeconds: endTime.Sub(startTime).Seconds(),
		Error:           errMsg,
		MaxIterations:   maxIterations,
	}

	select {
	case ch <- hooks.NewRunFinished(runID, final):
	case <-ctx.Done():
	}
}

func (c *Controller) emitError(ch chan<- hooks.Event, runID, agentName string, startTime time.Time, maxIterations int, err error) {
	msg := err.Error()
	endTime := time.Now().UTC()
	result := trace.AgentRunResult{
		RunID:           runID,
		AgentName:       agentName,
		Status:          trace.RunStatusError,
		StartTime:       startTime,
		EndTime:         endTime,
		DurationSeconds: endTime.Sub(startTime).Seconds(),
		Error:           &msg,
		MaxIterations:   maxIterations,
		ToolCallsByName: map[string]int{},
	}
	ch <- hooks.NewRunFinished(runID, result)
}
