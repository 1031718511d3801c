package runctl

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/loopforge/agentrun/agenterrors"
	"github.com/loopforge/agentrun/message"
	"github.com/loopforge/agentrun/trace"
)

// Run drives the Think-Act-Observe loop for one user input to completion,
// following §4.G's six-step procedure. memoryKey scopes the conversation
// log; callers reusing the same key across Run calls get a continued
// conversation, while each call still produces exactly one
// AgentRunResult with its own fresh RunID.
func (c *Controller) Run(ctx context.Context, memoryKey string, userInput message.Message, opts Options) (trace.AgentRunResult, error) {
	if opts.OverallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.OverallTimeout)
		defer cancel()
	}

	ctx, span := c.tracer.Start(ctx, "runctl.run")

	runID := newRunID()
	startTime := time.Now().UTC()
	maxIterations := opts.MaxIterationsOrDefault()

	// §4.G.1: seed the system instruction once, only on a fresh log.
	existing, err := c.store.Load(ctx, memoryKey)
	if err != nil {
		return trace.AgentRunResult{}, err
	}
	if len(existing) == 0 && opts.SystemInstruction != "" {
		if err := c.store.Append(ctx, memoryKey, message.NewSystem(opts.SystemInstruction)); err != nil {
			return trace.AgentRunResult{}, err
		}
	}

	// §4.G.2: append the user message.
	if err := c.store.Append(ctx, memoryKey, userInput); err != nil {
		return trace.AgentRunResult{}, err
	}

	var (
		steps    []trace.StepResult
		status   trace.RunStatus
		output   string
		errMsg   *string
		lastStep *trace.StepResult
	)

	stepOpts := opts.StepOptions()

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

		result, err := c.executor.Run(ctx, memoryKey, i, c.store, c.retention, stepOpts)
		if err != nil {
			// An uncaught engine-level failure (not a tool failure, which
			// the step executor already converts into an error
			// ToolResult): terminate the run, recording no partial step
			// for the failing iteration (§4.G.5).
			status = trace.RunStatusError
			msg := err.Error()
			errMsg = &msg
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

	// §4.G.4: loop ran to completion without a "stop" step.
	if status == "" {
		status = trace.RunStatusMaxIterationsReached
		if lastStep != nil && lastStep.Thought != nil {
			output = *lastStep.Thought
		}
	}

	endTime := time.Now().UTC()
	usage := trace.AggregateUsage(steps)
	total, byName := trace.CountToolCalls(steps)

	result := trace.AgentRunResult{
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

	if status == trace.RunStatusError {
		span.SetStatus(codes.Error, "run terminated with error")
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()

	return result, nil
}
