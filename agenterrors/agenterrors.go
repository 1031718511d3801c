// Package agenterrors defines the run-level error taxonomy (§7).
// Two failure classes exist: errors recorded inline as an error
// ToolResult so the run loop continues, and errors that terminate the
// run, each with the RunStatus its type documents.
package agenterrors

import (
	"context"
	"errors"
	"fmt"
)

// ToolArgumentDecodeError reports that a tool call's arguments could not
// be decoded into the shape tools.Registry.Dispatch expects. Recorded as
// an error ToolResult; the run continues (§7).
type ToolArgumentDecodeError struct {
	CallID string
	Name   string
	Cause  error
}

func (e *ToolArgumentDecodeError) Error() string {
	return fmt.Sprintf("agenterrors: tool call %s (%s): decode arguments: %v", e.CallID, e.Name, e.Cause)
}

func (e *ToolArgumentDecodeError) Unwrap() error { return e.Cause }

// ToolExecutionError wraps a panic or returned error from a Tool's
// Execute method. Recorded as an error ToolResult; the run continues
// (§7).
type ToolExecutionError struct {
	CallID string
	Name   string
	Cause  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("agenterrors: tool call %s (%s): execution failed: %v", e.CallID, e.Name, e.Cause)
}

func (e *ToolExecutionError) Unwrap() error { return e.Cause }

// MaxIterationsExceeded describes a run whose step budget was exhausted
// without the model producing a final answer. The run controllers do not
// return it: they end such a run with RunStatusMaxIterationsReached, not
// RunStatusError, and a nil error (§4.G, §7).
type MaxIterationsExceeded struct {
	MaxIterations int
}

func (e *MaxIterationsExceeded) Error() string {
	return fmt.Sprintf("agenterrors: exceeded max_iterations (%d)", e.MaxIterations)
}

// Cancelled reports that the caller's context was cancelled mid-run. The
// run terminates with RunStatusCancelled (§4.G, §7).
type Cancelled struct {
	Cause error
}

func (e *Cancelled) Error() string {
	return fmt.Sprintf("agenterrors: run cancelled: %v", e.Cause)
}

func (e *Cancelled) Unwrap() error { return e.Cause }

// DeadlineExceeded reports that the overall run timeout elapsed mid-run.
// Unlike Cancelled, this terminates the run with RunStatusError and
// populates AgentRunResult.Error with "deadline_exceeded" (§7) rather
// than RunStatusCancelled.
type DeadlineExceeded struct {
	Cause error
}

func (e *DeadlineExceeded) Error() string {
	return fmt.Sprintf("agenterrors: run deadline exceeded: %v", e.Cause)
}

func (e *DeadlineExceeded) Unwrap() error { return e.Cause }

// FromContextErr converts ctx.Err() into the appropriate terminal error,
// or nil if ctx carries no error.
func FromContextErr(ctx context.Context) error {
	switch err := ctx.Err(); {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return &DeadlineExceeded{Cause: err}
	default:
		return &Cancelled{Cause: err}
	}
}
