// Package hooks defines the streaming event types the run controller
// emits during a run (§4.H) and a publish/subscribe Bus for delivering
// them. The stream package sends these events, in order, on a channel
// the caller consumes; agent.Agent.RunStream can also publish each one
// to a Bus.
package hooks

import (
	"github.com/loopforge/agentrun/trace"
)

// EventType discriminates the concrete Event implementations.
type EventType string

const (
	EventStepStarted      EventType = "step_started"
	EventDelta            EventType = "delta"
	EventToolCallStarted  EventType = "tool_call_started"
	EventToolCallFinished EventType = "tool_call_finished"
	EventStepFinished     EventType = "step_finished"
	EventRunFinished      EventType = "run_finished"
)

// Event is the interface every published event implements. Subscribers
// type-switch on the concrete type to access event-specific fields.
type Event interface {
	Type() EventType
	RunID() string
}

type base struct {
	runID string
}

func (b base) RunID() string { return b.runID }

type (
	// StepStartedEvent fires when a Think-Act-Observe iteration begins.
	StepStartedEvent struct {
		base
		Step int
	}

	// DeltaEvent carries one incremental text fragment from the Think
	// phase of the current step. Zero or more Delta events occur between
	// a StepStarted and its StepFinished (§4.H).
	DeltaEvent struct {
		base
		Step int
		Text string
	}

	// ToolCallStartedEvent fires immediately before a tool call is
	// dispatched.
	ToolCallStartedEvent struct {
		base
		Step     int
		ToolName string
		CallID   string
	}

	// ToolCallFinishedEvent fires once a tool call's ToolCallRecord is
	// available.
	ToolCallFinishedEvent struct {
		base
		Step   int
		Record trace.ToolCallRecord
	}

	// StepFinishedEvent fires once a step's StepResult is fully
	// assembled.
	StepFinishedEvent struct {
		base
		Result trace.StepResult
	}

	// RunFinishedEvent fires exactly once, last, carrying the completed
	// AgentRunResult.
	RunFinishedEvent struct {
		base
		Result trace.AgentRunResult
	}
)

func (StepStartedEvent) Type() EventType      { return EventStepStarted }
func (DeltaEvent) Type() EventType            { return EventDelta }
func (ToolCallStartedEvent) Type() EventType   { return EventToolCallStarted }
func (ToolCallFinishedEvent) Type() EventType  { return EventToolCallFinished }
func (StepFinishedEvent) Type() EventType      { return EventStepFinished }
func (RunFinishedEvent) Type() EventType       { return EventRunFinished }

// NewStepStarted builds a StepStartedEvent.
func NewStepStarted(runID string, step int) StepStartedEvent {
	return StepStartedEvent{base: base{runID: runID}, Step: step}
}

// NewDelta builds a DeltaEvent.
func NewDelta(runID string, step int, text string) DeltaEvent {
	return DeltaEvent{base: base{runID: runID}, Step: step, Text: text}
}

// NewToolCallStarted builds a ToolCallStartedEvent.
func NewToolCallStarted(runID string, step int, toolName, callID string) ToolCallStartedEvent {
	return ToolCallStartedEvent{base: base{runID: runID}, Step: step, ToolName: toolName, CallID: callID}
}

// NewToolCallFinished builds a ToolCallFinishedEvent.
func NewToolCallFinished(runID string, step int, record trace.ToolCallRecord) ToolCallFinishedEvent {
	return ToolCallFinishedEvent{base: base{runID: runID}, Step: step, Record: record}
}

// NewStepFinished builds a StepFinishedEvent.
func NewStepFinished(runID string, result trace.StepResult) StepFinishedEvent {
	return StepFinishedEvent{base: base{runID: runID}, Result: result}
}

// NewRunFinished builds a RunFinishedEvent.
func NewRunFinished(runID string, result trace.AgentRunResult) RunFinishedEvent {
	return RunFinishedEvent{base: base{runID: runID}, Result: result}
}
