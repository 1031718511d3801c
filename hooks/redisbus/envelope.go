package redisbus

import (
	"encoding/json"
	"fmt"

	"github.com/loopforge/agentrun/hooks"
)

// envelope is the wire form for one hooks.Event crossing the Redis
// pub/sub boundary: the event type tag plus its JSON-encoded payload.
type envelope struct {
	Type    hooks.EventType `json:"type"`
	RunID   string          `json:"run_id"`
	Payload json.RawMessage `json:"payload"`
}

func encodeEnvelope(event hooks.Event) (envelope, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return envelope{}, err
	}
	return envelope{Type: event.Type(), RunID: event.RunID(), Payload: payload}, nil
}

func (e envelope) decode() (hooks.Event, error) {
	switch e.Type {
	case hooks.EventStepStarted:
		var ev hooks.StepStartedEvent
		return decodeInto(e, &ev)
	case hooks.EventDelta:
		var ev hooks.DeltaEvent
		return decodeInto(e, &ev)
	case hooks.EventToolCallStarted:
		var ev hooks.ToolCallStartedEvent
		return decodeInto(e, &ev)
	case hooks.EventToolCallFinished:
		var ev hooks.ToolCallFinishedEvent
		return decodeInto(e, &ev)
	case hooks.EventStepFinished:
		var ev hooks.StepFinishedEvent
		return decodeInto(e, &ev)
	case hooks.EventRunFinished:
		var ev hooks.RunFinishedEvent
		return decodeInto(e, &ev)
	default:
		return nil, fmt.Errorf("redisbus: unknown event type %q", e.Type)
	}
}

// decodeInto unmarshals the envelope payload into a concrete event type
// T, sets its embedded run ID from the envelope (the base struct's
// fields are unexported and do not round-trip through JSON), and returns
// it as a hooks.Event. T must be one of the concrete event struct types
// declared in package hooks.
func decodeInto[T any](e envelope, dst *T) (hooks.Event, error) {
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return nil, err
	}
	return withRunID(*dst, e.RunID), nil
}

// withRunID rehydrates the unexported base.runID field each concrete
// event embeds, since json.Marshal/Unmarshal cannot see unexported
// fields. Each concrete event type has a matching case.
func withRunID(event any, runID string) hooks.Event {
	switch ev := event.(type) {
	case hooks.StepStartedEvent:
		return hooks.NewStepStarted(runID, ev.Step)
	case hooks.DeltaEvent:
		return hooks.NewDelta(runID, ev.Step, ev.Text)
	case hooks.ToolCallStartedEvent:
		return hooks.NewToolCallStarted(runID, ev.Step, ev.ToolName, ev.CallID)
	case hooks.ToolCallFinishedEvent:
		return hooks.NewToolCallFinished(runID, ev.Step, ev.Record)
	case hooks.StepFinishedEvent:
		return hooks.NewStepFinished(runID, ev.Result)
	case hooks.RunFinishedEvent:
		return hooks.NewRunFinished(runID, ev.Result)
	default:
		return nil
	}
}
