// Package agent bundles the run controller, its streaming variant, and an
// agent's collaborators (model client, tool registry, memory store) behind
// one constructible value, the way goa-ai's runtime.Runtime bundles engine,
// memory, and hooks behind one registry (§4.G "via explicit construction;
// no process-wide state"). Agent is deliberately thinner than that
// runtime: it does not own a workflow engine or cross-agent registration,
// since orchestrating multiple agents is out of scope here.
package agent

import (
	"context"

	"github.com/loopforge/agentrun/hooks"
	"github.com/loopforge/agentrun/memory"
	"github.com/loopforge/agentrun/message"
	"github.com/loopforge/agentrun/modelclient"
	"github.com/loopforge/agentrun/runctl"
	"github.com/loopforge/agentrun/stream"
	"github.com/loopforge/agentrun/telemetry"
	"github.com/loopforge/agentrun/tools"
	"github.com/loopforge/agentrun/trace"
)

// Agent is a named, runnable agent: a model client, a tool registry, and a
// memory store, wired once and reused across runs. Both Run and RunStream
// are safe for concurrent use across distinct memory keys, matching the
// underlying runctl.Controller/stream.Controller's concurrency contract.
type Agent struct {
	Name string

	model    modelclient.Client
	registry *tools.Registry
	store    memory.Store
	bus      hooks.Bus

	runner       *runctl.Controller
	streamRunner *stream.Controller
}

// Option customizes an Agent at construction time.
type Option func(*options)

type options struct {
	retention memory.Retention
	logger    telemetry.Logger
	tracer    telemetry.Tracer
	metrics   telemetry.Metrics
	bus       hooks.Bus
}

// WithRetention sets the Retention applied to memory before every model call.
func WithRetention(r memory.Retention) Option { return func(o *options) { o.retention = r } }

// WithLogger configures the agent's logger. Defaults to a no-op.
func WithLogger(l telemetry.Logger) Option { return func(o *options) { o.logger = l } }

// WithTracer configures the agent's tracer. Defaults to a no-op.
func WithTracer(t telemetry.Tracer) Option { return func(o *options) { o.tracer = t } }

// WithMetrics configures the agent's metrics sink. Defaults to a no-op.
func WithMetrics(m telemetry.Metrics) Option { return func(o *options) { o.metrics = m } }

// WithBus attaches an event bus that every RunStream call also publishes
// to, in addition to the channel it returns directly to the caller.
// Defaults to no bus publication.
func WithBus(b hooks.Bus) Option { return func(o *options) { o.bus = b } }

// New constructs an Agent named name, driving model through registry and
// recording conversation turns in store.
func New(name string, model modelclient.Client, registry *tools.Registry, store memory.Store, opts ...Option) *Agent {
	var o options
	for _, fn := range opts {
		if fn != nil {
			fn(&o)
		}
	}
	retention := o.retention
	if retention == nil {
		retention = memory.NoRetention{}
	}
	logger := o.logger
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}
	tracer := o.tracer
	if tracer == nil {
		tracer = telemetry.NoopTracer{}
	}
	metrics := o.metrics
	if metrics == nil {
		metrics = telemetry.NoopMetrics{}
	}

	runnerOpts := []runctl.Option{
		runctl.WithRetention(retention),
		runctl.WithLogger(logger),
		runctl.WithTracer(tracer),
		runctl.WithMetrics(metrics),
	}
	streamOpts := []stream.Option{
		stream.WithRetention(retention),
		stream.WithLogger(logger),
		stream.WithTracer(tracer),
		stream.WithMetrics(metrics),
	}

	return &Agent{
		Name:         name,
		model:        model,
		registry:     registry,
		store:        store,
		bus:          o.bus,
		runner:       runctl.New(name, model, registry, store, runnerOpts...),
		streamRunner: stream.New(name, model, registry, store, streamOpts...),
	}
}

// Run drives one synchronous Think-Act-Observe loop to completion and
// returns the assembled AgentRunResult. memoryKey scopes the conversation
// log; reusing the same key across calls continues that conversation.
func (a *Agent) Run(ctx context.Context, memoryKey string, userInput message.Message, opts runctl.Options) (trace.AgentRunResult, error) {
	return a.runner.Run(ctx, memoryKey, userInput, opts)
}

// RunStream behaves like Run but returns a channel of hooks.Event values
// instead of waiting for the final result (§4.H). If the agent was built
// with WithBus, every event is also published to that bus before being
// sent on the returned channel, so out-of-process observers and the
// direct caller both see the same sequence.
func (a *Agent) RunStream(ctx context.Context, memoryKey string, userInput message.Message, opts runctl.Options) <-chan hooks.Event {
	src := a.streamRunner.Run(ctx, memoryKey, userInput, opts)
	if a.bus == nil {
		return src
	}

	out := make(chan hooks.Event)
	go func() {
		defer close(out)
		for ev := range src {
			_ = a.bus.Publish(ctx, ev)
			out <- ev
		}
	}()
	return out
}

// Registry returns the agent's tool registry, for callers that want to
// register additional tools after construction.
func (a *Agent) Registry() *tools.Registry { return a.registry }

// Store returns the agent's memory store.
func (a *Agent) Store() memory.Store { return a.store }
