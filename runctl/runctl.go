// Package runctl implements the run controller (§4.G): it drives the
// Think-Act-Observe loop to one of four terminal RunStatus values and
// assembles the single AgentRunResult a caller receives.
package runctl

import (
	"time"

	"github.com/google/uuid"

	"github.com/loopforge/agentrun/memory"
	"github.com/loopforge/agentrun/modelclient"
	"github.com/loopforge/agentrun/step"
	"github.com/loopforge/agentrun/telemetry"
	"github.com/loopforge/agentrun/tools"
)

// Options configures one Run call, matching the §6 configuration table.
type Options struct {
	// MaxIterations caps the number of Think-Act-Observe steps. Zero
	// selects the default of 10.
	MaxIterations int
	// ParallelToolCalls enables concurrent tool dispatch within a step.
	ParallelToolCalls bool
	// PerToolTimeout bounds a single tool invocation. Zero selects the
	// step package's default of 30 seconds.
	PerToolTimeout time.Duration
	// OverallTimeout bounds the entire run. Zero means no deadline beyond
	// whatever the caller's context already carries.
	OverallTimeout time.Duration
	// Model is the provider-specific model identifier.
	Model string
	// Temperature is forwarded to every step's model call.
	Temperature float32
	// MaxTokens caps each model call's completion length.
	MaxTokens int
	// SystemInstruction, when non-empty, is appended once as the leading
	// system message if the run's memory log is currently empty (§4.G.1).
	SystemInstruction string
	// ToolChoice constrains whether and which tool the model must invoke
	// on every step. The zero value behaves like modelclient.ToolChoiceAuto.
	ToolChoice modelclient.ToolChoice
	// Verbose enables additional Debug-level logging of each step's
	// Think/Act phases.
	Verbose bool
}

// MaxIterationsOrDefault returns MaxIterations, or 10 if unset.
func (o Options) MaxIterationsOrDefault() int {
	if o.MaxIterations <= 0 {
		return 10
	}
	return o.MaxIterations
}

// StepOptions projects Options onto the subset step.Executor.Run consumes.
func (o Options) StepOptions() step.Options {
	return step.Options{
		Model:             o.Model,
		Temperature:       o.Temperature,
		MaxTokens:         o.MaxTokens,
		ParallelToolCalls: o.ParallelToolCalls,
		PerToolTimeout:    o.PerToolTimeout,
		ToolChoice:        o.ToolChoice,
		Verbose:           o.Verbose,
	}
}

// Controller drives runs to completion. It is safe for concurrent use
// across runs: it holds no per-run state beyond its collaborators, each
// of which is itself documented safe for concurrent use.
type Controller struct {
	executor  *step.Executor
	store     memory.Store
	retention memory.Retention

	agentName string

	logger  telemetry.Logger
	tracer  telemetry.Tracer
	metrics telemetry.Metrics
}

// Option customizes a Controller.
type Option func(*Controller)

// WithRetention sets the Retention applied to memory before every model
// call. Defaults to memory.NoRetention{}.
func WithRetention(r memory.Retention) Option { return func(c *Controller) { c.retention = r } }

// WithLogger configures the controller's logger. Defaults to a no-op.
func WithLogger(l telemetry.Logger) Option { return func(c *Controller) { c.logger = l } }

// WithTracer configures the controller's tracer. Defaults to a no-op.
func WithTracer(t telemetry.Tracer) Option { return func(c *Controller) { c.tracer = t } }

// WithMetrics configures the controller's metrics sink. Defaults to a no-op.
func WithMetrics(m telemetry.Metrics) Option { return func(c *Controller) { c.metrics = m } }

// New builds a Controller for agentName, driving model through registry
// and recording the conversation in store.
func New(agentName string, model modelclient.Client, registry *tools.Registry, store memory.Store, opts ...Option) *Controller {
	c := &Controller{
		executor:  step.New(model, registry),
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

// newRunID returns a fresh UUID v4 string for AgentRunResult.RunID
// (§4.G.1). Exposed as a var so tests can substitute a deterministic
// generator.
var newRunID = uuid.NewString
