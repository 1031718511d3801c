package telemetry_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/loopforge/agentrun/telemetry"
)

func TestOtelMetricsRecordsWithoutPanicking(t *testing.T) {
	m := telemetry.NewOtelMetrics(otel.Meter("agentrun-test"))

	require.NotPanics(t, func() {
		m.IncCounter("agentrun.tool.calls", 1, "tool", "echo")
		m.RecordTimer("agentrun.step.duration", 12*time.Millisecond, "step", "1")
		m.RecordGauge("agentrun.run.active", 3)
	})
}

func TestOtelMetricsReusesCachedInstruments(t *testing.T) {
	m := telemetry.NewOtelMetrics(otel.Meter("agentrun-test"))

	require.NotPanics(t, func() {
		m.IncCounter("agentrun.tool.calls", 1)
		m.IncCounter("agentrun.tool.calls", 2)
	})
}
