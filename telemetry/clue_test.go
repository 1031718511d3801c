package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"goa.design/clue/log"

	"github.com/loopforge/agentrun/telemetry"
)

func TestClueLoggerDoesNotPanic(t *testing.T) {
	ctx := log.Context(context.Background(), log.WithFormat(log.FormatJSON))

	l := telemetry.NewClueLogger()
	require.NotPanics(t, func() {
		l.Debug(ctx, "step: invoking model", "run_id", "run-1", "step", 1)
		l.Info(ctx, "run started", "agent", "demo")
		l.Warn(ctx, "tool call timed out", "tool", "add")
		l.Error(ctx, "run failed", "error", "boom")
	})
}

func TestClueLoggerHandlesOddKeyvals(t *testing.T) {
	ctx := log.Context(context.Background())

	l := telemetry.NewClueLogger()
	require.NotPanics(t, func() {
		l.Info(ctx, "trailing key with no value", "dangling")
	})
}
