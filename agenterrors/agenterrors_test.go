package agenterrors_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/loopforge/agentrun/agenterrors"
)

func TestToolArgumentDecodeErrorUnwraps(t *testing.T) {
	cause := errors.New("bad json")
	err := &agenterrors.ToolArgumentDecodeError{CallID: "tc_1", Name: "add", Cause: cause}

	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "tc_1")
	require.Contains(t, err.Error(), "add")
}

func TestToolExecutionErrorUnwraps(t *testing.T) {
	cause := errors.New("boom")
	err := &agenterrors.ToolExecutionError{CallID: "tc_1", Name: "add", Cause: cause}

	require.ErrorIs(t, err, cause)
}

func TestFromContextErrNilWhenNotDone(t *testing.T) {
	require.NoError(t, agenterrors.FromContextErr(context.Background()))
}

func TestFromContextErrCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := agenterrors.FromContextErr(ctx)
	var cancelled *agenterrors.Cancelled
	require.ErrorAs(t, err, &cancelled)
}

func TestFromContextErrDeadlineExceeded(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	<-ctx.Done()

	err := agenterrors.FromContextErr(ctx)
	var deadline *agenterrors.DeadlineExceeded
	require.ErrorAs(t, err, &deadline)
}

func TestMaxIterationsExceededMessage(t *testing.T) {
	err := &agenterrors.MaxIterationsExceeded{MaxIterations: 10}
	require.Contains(t, err.Error(), "10")
}
