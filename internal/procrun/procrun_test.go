package procrun_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bintest/bintest/internal/bterrors"
	"github.com/bintest/bintest/internal/procrun"
)

func TestRunCapturesStdoutAndExitCode(t *testing.T) {
	outcome, err := procrun.Run(context.Background(), procrun.Spec{
		Cmd:  "/bin/sh",
		Args: []string{"-c", "echo hi; exit 0"},
	})
	require.NoError(t, err)
	require.NotNil(t, outcome.Exit)
	assert.Equal(t, 0, *outcome.Exit)
	assert.Equal(t, "hi\n", string(outcome.Stdout))
	assert.Nil(t, outcome.Signal)
	assert.False(t, outcome.TimedOut)
}

func TestRunCapturesNonZeroExit(t *testing.T) {
	outcome, err := procrun.Run(context.Background(), procrun.Spec{
		Cmd:  "/bin/sh",
		Args: []string{"-c", "echo oops 1>&2; exit 7"},
	})
	require.NoError(t, err)
	require.NotNil(t, outcome.Exit)
	assert.Equal(t, 7, *outcome.Exit)
	assert.Equal(t, "oops\n", string(outcome.Stderr))
}

func TestRunUnknownBinaryIsProcessNotFound(t *testing.T) {
	_, err := procrun.Run(context.Background(), procrun.Spec{Cmd: "bintest-definitely-missing-binary"})
	require.Error(t, err)
	var procErr *bterrors.ProcessError
	require.True(t, errors.As(err, &procErr))
	assert.Equal(t, bterrors.ProcessNotFound, procErr.Kind)
	assert.True(t, errors.Is(err, bterrors.ErrProcess))
}

func TestRunPassesEnvToChild(t *testing.T) {
	outcome, err := procrun.Run(context.Background(), procrun.Spec{
		Cmd:  "/bin/sh",
		Args: []string{"-c", "echo $GREETING"},
		Env:  map[string]string{"GREETING": "hello-sandbox"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello-sandbox\n", string(outcome.Stdout))
}

func TestRunTimesOutAndKillsChild(t *testing.T) {
	outcome, err := procrun.Run(context.Background(), procrun.Spec{
		Cmd:     "/bin/sh",
		Args:    []string{"-c", "trap '' TERM; sleep 5"},
		Timeout: 100 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.True(t, outcome.TimedOut)
	assert.Less(t, outcome.Duration, 2*time.Second)
}

func TestRunHonorsWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	outcome, err := procrun.Run(context.Background(), procrun.Spec{
		Cmd:  "/bin/sh",
		Args: []string{"-c", "pwd"},
		Dir:  dir,
	})
	require.NoError(t, err)
	assert.Contains(t, string(outcome.Stdout), dir)
}
