package teststate_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bintest/bintest/internal/model"
	"github.com/bintest/bintest/internal/resolve"
	"github.com/bintest/bintest/internal/sandbox"
	"github.com/bintest/bintest/internal/teststate"
)

func newSandbox(t *testing.T) *sandbox.Sandbox {
	t.Helper()
	box, err := sandbox.Create(model.SandboxDirPolicy{Kind: model.SandboxTemp}, "t", "run", nil)
	require.NoError(t, err)
	t.Cleanup(box.Dispose)
	return box
}

func baseEffective() resolve.Effective {
	return resolve.Effective{
		Binary:  "/bin/echo",
		Timeout: 2 * time.Second,
		Env:     map[string]string{},
	}
}

func intp(i int) *int { return &i }

func TestRunPassingStep(t *testing.T) {
	box := newSandbox(t)
	tctx := teststate.Context{Effective: baseEffective(), Sandbox: box}

	test := &model.Test{
		Name: "echoes",
		Steps: []*model.Step{{
			Name: "run",
			Run:  model.RunSpec{Cmd: "${BINARY}", Args: []string{"hello"}},
			Expect: model.ExpectSpec{
				Exit:   intp(0),
				Stdout: &model.Matcher{Kind: model.MatcherContains, Value: "hello"},
			},
		}},
	}

	result := teststate.Run(context.Background(), test, tctx)
	require.NoError(t, result.Err)
	assert.Equal(t, teststate.Passed, result.Verdict)
	require.Len(t, result.Steps, 1)
	assert.Equal(t, teststate.Passed, result.Steps[0].Verdict)
}

func TestRunFailingAssertionStopsRemainingSteps(t *testing.T) {
	box := newSandbox(t)
	tctx := teststate.Context{Effective: baseEffective(), Sandbox: box}

	test := &model.Test{
		Name: "two-steps",
		Steps: []*model.Step{
			{
				Name:   "first",
				Run:    model.RunSpec{Cmd: "${BINARY}", Args: []string{"hi"}},
				Expect: model.ExpectSpec{Exit: intp(1)},
			},
			{
				Name:   "second",
				Run:    model.RunSpec{Cmd: "${BINARY}", Args: []string{"hi"}},
				Expect: model.ExpectSpec{Exit: intp(0)},
			},
		},
	}

	result := teststate.Run(context.Background(), test, tctx)
	assert.Equal(t, teststate.Failed, result.Verdict)
	require.Len(t, result.Steps, 2)
	assert.Equal(t, teststate.Failed, result.Steps[0].Verdict)
	assert.Equal(t, teststate.SkippedBecausePriorFailed, result.Steps[1].Verdict)
}

func TestRunSkipIfEnvPresent(t *testing.T) {
	box := newSandbox(t)
	eff := baseEffective()
	eff.Env["CI"] = "1"
	tctx := teststate.Context{Effective: eff, Sandbox: box}

	test := &model.Test{
		Name:   "skippable",
		SkipIf: []model.Condition{{Kind: model.ConditionEnv, EnvName: "CI"}},
		Steps: []*model.Step{{
			Name: "never-runs",
			Run:  model.RunSpec{Cmd: "${BINARY}"},
		}},
	}

	result := teststate.Run(context.Background(), test, tctx)
	assert.Equal(t, teststate.Skipped, result.Verdict)
	assert.Empty(t, result.Steps)
}

func TestRunRequireFalseSkips(t *testing.T) {
	box := newSandbox(t)
	tctx := teststate.Context{Effective: baseEffective(), Sandbox: box}

	test := &model.Test{
		Name:    "conditional",
		Require: []model.Condition{{Kind: model.ConditionEnv, EnvName: "MISSING_VAR"}},
		Steps:   []*model.Step{{Name: "never-runs", Run: model.RunSpec{Cmd: "${BINARY}"}}},
	}

	result := teststate.Run(context.Background(), test, tctx)
	assert.Equal(t, teststate.SkippedRequired, result.Verdict)
}

func TestRunSetupWritesFileVisibleToStep(t *testing.T) {
	box := newSandbox(t)
	tctx := teststate.Context{Effective: baseEffective(), Sandbox: box}

	test := &model.Test{
		Name: "setup-then-check",
		Setup: []model.Action{{
			Kind:              model.ActionWriteFile,
			WriteFilePath:     "input.txt",
			WriteFileContents: "seed",
		}},
		Steps: []*model.Step{{
			Name:   "cat",
			Run:    model.RunSpec{Cmd: "/bin/cat", Args: []string{"${SANDBOX}/input.txt"}},
			Expect: model.ExpectSpec{Exit: intp(0), Stdout: &model.Matcher{Kind: model.MatcherEquals, Value: "seed"}},
		}},
	}

	result := teststate.Run(context.Background(), test, tctx)
	require.NoError(t, result.Err)
	assert.Equal(t, teststate.Passed, result.Verdict)

	_, statErr := os.Stat(filepath.Join(box.Root(), "input.txt"))
	assert.NoError(t, statErr)
}
