// Package teststate implements the step/test state machine: skip_if and
// require evaluation, ordered setup/run/assert/teardown execution with
// guaranteed teardown, and the verdict rules of spec.md §4.8.
//
// Grounded on original_source/src/runner.rs's run_test / run_step state
// machine for the transition order and the "a teardown failure downgrades
// Passed to Errored but never upgrades Failed to Passed" verdict rule, and
// on internal/runner/group_executor.go for the teacher's own pattern of
// "always run cleanup, record but don't let cleanup failure mask the
// original result."
package teststate

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/bintest/bintest/internal/assertion"
	"github.com/bintest/bintest/internal/dbpool"
	"github.com/bintest/bintest/internal/interpolate"
	"github.com/bintest/bintest/internal/model"
	"github.com/bintest/bintest/internal/procrun"
	"github.com/bintest/bintest/internal/resolve"
	"github.com/bintest/bintest/internal/sandbox"
)

// Verdict is a Test's or Step's final disposition.
type Verdict int

// Recognized Verdict values.
const (
	Passed Verdict = iota
	Failed
	Errored
	Skipped
	SkippedRequired
	SkippedBecausePriorFailed
)

func (v Verdict) String() string {
	switch v {
	case Passed:
		return "passed"
	case Failed:
		return "failed"
	case Errored:
		return "errored"
	case Skipped:
		return "skipped"
	case SkippedRequired:
		return "skipped (required)"
	case SkippedBecausePriorFailed:
		return "skipped (prior step failed)"
	default:
		return "unknown"
	}
}

// JSONVerdict maps a Verdict onto the four-value enum the result JSON
// schema names (spec.md §6): "passed", "failed", "errored", "skipped".
// The distinction between an unconditional skip and a failed require is
// carried separately as a skip reason, not in this enum.
func (v Verdict) JSONVerdict() string {
	switch v {
	case Passed:
		return "passed"
	case Failed:
		return "failed"
	case Errored:
		return "errored"
	default:
		return "skipped"
	}
}

// SkipReason returns a human-readable reason for a Skipped-family verdict,
// or "" if v isn't one.
func (v Verdict) SkipReason() string {
	switch v {
	case Skipped:
		return "skip_if"
	case SkippedRequired:
		return "required"
	case SkippedBecausePriorFailed:
		return "prior step failed"
	default:
		return ""
	}
}

// RunActions executes actions against tctx for callers outside a Test:
// suite- and file-level setup/teardown share this Test's action runner
// rather than duplicating it.
func RunActions(ctx context.Context, actions []model.Action, tctx Context, env map[string]string) ([]string, error) {
	return runActions(ctx, actions, tctx, env)
}

// BuildEnv exposes the base environment (OS env if inherited, overlaid
// with the resolved env map, plus SANDBOX/BINARY) for suite/file-level
// callers that need it before any test-level overlay exists.
func (c Context) BuildEnv() map[string]string { return c.buildEnv() }

// StepResult is the outcome of one executed (or skipped) Step.
type StepResult struct {
	Name       string
	Verdict    Verdict
	Outcome    *procrun.Outcome
	Assertions []assertion.Result
	Warnings   []string
	Err        error
}

// TestResult is the outcome of one Test, with every Step's own result.
type TestResult struct {
	Name    string
	Verdict Verdict
	Steps   []StepResult
	Err     error
}

// Context bundles everything a Test's execution needs beyond the Test
// itself: the file's sandbox, its database pool, and the test-level
// resolved configuration.
type Context struct {
	Effective resolve.Effective
	Sandbox   *sandbox.Sandbox
	Pool      *dbpool.Pool
	Logger    *slog.Logger
}

// buildEnv produces the base environment map visible to a Test: the OS
// environment (if Effective.InheritEnv), overlaid with the resolved
// suite/file/test env map, plus the SANDBOX variable (spec.md §4.3).
func (c Context) buildEnv() map[string]string {
	env := map[string]string{}
	if c.Effective.InheritEnv {
		for _, kv := range os.Environ() {
			for i := 0; i < len(kv); i++ {
				if kv[i] == '=' {
					env[kv[:i]] = kv[i+1:]
					break
				}
			}
		}
	}
	for k, v := range c.Effective.Env {
		env[k] = v
	}
	env["SANDBOX"] = c.Sandbox.Root()
	if c.Effective.Binary != "" {
		env["BINARY"] = c.Effective.Binary
	}
	return env
}

// Run executes test according to the state machine in spec.md §4.8.
func Run(ctx context.Context, test *model.Test, tctx Context) *TestResult {
	result := &TestResult{Name: test.Name}
	env := tctx.buildEnv()

	for _, cond := range test.SkipIf {
		fired, err := evaluateCondition(ctx, cond, tctx, env)
		if err != nil {
			result.Verdict = Errored
			result.Err = err
			return result
		}
		if fired {
			result.Verdict = Skipped
			return result
		}
	}

	for _, cond := range test.Require {
		satisfied, err := evaluateCondition(ctx, cond, tctx, env)
		if err != nil {
			result.Verdict = Errored
			result.Err = err
			return result
		}
		if !satisfied {
			result.Verdict = SkippedRequired
			return result
		}
	}

	if _, err := runActions(ctx, test.Setup, tctx, env); err != nil {
		result.Verdict = Errored
		result.Err = fmt.Errorf("test setup: %w", err)
		runTeardownBestEffort(ctx, test.Teardown, tctx, env, tctx.Logger)
		return result
	}

	anyFailed := false
	anyErrored := false
	priorFailed := false

	for _, step := range test.Steps {
		if priorFailed {
			result.Steps = append(result.Steps, StepResult{Name: step.Name, Verdict: SkippedBecausePriorFailed})
			continue
		}

		sr := runStep(ctx, step, tctx, env)
		result.Steps = append(result.Steps, sr)

		switch sr.Verdict {
		case Failed:
			anyFailed = true
			priorFailed = true
		case Errored:
			anyErrored = true
			priorFailed = true
		}
	}

	teardownErr := runActionsCollectErr(ctx, test.Teardown, tctx, env)

	switch {
	case anyErrored:
		result.Verdict = Errored
	case teardownErr != nil:
		if anyFailed {
			result.Verdict = Failed
		} else {
			result.Verdict = Errored
			result.Err = fmt.Errorf("test teardown: %w", teardownErr)
		}
	case anyFailed:
		result.Verdict = Failed
	default:
		result.Verdict = Passed
	}

	return result
}

func runStep(ctx context.Context, step *model.Step, tctx Context, testEnv map[string]string) StepResult {
	sr := StepResult{Name: step.Name}

	stepEnv := mergeMaps(testEnv, nil)
	if _, err := runActions(ctx, step.Setup, tctx, stepEnv); err != nil {
		sr.Verdict = Errored
		sr.Err = fmt.Errorf("step setup: %w", err)
		runActionsCollectErr(ctx, step.Teardown, tctx, stepEnv)
		return sr
	}

	timeout, stepRunEnv := resolve.ForStep(tctx.Effective, step)
	finalEnv := mergeMaps(stepEnv, stepRunEnv)
	finalEnv["SANDBOX"] = tctx.Sandbox.Root()
	if tctx.Effective.Binary != "" {
		finalEnv["BINARY"] = tctx.Effective.Binary
	}

	cmd, err := interpolate.Expand(step.Run.Cmd, fmt.Sprintf("step[%s].run.cmd", step.Name), finalEnv)
	if err != nil {
		sr.Verdict = Errored
		sr.Err = err
		runActionsCollectErr(ctx, step.Teardown, tctx, stepEnv)
		return sr
	}
	args, err := interpolate.ExpandAll(step.Run.Args, fmt.Sprintf("step[%s].run.args", step.Name), finalEnv)
	if err != nil {
		sr.Verdict = Errored
		sr.Err = err
		runActionsCollectErr(ctx, step.Teardown, tctx, stepEnv)
		return sr
	}

	outcome, runErr := procrun.Run(ctx, procrun.Spec{
		Cmd:     cmd,
		Args:    args,
		Dir:     tctx.Sandbox.Root(),
		Env:     finalEnv,
		Stdin:   step.Run.Stdin,
		Timeout: timeout,
	})
	sr.Outcome = outcome
	if runErr != nil {
		sr.Verdict = Errored
		sr.Err = runErr
		runActionsCollectErr(ctx, step.Teardown, tctx, stepEnv)
		return sr
	}

	results, assertErr := assertion.Evaluate(step.Expect, outcome, tctx.Sandbox, tctx.Pool)
	sr.Assertions = results
	if assertErr != nil {
		sr.Verdict = Errored
		sr.Err = assertErr
		runActionsCollectErr(ctx, step.Teardown, tctx, stepEnv)
		return sr
	}

	allPassed := true
	for _, r := range results {
		if !r.Passed {
			allPassed = false
			break
		}
	}

	teardownErr := runActionsCollectErr(ctx, step.Teardown, tctx, stepEnv)

	switch {
	case !allPassed:
		sr.Verdict = Failed
	case teardownErr != nil:
		sr.Verdict = Errored
		sr.Err = fmt.Errorf("step teardown: %w", teardownErr)
	default:
		sr.Verdict = Passed
	}

	return sr
}

func runTeardownBestEffort(ctx context.Context, actions []model.Action, tctx Context, env map[string]string, logger *slog.Logger) {
	if _, err := runActions(ctx, actions, tctx, env); err != nil && logger != nil {
		logger.Warn("teardown action failed", "error", err)
	}
}

func runActionsCollectErr(ctx context.Context, actions []model.Action, tctx Context, env map[string]string) error {
	_, err := runActions(ctx, actions, tctx, env)
	return err
}

func mergeMaps(base, overlay map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}
