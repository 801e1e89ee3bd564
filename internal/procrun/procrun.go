// Package procrun launches a child process with an explicit
// cwd/env/stdin/timeout, captures its exit status, terminating signal,
// and standard streams, and enforces the deadline with a
// SIGTERM-then-SIGKILL escalation (spec.md §4.4).
//
// Grounded on internal/runner/executor/executor.go's DefaultExecutor for
// the os/exec plumbing (output-capturing writer wrappers, PATH lookup,
// validation-before-spawn) and on
// original_source/src/runner.rs::run_command for the timeout/signal
// semantics this package must reproduce in Go idiom (context with
// timeout, os/exec's ProcessState, syscall.WaitStatus on Unix).
package procrun

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bintest/bintest/internal/bterrors"
)

// gracePeriod is how long a child is given to exit after SIGTERM before
// SIGKILL is sent (spec.md §4.4).
const gracePeriod = 250 * time.Millisecond

// Outcome is the captured result of running a child process.
type Outcome struct {
	Exit     *int
	Signal   *int
	Stdout   []byte
	Stderr   []byte
	Duration time.Duration
	TimedOut bool
}

// Spec describes one invocation.
type Spec struct {
	Cmd     string
	Args    []string
	Dir     string
	Env     map[string]string
	Stdin   []byte
	Timeout time.Duration
}

// Run launches the child described by spec and blocks until it exits,
// the timeout expires, or ctx is canceled. Binary resolution: an absolute
// Cmd is used as-is; otherwise spec.Env's PATH (or the inherited PATH, if
// spec.Env omits it) is consulted. A binary that can't be found returns a
// *bterrors.ProcessError with Kind ProcessNotFound rather than a false
// negative assertion (spec.md §4.4).
func Run(ctx context.Context, spec Spec) (*Outcome, error) {
	resolved, err := resolveBinary(spec.Cmd, spec.Env)
	if err != nil {
		return nil, &bterrors.ProcessError{Kind: bterrors.ProcessNotFound, Cmd: spec.Cmd, Underlying: err}
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if spec.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	// #nosec G204 - resolved and spec.Args are author-controlled test fixtures
	cmd := exec.Command(resolved, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = toEnvSlice(spec.Env)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if len(spec.Stdin) > 0 {
		cmd.Stdin = bytes.NewReader(spec.Stdin)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, &bterrors.ProcessError{Kind: bterrors.ProcessSpawnFailed, Cmd: spec.Cmd, Underlying: err}
	}

	waitErr := waitWithDeadline(runCtx, cmd)
	duration := time.Since(start)

	outcome := &Outcome{Stdout: stdout.Bytes(), Stderr: stderr.Bytes(), Duration: duration}

	if cmd.ProcessState != nil {
		ws, ok := cmd.ProcessState.Sys().(syscall.WaitStatus)
		switch {
		case ok && ws.Signaled():
			sig := int(ws.Signal())
			outcome.Signal = &sig
		default:
			code := cmd.ProcessState.ExitCode()
			outcome.Exit = &code
		}
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		outcome.TimedOut = true
	}

	if waitErr != nil && !isExitError(waitErr) && !outcome.TimedOut {
		return outcome, &bterrors.ProcessError{Kind: bterrors.ProcessIOFailed, Cmd: spec.Cmd, Underlying: waitErr}
	}

	return outcome, nil
}

// waitWithDeadline waits for cmd to exit, escalating SIGTERM -> (grace) ->
// SIGKILL if ctx's deadline (or cancellation) fires first.
func waitWithDeadline(ctx context.Context, cmd *exec.Cmd) error {
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		_ = cmd.Process.Signal(syscall.SIGTERM)
		select {
		case err := <-done:
			return err
		case <-time.After(gracePeriod):
			_ = cmd.Process.Kill()
			return <-done
		}
	}
}

func isExitError(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr)
}

func resolveBinary(cmdPath string, env map[string]string) (string, error) {
	if filepath.IsAbs(cmdPath) {
		return cmdPath, nil
	}
	path := env["PATH"]
	if path == "" {
		return exec.LookPath(cmdPath)
	}
	return lookPathIn(cmdPath, path)
}

func lookPathIn(file, pathEnv string) (string, error) {
	for _, dir := range filepath.SplitList(pathEnv) {
		if dir == "" {
			dir = "."
		}
		candidate := filepath.Join(dir, file)
		if isExecutable(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%q: executable file not found in $PATH", file)
}

func toEnvSlice(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}
