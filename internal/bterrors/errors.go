// Package bterrors defines the structured error taxonomy shared across the
// bintest execution engine. Each kind carries its own payload type so a
// caller can distinguish an infrastructure problem from a failed assertion
// without parsing error strings.
package bterrors

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Wrap these with fmt.Errorf("%w: ...") to add context;
// callers distinguish kinds with errors.Is.
var (
	// ErrSpec covers load/validation failures: unknown fields, wrong types,
	// duplicate names, invalid regex, invalid URL, missing binary, and so on.
	// A SpecError aborts the entire run before execution begins.
	ErrSpec = errors.New("spec error")

	// ErrSandbox covers failure to create or dispose a sandbox root.
	ErrSandbox = errors.New("sandbox error")

	// ErrAction covers a setup/teardown action that failed.
	ErrAction = errors.New("action error")

	// ErrProcess covers process launch failures distinct from a test failure.
	ErrProcess = errors.New("process error")

	// ErrSQL covers a driver-level SQL failure.
	ErrSQL = errors.New("sql error")

	// ErrTimeout covers a child process that hit its deadline.
	ErrTimeout = errors.New("timeout error")

	// ErrCanceled covers a suite that received an external cancel signal.
	ErrCanceled = errors.New("canceled")
)

// InterpolationError reports a reference to an undefined ${NAME} in a
// given context (e.g. "step[run-it].cmd").
type InterpolationError struct {
	Name  string
	Where string
}

func (e *InterpolationError) Error() string {
	return fmt.Sprintf("undefined variable %q in %s", e.Name, e.Where)
}

func (e *InterpolationError) Unwrap() error { return ErrSpec }

// ActionError wraps a failed setup/teardown action with the action's kind
// and the underlying cause.
type ActionError struct {
	Action     string
	Underlying error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action %q failed: %v", e.Action, e.Underlying)
}

func (e *ActionError) Unwrap() error { return ErrAction }

// ProcessErrorKind distinguishes the three ways launching a child can fail.
type ProcessErrorKind string

// Recognized ProcessErrorKind values.
const (
	ProcessNotFound    ProcessErrorKind = "not_found"
	ProcessSpawnFailed ProcessErrorKind = "spawn_failed"
	ProcessIOFailed    ProcessErrorKind = "io_failed"
)

// ProcessError reports a failure to launch or communicate with a child
// process, as distinct from the child running and exiting non-zero.
type ProcessError struct {
	Kind       ProcessErrorKind
	Cmd        string
	Underlying error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("process error (%s) for %q: %v", e.Kind, e.Cmd, e.Underlying)
}

func (e *ProcessError) Unwrap() error { return ErrProcess }

// SQLError reports a driver-level failure, with its URL already masked by
// the time it reaches this struct (see internal/btlog).
type SQLError struct {
	Query      string
	Database   string
	MaskedURL  string
	Underlying error
}

func (e *SQLError) Error() string {
	if e.MaskedURL != "" {
		return fmt.Sprintf("sql error on database %q (%s): %v\nquery: %s", e.Database, e.MaskedURL, e.Underlying, e.Query)
	}
	return fmt.Sprintf("sql error on database %q: %v\nquery: %s", e.Database, e.Underlying, e.Query)
}

func (e *SQLError) Unwrap() error { return ErrSQL }

// TimeoutError reports that a child process was still running at its
// deadline and was signaled to stop.
type TimeoutError struct {
	Deadline string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("process exceeded deadline %s", e.Deadline)
}

func (e *TimeoutError) Unwrap() error { return ErrTimeout }

// AssertionFailure reports that an evaluated assertion did not hold. It is
// distinct from an infrastructure error: a step can accumulate any number
// of these and still have run to completion cleanly.
type AssertionFailure struct {
	Kind     string
	Expected string
	Actual   string
	Context  string
}

func (e *AssertionFailure) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s (%s): expected %q, got %q", e.Kind, e.Context, e.Expected, e.Actual)
	}
	return fmt.Sprintf("%s: expected %q, got %q", e.Kind, e.Expected, e.Actual)
}

// SandboxError reports a failure to create or dispose a sandbox root.
type SandboxError struct {
	Path       string
	Underlying error
}

func (e *SandboxError) Error() string {
	return fmt.Sprintf("sandbox error at %q: %v", e.Path, e.Underlying)
}

func (e *SandboxError) Unwrap() error { return ErrSandbox }
