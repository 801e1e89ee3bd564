// Package resultset defines the immutable Suite→File→Test→Step→Assertions
// result tree emitted by the scheduler and consumed by the renderer
// (spec.md §4.10). It is pure data: nothing in this package executes
// anything.
package resultset

import (
	"time"

	"github.com/bintest/bintest/internal/assertion"
	"github.com/bintest/bintest/internal/fsdiff"
)

// Captured mirrors the process outcome fields the result JSON schema
// names (spec.md §6): stdout/stderr, exit/signal, timed_out.
type Captured struct {
	Stdout   []byte
	Stderr   []byte
	Exit     *int
	Signal   *int
	TimedOut bool
	FSDiff   *fsdiff.Diff
}

// StepResult is one Step's recorded outcome.
type StepResult struct {
	Name       string
	Verdict    string
	Duration   time.Duration
	Assertions []assertion.Result
	Captured   *Captured
	Error      string
}

// TestResult is one Test's recorded outcome.
type TestResult struct {
	Name       string
	Verdict    string
	Duration   time.Duration
	SkipReason string
	Steps      []StepResult
	Error      string
}

// FileResult is one File's recorded outcome.
type FileResult struct {
	Path     string
	Duration time.Duration
	Tests    []TestResult
	Error    string
}

// SuiteResult is the root of a run's result tree.
type SuiteResult struct {
	Files    []FileResult
	Duration time.Duration
	Canceled bool
}

// ExitCode computes the process exit status for a completed run (spec.md
// §4.10 / §6): 0 if every test passed or was skipped, 1 if any failed
// (regardless of whether another test also errored), 2 if any errored
// without any failed, 130 if the run was canceled. Canceled takes
// precedence over any other outcome; Failed takes precedence over Errored.
func (s SuiteResult) ExitCode() int {
	if s.Canceled {
		return 130
	}

	anyFailed := false
	anyErrored := false
	for _, f := range s.Files {
		for _, t := range f.Tests {
			switch t.Verdict {
			case "failed":
				anyFailed = true
			case "errored":
				anyErrored = true
			}
		}
	}

	switch {
	case anyFailed:
		return 1
	case anyErrored:
		return 2
	default:
		return 0
	}
}
