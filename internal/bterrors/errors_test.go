package bterrors_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bintest/bintest/internal/bterrors"
)

func TestInterpolationErrorUnwrapsToSpec(t *testing.T) {
	err := &bterrors.InterpolationError{Name: "FOO", Where: "step[x].cmd"}
	assert.True(t, errors.Is(err, bterrors.ErrSpec))
	assert.Contains(t, err.Error(), "FOO")
	assert.Contains(t, err.Error(), "step[x].cmd")
}

func TestActionErrorUnwrapsToAction(t *testing.T) {
	err := &bterrors.ActionError{Action: "write_file", Underlying: errors.New("disk full")}
	assert.True(t, errors.Is(err, bterrors.ErrAction))
	assert.Contains(t, err.Error(), "write_file")
	assert.Contains(t, err.Error(), "disk full")
}

func TestProcessErrorUnwrapsToProcess(t *testing.T) {
	err := &bterrors.ProcessError{Kind: bterrors.ProcessNotFound, Cmd: "nope", Underlying: errors.New("not found")}
	assert.True(t, errors.Is(err, bterrors.ErrProcess))
	assert.Contains(t, err.Error(), "not_found")
	assert.Contains(t, err.Error(), "nope")
}

func TestSQLErrorMasksURLWhenPresent(t *testing.T) {
	withURL := &bterrors.SQLError{Query: "select 1", Database: "db", MaskedURL: "postgres://***@host/db", Underlying: errors.New("boom")}
	assert.True(t, errors.Is(withURL, bterrors.ErrSQL))
	assert.Contains(t, withURL.Error(), "postgres://***@host/db")

	withoutURL := &bterrors.SQLError{Query: "select 1", Database: "db", Underlying: errors.New("boom")}
	assert.NotContains(t, withoutURL.Error(), "()")
	assert.Contains(t, withoutURL.Error(), "select 1")
}

func TestTimeoutErrorUnwrapsToTimeout(t *testing.T) {
	err := &bterrors.TimeoutError{Deadline: "5s"}
	assert.True(t, errors.Is(err, bterrors.ErrTimeout))
	assert.Contains(t, err.Error(), "5s")
}

func TestSandboxErrorUnwrapsToSandbox(t *testing.T) {
	err := &bterrors.SandboxError{Path: "/tmp/x", Underlying: errors.New("denied")}
	assert.True(t, errors.Is(err, bterrors.ErrSandbox))
	assert.Contains(t, err.Error(), "/tmp/x")
}

func TestAssertionFailureIncludesContextWhenSet(t *testing.T) {
	withContext := &bterrors.AssertionFailure{Kind: "stdout", Expected: "a", Actual: "b", Context: "step[run]"}
	assert.Contains(t, withContext.Error(), "step[run]")

	withoutContext := &bterrors.AssertionFailure{Kind: "stdout", Expected: "a", Actual: "b"}
	assert.NotContains(t, withoutContext.Error(), "()")
}
