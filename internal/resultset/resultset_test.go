package resultset_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bintest/bintest/internal/resultset"
)

func TestExitCodePrecedence(t *testing.T) {
	cases := []struct {
		name string
		res  resultset.SuiteResult
		want int
	}{
		{"all passed", resultset.SuiteResult{Files: []resultset.FileResult{{Tests: []resultset.TestResult{{Verdict: "passed"}, {Verdict: "skipped"}}}}}, 0},
		{"one failed", resultset.SuiteResult{Files: []resultset.FileResult{{Tests: []resultset.TestResult{{Verdict: "passed"}, {Verdict: "failed"}}}}}, 1},
		{"failed beats errored", resultset.SuiteResult{Files: []resultset.FileResult{{Tests: []resultset.TestResult{{Verdict: "failed"}, {Verdict: "errored"}}}}}, 1},
		{"errored alone", resultset.SuiteResult{Files: []resultset.FileResult{{Tests: []resultset.TestResult{{Verdict: "passed"}, {Verdict: "errored"}}}}}, 2},
		{"canceled beats everything", resultset.SuiteResult{Canceled: true, Files: []resultset.FileResult{{Tests: []resultset.TestResult{{Verdict: "failed"}}}}}, 130},
		{"no files", resultset.SuiteResult{}, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.res.ExitCode())
		})
	}
}
