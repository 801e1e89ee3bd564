package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bintest/bintest/internal/model"
	"github.com/bintest/bintest/internal/resultset"
)

func TestSandboxDirFromFlag(t *testing.T) {
	assert.Equal(t, model.SandboxDirPolicy{Kind: model.SandboxLocal}, sandboxDirFromFlag("local"))
	assert.Equal(t, model.SandboxDirPolicy{Kind: model.SandboxPath, Path: "/tmp/x"}, sandboxDirFromFlag("/tmp/x"))
}

func TestRunWithNoArgsIsUsageError(t *testing.T) {
	assert.Equal(t, exitUsage, run(nil))
	assert.Equal(t, exitUsage, run([]string{"bogus"}))
}

func TestRenderJSONProducesStableSchema(t *testing.T) {
	result := &resultset.SuiteResult{
		Files: []resultset.FileResult{{
			Path: "a.toml",
			Tests: []resultset.TestResult{{
				Name:    "t1",
				Verdict: "passed",
				Steps: []resultset.StepResult{{
					Name:    "run",
					Verdict: "passed",
					Captured: &resultset.Captured{
						Stdout: []byte("hi\n"),
						Exit:   intp(0),
					},
				}},
			}},
		}},
	}

	var buf bytes.Buffer
	require := assert.New(t)
	require.NoError(renderJSON(&buf, result))
	require.Contains(buf.String(), `"suite"`)
	require.Contains(buf.String(), `"hi\n"`)
}

func intp(i int) *int { return &i }
