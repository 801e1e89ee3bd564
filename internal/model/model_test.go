package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bintest/bintest/internal/model"
)

func TestFileStemStripsDirAndExtension(t *testing.T) {
	cases := map[string]string{
		"tests/basic.toml":     "basic",
		"basic.yaml":           "basic",
		"/abs/path/to/f.yml":   "f",
		"noext":                "noext",
		"dir.with.dot/file.tm": "file",
		".hidden":              ".hidden",
	}
	for path, want := range cases {
		f := &model.File{Path: path}
		assert.Equal(t, want, f.Stem(), "path %q", path)
	}
}

func TestFileStemEmptyPathFallsBackToFile(t *testing.T) {
	f := &model.File{Path: ""}
	assert.Equal(t, "file", f.Stem())
}

func TestSandboxDirPolicyKindsAreDistinctStrings(t *testing.T) {
	assert.Equal(t, "temp", model.SandboxTemp)
	assert.Equal(t, "local", model.SandboxLocal)
	assert.Equal(t, "path", model.SandboxPath)
}

func TestMatcherKindValuesAreDistinct(t *testing.T) {
	assert.NotEqual(t, model.MatcherEquals, model.MatcherContains)
	assert.NotEqual(t, model.MatcherContains, model.MatcherRegex)
	assert.NotEqual(t, model.MatcherEquals, model.MatcherRegex)
}

func TestActionKindCoversAllElevenVariants(t *testing.T) {
	kinds := []model.ActionKind{
		model.ActionWriteFile, model.ActionCreateDir, model.ActionCopyFile,
		model.ActionCopyDir, model.ActionRemoveFile, model.ActionRemoveDir,
		model.ActionRun, model.ActionSQL, model.ActionSQLFile,
		model.ActionDBSnapshot, model.ActionDBRestore,
	}
	seen := map[model.ActionKind]bool{}
	for _, k := range kinds {
		assert.False(t, seen[k], "duplicate ActionKind value %v", k)
		seen[k] = true
	}
	assert.Len(t, seen, 11)
}
