package sandbox_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bintest/bintest/internal/model"
	"github.com/bintest/bintest/internal/sandbox"
)

func TestCreateTempPolicyCreatesAndDisposes(t *testing.T) {
	sb, err := sandbox.Create(model.SandboxDirPolicy{Kind: model.SandboxTemp}, "myfile", "20260101T000000Z", nil)
	require.NoError(t, err)

	info, statErr := os.Stat(sb.Root())
	require.NoError(t, statErr)
	assert.True(t, info.IsDir())

	sb.Dispose()
	_, statErr = os.Stat(sb.Root())
	assert.True(t, os.IsNotExist(statErr))
}

func TestCreateExplicitPathPolicySurvivesDispose(t *testing.T) {
	base := t.TempDir()
	sb, err := sandbox.Create(model.SandboxDirPolicy{Kind: model.SandboxPath, Path: base}, "myfile", "ts", nil)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(base, "myfile"), sb.Root())

	sb.Dispose()
	_, statErr := os.Stat(sb.Root())
	assert.NoError(t, statErr, "explicit-path sandboxes are not removed on dispose")
}

func TestCreateUnknownPolicyFails(t *testing.T) {
	_, err := sandbox.Create(model.SandboxDirPolicy{Kind: "bogus"}, "f", "ts", nil)
	assert.Error(t, err)
}

func TestResolvePathJoinsRelativeAgainstRoot(t *testing.T) {
	sb, err := sandbox.Create(model.SandboxDirPolicy{Kind: model.SandboxTemp}, "f", "ts", nil)
	require.NoError(t, err)
	defer sb.Dispose()

	resolved, err := sb.ResolvePath("sub/file.txt", false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(sb.Root(), "sub/file.txt"), resolved)
}

func TestResolvePathRejectsAbsoluteByDefault(t *testing.T) {
	sb, err := sandbox.Create(model.SandboxDirPolicy{Kind: model.SandboxTemp}, "f", "ts", nil)
	require.NoError(t, err)
	defer sb.Dispose()

	_, err = sb.ResolvePath("/etc/passwd", false)
	assert.Error(t, err)
}

func TestResolvePathAllowsAbsoluteWhenPermitted(t *testing.T) {
	sb, err := sandbox.Create(model.SandboxDirPolicy{Kind: model.SandboxTemp}, "f", "ts", nil)
	require.NoError(t, err)
	defer sb.Dispose()

	resolved, err := sb.ResolvePath("/etc/passwd", true)
	require.NoError(t, err)
	assert.Equal(t, "/etc/passwd", resolved)
}

func TestScratchNameIsUniqueAndPrefixed(t *testing.T) {
	sb, err := sandbox.Create(model.SandboxDirPolicy{Kind: model.SandboxTemp}, "f", "ts", nil)
	require.NoError(t, err)
	defer sb.Dispose()

	a := sb.ScratchName("snapshot")
	b := sb.ScratchName("snapshot")
	assert.NotEqual(t, a, b)
	assert.Contains(t, a, "snapshot")
}
