package fsdiff_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bintest/bintest/internal/fsdiff"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

func TestCaptureRecordsRegularFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "hello")
	writeFile(t, filepath.Join(dir, "sub", "b.txt"), "world")

	snap, err := fsdiff.Capture(dir)
	require.NoError(t, err)

	require.Contains(t, snap.Files, "a.txt")
	require.Contains(t, snap.Files, filepath.Join("sub", "b.txt"))
	assert.Equal(t, int64(5), snap.Files["a.txt"].Size)
	assert.NotEmpty(t, snap.Files["a.txt"].SHA256)
}

func TestCaptureRecordsSymlinkByTarget(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "real.txt"), "data")
	linkPath := filepath.Join(dir, "link.txt")
	require.NoError(t, os.Symlink("real.txt", linkPath))

	snap, err := fsdiff.Capture(dir)
	require.NoError(t, err)

	assert.Equal(t, "real.txt", snap.Symlinks["link.txt"])
	_, isFile := snap.Files["link.txt"]
	assert.False(t, isFile)
}

func TestCompareDetectsCreatedModifiedDeleted(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "keep.txt"), "same")
	writeFile(t, filepath.Join(dir, "change.txt"), "before")
	writeFile(t, filepath.Join(dir, "remove.txt"), "bye")

	before, err := fsdiff.Capture(dir)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(dir, "remove.txt")))
	writeFile(t, filepath.Join(dir, "change.txt"), "after")
	writeFile(t, filepath.Join(dir, "new.txt"), "fresh")

	after, err := fsdiff.Capture(dir)
	require.NoError(t, err)

	diff := fsdiff.Compare(before, after)

	assert.ElementsMatch(t, []string{"new.txt"}, diff.Created)
	assert.ElementsMatch(t, []string{"change.txt"}, diff.Modified)
	assert.ElementsMatch(t, []string{"remove.txt"}, diff.Deleted)
}

func TestCompareIdenticalSnapshotsYieldsEmptyDiff(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "stable")

	snap, err := fsdiff.Capture(dir)
	require.NoError(t, err)

	diff := fsdiff.Compare(snap, snap)

	assert.Empty(t, diff.Created)
	assert.Empty(t, diff.Modified)
	assert.Empty(t, diff.Deleted)
}
