package specfile_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bintest/bintest/internal/specfile"
)

func writeFile(t *testing.T, dir, name, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644))
}

func TestLoadSingleTOMLFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "smoke.toml", `
binary = "/bin/echo"

[[tests]]
name = "prints hello"

[tests.run]
cmd = "${BINARY}"
args = ["hello"]

[tests.expect]
exit = 0
`)

	suite, err := specfile.Load(filepath.Join(dir, "smoke.toml"))
	require.NoError(t, err)
	require.Len(t, suite.Files, 1)
	require.Len(t, suite.Files[0].Tests, 1)
	test := suite.Files[0].Tests[0]
	assert.Equal(t, "prints hello", test.Name)
	require.Len(t, test.Steps, 1)
	assert.Equal(t, "${BINARY}", test.Steps[0].Run.Cmd)
	require.NotNil(t, test.Steps[0].Expect.Exit)
	assert.Equal(t, 0, *test.Steps[0].Expect.Exit)
}

func TestLoadDirWithSuiteConfigAndTwoFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bintest.toml", `
binary = "/bin/echo"
serial = false
`)
	writeFile(t, dir, "a_first.toml", `
[[tests]]
name = "a-test"

[tests.run]
cmd = "${BINARY}"

[tests.expect]
exit = 0
`)
	writeFile(t, dir, "b_second.toml", `
[[tests]]
name = "b-test"

[tests.run]
cmd = "${BINARY}"

[tests.expect]
exit = 0
`)

	suite, err := specfile.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "/bin/echo", suite.Binary)
	require.Len(t, suite.Files, 2)
	assert.Equal(t, "a-test", suite.Files[0].Tests[0].Name)
	assert.Equal(t, "b-test", suite.Files[1].Tests[0].Name)
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "smoke.yaml", `
binary: /bin/echo
tests:
  - name: prints hello
    run:
      cmd: ${BINARY}
      args: ["hello"]
    expect:
      exit: 0
`)

	suite, err := specfile.Load(filepath.Join(dir, "smoke.yaml"))
	require.NoError(t, err)
	require.Len(t, suite.Files, 1)
	assert.Equal(t, "prints hello", suite.Files[0].Tests[0].Name)
}

func TestLoadRejectsDuplicateTestNames(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "dup.toml", `
binary = "/bin/echo"

[[tests]]
name = "same"

[tests.run]
cmd = "${BINARY}"

[tests.expect]
exit = 0

[[tests]]
name = "same"

[tests.run]
cmd = "${BINARY}"

[tests.expect]
exit = 0
`)

	_, err := specfile.Load(filepath.Join(dir, "dup.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate test name")
}

func TestLoadRejectsMissingBinary(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.toml", `
binary = "/no/such/binary-at-all"

[[tests]]
name = "x"

[tests.run]
cmd = "${BINARY}"

[tests.expect]
exit = 0
`)

	_, err := specfile.Load(filepath.Join(dir, "bad.toml"))
	require.Error(t, err)
}

func TestLoadRejectsDuplicateStepNames(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "dup-step.toml", `
binary = "/bin/echo"

[[tests]]
name = "multi-step"

[[tests.steps]]
name = "same"

[tests.steps.run]
cmd = "${BINARY}"

[tests.steps.expect]
exit = 0

[[tests.steps]]
name = "same"

[tests.steps.run]
cmd = "${BINARY}"

[tests.steps.expect]
exit = 0
`)

	_, err := specfile.Load(filepath.Join(dir, "dup-step.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate step name")
}

func TestLoadRejectsInvalidRegex(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "badregex.toml", `
binary = "/bin/echo"

[[tests]]
name = "x"

[tests.run]
cmd = "${BINARY}"

[tests.expect]
exit = 0

[tests.expect.stdout]
regex = "("
`)

	_, err := specfile.Load(filepath.Join(dir, "badregex.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid regex")
}

func TestLoadParsesTestLevelEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "env.toml", `
binary = "/bin/echo"
[env]
A = "suite"

[[tests]]
name = "x"
[tests.env]
A = "test"

[tests.run]
cmd = "${BINARY}"

[tests.expect]
exit = 0
`)

	suite, err := specfile.Load(filepath.Join(dir, "env.toml"))
	require.NoError(t, err)
	require.Len(t, suite.Files, 1)
	test := suite.Files[0].Tests[0]
	assert.Equal(t, "test", test.Env["A"])
	assert.Equal(t, "suite", suite.Files[0].Env["A"])
}

func TestLoadRejectsPerFileIsolationOnPostgres(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pg.toml", `
binary = "/bin/echo"

[databases.main]
driver = "postgres"
url = "postgres://localhost/db"
isolation = "per_file"

[[tests]]
name = "x"

[tests.run]
cmd = "${BINARY}"

[tests.expect]
exit = 0
`)

	_, err := specfile.Load(filepath.Join(dir, "pg.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "per_file")
}
