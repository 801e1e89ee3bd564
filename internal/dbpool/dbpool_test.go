package dbpool_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bintest/bintest/internal/dbpool"
	"github.com/bintest/bintest/internal/model"
)

func memDefs(name string) map[string]model.DatabaseDef {
	return map[string]model.DatabaseDef{
		name: {Name: name, Driver: "sqlite", URL: "file:" + name + "?mode=memory&cache=shared", Isolation: "per_file"},
	}
}

func TestPoolExecuteAndQuery(t *testing.T) {
	pool := dbpool.New(memDefs("main"), nil)
	defer pool.CloseAll()

	_, err := pool.Execute("main", []string{
		"CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)",
		"INSERT INTO users (id, name) VALUES (1, 'alice')",
		"INSERT INTO users (id, name) VALUES (2, 'bob')",
	}, model.SQLOnErrorFail)
	require.NoError(t, err)

	rows, err := pool.Query("main", "SELECT id, name FROM users ORDER BY id")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, rows.Columns)
	assert.Equal(t, [][]string{{"1", "alice"}, {"2", "bob"}}, rows.Values)
}

func TestPoolQueryNullIsLiteralString(t *testing.T) {
	pool := dbpool.New(memDefs("main"), nil)
	defer pool.CloseAll()

	_, execErr := pool.Execute("main", []string{
		"CREATE TABLE t (a TEXT)",
		"INSERT INTO t (a) VALUES (NULL)",
	}, model.SQLOnErrorFail)
	require.NoError(t, execErr)

	rows, err := pool.Query("main", "SELECT a FROM t")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"NULL"}}, rows.Values)
}

func TestPoolUnknownDatabaseErrors(t *testing.T) {
	pool := dbpool.New(memDefs("main"), nil)
	defer pool.CloseAll()

	_, err := pool.Query("missing", "SELECT 1")
	assert.Error(t, err)
}

func TestPoolSnapshotRestore(t *testing.T) {
	pool := dbpool.New(memDefs("main"), nil)
	defer pool.CloseAll()

	_, execErr := pool.Execute("main", []string{
		"CREATE TABLE t (a INTEGER)",
		"INSERT INTO t (a) VALUES (1)",
	}, model.SQLOnErrorFail)
	require.NoError(t, execErr)

	require.NoError(t, pool.Snapshot("main", "initial"))

	_, execErr = pool.Execute("main", []string{
		"INSERT INTO t (a) VALUES (2)",
		"INSERT INTO t (a) VALUES (3)",
	}, model.SQLOnErrorFail)
	require.NoError(t, execErr)

	rows, err := pool.Query("main", "SELECT COUNT(*) FROM t")
	require.NoError(t, err)
	assert.Equal(t, "3", rows.Values[0][0])

	require.NoError(t, pool.Restore("main", "initial"))

	rows, err = pool.Query("main", "SELECT a FROM t")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1"}}, rows.Values)
}

func TestPoolExecuteContinueCollectsWarnings(t *testing.T) {
	pool := dbpool.New(memDefs("main"), nil)
	defer pool.CloseAll()

	warnings, err := pool.Execute("main", []string{
		"CREATE TABLE t (a INTEGER)",
		"INSERT INTO nonexistent (a) VALUES (1)",
		"INSERT INTO t (a) VALUES (1)",
	}, model.SQLOnErrorContinue)
	require.NoError(t, err)
	require.Len(t, warnings, 1)

	rows, err := pool.Query("main", "SELECT COUNT(*) FROM t")
	require.NoError(t, err)
	assert.Equal(t, "1", rows.Values[0][0])
}

func TestValidateIsolationRejectsUnsupportedDriver(t *testing.T) {
	defs := map[string]model.DatabaseDef{
		"main": {Name: "main", Driver: "postgres", Isolation: "per_file"},
	}
	err := dbpool.ValidateIsolation(defs)
	assert.Error(t, err)
}

func TestValidateIsolationAllowsSQLiteWithPerFile(t *testing.T) {
	defs := map[string]model.DatabaseDef{
		"main": {Name: "main", Driver: "sqlite", Isolation: "per_file"},
	}
	assert.NoError(t, dbpool.ValidateIsolation(defs))
}
