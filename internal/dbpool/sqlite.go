package dbpool

import (
	"database/sql"
	"fmt"
	"sort"
	"sync"

	"github.com/bintest/bintest/internal/bterrors"
)

// sqliteClient is a sqlClient plus the in-memory table snapshot/restore
// capability that backs isolation: per_file (spec.md §4.6).
//
// Grounded on original_source/src/database.rs's snapshot handling, which
// the reference implements by capturing every user table's full row set
// and reloading it on restore; this keeps the same approach so it works
// uniformly for both file-backed and :memory: sqlite databases, rather
// than relying on VACUUM INTO (which only targets file paths).
type sqliteClient struct {
	*sqlClient

	mu        sync.Mutex
	snapshots map[string]map[string]tableSnapshot
}

type tableSnapshot struct {
	columns []string
	rows    [][]any
}

func openSQLite(name, url, masked string) (Client, error) {
	db, err := sql.Open("sqlite", url)
	if err != nil {
		return nil, &bterrors.SQLError{Database: name, MaskedURL: masked, Underlying: err}
	}
	db.SetMaxOpenConns(1) // glebarez/go-sqlite connections are not safe to share concurrently
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, &bterrors.SQLError{Database: name, MaskedURL: masked, Underlying: err}
	}
	return &sqliteClient{
		sqlClient: &sqlClient{db: db, name: name, maskedURL: masked},
		snapshots: map[string]map[string]tableSnapshot{},
	}, nil
}

func (c *sqliteClient) userTables() ([]string, error) {
	rows, err := c.db.Query(`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`)
	if err != nil {
		return nil, &bterrors.SQLError{Database: c.name, MaskedURL: c.maskedURL, Underlying: err}
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, &bterrors.SQLError{Database: c.name, MaskedURL: c.maskedURL, Underlying: err}
		}
		tables = append(tables, t)
	}
	sort.Strings(tables)
	return tables, rows.Err()
}

// Snapshot captures the full row content of every user table under name.
func (c *sqliteClient) Snapshot(name string) error {
	tables, err := c.userTables()
	if err != nil {
		return err
	}

	captured := map[string]tableSnapshot{}
	for _, table := range tables {
		// #nosec G202 - table comes from sqlite_master, not user input
		rows, err := c.db.Query(fmt.Sprintf("SELECT * FROM %q", table))
		if err != nil {
			return &bterrors.SQLError{Database: c.name, MaskedURL: c.maskedURL, Underlying: err}
		}
		cols, err := rows.Columns()
		if err != nil {
			rows.Close()
			return &bterrors.SQLError{Database: c.name, MaskedURL: c.maskedURL, Underlying: err}
		}

		var captured_rows [][]any
		for rows.Next() {
			vals := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range vals {
				ptrs[i] = &vals[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				rows.Close()
				return &bterrors.SQLError{Database: c.name, MaskedURL: c.maskedURL, Underlying: err}
			}
			captured_rows = append(captured_rows, vals)
		}
		rowsErr := rows.Err()
		rows.Close()
		if rowsErr != nil {
			return &bterrors.SQLError{Database: c.name, MaskedURL: c.maskedURL, Underlying: rowsErr}
		}

		captured[table] = tableSnapshot{columns: cols, rows: captured_rows}
	}

	c.mu.Lock()
	c.snapshots[name] = captured
	c.mu.Unlock()
	return nil
}

// Restore empties every current user table and reloads the rows recorded
// under name's snapshot, inside a single transaction.
func (c *sqliteClient) Restore(name string) error {
	c.mu.Lock()
	captured, ok := c.snapshots[name]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: no snapshot named %q for database %q", bterrors.ErrSQL, name, c.name)
	}

	// List tables before opening the transaction: the pool allows a single
	// connection, which the transaction would otherwise hold.
	tables, err := c.userTables()
	if err != nil {
		return err
	}

	tx, err := c.db.Begin()
	if err != nil {
		return &bterrors.SQLError{Database: c.name, MaskedURL: c.maskedURL, Underlying: err}
	}
	defer tx.Rollback() //nolint:errcheck

	for _, table := range tables {
		// #nosec G202 - table comes from sqlite_master, not user input
		if _, err := tx.Exec(fmt.Sprintf("DELETE FROM %q", table)); err != nil {
			return &bterrors.SQLError{Database: c.name, MaskedURL: c.maskedURL, Underlying: err}
		}
	}

	for table, snap := range captured {
		if len(snap.rows) == 0 {
			continue
		}
		placeholders := make([]string, len(snap.columns))
		for i := range placeholders {
			placeholders[i] = "?"
		}
		// #nosec G202 - table/columns come from sqlite_master, not user input
		stmt := fmt.Sprintf("INSERT INTO %q VALUES (%s)", table, joinStrings(placeholders, ", "))
		for _, row := range snap.rows {
			if _, err := tx.Exec(stmt, row...); err != nil {
				return &bterrors.SQLError{Database: c.name, MaskedURL: c.maskedURL, Underlying: err}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return &bterrors.SQLError{Database: c.name, MaskedURL: c.maskedURL, Underlying: err}
	}
	return nil
}

func joinStrings(ss []string, sep string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += sep
		}
		out += s
	}
	return out
}
