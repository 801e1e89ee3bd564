// Package dbpool implements the per-file, lazily-initialized pool of
// DatabaseClients keyed by logical database name (spec.md §4.6).
//
// Grounded on original_source/src/database.rs's ConnectionManager: a
// HashMap<name, Connection> behind a mutex, connected on first use,
// closed in reverse-of-open order at file teardown, with every error's
// URL masked before it escapes this package. The Go driver surface comes
// from the teacher's own database/sql-via-driver usage
// (github.com/glebarez/go-sqlite); Postgres is an out-of-pack addition
// (github.com/jackc/pgx/v5's stdlib adapter) since no example repo in the
// pack carries a Postgres client and spec.md names postgres as a
// first-class driver.
package dbpool

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	_ "github.com/glebarez/go-sqlite"   // registers "sqlite" driver
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver

	"github.com/bintest/bintest/internal/bterrors"
	"github.com/bintest/bintest/internal/btlog"
	"github.com/bintest/bintest/internal/interpolate"
	"github.com/bintest/bintest/internal/model"
)

// Rows is the abstract two-dimensional textual result of a query: one
// []string per row, columns in selection order.
type Rows struct {
	Columns []string
	Values  [][]string
}

// Client is the abstract capability contract a database driver exposes
// (spec.md §4.6).
type Client interface {
	// Execute runs statements in order. Under SQLOnErrorFail the first
	// failing statement aborts and is returned as err. Under
	// SQLOnErrorContinue every statement runs regardless of prior
	// failures; err is nil and warnings carries one formatted message per
	// failed statement.
	Execute(statements []string, onError model.SQLOnError) (warnings []string, err error)
	Query(query string) (Rows, error)
	Close() error
}

// Snapshotter is an optional capability: drivers advertising it support
// isolation: per_file (spec.md §4.6).
type Snapshotter interface {
	Snapshot(name string) error
	Restore(name string) error
}

// ErrUnsupportedAction is returned when Snapshot/Restore is invoked
// against a driver that doesn't implement Snapshotter.
var ErrUnsupportedAction = fmt.Errorf("%w: driver does not support this action", bterrors.ErrAction)

// entry holds one opened connection plus the single-holder lock that
// serializes every SQL call against it (drivers are assumed
// non-thread-safe, spec.md §5 / §9 design notes: "a single-holder lock
// per logical DB, not a rwlock").
type entry struct {
	mu     sync.Mutex
	client Client
}

// Pool is the per-file database connection pool.
type Pool struct {
	defs  map[string]model.DatabaseDef
	env   map[string]string
	mu    sync.Mutex // guards entries + openOrder
	entries   map[string]*entry
	openOrder []string
}

// New creates a Pool over the given (already merged suite+file) database
// definitions. No connection is opened until the first SQL operation
// names it (spec.md §4.6 "Lazy").
func New(defs map[string]model.DatabaseDef, env map[string]string) *Pool {
	return &Pool{
		defs:    defs,
		env:     env,
		entries: map[string]*entry{},
	}
}

// HasDatabases reports whether any database is configured.
func (p *Pool) HasDatabases() bool { return len(p.defs) > 0 }

func (p *Pool) get(name string) (*entry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e, ok := p.entries[name]; ok {
		return e, nil
	}

	def, ok := p.defs[name]
	if !ok {
		return nil, fmt.Errorf("%w: database %q is not configured", bterrors.ErrSQL, name)
	}

	client, err := open(def, p.env)
	if err != nil {
		return nil, err
	}

	e := &entry{client: client}
	p.entries[name] = e
	p.openOrder = append(p.openOrder, name)
	return e, nil
}

// Execute runs statements sequentially against the named database,
// opening it on first use. on_error: continue suppresses individual
// statement failures (collecting them instead of aborting); on_error:
// fail aborts at the first failing statement.
func (p *Pool) Execute(database string, statements []string, onError model.SQLOnError) ([]string, error) {
	e, err := p.get(database)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.client.Execute(statements, onError)
}

// Query runs a single query against the named database and returns its
// stringified result set.
func (p *Pool) Query(database, query string) (Rows, error) {
	e, err := p.get(database)
	if err != nil {
		return Rows{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.client.Query(query)
}

// Snapshot captures the current content of the named database under
// name, for later Restore. Returns ErrUnsupportedAction if the driver
// doesn't implement Snapshotter.
func (p *Pool) Snapshot(database, name string) error {
	e, err := p.get(database)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	snap, ok := e.client.(Snapshotter)
	if !ok {
		return ErrUnsupportedAction
	}
	return snap.Snapshot(name)
}

// Restore reloads the named database from a prior Snapshot.
func (p *Pool) Restore(database, name string) error {
	e, err := p.get(database)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	snap, ok := e.client.(Snapshotter)
	if !ok {
		return ErrUnsupportedAction
	}
	return snap.Restore(name)
}

// GetDriver returns the configured driver name for a logical database,
// without opening a connection.
func (p *Pool) GetDriver(database string) (string, bool) {
	def, ok := p.defs[database]
	return def.Driver, ok
}

// ValidateIsolation checks, at load time, that every database whose
// Isolation is "per_file" uses a driver advertising the snapshot
// capability (spec.md §4.6: "an unsupported driver with isolation:
// per_file is a load-time validation error").
func ValidateIsolation(defs map[string]model.DatabaseDef) error {
	for name, def := range defs {
		if def.Isolation != "per_file" {
			continue
		}
		if def.Driver != "sqlite" {
			return fmt.Errorf("%w: database %q requests isolation: per_file but driver %q does not support snapshots", bterrors.ErrSpec, name, def.Driver)
		}
	}
	return nil
}

// CloseAll closes every opened connection in reverse-of-open order
// (spec.md §4.6), masking any close error's URL before logging it.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := len(p.openOrder) - 1; i >= 0; i-- {
		name := p.openOrder[i]
		if e, ok := p.entries[name]; ok {
			if err := e.client.Close(); err != nil {
				slog.Default().Warn("failed to close database", "database", name, "error", btlog.MaskURL(err.Error()))
			}
		}
	}
	p.entries = map[string]*entry{}
	p.openOrder = nil
}

func open(def model.DatabaseDef, env map[string]string) (Client, error) {
	url, err := interpolate.Expand(def.URL, fmt.Sprintf("database[%s].url", def.Name), env)
	if err != nil {
		return nil, err
	}

	masked := btlog.MaskURL(url)

	switch def.Driver {
	case "sqlite":
		return openSQLite(def.Name, url, masked)
	case "postgres":
		return openPostgres(def.Name, url, masked)
	default:
		return nil, fmt.Errorf("%w: unknown driver %q for database %q", bterrors.ErrSpec, def.Driver, def.Name)
	}
}

// sqlClient adapts a *sql.DB plus the per-row stringification contract
// (spec.md §4.6) to the Client interface; sqlite and postgres share all
// of this behavior and differ only in connection setup and (for sqlite)
// the Snapshotter implementation.
type sqlClient struct {
	db        *sql.DB
	name      string
	maskedURL string
}

func (c *sqlClient) Execute(statements []string, onError model.SQLOnError) ([]string, error) {
	var warnings []string
	for _, stmt := range statements {
		if _, err := c.db.Exec(stmt); err != nil {
			wrapped := &bterrors.SQLError{Query: stmt, Database: c.name, MaskedURL: c.maskedURL, Underlying: err}
			if onError == model.SQLOnErrorFail {
				return warnings, wrapped
			}
			warnings = append(warnings, wrapped.Error())
		}
	}
	return warnings, nil
}

func (c *sqlClient) Query(query string) (Rows, error) {
	rows, err := c.db.Query(query)
	if err != nil {
		return Rows{}, &bterrors.SQLError{Query: query, Database: c.name, MaskedURL: c.maskedURL, Underlying: err}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return Rows{}, &bterrors.SQLError{Query: query, Database: c.name, MaskedURL: c.maskedURL, Underlying: err}
	}

	result := Rows{Columns: cols}
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return Rows{}, &bterrors.SQLError{Query: query, Database: c.name, MaskedURL: c.maskedURL, Underlying: err}
		}
		row := make([]string, len(cols))
		for i, v := range raw {
			row[i] = stringifyCell(v)
		}
		result.Values = append(result.Values, row)
	}
	if err := rows.Err(); err != nil {
		return Rows{}, &bterrors.SQLError{Query: query, Database: c.name, MaskedURL: c.maskedURL, Underlying: err}
	}
	return result, nil
}

func (c *sqlClient) Close() error { return c.db.Close() }

func stringifyCell(v any) string {
	if v == nil {
		return "NULL"
	}
	switch t := v.(type) {
	case []byte:
		return string(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func openPostgres(name, url, masked string) (Client, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, &bterrors.SQLError{Database: name, MaskedURL: masked, Underlying: err}
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, &bterrors.SQLError{Database: name, MaskedURL: masked, Underlying: err}
	}
	return &sqlClient{db: db, name: name, maskedURL: masked}, nil
}
