// Package geopackage reads and writes GeoPackage (SQLite) files and evolves the
// schema of existing tables.
//
// SQLite can only rename tables, rename columns and add columns natively. The
// other alterations (dropping, renaming or retyping columns with dependent
// objects, copying a table under a new name) are emulated by building a new
// table, rewriting the SQL of dependent indexes, triggers and views, migrating
// rows and swapping the tables inside a single transaction.
package geopackage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
)

// Queryer is the statement surface shared by *sql.DB, *sql.Conn and *sql.Tx.
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// DB is a handle to a GeoPackage file.
type DB struct {
	db     *sql.DB
	logger *log.Logger
}

// Option configures a DB.
type Option func(*DB)

// WithLogger sets the logger used for non-fatal migration diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(d *DB) {
		if l != nil {
			d.logger = l
		}
	}
}

// Open opens the SQLite database at dsn. The pool is limited to one
// connection: pragmas are connection state and in-memory databases are
// private to the connection that created them.
func Open(ctx context.Context, dsn string, opts ...Option) (*DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return New(db, opts...), nil
}

// New wraps an existing database handle.
func New(db *sql.DB, opts ...Option) *DB {
	d := &DB{db: db, logger: log.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DriverName returns the database/sql driver name in use ("sqlite" for the
// pure-Go driver, "sqlite3" when built with the cgo_sqlite tag).
func DriverName() string { return driverName }

// DriverPackage returns the import path of the SQLite driver in use.
func DriverPackage() string { return driverPackage }

// SQL returns the underlying database handle.
func (d *DB) SQL() *sql.DB { return d.db }

// Close closes the database.
func (d *DB) Close() error { return d.db.Close() }

// Exec runs a statement that returns no rows and reports the rows affected.
func (d *DB) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return execSQL(ctx, d.db, query, args...)
}

// QueryAll runs a query and returns every row as a slice of column values.
func (d *DB) QueryAll(ctx context.Context, query string, args ...any) ([][]any, error) {
	return queryAll(ctx, d.db, query, args...)
}

// WithTransaction runs fn inside a transaction. The transaction commits when
// fn returns nil and rolls back otherwise.
func (d *DB) WithTransaction(ctx context.Context, fn func(q Queryer) error) error {
	return withTransaction(ctx, d.db, func(tx *sql.Tx) error { return fn(tx) })
}

// TableExists reports whether a table or view with the given name exists.
func (d *DB) TableExists(ctx context.Context, name string) (bool, error) {
	return tableExists(ctx, d.db, name)
}

// Pragma returns the current value of a pragma as text.
func (d *DB) Pragma(ctx context.Context, name string) (string, error) {
	return getPragma(ctx, d.db, name)
}

// SetPragma assigns a pragma value. Only bare words and integers are accepted
// as values.
func (d *DB) SetPragma(ctx context.Context, name, value string) error {
	return setPragma(ctx, d.db, name, value)
}

// ForeignKeys reports whether foreign key enforcement is on.
func (d *DB) ForeignKeys(ctx context.Context) (bool, error) {
	return foreignKeysEnabled(ctx, d.db)
}

// SetForeignKeys turns foreign key enforcement on or off. SQLite ignores the
// change while a transaction is open.
func (d *DB) SetForeignKeys(ctx context.Context, on bool) error {
	return setForeignKeys(ctx, d.db, on)
}

// execSQL runs a single statement and keeps the statement in the error.
func execSQL(ctx context.Context, q Queryer, query string, args ...any) (int64, error) {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%w\nSQL: %s", err, query)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

func queryAll(ctx context.Context, q Queryer, query string, args ...any) ([][]any, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w\nSQL: %s", err, query)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out [][]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		out = append(out, values)
	}
	return out, rows.Err()
}

func withTransaction(ctx context.Context, b txBeginner, fn func(tx *sql.Tx) error) (err error) {
	tx, err := b.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func tableExists(ctx context.Context, q Queryer, name string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type IN ('table', 'view') AND name = ?",
		name,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", name, err)
	}
	return n > 0, nil
}

func getPragma(ctx context.Context, q Queryer, name string) (string, error) {
	if !isPragmaWord(name) {
		return "", fmt.Errorf("invalid pragma name %q", name)
	}
	var value sql.NullString
	if err := q.QueryRowContext(ctx, "PRAGMA "+name).Scan(&value); err != nil {
		return "", fmt.Errorf("read pragma %s: %w", name, err)
	}
	return value.String, nil
}

func setPragma(ctx context.Context, q Queryer, name, value string) error {
	if !isPragmaWord(name) {
		return fmt.Errorf("invalid pragma name %q", name)
	}
	if !isPragmaWord(strings.TrimPrefix(value, "-")) {
		return fmt.Errorf("invalid value %q for pragma %s", value, name)
	}
	if _, err := q.ExecContext(ctx, fmt.Sprintf("PRAGMA %s = %s", name, value)); err != nil {
		return fmt.Errorf("set pragma %s: %w", name, err)
	}
	return nil
}

func isPragmaWord(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isWordChar(s[i]) || s[i] >= 0x80 {
			return false
		}
	}
	return true
}

func foreignKeysEnabled(ctx context.Context, q Queryer) (bool, error) {
	v, err := getPragma(ctx, q, "foreign_keys")
	if err != nil {
		return false, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return false, fmt.Errorf("parse foreign_keys pragma %q: %w", v, err)
	}
	return n != 0, nil
}

func setForeignKeys(ctx context.Context, q Queryer, on bool) error {
	value := "OFF"
	if on {
		value = "ON"
	}
	return setPragma(ctx, q, "foreign_keys", value)
}

// fkGuard records the foreign key enforcement state of a connection, switches
// enforcement off, and restores the recorded state on restore.
type fkGuard struct {
	q       Queryer
	enabled bool
}

func disableForeignKeys(ctx context.Context, q Queryer) (*fkGuard, error) {
	enabled, err := foreignKeysEnabled(ctx, q)
	if err != nil {
		return nil, err
	}
	g := &fkGuard{q: q, enabled: enabled}
	if enabled {
		if err := setForeignKeys(ctx, q, false); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (g *fkGuard) restore(ctx context.Context) error {
	if !g.enabled {
		return nil
	}
	return setForeignKeys(context.WithoutCancel(ctx), g.q, true)
}

// pragmaGuard records the value of a pragma it overrides and puts it back on
// restore.
type pragmaGuard struct {
	q       Queryer
	name    string
	old     string
	changed bool
}

func overridePragma(ctx context.Context, q Queryer, name, value string) (*pragmaGuard, error) {
	old, err := getPragma(ctx, q, name)
	if err != nil {
		return nil, err
	}
	g := &pragmaGuard{q: q, name: name, old: old}
	if old != value {
		if err := setPragma(ctx, q, name, value); err != nil {
			return nil, err
		}
		g.changed = true
	}
	return g, nil
}

func (g *pragmaGuard) restore(ctx context.Context) error {
	if !g.changed {
		return nil
	}
	return setPragma(context.WithoutCancel(ctx), g.q, g.name, g.old)
}
