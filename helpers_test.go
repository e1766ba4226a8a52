package geopackage

import (
	"context"
	"database/sql"
	"io"
	"log"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// newTestDB creates an empty GeoPackage in a temporary directory.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Create(context.Background(), filepath.Join(t.TempDir(), "test.gpkg"), WithLogger(log.New(io.Discard, "", 0)))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func mustExec(t *testing.T, db *DB, stmts ...string) {
	t.Helper()
	for _, stmt := range stmts {
		_, err := db.Exec(context.Background(), stmt)
		require.NoError(t, err, stmt)
	}
}

// queryStrings returns the first column of every row as text.
func queryStrings(t *testing.T, db *DB, query string, args ...any) []string {
	t.Helper()
	rows, err := db.SQL().QueryContext(context.Background(), query, args...)
	require.NoError(t, err, query)
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s sql.NullString
		require.NoError(t, rows.Scan(&s))
		out = append(out, s.String)
	}
	require.NoError(t, rows.Err())
	return out
}

func queryInt(t *testing.T, db *DB, query string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.SQL().QueryRowContext(context.Background(), query, args...).Scan(&n), query)
	return n
}

func catalogNames(t *testing.T, db *DB, typ CatalogType, table string) []string {
	t.Helper()
	return queryStrings(t, db,
		"SELECT name FROM sqlite_master WHERE type = ? AND tbl_name = ? ORDER BY name", string(typ), table)
}

func statusesOf(r *Report, name string) []ObjectStatus {
	var out []ObjectStatus
	for _, o := range r.Objects {
		if o.Name == name {
			out = append(out, o.Status)
		}
	}
	return out
}

func ptr[T any](v T) *T { return &v }

// fakeCatalog answers CountByName from a fixed set of names.
type fakeCatalog struct {
	names map[string]bool
	all   bool
}

func (c *fakeCatalog) QueryByOwner(context.Context, string, ...CatalogType) ([]CatalogEntry, error) {
	return nil, nil
}

func (c *fakeCatalog) CountByName(_ context.Context, name string) (int, error) {
	if c.all || c.names[name] {
		return 1, nil
	}
	return 0, nil
}
