package geopackage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// CatalogType is the type column of sqlite_master.
type CatalogType string

const (
	CatalogTable   CatalogType = "table"
	CatalogView    CatalogType = "view"
	CatalogIndex   CatalogType = "index"
	CatalogTrigger CatalogType = "trigger"
)

// CatalogEntry is a row of sqlite_master.
type CatalogEntry struct {
	Name      string
	Type      CatalogType
	TableName string
	SQL       string
}

// Catalog is the read-only view of sqlite_master used during migrations.
type Catalog interface {
	// QueryByOwner returns the entries of the given types whose owning table
	// is owner. Entries without SQL (automatic indexes) are omitted.
	QueryByOwner(ctx context.Context, owner string, types ...CatalogType) ([]CatalogEntry, error)

	// CountByName returns the number of entries named name, of any type.
	CountByName(ctx context.Context, name string) (int, error)
}

// NewCatalog returns a Catalog reading sqlite_master through q.
func NewCatalog(q Queryer) *SQLiteMaster {
	return &SQLiteMaster{q: q}
}

// SQLiteMaster implements Catalog over the sqlite_master table.
type SQLiteMaster struct {
	q Queryer
}

var _ Catalog = (*SQLiteMaster)(nil)

func (m *SQLiteMaster) QueryByOwner(ctx context.Context, owner string, types ...CatalogType) ([]CatalogEntry, error) {
	query := "SELECT name, type, tbl_name, sql FROM sqlite_master WHERE tbl_name = ? AND sql IS NOT NULL"
	args := []any{owner}
	if len(types) > 0 {
		placeholders := make([]string, len(types))
		for i, t := range types {
			placeholders[i] = "?"
			args = append(args, string(t))
		}
		query += " AND type IN (" + strings.Join(placeholders, ", ") + ")"
	}
	query += " ORDER BY rowid"

	entries, err := m.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query catalog for %s: %w", owner, err)
	}
	return entries, nil
}

func (m *SQLiteMaster) CountByName(ctx context.Context, name string) (int, error) {
	var n int
	if err := m.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE name = ?", name).Scan(&n); err != nil {
		return 0, fmt.Errorf("count catalog entries named %s: %w", name, err)
	}
	return n, nil
}

// QueryViewsOnTable returns the views whose SQL mentions table as a
// free-standing identifier.
func (m *SQLiteMaster) QueryViewsOnTable(ctx context.Context, table string) ([]CatalogEntry, error) {
	views, err := m.query(ctx,
		"SELECT name, type, tbl_name, sql FROM sqlite_master WHERE type = 'view' AND sql IS NOT NULL ORDER BY rowid",
	)
	if err != nil {
		return nil, fmt.Errorf("query views on %s: %w", table, err)
	}

	var out []CatalogEntry
	for _, v := range views {
		if ContainsName(v.SQL, table) {
			out = append(out, v)
		}
	}
	return out, nil
}

// TableSQL returns the CREATE TABLE statement stored for table.
func (m *SQLiteMaster) TableSQL(ctx context.Context, table string) (string, error) {
	var createSQL sql.NullString
	err := m.q.QueryRowContext(ctx,
		"SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?",
		table,
	).Scan(&createSQL)
	if errors.Is(err, sql.ErrNoRows) || err == nil && !createSQL.Valid {
		return "", fmt.Errorf("%w: table %q does not exist", ErrDefinition, table)
	}
	if err != nil {
		return "", fmt.Errorf("read table sql for %s: %w", table, err)
	}
	return createSQL.String, nil
}

func (m *SQLiteMaster) query(ctx context.Context, query string, args ...any) ([]CatalogEntry, error) {
	rows, err := m.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []CatalogEntry
	for rows.Next() {
		var e CatalogEntry
		var typ string
		if err := rows.Scan(&e.Name, &typ, &e.TableName, &e.SQL); err != nil {
			return nil, err
		}
		e.Type = CatalogType(typ)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// TableInfo is the column layout of a table as reported by PRAGMA table_xinfo.
type TableInfo struct {
	Name    string
	Columns []ColumnInfo
}

// ColumnInfo is one row of PRAGMA table_xinfo.
type ColumnInfo struct {
	Index      int
	Name       string
	Type       string
	NotNull    bool
	Default    *string
	PrimaryKey int // 0 = not part of the key, otherwise 1-based key position
	Hidden     int // 0=normal, 1=hidden, 2=generated stored, 3=generated virtual
}

// DataType returns the GeoPackage data type of the declared column type.
func (c ColumnInfo) DataType() DataType {
	return ParseDataType(c.Type)
}

// IsGenerated reports whether the column is a generated column.
func (c ColumnInfo) IsGenerated() bool {
	return c.Hidden == 2 || c.Hidden == 3
}

// Column returns the named column, or nil.
func (t *TableInfo) Column(name string) *ColumnInfo {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// ColumnNames returns the names of all columns, hidden ones included.
func (t *TableInfo) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// ReadTableInfo introspects the columns of table.
func ReadTableInfo(ctx context.Context, q Queryer, table string) (*TableInfo, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA table_xinfo(%s)", QuoteWrap(table)))
	if err != nil {
		return nil, fmt.Errorf("table info for %s: %w", table, err)
	}
	defer rows.Close()

	info := &TableInfo{Name: table}
	for rows.Next() {
		var cid, notnull, pk, hidden int
		var name string
		var colType sql.NullString
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &colType, &notnull, &dflt, &pk, &hidden); err != nil {
			return nil, fmt.Errorf("table info for %s: %w", table, err)
		}
		col := ColumnInfo{
			Index:      cid,
			Name:       name,
			Type:       colType.String,
			NotNull:    notnull != 0,
			PrimaryKey: pk,
			Hidden:     hidden,
		}
		if dflt.Valid {
			d := dflt.String
			col.Default = &d
		}
		info.Columns = append(info.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("table info for %s: %w", table, err)
	}
	if len(info.Columns) == 0 {
		return nil, fmt.Errorf("%w: table %q does not exist", ErrDefinition, table)
	}
	return info, nil
}
