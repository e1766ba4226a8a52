package geopackage

import (
	"fmt"
	"strings"
)

// MappedColumn maps one destination column to its source during a table
// rebuild.
type MappedColumn struct {
	// ToColumn is the destination column name.
	ToColumn string
	// FromColumn is the source column name. Empty means the column has no
	// source and is filled from its constant or default value.
	FromColumn string
	// DataType controls how constant, default and where values are written.
	DataType DataType

	defaultValue  any
	hasDefault    bool
	constantValue any
	hasConstant   bool
	whereValue    any
	hasWhere      bool
	whereOperator string
}

// NewMappedColumn maps a destination column to a source column. Pass an empty
// from for a column without a source.
func NewMappedColumn(to, from string, dataType DataType) *MappedColumn {
	return &MappedColumn{ToColumn: to, FromColumn: from, DataType: dataType}
}

// HasNewName reports whether the column is renamed by the mapping.
func (c *MappedColumn) HasNewName() bool {
	return c.FromColumn != "" && c.FromColumn != c.ToColumn
}

// SetDefault sets the value used when the source value is NULL. A nil value
// is the SQL NULL literal.
func (c *MappedColumn) SetDefault(v any) *MappedColumn {
	c.defaultValue, c.hasDefault = v, true
	return c
}

// Default returns the default value and whether one is set.
func (c *MappedColumn) Default() (any, bool) { return c.defaultValue, c.hasDefault }

// HasDefaultValue reports whether a default value is set.
func (c *MappedColumn) HasDefaultValue() bool { return c.hasDefault }

// SetConstant sets a value written to every transferred row, ignoring the
// source column.
func (c *MappedColumn) SetConstant(v any) *MappedColumn {
	c.constantValue, c.hasConstant = v, true
	return c
}

// Constant returns the constant value and whether one is set.
func (c *MappedColumn) Constant() (any, bool) { return c.constantValue, c.hasConstant }

// HasConstantValue reports whether a constant value is set.
func (c *MappedColumn) HasConstantValue() bool { return c.hasConstant }

// SetWhere restricts the transferred rows to those whose source column
// compares to v with op. An empty op means "=".
func (c *MappedColumn) SetWhere(v any, op string) *MappedColumn {
	c.whereValue, c.hasWhere = v, true
	c.whereOperator = strings.TrimSpace(op)
	return c
}

// Where returns the filter value and whether one is set.
func (c *MappedColumn) Where() (any, bool) { return c.whereValue, c.hasWhere }

// HasWhereValue reports whether a row filter is set.
func (c *MappedColumn) HasWhereValue() bool { return c.hasWhere }

// WhereOperator returns the filter comparison operator, "=" by default.
func (c *MappedColumn) WhereOperator() string {
	if c.whereOperator == "" {
		return "="
	}
	return c.whereOperator
}

// TableMapping describes how the columns of a source table map onto a
// destination table during a rebuild. The destination equals the source for
// an in-place alteration and differs for a copy.
type TableMapping struct {
	FromTable string
	ToTable   string

	// TransferContent copies the source rows into the new table when true.
	TransferContent bool

	// Where is an optional predicate on the source rows, ANDed with the
	// per-column filters.
	Where string

	columns map[string]*MappedColumn
	order   []string
	dropped []string
}

// NewTableMapping returns an empty mapping from one table to another.
func NewTableMapping(from, to string) *TableMapping {
	if to == "" {
		to = from
	}
	return &TableMapping{
		FromTable:       from,
		ToTable:         to,
		TransferContent: true,
		columns:         make(map[string]*MappedColumn),
	}
}

// NewTableMappingFromTable maps every column of table onto itself, leaving out
// generated columns. The dropped columns are recorded so that dependent SQL
// mentioning them is discarded.
func NewTableMappingFromTable(table *Table, dropped ...string) *TableMapping {
	m := NewTableMapping(table.Name, table.Name)
	for _, col := range table.Columns {
		if col.IsGenerated() {
			continue
		}
		m.AddColumn(NewMappedColumn(col.Name, col.Name, ParseDataType(col.Type)))
	}
	m.AddDroppedColumns(dropped...)
	return m
}

// NewTableMappingFromInfo maps every insertable column of an introspected
// table onto a table named newTable (the same table when newTable is empty).
// Generated and hidden columns cannot be inserted into and are left out.
func NewTableMappingFromInfo(info *TableInfo, newTable string) *TableMapping {
	m := NewTableMapping(info.Name, newTable)
	for _, col := range info.Columns {
		if col.Hidden != 0 {
			continue
		}
		m.AddColumn(NewMappedColumn(col.Name, col.Name, col.DataType()))
	}
	return m
}

// IsNewTable reports whether the mapping copies into a differently named table.
func (m *TableMapping) IsNewTable() bool {
	return m.ToTable != "" && m.ToTable != m.FromTable
}

// AddColumn adds or replaces the mapping for c.ToColumn.
func (m *TableMapping) AddColumn(c *MappedColumn) {
	if m.columns == nil {
		m.columns = make(map[string]*MappedColumn)
	}
	if _, ok := m.columns[c.ToColumn]; !ok {
		m.order = append(m.order, c.ToColumn)
	}
	m.columns[c.ToColumn] = c
}

// AddColumnName maps a column onto a column of the same name.
func (m *TableMapping) AddColumnName(name string) *MappedColumn {
	c := NewMappedColumn(name, name, DataTypeUnknown)
	m.AddColumn(c)
	return c
}

// Column returns the mapping of a destination column, or nil.
func (m *TableMapping) Column(name string) *MappedColumn {
	return m.columns[name]
}

// RemoveColumn removes and returns the mapping of a destination column.
func (m *TableMapping) RemoveColumn(name string) *MappedColumn {
	c, ok := m.columns[name]
	if !ok {
		return nil
	}
	delete(m.columns, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return c
}

// RenameColumn changes the destination name of a mapped column, keeping its
// source.
func (m *TableMapping) RenameColumn(from, to string) error {
	c := m.Column(from)
	if c == nil {
		return fmt.Errorf("%w: column %q is not mapped in %s", ErrDefinition, from, m.FromTable)
	}
	if from == to {
		return nil
	}
	if m.Column(to) != nil {
		return fmt.Errorf("%w: column %q already mapped in %s", ErrDefinition, to, m.ToTable)
	}
	for i, n := range m.order {
		if n == from {
			m.order[i] = to
		}
	}
	delete(m.columns, from)
	c.ToColumn = to
	m.columns[to] = c
	return nil
}

// Columns returns the column mappings in insertion order.
func (m *TableMapping) Columns() []*MappedColumn {
	out := make([]*MappedColumn, 0, len(m.order))
	for _, n := range m.order {
		out = append(out, m.columns[n])
	}
	return out
}

// ColumnNames returns the destination column names in insertion order.
func (m *TableMapping) ColumnNames() []string {
	return append([]string(nil), m.order...)
}

// AddDroppedColumns records columns removed from the destination table.
func (m *TableMapping) AddDroppedColumns(names ...string) {
	for _, n := range names {
		if !m.IsDroppedColumn(n) {
			m.dropped = append(m.dropped, n)
		}
	}
}

// DroppedColumns returns the dropped column names.
func (m *TableMapping) DroppedColumns() []string {
	return append([]string(nil), m.dropped...)
}

// IsDroppedColumn reports whether name was dropped.
func (m *TableMapping) IsDroppedColumn(name string) bool {
	for _, d := range m.dropped {
		if d == name {
			return true
		}
	}
	return false
}

// Validate checks the mapping for definition errors.
func (m *TableMapping) Validate() error {
	if m.FromTable == "" {
		return fmt.Errorf("%w: mapping has no source table", ErrDefinition)
	}
	if m.ToTable == "" {
		return fmt.Errorf("%w: mapping has no destination table", ErrDefinition)
	}
	if m.TransferContent && len(m.order) == 0 {
		return fmt.Errorf("%w: mapping for %s has no columns to transfer", ErrDefinition, m.FromTable)
	}
	for _, c := range m.Columns() {
		switch {
		case c.ToColumn == "":
			return fmt.Errorf("%w: mapped column without a destination name in %s", ErrDefinition, m.FromTable)
		case c.FromColumn == "" && !c.hasConstant && !c.hasDefault:
			return fmt.Errorf("%w: column %q has no source, constant or default", ErrDefinition, c.ToColumn)
		case c.FromColumn == "" && c.hasWhere:
			return fmt.Errorf("%w: column %q has a where filter but no source", ErrDefinition, c.ToColumn)
		case c.FromColumn != "" && m.IsDroppedColumn(c.FromColumn):
			return fmt.Errorf("%w: column %q is read from dropped column %q", ErrDefinition, c.ToColumn, c.FromColumn)
		}
	}
	return nil
}

// forTable returns a shallow copy of the mapping writing into table.
func (m *TableMapping) forTable(table string) *TableMapping {
	c := *m
	c.ToTable = table
	return &c
}
