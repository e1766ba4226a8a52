package geopackage

import (
	"fmt"
	"strings"

	"github.com/sqldef/sqldef/v3/parser"
)

// Column is a column definition of a user table.
type Column struct {
	Name          string
	Type          string // declared type, e.g. "TEXT", "POINT", "VARCHAR(20)"
	NotNull       bool
	PrimaryKey    bool
	Autoincrement bool
	Unique        bool
	Default       *string // SQL expression, e.g. "0", "'abc'", "(CURRENT_TIMESTAMP)"
	// Constraints holds the remaining column constraints verbatim
	// (CHECK, REFERENCES, COLLATE, GENERATED, named constraints).
	Constraints []string
}

// DataType returns the GeoPackage data type of the declared column type.
func (c Column) DataType() DataType {
	return ParseDataType(c.Type)
}

// IsGenerated reports whether the column is a generated column. Generated
// columns cannot be written to.
func (c Column) IsGenerated() bool {
	for _, con := range c.Constraints {
		tokens := tokenize(con)
		if len(tokens) > 2 && tokens[0].is("CONSTRAINT") {
			tokens = tokens[2:]
		}
		if len(tokens) > 0 && (tokens[0].is("GENERATED") || tokens[0].is("AS")) {
			return true
		}
	}
	return false
}

// Definition renders the column as it appears inside CREATE TABLE.
func (c Column) Definition() string {
	var b strings.Builder
	b.WriteString(QuoteWrap(c.Name))
	if c.Type != "" {
		b.WriteByte(' ')
		b.WriteString(c.Type)
	}
	if c.PrimaryKey {
		b.WriteString(" PRIMARY KEY")
		if c.Autoincrement {
			b.WriteString(" AUTOINCREMENT")
		}
	}
	if c.NotNull {
		b.WriteString(" NOT NULL")
	}
	if c.Unique {
		b.WriteString(" UNIQUE")
	}
	if c.Default != nil {
		b.WriteString(" DEFAULT ")
		b.WriteString(*c.Default)
	}
	for _, con := range c.Constraints {
		b.WriteByte(' ')
		b.WriteString(con)
	}
	return b.String()
}

// CheckDefault parses the default expression of c with the SQLite grammar
// of sqldef. A default is spliced into CREATE TABLE, ALTER TABLE and the row
// transfer, so it must be a single expression.
func (c Column) CheckDefault() error {
	if c.Default == nil {
		return nil
	}
	ddl := "CREATE TABLE t (c TEXT DEFAULT " + *c.Default + ")"
	if _, err := parser.ParseDDL(ddl, parser.ParserModeSQLite3); err != nil {
		return fmt.Errorf("%w: default %q of column %s: %v", ErrDefinition, *c.Default, c.Name, err)
	}
	return nil
}

// Table is the definition of a user table.
type Table struct {
	Name    string
	Columns []Column
	// Constraints holds the table constraints verbatim (PRIMARY KEY (...),
	// UNIQUE (...), CHECK (...), FOREIGN KEY ...).
	Constraints []string
	// Options follow the column list, e.g. "WITHOUT ROWID" or "STRICT".
	Options string
}

// CreateSQL renders the CREATE TABLE statement for t.
func (t *Table) CreateSQL() string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", QuoteWrap(t.Name))

	n := len(t.Columns) + len(t.Constraints)
	i := 0
	line := func(s string) {
		b.WriteString("  ")
		b.WriteString(s)
		i++
		if i < n {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	for _, col := range t.Columns {
		line(col.Definition())
	}
	for _, con := range t.Constraints {
		line(con)
	}

	b.WriteString(")")
	if t.Options != "" {
		b.WriteByte(' ')
		b.WriteString(t.Options)
	}
	return b.String()
}

// Column returns the named column, or nil.
func (t *Table) Column(name string) *Column {
	if i := t.ColumnIndex(name); i >= 0 {
		return &t.Columns[i]
	}
	return nil
}

// ColumnIndex returns the position of the named column, or -1. Column names
// compare case-insensitively, as in SQLite.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// ColumnNames returns the column names in table order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Copy returns a deep copy of t.
func (t *Table) Copy() *Table {
	c := &Table{
		Name:        t.Name,
		Columns:     make([]Column, len(t.Columns)),
		Constraints: append([]string(nil), t.Constraints...),
		Options:     t.Options,
	}
	for i, col := range t.Columns {
		col.Constraints = append([]string(nil), col.Constraints...)
		if col.Default != nil {
			d := *col.Default
			col.Default = &d
		}
		c.Columns[i] = col
	}
	return c
}

// AddColumn appends a column definition.
func (t *Table) AddColumn(col Column) error {
	if col.Name == "" {
		return fmt.Errorf("%w: column without a name in %s", ErrDefinition, t.Name)
	}
	if t.Column(col.Name) != nil {
		return fmt.Errorf("%w: column %q already exists in %s", ErrDefinition, col.Name, t.Name)
	}
	if err := col.CheckDefault(); err != nil {
		return err
	}
	t.Columns = append(t.Columns, col)
	return nil
}

// AlterColumn replaces the definition of the column with the same name.
func (t *Table) AlterColumn(col Column) error {
	i := t.ColumnIndex(col.Name)
	if i < 0 {
		return fmt.Errorf("%w: column %q does not exist in %s", ErrDefinition, col.Name, t.Name)
	}
	if err := col.CheckDefault(); err != nil {
		return err
	}
	t.Columns[i] = col
	return nil
}

// DropColumns removes the named columns together with every table or column
// constraint that refers to them.
func (t *Table) DropColumns(names ...string) error {
	for _, name := range names {
		i := t.ColumnIndex(name)
		if i < 0 {
			return fmt.Errorf("%w: column %q does not exist in %s", ErrDefinition, name, t.Name)
		}
		dropped := t.Columns[i].Name
		t.Columns = append(t.Columns[:i], t.Columns[i+1:]...)
		t.Constraints = t.keepConstraints(t.Constraints, dropped)
		for j := range t.Columns {
			t.Columns[j].Constraints = t.keepConstraints(t.Columns[j].Constraints, dropped)
		}
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("%w: cannot drop every column of %s", ErrDefinition, t.Name)
	}
	return nil
}

// RenameColumn renames a column and its occurrences in constraints.
func (t *Table) RenameColumn(from, to string) error {
	i := t.ColumnIndex(from)
	if i < 0 {
		return fmt.Errorf("%w: column %q does not exist in %s", ErrDefinition, from, t.Name)
	}
	if j := t.ColumnIndex(to); j >= 0 && j != i {
		return fmt.Errorf("%w: column %q already exists in %s", ErrDefinition, to, t.Name)
	}
	from = t.Columns[i].Name
	t.Columns[i].Name = to
	for k, con := range t.Constraints {
		t.Constraints[k] = t.renameInConstraint(con, from, to)
	}
	for j := range t.Columns {
		for k, con := range t.Columns[j].Constraints {
			t.Columns[j].Constraints[k] = t.renameInConstraint(con, from, to)
		}
	}
	return nil
}

func (t *Table) keepConstraints(constraints []string, column string) []string {
	var kept []string
	for _, con := range constraints {
		local, _ := t.splitReferences(con)
		if !ContainsName(local, column) {
			kept = append(kept, con)
		}
	}
	return kept
}

func (t *Table) renameInConstraint(con, from, to string) string {
	local, parent := t.splitReferences(con)
	if s, ok := ReplaceName(local, from, to); ok {
		local = s
	}
	return local + parent
}

// splitReferences splits a constraint at its REFERENCES clause. Names in the
// clause belong to the parent table, unless the parent is t itself, in which
// case the whole constraint is local.
func (t *Table) splitReferences(con string) (local, parent string) {
	tokens := tokenize(con)
	for i, tok := range tokens {
		if !tok.is("REFERENCES") {
			continue
		}
		if i+1 < len(tokens) && strings.EqualFold(tokens[i+1].name(), t.Name) {
			return con, ""
		}
		return con[:tok.start], con[tok.start:]
	}
	return con, ""
}
