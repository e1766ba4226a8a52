package geopackage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// ForeignKeyViolation is one row of PRAGMA foreign_key_check.
type ForeignKeyViolation struct {
	Table  string // referencing table
	RowID  *int64 // nil for WITHOUT ROWID tables
	Parent string // referenced table
	FKID   int    // index of the failed constraint in PRAGMA foreign_key_list
}

func (v ForeignKeyViolation) values() []string {
	rowid := "NULL"
	if v.RowID != nil {
		rowid = strconv.FormatInt(*v.RowID, 10)
	}
	return []string{v.Table, rowid, v.Parent, strconv.Itoa(v.FKID)}
}

// ForeignKeyViolationError aggregates every violation found by a foreign key
// check.
type ForeignKeyViolationError struct {
	Violations []ForeignKeyViolation
}

func (e *ForeignKeyViolationError) Error() string {
	var b strings.Builder
	b.WriteString("foreign key check violations:")
	for i, v := range e.Violations {
		fmt.Fprintf(&b, " %d: %s", i+1, strings.Join(v.values(), ", "))
	}
	return b.String()
}

// ForeignKeyCheck runs PRAGMA foreign_key_check on the whole database, or on
// table when it is not empty. It returns a *ForeignKeyViolationError listing
// every violation, or nil.
func (d *DB) ForeignKeyCheck(ctx context.Context, table string) error {
	return foreignKeyCheck(ctx, d.db, table)
}

// ForeignKeyViolations returns the rows of PRAGMA foreign_key_check.
func (d *DB) ForeignKeyViolations(ctx context.Context, table string) ([]ForeignKeyViolation, error) {
	return foreignKeyViolations(ctx, d.db, table)
}

func foreignKeyCheck(ctx context.Context, q Queryer, table string) error {
	violations, err := foreignKeyViolations(ctx, q, table)
	if err != nil {
		return err
	}
	if len(violations) > 0 {
		return &ForeignKeyViolationError{Violations: violations}
	}
	return nil
}

func foreignKeyViolations(ctx context.Context, q Queryer, table string) ([]ForeignKeyViolation, error) {
	query := "PRAGMA foreign_key_check"
	if table != "" {
		query += "(" + QuoteWrap(table) + ")"
	}
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("foreign key check: %w", err)
	}
	defer rows.Close()

	var out []ForeignKeyViolation
	for rows.Next() {
		var v ForeignKeyViolation
		if err := rows.Scan(&v.Table, &v.RowID, &v.Parent, &v.FKID); err != nil {
			return nil, fmt.Errorf("foreign key check: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("foreign key check: %w", err)
	}
	return out, nil
}
