package geopackage

import (
	"context"
	"strconv"
)

// ModifySQL rewrites the SQL of an index, trigger or view that depends on the
// mapping's source table so that it applies to the destination table.
//
// For a copy into a new table the object gets a new name derived with
// CreateName and the table name is replaced. Renamed columns are replaced by
// their new names. When the SQL mentions a dropped column the object cannot be
// salvaged: ok is false and the object must not be recreated.
//
// catalog may be nil, in which case derived names are not checked for
// collisions.
func ModifySQL(ctx context.Context, catalog Catalog, name, sql string, m *TableMapping) (updated string, ok bool, err error) {
	updated = sql

	if name != "" && m.IsNewTable() {
		newName, err := CreateName(ctx, catalog, name, m.FromTable, m.ToTable)
		if err != nil {
			return "", false, err
		}
		if s, changed := ReplaceName(updated, name, newName); changed {
			updated = s
		}
		if s, changed := ReplaceName(updated, m.FromTable, m.ToTable); changed {
			updated = s
		}
	}

	for _, col := range m.dropped {
		if _, changed := ReplaceName(updated, col, " "); changed {
			return "", false, nil
		}
	}

	// Renames go through placeholders so that swapped names (a->b, b->a) do
	// not rewrite each other.
	var pending []*MappedColumn
	for _, c := range m.Columns() {
		if !c.HasNewName() {
			continue
		}
		if s, changed := ReplaceName(updated, c.FromColumn, renamePlaceholder(len(pending))); changed {
			updated = s
			pending = append(pending, c)
		} else {
			pending = append(pending, nil)
		}
	}
	for i, c := range pending {
		if c == nil {
			continue
		}
		if s, changed := ReplaceName(updated, renamePlaceholder(i), c.ToColumn); changed {
			updated = s
		}
	}
	return updated, true, nil
}

func renamePlaceholder(i int) string {
	return "__gpkg_rename_" + strconv.Itoa(i) + "__"
}
