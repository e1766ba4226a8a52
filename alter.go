package geopackage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// alterPlan produces the new table definition and the column mapping of a
// migration. It runs inside the migration transaction, so definitions are
// read from the same snapshot the migration writes to.
type alterPlan func(ctx context.Context, q Queryer) (createSQL string, m *TableMapping, err error)

// alterHook runs inside the migration transaction after the table and its
// dependent objects are in place.
type alterHook func(ctx context.Context, q Queryer, m *TableMapping) error

// AlterTable rebuilds the source table of m with the definition createSQL.
// When the mapping's destination equals its source the table is altered in
// place: the new table is built under a temporary name, filled, and swapped
// for the original. Otherwise the source is copied into the destination.
//
// Indexes, triggers and views depending on the source table are rewritten for
// the new shape and recreated. Objects that cannot be recreated are logged and
// recorded in the report without failing the migration. Everything runs in
// one transaction with foreign key enforcement switched off; when enforcement
// was on, a foreign key check must pass before the transaction commits.
func (d *DB) AlterTable(ctx context.Context, createSQL string, m *TableMapping) (*Report, error) {
	if strings.TrimSpace(createSQL) == "" {
		return nil, fmt.Errorf("alter table %s: %w: empty table definition", m.FromTable, ErrDefinition)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("alter table %s: %w", m.FromTable, err)
	}
	return d.migrate(ctx, m.FromTable, func(context.Context, Queryer) (string, *TableMapping, error) {
		return createSQL, m, nil
	}, nil)
}

// AlterUserTable rebuilds table.Name with the definition of table. Every
// column of table is read from the column of the same name.
func (d *DB) AlterUserTable(ctx context.Context, table *Table) (*Report, error) {
	return d.AlterTable(ctx, table.CreateSQL(), NewTableMappingFromTable(table))
}

// CopyTable copies table, its indexes, triggers and views to newName. Spatial
// index triggers are not copied. Rows are copied when transferContent is
// true. The GeoPackage metadata rows of table are registered for the copy.
func (d *DB) CopyTable(ctx context.Context, table, newName string, transferContent bool) (*Report, error) {
	if newName == "" || newName == table {
		return nil, fmt.Errorf("copy table %s: %w: new name must differ from the table name", table, ErrDefinition)
	}
	plan := func(ctx context.Context, q Queryer) (string, *TableMapping, error) {
		createSQL, err := NewCatalog(q).TableSQL(ctx, table)
		if err != nil {
			return "", nil, err
		}
		info, err := ReadTableInfo(ctx, q, table)
		if err != nil {
			return "", nil, err
		}
		m := NewTableMappingFromInfo(info, newName)
		m.TransferContent = transferContent
		return createSQL, m, nil
	}
	hook := func(ctx context.Context, q Queryer, m *TableMapping) error {
		return copyTableMetadata(ctx, q, m.FromTable, m.ToTable)
	}
	return d.migrate(ctx, table, plan, hook)
}

// DropColumn drops a column from table.
func (d *DB) DropColumn(ctx context.Context, table, column string) (*Report, error) {
	return d.DropColumns(ctx, table, []string{column})
}

// DropColumns drops columns from table. Table constraints naming a dropped
// column are removed; indexes, triggers and views naming one are discarded.
func (d *DB) DropColumns(ctx context.Context, table string, columns []string) (*Report, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("drop columns from %s: %w: no columns given", table, ErrDefinition)
	}
	var dropped []string
	plan := func(ctx context.Context, q Queryer) (string, *TableMapping, error) {
		t, err := ReadTable(ctx, q, table)
		if err != nil {
			return "", nil, err
		}
		dropped = dropped[:0]
		for _, c := range columns {
			col := t.Column(c)
			if col == nil {
				return "", nil, fmt.Errorf("%w: column %q does not exist in %s", ErrDefinition, c, table)
			}
			dropped = append(dropped, col.Name)
		}
		if err := t.DropColumns(dropped...); err != nil {
			return "", nil, err
		}
		return t.CreateSQL(), NewTableMappingFromTable(t, dropped...), nil
	}
	hook := func(ctx context.Context, q Queryer, _ *TableMapping) error {
		return dropColumnMetadata(ctx, q, table, dropped)
	}
	return d.migrate(ctx, table, plan, hook)
}

// RenameColumns renames columns of table by rebuilding it, mapping old names
// to new names. Dependent indexes, triggers and views are rewritten.
func (d *DB) RenameColumns(ctx context.Context, table string, renames map[string]string) (*Report, error) {
	if len(renames) == 0 {
		return nil, fmt.Errorf("rename columns of %s: %w: no columns given", table, ErrDefinition)
	}
	olds := make([]string, 0, len(renames))
	for old := range renames {
		olds = append(olds, old)
	}
	sort.Strings(olds)

	type rename struct{ from, to string }
	var applied []rename
	plan := func(ctx context.Context, q Queryer) (string, *TableMapping, error) {
		t, err := ReadTable(ctx, q, table)
		if err != nil {
			return "", nil, err
		}
		m := NewTableMappingFromTable(t)
		applied = applied[:0]
		for _, old := range olds {
			col := t.Column(old)
			if col == nil {
				return "", nil, fmt.Errorf("%w: column %q does not exist in %s", ErrDefinition, old, table)
			}
			from, to := col.Name, renames[old]
			if err := t.RenameColumn(from, to); err != nil {
				return "", nil, err
			}
			if mc := m.Column(from); mc != nil {
				if err := m.RenameColumn(from, to); err != nil {
					return "", nil, err
				}
			}
			applied = append(applied, rename{from, to})
		}
		return t.CreateSQL(), m, nil
	}
	hook := func(ctx context.Context, q Queryer, _ *TableMapping) error {
		for _, r := range applied {
			if err := renameColumnMetadata(ctx, q, table, r.from, r.to); err != nil {
				return err
			}
		}
		return nil
	}
	return d.migrate(ctx, table, plan, hook)
}

// AlterColumn replaces the definition of a column of table, e.g. to change
// its type, nullability or default.
func (d *DB) AlterColumn(ctx context.Context, table string, column Column) (*Report, error) {
	return d.AlterColumns(ctx, table, []Column{column})
}

// AlterColumns replaces the definitions of columns of table. Columns are
// matched by name. Values are copied as they are; a NULL in a column that
// becomes NOT NULL is replaced by the column default when one is given.
func (d *DB) AlterColumns(ctx context.Context, table string, columns []Column) (*Report, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("alter columns of %s: %w: no columns given", table, ErrDefinition)
	}
	plan := func(ctx context.Context, q Queryer) (string, *TableMapping, error) {
		t, err := ReadTable(ctx, q, table)
		if err != nil {
			return "", nil, err
		}
		for _, col := range columns {
			if existing := t.Column(col.Name); existing != nil {
				col.Name = existing.Name
			}
			if err := t.AlterColumn(col); err != nil {
				return "", nil, err
			}
		}
		m := NewTableMappingFromTable(t)
		for _, col := range columns {
			mc := m.Column(t.Column(col.Name).Name)
			if mc != nil && col.NotNull && col.Default != nil {
				mc.SetDefault(SQLExpression(*col.Default))
			}
		}
		return t.CreateSQL(), m, nil
	}
	return d.migrate(ctx, table, plan, nil)
}

// migrate runs the rebuild protocol for table. The plan and the hook run
// inside the transaction.
func (d *DB) migrate(ctx context.Context, table string, plan alterPlan, hook alterHook) (*Report, error) {
	var report *Report
	err := d.withForeignKeysOff(ctx, func(q Queryer, enforced bool) error {
		createSQL, m, err := plan(ctx, q)
		if err != nil {
			return err
		}
		if err := m.Validate(); err != nil {
			return err
		}
		report = &Report{Table: m.FromTable, NewTable: m.ToTable}
		if err := d.rebuild(ctx, q, createSQL, m, report); err != nil {
			return err
		}
		if hook != nil {
			if err := hook(ctx, q, m); err != nil {
				return err
			}
		}
		if enforced {
			if err := foreignKeyCheck(ctx, q, ""); err != nil {
				return err
			}
			report.FKChecked = true
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("alter table %s: %w", table, err)
	}
	d.logf("  altered table %s (%d rows, %d dependent objects)", table, report.Rows, len(report.Objects))
	return report, nil
}

// rebuild creates the new table, transfers rows, swaps tables for an in-place
// alteration and recreates the dependent objects.
func (d *DB) rebuild(ctx context.Context, q Queryer, createSQL string, m *TableMapping, r *Report) error {
	catalog := NewCatalog(q)

	if err := requireTable(ctx, q, m.FromTable); err != nil {
		return err
	}
	if m.IsNewTable() {
		exists, err := tableExists(ctx, q, m.ToTable)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: table %q already exists", ErrDefinition, m.ToTable)
		}
	}

	views, err := catalog.QueryViewsOnTable(ctx, m.FromTable)
	if err != nil {
		return err
	}
	if !m.IsNewTable() {
		for _, v := range views {
			stmt := "DROP VIEW IF EXISTS " + QuoteWrap(v.Name)
			if _, err := execSQL(ctx, q, stmt); err != nil {
				d.warnf("drop view %s: %v", v.Name, err)
				r.add(ObjectResult{Name: v.Name, Type: v.Type, Status: StatusFailed, SQL: stmt, Err: err})
				continue
			}
			r.add(ObjectResult{Name: v.Name, Type: v.Type, Status: StatusDropped, SQL: stmt})
		}
	}

	objects, err := catalog.QueryByOwner(ctx, m.FromTable, CatalogIndex, CatalogTrigger)
	if err != nil {
		return err
	}

	createName := m.ToTable
	if !m.IsNewTable() {
		if createName, err = tempTableName(ctx, catalog, m.FromTable); err != nil {
			return err
		}
	}

	ddl, err := renameCreateTable(createSQL, createName)
	if err != nil {
		return err
	}
	if _, err := execSQL(ctx, q, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", createName, err)
	}

	if m.TransferContent {
		transfer, err := TransferSQL(m.forTable(createName))
		if err != nil {
			return err
		}
		n, err := execSQL(ctx, q, transfer)
		if err != nil {
			return fmt.Errorf("transfer content: %w", err)
		}
		r.Rows = n
	}

	if !m.IsNewTable() {
		if err := swapTables(ctx, q, createName, m.FromTable); err != nil {
			return err
		}
	}

	for _, obj := range objects {
		if m.IsNewTable() && obj.Type == CatalogTrigger && strings.HasPrefix(obj.Name, rtreeTriggerPrefix) {
			r.add(ObjectResult{Name: obj.Name, Type: obj.Type, Status: StatusSkipped})
			continue
		}
		d.recreate(ctx, q, catalog, obj, m, r)
	}
	for _, v := range views {
		d.recreate(ctx, q, catalog, v, m, r)
	}
	return nil
}

// recreate rewrites and executes the SQL of a dependent object. Failures are
// recorded, not returned.
func (d *DB) recreate(ctx context.Context, q Queryer, catalog Catalog, obj CatalogEntry, m *TableMapping, r *Report) {
	stmt, ok, err := ModifySQL(ctx, catalog, obj.Name, obj.SQL, m)
	if err != nil {
		d.warnf("rewrite %s %s: %v", obj.Type, obj.Name, err)
		r.add(ObjectResult{Name: obj.Name, Type: obj.Type, Status: StatusFailed, SQL: obj.SQL, Err: err})
		return
	}
	if !ok {
		d.warnf("%s %s references a dropped column of %s, not recreated", obj.Type, obj.Name, m.FromTable)
		r.add(ObjectResult{Name: obj.Name, Type: obj.Type, Status: StatusDiscarded, SQL: obj.SQL})
		return
	}
	if _, err := execSQL(ctx, q, stmt); err != nil {
		d.warnf("recreate %s %s: %v", obj.Type, obj.Name, err)
		r.add(ObjectResult{Name: obj.Name, Type: obj.Type, Status: StatusFailed, SQL: stmt, Err: err})
		return
	}
	r.add(ObjectResult{Name: obj.Name, Type: obj.Type, Status: StatusRecreated, SQL: stmt})
}

// swapTables drops table and renames tmp to take its place. Legacy ALTER
// TABLE behavior is switched on for the swap: triggers and views of other
// tables that mention table must survive the moment it is missing, and they
// are left untouched by the rename.
func swapTables(ctx context.Context, q Queryer, tmp, table string) (err error) {
	guard, err := overridePragma(ctx, q, "legacy_alter_table", "1")
	if err != nil {
		return err
	}
	defer func() {
		if rerr := guard.restore(ctx); rerr != nil {
			err = errors.Join(err, fmt.Errorf("restore legacy_alter_table: %w", rerr))
		}
	}()

	if _, err := execSQL(ctx, q, "DROP TABLE "+QuoteWrap(table)); err != nil {
		return fmt.Errorf("drop table %s: %w", table, err)
	}
	if _, err := execSQL(ctx, q, RenameTableSQL(tmp, table)); err != nil {
		return fmt.Errorf("rename table %s: %w", tmp, err)
	}
	return nil
}

// tempTableName returns new_<table>, numbered when that name is taken.
func tempTableName(ctx context.Context, catalog Catalog, table string) (string, error) {
	name := "new_" + table
	n, err := catalog.CountByName(ctx, name)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return name, nil
	}
	return CreateName(ctx, catalog, name, "", "")
}
