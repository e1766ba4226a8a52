package geopackage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
)

// RenameTableSQL returns the statement renaming a table.
func RenameTableSQL(table, newName string) string {
	return fmt.Sprintf("ALTER TABLE %s RENAME TO %s", QuoteWrap(table), QuoteWrap(newName))
}

// RenameColumnSQL returns the statement renaming a column.
func RenameColumnSQL(table, column, newName string) string {
	return fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s", QuoteWrap(table), QuoteWrap(column), QuoteWrap(newName))
}

// AddColumnSQL returns the statement adding a column.
func AddColumnSQL(table string, col Column) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", QuoteWrap(table), col.Definition())
}

// RenameTable renames a table with SQLite's native ALTER TABLE and re-points
// the GeoPackage metadata rows of the table.
func (d *DB) RenameTable(ctx context.Context, table, newName string) error {
	err := d.withForeignKeysOff(ctx, func(q Queryer, _ bool) error {
		if err := requireTable(ctx, q, table); err != nil {
			return err
		}
		stmt := RenameTableSQL(table, newName)
		if _, err := execSQL(ctx, q, stmt); err != nil {
			return err
		}
		return renameTableMetadata(ctx, q, table, newName)
	})
	if err != nil {
		return fmt.Errorf("rename table %s: %w", table, err)
	}
	d.logf("  renamed table %s to %s", table, newName)
	return nil
}

// RenameColumn renames a column with SQLite's native ALTER TABLE and updates
// the GeoPackage metadata rows naming it.
func (d *DB) RenameColumn(ctx context.Context, table, column, newName string) error {
	err := d.withForeignKeysOff(ctx, func(q Queryer, _ bool) error {
		if err := requireTable(ctx, q, table); err != nil {
			return err
		}
		if _, err := execSQL(ctx, q, RenameColumnSQL(table, column, newName)); err != nil {
			return err
		}
		return renameColumnMetadata(ctx, q, table, column, newName)
	})
	if err != nil {
		return fmt.Errorf("rename column %s.%s: %w", table, column, err)
	}
	d.logf("  renamed column %s.%s to %s", table, column, newName)
	return nil
}

// AddColumn adds a column with SQLite's native ALTER TABLE.
func (d *DB) AddColumn(ctx context.Context, table string, col Column) error {
	if err := col.CheckDefault(); err != nil {
		return fmt.Errorf("add column %s.%s: %w", table, col.Name, err)
	}
	if err := requireTable(ctx, d.db, table); err != nil {
		return fmt.Errorf("add column %s.%s: %w", table, col.Name, err)
	}
	if _, err := execSQL(ctx, d.db, AddColumnSQL(table, col)); err != nil {
		return fmt.Errorf("add column %s.%s: %w", table, col.Name, err)
	}
	d.logf("  added column %s.%s", table, col.Name)
	return nil
}

func requireTable(ctx context.Context, q Queryer, table string) error {
	exists, err := tableExists(ctx, q, table)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: table %q does not exist", ErrDefinition, table)
	}
	return nil
}

// withForeignKeysOff pins one connection, switches foreign key enforcement
// off, and runs fn in a transaction on that connection. Enforcement is
// restored once the transaction has ended, whatever the outcome. fn learns
// whether enforcement was on.
func (d *DB) withForeignKeysOff(ctx context.Context, fn func(q Queryer, enforced bool) error) (err error) {
	conn, err := d.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	guard, err := disableForeignKeys(ctx, conn)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := guard.restore(ctx); rerr != nil {
			err = errors.Join(err, fmt.Errorf("restore foreign keys: %w", rerr))
		}
	}()

	return withTransaction(ctx, conn, func(tx *sql.Tx) error {
		return fn(tx, guard.enabled)
	})
}

func (d *DB) logf(format string, args ...any) {
	logger := d.logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Printf(format, args...)
}

func (d *DB) warnf(format string, args ...any) {
	d.logf("  WARN: "+format, args...)
}
