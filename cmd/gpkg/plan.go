package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v2"

	"github.com/Limetric/geopackage"
)

// Plan is a migration plan: a database, optional SQL hooks and a list of
// schema operations applied in order.
type Plan struct {
	Database string `toml:"database" yaml:"database"`
	// ForeignKeys switches foreign key enforcement on before the operations
	// run, so that every rebuild ends with a foreign key check.
	ForeignKeys bool        `toml:"foreign_keys" yaml:"foreign_keys"`
	Hooks       HooksConfig `toml:"hooks" yaml:"hooks"`
	Operations  []Operation `toml:"operations" yaml:"operations"`

	planDir string
}

// HooksConfig lists SQL files run around the operations.
type HooksConfig struct {
	Before []string `toml:"before" yaml:"before"`
	After  []string `toml:"after" yaml:"after"`
}

// Operation types.
const (
	opDropColumns  = "drop_columns"
	opRenameColumn = "rename_column"
	opRenameTable  = "rename_table"
	opAddColumn    = "add_column"
	opAlterColumn  = "alter_column"
	opCopyTable    = "copy_table"
)

// Operation is one schema change of a plan.
type Operation struct {
	Type    string   `toml:"type" yaml:"type"`
	Table   string   `toml:"table" yaml:"table"`
	Column  string   `toml:"column" yaml:"column"`
	Columns []string `toml:"columns" yaml:"columns"`
	NewName string   `toml:"new_name" yaml:"new_name"`

	// Column definition for add_column and alter_column.
	ColumnType string  `toml:"column_type" yaml:"column_type"`
	NotNull    bool    `toml:"not_null" yaml:"not_null"`
	Default    *string `toml:"default" yaml:"default"`

	// Rebuild renames a column through a table rebuild instead of
	// ALTER TABLE ... RENAME COLUMN.
	Rebuild bool `toml:"rebuild" yaml:"rebuild"`
	// TransferContent copies rows for copy_table (default true).
	TransferContent *bool `toml:"transfer_content" yaml:"transfer_content"`
}

// loadPlan reads a TOML or YAML plan, chosen by file extension, and validates
// it. Unknown keys are rejected.
func loadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}

	var plan Plan
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.UnmarshalStrict(data, &plan); err != nil {
			return nil, fmt.Errorf("parse plan: %w", err)
		}
	case ".toml", "":
		md, err := toml.Decode(string(data), &plan)
		if err != nil {
			return nil, fmt.Errorf("parse plan: %w", err)
		}
		if unknown := md.Undecoded(); len(unknown) > 0 {
			keys := make([]string, len(unknown))
			for i, k := range unknown {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("unknown plan keys: %s", strings.Join(keys, ", "))
		}
	default:
		return nil, fmt.Errorf("unsupported plan format %q (want .toml, .yaml or .yml)", ext)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve plan path: %w", err)
	}
	plan.planDir = filepath.Dir(absPath)

	plan.Database = strings.TrimSpace(plan.Database)
	if plan.Database == "" {
		return nil, fmt.Errorf("database is required")
	}
	if len(plan.Operations) == 0 {
		return nil, fmt.Errorf("plan has no operations")
	}
	for i, op := range plan.Operations {
		if err := op.validate(); err != nil {
			return nil, fmt.Errorf("operations[%d]: %w", i, err)
		}
	}
	return &plan, nil
}

// resolvePath resolves a path relative to the plan file directory.
func (p *Plan) resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.planDir, path)
}

func (op Operation) validate() error {
	if op.Table == "" {
		return fmt.Errorf("%s: table is required", op.Type)
	}
	switch op.Type {
	case opDropColumns:
		if len(op.Columns) == 0 && op.Column == "" {
			return fmt.Errorf("%s: columns is required", op.Type)
		}
	case opRenameColumn:
		if op.Column == "" || op.NewName == "" {
			return fmt.Errorf("%s: column and new_name are required", op.Type)
		}
	case opRenameTable, opCopyTable:
		if op.NewName == "" {
			return fmt.Errorf("%s: new_name is required", op.Type)
		}
	case opAddColumn, opAlterColumn:
		if op.Column == "" || op.ColumnType == "" {
			return fmt.Errorf("%s: column and column_type are required", op.Type)
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("type must be one of: %s", strings.Join([]string{
			opDropColumns, opRenameColumn, opRenameTable, opAddColumn, opAlterColumn, opCopyTable,
		}, ", "))
	}
	return nil
}

func (op Operation) column() geopackage.Column {
	return geopackage.Column{
		Name:    op.Column,
		Type:    op.ColumnType,
		NotNull: op.NotNull,
		Default: op.Default,
	}
}

func (op Operation) String() string {
	switch op.Type {
	case opDropColumns:
		return fmt.Sprintf("%s %s %s", op.Type, op.Table, strings.Join(op.dropColumns(), ", "))
	case opRenameColumn:
		return fmt.Sprintf("%s %s.%s -> %s", op.Type, op.Table, op.Column, op.NewName)
	case opRenameTable, opCopyTable:
		return fmt.Sprintf("%s %s -> %s", op.Type, op.Table, op.NewName)
	}
	return fmt.Sprintf("%s %s.%s", op.Type, op.Table, op.Column)
}

func (op Operation) dropColumns() []string {
	cols := append([]string(nil), op.Columns...)
	if op.Column != "" {
		cols = append(cols, op.Column)
	}
	return cols
}

// apply runs the operation. Rebuild-based operations return their report.
func (op Operation) apply(ctx context.Context, db *geopackage.DB) (*geopackage.Report, error) {
	switch op.Type {
	case opDropColumns:
		return db.DropColumns(ctx, op.Table, op.dropColumns())
	case opRenameColumn:
		if op.Rebuild {
			return db.RenameColumns(ctx, op.Table, map[string]string{op.Column: op.NewName})
		}
		return nil, db.RenameColumn(ctx, op.Table, op.Column, op.NewName)
	case opRenameTable:
		return nil, db.RenameTable(ctx, op.Table, op.NewName)
	case opAddColumn:
		return nil, db.AddColumn(ctx, op.Table, op.column())
	case opAlterColumn:
		return db.AlterColumn(ctx, op.Table, op.column())
	case opCopyTable:
		transfer := op.TransferContent == nil || *op.TransferContent
		return db.CopyTable(ctx, op.Table, op.NewName, transfer)
	}
	return nil, fmt.Errorf("unknown operation type %q", op.Type)
}
