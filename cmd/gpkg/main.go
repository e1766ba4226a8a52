// Command gpkg applies schema changes to GeoPackage files.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Limetric/geopackage"
)

var (
	planPath        string
	renameByRebuild bool
	noData          bool
	notNull         bool
	defaultExpr     string
)

var rootCmd = &cobra.Command{
	Use:           "gpkg",
	Short:         "GeoPackage schema migration tool",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run [plan.toml|plan.yaml]",
	Short: "Apply a migration plan",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPlan,
}

var createCmd = &cobra.Command{
	Use:   "create <file.gpkg>",
	Short: "Create an empty GeoPackage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := geopackage.Create(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		defer db.Close()
		log.Printf("created %s", args[0])
		return nil
	},
}

var dropColumnCmd = &cobra.Command{
	Use:   "drop-column <file.gpkg> <table> <column>...",
	Short: "Drop columns by rebuilding the table",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd.Context(), args[0], func(ctx context.Context, db *geopackage.DB) error {
			report, err := db.DropColumns(ctx, args[1], args[2:])
			logReport(report)
			return err
		})
	},
}

var renameColumnCmd = &cobra.Command{
	Use:   "rename-column <file.gpkg> <table> <column> <new-name>",
	Short: "Rename a column",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		op := Operation{Type: opRenameColumn, Table: args[1], Column: args[2], NewName: args[3], Rebuild: renameByRebuild}
		return applyOne(cmd.Context(), args[0], op)
	},
}

var renameTableCmd = &cobra.Command{
	Use:   "rename-table <file.gpkg> <table> <new-name>",
	Short: "Rename a table and its GeoPackage metadata",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return applyOne(cmd.Context(), args[0], Operation{Type: opRenameTable, Table: args[1], NewName: args[2]})
	},
}

var addColumnCmd = &cobra.Command{
	Use:   "add-column <file.gpkg> <table> <column> <type>",
	Short: "Add a column",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		op := Operation{Type: opAddColumn, Table: args[1], Column: args[2], ColumnType: args[3], NotNull: notNull}
		if cmd.Flags().Changed("default") {
			op.Default = &defaultExpr
		}
		return applyOne(cmd.Context(), args[0], op)
	},
}

var copyTableCmd = &cobra.Command{
	Use:   "copy-table <file.gpkg> <table> <new-name>",
	Short: "Copy a table with its indexes, triggers and views",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		transfer := !noData
		op := Operation{Type: opCopyTable, Table: args[1], NewName: args[2], TransferContent: &transfer}
		return applyOne(cmd.Context(), args[0], op)
	},
}

var fkCheckCmd = &cobra.Command{
	Use:   "fk-check <file.gpkg> [table]",
	Short: "Report foreign key violations",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		table := ""
		if len(args) > 1 {
			table = args[1]
		}
		return withDB(cmd.Context(), args[0], func(ctx context.Context, db *geopackage.DB) error {
			if err := db.ForeignKeyCheck(ctx, table); err != nil {
				return err
			}
			log.Printf("no foreign key violations")
			return nil
		})
	},
}

func init() {
	runCmd.Flags().StringVar(&planPath, "plan", "", "path to migration plan (TOML or YAML)")
	renameColumnCmd.Flags().BoolVar(&renameByRebuild, "rebuild", false, "rename by rebuilding the table instead of ALTER TABLE")
	addColumnCmd.Flags().BoolVar(&notNull, "not-null", false, "add the column as NOT NULL (requires --default)")
	addColumnCmd.Flags().StringVar(&defaultExpr, "default", "", "column default as an SQL expression")
	copyTableCmd.Flags().BoolVar(&noData, "no-data", false, "copy the table definition without rows")

	rootCmd.AddCommand(runCmd, createCmd, dropColumnCmd, renameColumnCmd, renameTableCmd, addColumnCmd, copyTableCmd, fkCheckCmd, versionCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runPlan(cmd *cobra.Command, args []string) error {
	// Positional arg takes precedence over --plan
	path := planPath
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		return fmt.Errorf("plan file required: gpkg run <plan.toml> or gpkg run --plan <plan.toml>")
	}

	plan, err := loadPlan(path)
	if err != nil {
		return err
	}
	return executePlan(cmd.Context(), plan)
}

func executePlan(ctx context.Context, plan *Plan) error {
	start := time.Now()
	dbPath := plan.resolvePath(plan.Database)
	log.Printf("gpkg: %s (%d operations, driver %s)", dbPath, len(plan.Operations), geopackage.DriverPackage())

	return withDB(ctx, dbPath, func(ctx context.Context, db *geopackage.DB) error {
		if plan.ForeignKeys {
			if err := db.SetForeignKeys(ctx, true); err != nil {
				return err
			}
		}
		if err := loadAndExecSQLFiles(ctx, db, plan, plan.Hooks.Before, "before"); err != nil {
			return err
		}
		for i, op := range plan.Operations {
			log.Printf("[%d/%d] %s", i+1, len(plan.Operations), op)
			report, err := op.apply(ctx, db)
			if err != nil {
				return fmt.Errorf("operation %d (%s): %w", i+1, op.Type, err)
			}
			logReport(report)
		}
		if err := loadAndExecSQLFiles(ctx, db, plan, plan.Hooks.After, "after"); err != nil {
			return err
		}
		log.Printf("done in %s", time.Since(start).Round(time.Millisecond))
		return nil
	})
}

func applyOne(ctx context.Context, path string, op Operation) error {
	if err := op.validate(); err != nil {
		return err
	}
	return withDB(ctx, path, func(ctx context.Context, db *geopackage.DB) error {
		report, err := op.apply(ctx, db)
		logReport(report)
		return err
	})
}

func withDB(ctx context.Context, path string, fn func(context.Context, *geopackage.DB) error) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	db, err := geopackage.Open(ctx, path)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(ctx, db)
}

func logReport(r *geopackage.Report) {
	if r == nil {
		return
	}
	log.Printf("  %s: %d rows transferred", r.NewTable, r.Rows)
	for _, o := range r.Objects {
		if o.Err != nil {
			log.Printf("    %s %s: %s (%v)", o.Type, o.Name, o.Status, o.Err)
			continue
		}
		log.Printf("    %s %s: %s", o.Type, o.Name, o.Status)
	}
}
