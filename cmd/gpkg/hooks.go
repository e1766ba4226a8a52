package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/Limetric/geopackage"
)

// loadAndExecSQLFiles reads each SQL file and executes every statement.
func loadAndExecSQLFiles(ctx context.Context, db *geopackage.DB, plan *Plan, files []string, phase string) error {
	if len(files) == 0 {
		return nil
	}
	log.Printf("  running %s hooks (%d files)...", phase, len(files))

	for _, f := range files {
		path := plan.resolvePath(f)
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("hook %s: read %s: %w", phase, f, err)
		}

		stmts := geopackage.SplitStatements(string(data))
		log.Printf("    %s: %d statements", f, len(stmts))
		for i, stmt := range stmts {
			if _, err := db.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("hook %s: %s: statement %d: %w", phase, f, i+1, err)
			}
		}
	}
	return nil
}
