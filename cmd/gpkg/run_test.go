package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Limetric/geopackage"
)

// newPlanDir creates a GeoPackage with a roads feature table in a temporary
// directory and returns the directory.
func newPlanDir(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	db, err := geopackage.Create(ctx, filepath.Join(dir, "roads.gpkg"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	table := &geopackage.Table{Name: "roads", Columns: []geopackage.Column{
		{Name: "fid", Type: "INTEGER", PrimaryKey: true, Autoincrement: true, NotNull: true},
		{Name: "name", Type: "TEXT"},
		{Name: "lanes", Type: "INTEGER"},
	}}
	geom := geopackage.GeometryColumn{Name: "geom", GeometryType: "LINESTRING", SRSID: 4326}
	if err := db.CreateFeatureTable(ctx, table, geom); err != nil {
		t.Fatal(err)
	}
	for _, stmt := range []string{
		"CREATE INDEX idx_roads_lanes ON roads (lanes)",
		"CREATE INDEX idx_roads_name ON roads (name)",
		"INSERT INTO roads (name, lanes) VALUES ('main', 2), ('side', NULL)",
	} {
		if _, err := db.Exec(ctx, stmt); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestExecutePlan(t *testing.T) {
	dir := newPlanDir(t)
	writeFile(t, filepath.Join(dir, "before.sql"), `
CREATE TABLE log (msg TEXT);
CREATE TRIGGER roads_log AFTER INSERT ON roads
BEGIN
  INSERT INTO log VALUES ('inserted; ' || NEW.name);
END;
`)
	writeFile(t, filepath.Join(dir, "after.sql"), "INSERT INTO streets (label) VALUES ('new');\n")
	planPath := filepath.Join(dir, "plan.toml")
	writeFile(t, planPath, `
database = "roads.gpkg"
foreign_keys = true

[hooks]
before = ["before.sql"]
after = ["after.sql"]

[[operations]]
type = "drop_columns"
table = "roads"
column = "lanes"

[[operations]]
type = "rename_column"
table = "roads"
column = "name"
new_name = "label"
rebuild = true

[[operations]]
type = "copy_table"
table = "roads"
new_name = "roads_backup"

[[operations]]
type = "rename_table"
table = "roads"
new_name = "streets"
`)

	plan, err := loadPlan(planPath)
	if err != nil {
		t.Fatalf("loadPlan() error: %v", err)
	}
	ctx := context.Background()
	if err := executePlan(ctx, plan); err != nil {
		t.Fatalf("executePlan() error: %v", err)
	}

	db, err := geopackage.Open(ctx, filepath.Join(dir, "roads.gpkg"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	rows, err := db.QueryAll(ctx, "SELECT COUNT(*) FROM streets")
	if err != nil {
		t.Fatal(err)
	}
	if n := rows[0][0].(int64); n != 3 {
		t.Errorf("streets rows = %d, want 3", n)
	}

	rows, err = db.QueryAll(ctx, "SELECT msg FROM log")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0][0] != "inserted; new" {
		t.Errorf("log rows = %v, want [[inserted; new]]", rows)
	}

	rows, err = db.QueryAll(ctx, "SELECT name FROM sqlite_master WHERE type = 'index' AND tbl_name = 'roads_backup'")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0][0] != "idx_roads_backup_name" {
		t.Errorf("backup indexes = %v, want [[idx_roads_backup_name]]", rows)
	}

	contents, err := db.Contents(ctx, "streets")
	if err != nil {
		t.Fatal(err)
	}
	if contents == nil || contents.Identifier != "streets" {
		t.Errorf("Contents(streets) = %+v", contents)
	}
	backup, err := db.GeometryColumnOf(ctx, "roads_backup")
	if err != nil {
		t.Fatal(err)
	}
	if backup == nil || backup.Name != "geom" {
		t.Errorf("GeometryColumnOf(roads_backup) = %+v", backup)
	}
}

func TestExecutePlan_StopsOnError(t *testing.T) {
	dir := newPlanDir(t)
	planPath := filepath.Join(dir, "plan.yaml")
	writeFile(t, planPath, `
database: roads.gpkg
operations:
  - type: drop_columns
    table: roads
    column: missing
  - type: rename_table
    table: roads
    new_name: streets
`)

	plan, err := loadPlan(planPath)
	if err != nil {
		t.Fatalf("loadPlan() error: %v", err)
	}
	ctx := context.Background()
	if err := executePlan(ctx, plan); err == nil {
		t.Fatal("expected error for missing column")
	}

	db, err := geopackage.Open(ctx, filepath.Join(dir, "roads.gpkg"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	exists, err := db.TableExists(ctx, "roads")
	if err != nil {
		t.Fatal(err)
	}
	if !exists {
		t.Error("roads was renamed after a failed operation")
	}
}

func TestExecutePlan_MissingDatabase(t *testing.T) {
	plan := &Plan{
		Database:   "missing.gpkg",
		Operations: []Operation{{Type: opRenameTable, Table: "a", NewName: "b"}},
		planDir:    t.TempDir(),
	}
	if err := executePlan(context.Background(), plan); err == nil {
		t.Fatal("expected error for missing database file")
	}
}
