package geopackage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
)

// GeoPackage header values.
const (
	ApplicationID = 0x47504B47 // "GPKG"
	UserVersion   = 10300      // GeoPackage 1.3.0

	applicationIDv10 = 0x47503130 // "GP10"
	applicationIDv11 = 0x47503131 // "GP11"
)

// Core metadata tables.
const (
	TableSpatialRefSys   = "gpkg_spatial_ref_sys"
	TableContents        = "gpkg_contents"
	TableGeometryColumns = "gpkg_geometry_columns"
	TableDataColumns     = "gpkg_data_columns"
	TableExtensions      = "gpkg_extensions"
)

// rtreeTriggerPrefix names the triggers maintaining an RTree spatial index.
const rtreeTriggerPrefix = "rtree_"

const lastChangeExpr = "strftime('%Y-%m-%dT%H:%M:%fZ','now')"

var coreTables = []string{
	`CREATE TABLE gpkg_spatial_ref_sys (
  srs_name TEXT NOT NULL,
  srs_id INTEGER NOT NULL PRIMARY KEY,
  organization TEXT NOT NULL,
  organization_coordsys_id INTEGER NOT NULL,
  definition TEXT NOT NULL,
  description TEXT
)`,
	`CREATE TABLE gpkg_contents (
  table_name TEXT NOT NULL PRIMARY KEY,
  data_type TEXT NOT NULL,
  identifier TEXT UNIQUE,
  description TEXT DEFAULT '',
  last_change DATETIME NOT NULL DEFAULT (` + lastChangeExpr + `),
  min_x DOUBLE,
  min_y DOUBLE,
  max_x DOUBLE,
  max_y DOUBLE,
  srs_id INTEGER,
  CONSTRAINT fk_gc_r_srs_id FOREIGN KEY (srs_id) REFERENCES gpkg_spatial_ref_sys(srs_id)
)`,
	`CREATE TABLE gpkg_geometry_columns (
  table_name TEXT NOT NULL,
  column_name TEXT NOT NULL,
  geometry_type_name TEXT NOT NULL,
  srs_id INTEGER NOT NULL,
  z TINYINT NOT NULL,
  m TINYINT NOT NULL,
  CONSTRAINT pk_geom_cols PRIMARY KEY (table_name, column_name),
  CONSTRAINT uk_gc_table_name UNIQUE (table_name),
  CONSTRAINT fk_gc_tn FOREIGN KEY (table_name) REFERENCES gpkg_contents(table_name),
  CONSTRAINT fk_gc_srs FOREIGN KEY (srs_id) REFERENCES gpkg_spatial_ref_sys(srs_id)
)`,
}

// SpatialRefSys is a row of gpkg_spatial_ref_sys.
type SpatialRefSys struct {
	Name           string
	ID             int
	Organization   string
	OrganizationID int
	Definition     string
	Description    string
}

// DefaultSpatialRefSys are the rows every GeoPackage must contain.
var DefaultSpatialRefSys = []SpatialRefSys{
	{
		Name:           "WGS 84 geodetic",
		ID:             4326,
		Organization:   "EPSG",
		OrganizationID: 4326,
		Definition: `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563,AUTHORITY["EPSG","7030"]],` +
			`AUTHORITY["EPSG","6326"]],PRIMEM["Greenwich",0,AUTHORITY["EPSG","8901"]],` +
			`UNIT["degree",0.0174532925199433,AUTHORITY["EPSG","9122"]],AUTHORITY["EPSG","4326"]]`,
		Description: "longitude/latitude coordinates in decimal degrees on the WGS 84 spheroid",
	},
	{
		Name:           "Undefined cartesian SRS",
		ID:             -1,
		Organization:   "NONE",
		OrganizationID: -1,
		Definition:     "undefined",
		Description:    "undefined cartesian coordinate reference system",
	},
	{
		Name:           "Undefined geographic SRS",
		ID:             0,
		Organization:   "NONE",
		OrganizationID: 0,
		Definition:     "undefined",
		Description:    "undefined geographic coordinate reference system",
	},
}

// Create creates a new GeoPackage at path with the core metadata tables and
// the default spatial reference systems.
func Create(ctx context.Context, path string, opts ...Option) (*DB, error) {
	d, err := Open(ctx, path, opts...)
	if err != nil {
		return nil, err
	}
	if err := d.initCore(ctx); err != nil {
		d.Close()
		return nil, fmt.Errorf("create geopackage %s: %w", path, err)
	}
	return d, nil
}

func (d *DB) initCore(ctx context.Context) error {
	if err := setPragma(ctx, d.db, "application_id", strconv.Itoa(ApplicationID)); err != nil {
		return err
	}
	if err := setPragma(ctx, d.db, "user_version", strconv.Itoa(UserVersion)); err != nil {
		return err
	}
	return d.WithTransaction(ctx, func(q Queryer) error {
		for _, stmt := range coreTables {
			if _, err := execSQL(ctx, q, stmt); err != nil {
				return err
			}
		}
		for _, srs := range DefaultSpatialRefSys {
			if err := insertSpatialRefSys(ctx, q, srs); err != nil {
				return err
			}
		}
		return nil
	})
}

// AddSpatialRefSys registers a spatial reference system.
func (d *DB) AddSpatialRefSys(ctx context.Context, srs SpatialRefSys) error {
	return insertSpatialRefSys(ctx, d.db, srs)
}

func insertSpatialRefSys(ctx context.Context, q Queryer, srs SpatialRefSys) error {
	_, err := execSQL(ctx, q,
		"INSERT INTO gpkg_spatial_ref_sys (srs_name, srs_id, organization, organization_coordsys_id, definition, description) VALUES (?, ?, ?, ?, ?, ?)",
		srs.Name, srs.ID, srs.Organization, srs.OrganizationID, srs.Definition, srs.Description,
	)
	if err != nil {
		return fmt.Errorf("add spatial reference system %d: %w", srs.ID, err)
	}
	return nil
}

// IsGeoPackage reports whether the database carries a GeoPackage application
// id, current or from the 1.0 / 1.1 releases.
func (d *DB) IsGeoPackage(ctx context.Context) (bool, error) {
	v, err := d.Pragma(ctx, "application_id")
	if err != nil {
		return false, err
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return false, fmt.Errorf("parse application_id %q: %w", v, err)
	}
	switch uint32(id) {
	case ApplicationID, applicationIDv10, applicationIDv11:
		return true, nil
	}
	return false, nil
}

// GeometryColumn describes the geometry column of a feature table.
type GeometryColumn struct {
	Name         string
	GeometryType string // e.g. "POINT", "GEOMETRY"
	SRSID        int
	Z            int // 0 prohibited, 1 mandatory, 2 optional
	M            int
}

// Contents is a row of gpkg_contents.
type Contents struct {
	TableName   string
	DataType    string
	Identifier  string
	Description string
	SRSID       *int
}

// CreateFeatureTable creates a feature table and registers it in
// gpkg_contents and gpkg_geometry_columns. When the geometry column is not
// part of t it is appended.
func (d *DB) CreateFeatureTable(ctx context.Context, t *Table, geom GeometryColumn) error {
	t = t.Copy()
	if t.Column(geom.Name) == nil {
		if err := t.AddColumn(Column{Name: geom.Name, Type: geom.GeometryType}); err != nil {
			return err
		}
	}
	err := d.WithTransaction(ctx, func(q Queryer) error {
		if _, err := execSQL(ctx, q, t.CreateSQL()); err != nil {
			return err
		}
		if _, err := execSQL(ctx, q,
			"INSERT INTO gpkg_contents (table_name, data_type, identifier, srs_id) VALUES (?, 'features', ?, ?)",
			t.Name, t.Name, geom.SRSID,
		); err != nil {
			return err
		}
		_, err := execSQL(ctx, q,
			"INSERT INTO gpkg_geometry_columns (table_name, column_name, geometry_type_name, srs_id, z, m) VALUES (?, ?, ?, ?, ?, ?)",
			t.Name, geom.Name, geom.GeometryType, geom.SRSID, geom.Z, geom.M,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("create feature table %s: %w", t.Name, err)
	}
	return nil
}

// Contents returns the gpkg_contents row of table, or nil when the table is
// not registered.
func (d *DB) Contents(ctx context.Context, table string) (*Contents, error) {
	var c Contents
	var identifier, description sql.NullString
	var srsID sql.NullInt64
	err := d.db.QueryRowContext(ctx,
		"SELECT table_name, data_type, identifier, description, srs_id FROM gpkg_contents WHERE table_name = ?",
		table,
	).Scan(&c.TableName, &c.DataType, &identifier, &description, &srsID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read contents of %s: %w", table, err)
	}
	c.Identifier = identifier.String
	c.Description = description.String
	if srsID.Valid {
		id := int(srsID.Int64)
		c.SRSID = &id
	}
	return &c, nil
}

// GeometryColumnOf returns the registered geometry column of table, or nil.
func (d *DB) GeometryColumnOf(ctx context.Context, table string) (*GeometryColumn, error) {
	var g GeometryColumn
	err := d.db.QueryRowContext(ctx,
		"SELECT column_name, geometry_type_name, srs_id, z, m FROM gpkg_geometry_columns WHERE table_name = ?",
		table,
	).Scan(&g.Name, &g.GeometryType, &g.SRSID, &g.Z, &g.M)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read geometry column of %s: %w", table, err)
	}
	return &g, nil
}

// execIfTable runs query only when table exists.
func execIfTable(ctx context.Context, q Queryer, table, query string, args ...any) error {
	exists, err := tableExists(ctx, q, table)
	if err != nil || !exists {
		return err
	}
	_, err = execSQL(ctx, q, query, args...)
	return err
}

// copyTableMetadata registers the copy of a table under the metadata rows of
// the original.
func copyTableMetadata(ctx context.Context, q Queryer, table, newTable string) error {
	steps := []struct{ table, query string }{
		{TableContents, `INSERT INTO gpkg_contents (table_name, data_type, identifier, description, last_change, min_x, min_y, max_x, max_y, srs_id)
  SELECT ?, data_type, ?, description, ` + lastChangeExpr + `, min_x, min_y, max_x, max_y, srs_id FROM gpkg_contents WHERE table_name = ?`},
		{TableGeometryColumns, `INSERT INTO gpkg_geometry_columns (table_name, column_name, geometry_type_name, srs_id, z, m)
  SELECT ?, column_name, geometry_type_name, srs_id, z, m FROM gpkg_geometry_columns WHERE table_name = ?`},
		{TableDataColumns, `INSERT INTO gpkg_data_columns (table_name, column_name, name, title, description, mime_type, constraint_name)
  SELECT ?, column_name, name, title, description, mime_type, constraint_name FROM gpkg_data_columns WHERE table_name = ?`},
	}
	for _, s := range steps {
		args := []any{newTable, table}
		if s.table == TableContents {
			args = []any{newTable, newTable, table}
		}
		if err := execIfTable(ctx, q, s.table, s.query, args...); err != nil {
			return fmt.Errorf("copy %s rows: %w", s.table, err)
		}
	}
	return nil
}

// renameTableMetadata re-points the metadata rows of a renamed table. An
// identifier equal to the old table name follows the rename.
func renameTableMetadata(ctx context.Context, q Queryer, table, newTable string) error {
	if err := execIfTable(ctx, q, TableContents,
		"UPDATE gpkg_contents SET table_name = ?, identifier = CASE WHEN identifier = ? THEN ? ELSE identifier END WHERE table_name = ?",
		newTable, table, newTable, table,
	); err != nil {
		return fmt.Errorf("rename %s rows: %w", TableContents, err)
	}
	for _, t := range []string{TableGeometryColumns, TableDataColumns, TableExtensions} {
		if err := execIfTable(ctx, q, t,
			fmt.Sprintf("UPDATE %s SET table_name = ? WHERE table_name = ?", t),
			newTable, table,
		); err != nil {
			return fmt.Errorf("rename %s rows: %w", t, err)
		}
	}
	return nil
}

// renameColumnMetadata updates the metadata rows naming a renamed column.
func renameColumnMetadata(ctx context.Context, q Queryer, table, column, newColumn string) error {
	for _, t := range []string{TableGeometryColumns, TableDataColumns, TableExtensions} {
		if err := execIfTable(ctx, q, t,
			fmt.Sprintf("UPDATE %s SET column_name = ? WHERE table_name = ? AND column_name = ?", t),
			newColumn, table, column,
		); err != nil {
			return fmt.Errorf("rename %s rows: %w", t, err)
		}
	}
	return nil
}

// dropColumnMetadata deletes the metadata rows describing dropped columns.
func dropColumnMetadata(ctx context.Context, q Queryer, table string, columns []string) error {
	for _, col := range columns {
		for _, t := range []string{TableDataColumns, TableExtensions} {
			if err := execIfTable(ctx, q, t,
				fmt.Sprintf("DELETE FROM %s WHERE table_name = ? AND column_name = ?", t),
				table, col,
			); err != nil {
				return fmt.Errorf("delete %s rows: %w", t, err)
			}
		}
	}
	return nil
}
