package geopackage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDDLStatements(t *testing.T) {
	assert.Equal(t, `ALTER TABLE "roads" RENAME TO "streets"`, RenameTableSQL("roads", "streets"))
	assert.Equal(t, `ALTER TABLE "roads" RENAME COLUMN "name" TO "label"`, RenameColumnSQL("roads", "name", "label"))
	assert.Equal(t, `ALTER TABLE "roads" ADD COLUMN "lanes" INTEGER NOT NULL DEFAULT 2`,
		AddColumnSQL("roads", Column{Name: "lanes", Type: "INTEGER", NotNull: true, Default: ptr("2")}))
	assert.Equal(t, `ALTER TABLE "a""b" RENAME TO "c"`, RenameTableSQL(`a"b`, "c"))
}

func newFeatureDB(t *testing.T) *DB {
	t.Helper()
	db := newTestDB(t)
	table := &Table{Name: "roads", Columns: []Column{
		{Name: "fid", Type: "INTEGER", PrimaryKey: true, Autoincrement: true, NotNull: true},
		{Name: "name", Type: "TEXT"},
	}}
	require.NoError(t, db.CreateFeatureTable(context.Background(), table,
		GeometryColumn{Name: "geom", GeometryType: "LINESTRING", SRSID: 4326}))
	mustExec(t, db, "INSERT INTO roads (name) VALUES ('main'), ('side')")
	return db
}

func TestRenameTable(t *testing.T) {
	ctx := context.Background()
	db := newFeatureDB(t)
	require.NoError(t, db.SetForeignKeys(ctx, true))

	require.NoError(t, db.RenameTable(ctx, "roads", "streets"))

	exists, err := db.TableExists(ctx, "roads")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, int64(2), queryInt(t, db, "SELECT COUNT(*) FROM streets"))

	contents, err := db.Contents(ctx, "streets")
	require.NoError(t, err)
	require.NotNil(t, contents)
	assert.Equal(t, "streets", contents.Identifier, "identifier equal to the table name follows the rename")

	geom, err := db.GeometryColumnOf(ctx, "streets")
	require.NoError(t, err)
	require.NotNil(t, geom)
	assert.Equal(t, "geom", geom.Name)

	fk, err := db.ForeignKeys(ctx)
	require.NoError(t, err)
	assert.True(t, fk, "enforcement is restored")
	assert.NoError(t, db.ForeignKeyCheck(ctx, ""))

	err = db.RenameTable(ctx, "roads", "x")
	require.ErrorIs(t, err, ErrDefinition)
}

func TestRenameTableKeepsCustomIdentifier(t *testing.T) {
	ctx := context.Background()
	db := newFeatureDB(t)
	mustExec(t, db, "UPDATE gpkg_contents SET identifier = 'Road network' WHERE table_name = 'roads'")

	require.NoError(t, db.RenameTable(ctx, "roads", "streets"))
	contents, err := db.Contents(ctx, "streets")
	require.NoError(t, err)
	assert.Equal(t, "Road network", contents.Identifier)
}

func TestRenameColumn(t *testing.T) {
	ctx := context.Background()
	db := newFeatureDB(t)

	require.NoError(t, db.RenameColumn(ctx, "roads", "geom", "the_geom"))
	geom, err := db.GeometryColumnOf(ctx, "roads")
	require.NoError(t, err)
	assert.Equal(t, "the_geom", geom.Name)

	require.NoError(t, db.RenameColumn(ctx, "roads", "name", "label"))
	assert.Equal(t, []string{"main", "side"}, queryStrings(t, db, "SELECT label FROM roads ORDER BY fid"))

	assert.Error(t, db.RenameColumn(ctx, "roads", "missing", "x"))
	assert.ErrorIs(t, db.RenameColumn(ctx, "nope", "a", "b"), ErrDefinition)
}

func TestAddColumn(t *testing.T) {
	ctx := context.Background()
	db := newFeatureDB(t)

	require.NoError(t, db.AddColumn(ctx, "roads", Column{Name: "lanes", Type: "INTEGER", NotNull: true, Default: ptr("2")}))
	assert.Equal(t, []string{"2", "2"}, queryStrings(t, db, "SELECT lanes FROM roads"))

	assert.Error(t, db.AddColumn(ctx, "roads", Column{Name: "lanes", Type: "INTEGER"}))
	assert.ErrorIs(t, db.AddColumn(ctx, "nope", Column{Name: "x", Type: "TEXT"}), ErrDefinition)
	assert.ErrorIs(t, db.AddColumn(ctx, "roads", Column{Name: "x", Type: "TEXT", Default: ptr("0 0")}), ErrDefinition)
	assert.Equal(t, int64(0), queryInt(t, db, `SELECT COUNT(*) FROM pragma_table_info('roads') WHERE name = 'x'`))
}
