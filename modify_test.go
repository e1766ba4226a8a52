package geopackage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModifySQL(t *testing.T) {
	ctx := context.Background()

	t.Run("rename column", func(t *testing.T) {
		m := NewTableMapping("roads", "")
		m.AddColumn(NewMappedColumn("label", "name", DataTypeText))
		got, ok, err := ModifySQL(ctx, nil, "idx_roads_name", `CREATE INDEX idx_roads_name ON roads ("name")`, m)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, `CREATE INDEX idx_roads_name ON roads ("label")`, got)
	})

	t.Run("dropped column discards the object", func(t *testing.T) {
		m := NewTableMapping("roads", "")
		m.AddColumnName("id")
		m.AddDroppedColumns("name")
		got, ok, err := ModifySQL(ctx, nil, "idx_roads_name", "CREATE INDEX idx_roads_name ON roads (name)", m)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, got)
	})

	t.Run("dropped column prefix is kept", func(t *testing.T) {
		m := NewTableMapping("roads", "")
		m.AddColumnName("name_en")
		m.AddDroppedColumns("name")
		got, ok, err := ModifySQL(ctx, nil, "idx_roads_name_en", "CREATE INDEX idx_roads_name_en ON roads (name_en)", m)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "CREATE INDEX idx_roads_name_en ON roads (name_en)", got)
	})

	t.Run("copy renames object and table", func(t *testing.T) {
		m := NewTableMapping("roads", "roads_copy")
		m.AddColumnName("name")
		got, ok, err := ModifySQL(ctx, &fakeCatalog{}, "idx_roads_name", "CREATE INDEX idx_roads_name ON roads (name)", m)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "CREATE INDEX idx_roads_copy_name ON roads_copy (name)", got)
	})

	t.Run("copy numbers names without the table", func(t *testing.T) {
		m := NewTableMapping("roads", "roads_copy")
		m.AddColumnName("name")
		got, ok, err := ModifySQL(ctx, &fakeCatalog{}, "by_name", `CREATE INDEX "by_name" ON "roads" ("name")`, m)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, `CREATE INDEX "by_name_2" ON "roads_copy" ("name")`, got)
	})

	t.Run("swapped columns", func(t *testing.T) {
		m := NewTableMapping("t", "")
		m.AddColumn(NewMappedColumn("b", "a", DataTypeUnknown))
		m.AddColumn(NewMappedColumn("a", "b", DataTypeUnknown))
		got, ok, err := ModifySQL(ctx, nil, "", "CREATE VIEW v AS SELECT a, b FROM t WHERE a > b", m)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "CREATE VIEW v AS SELECT b, a FROM t WHERE b > a", got)
	})

	t.Run("unrelated sql is unchanged", func(t *testing.T) {
		m := NewTableMapping("t", "")
		m.AddColumn(NewMappedColumn("c2_new", "c2", DataTypeUnknown))
		sql := "CREATE INDEX idx_t_c3 ON t (c3)"
		got, ok, err := ModifySQL(ctx, nil, "idx_t_c3", sql, m)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, sql, got)
	})
}
