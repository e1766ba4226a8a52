package geopackage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForeignKeyViolationErrorMessage(t *testing.T) {
	err := &ForeignKeyViolationError{Violations: []ForeignKeyViolation{
		{Table: "c", RowID: ptr(int64(3)), Parent: "p", FKID: 0},
		{Table: "w", Parent: "p", FKID: 1},
	}}
	assert.Equal(t, "foreign key check violations: 1: c, 3, p, 0 2: w, NULL, p, 1", err.Error())
}

func TestForeignKeyCheck(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	mustExec(t, db,
		"CREATE TABLE p (id INTEGER PRIMARY KEY)",
		"CREATE TABLE c (id INTEGER PRIMARY KEY, p_id INTEGER REFERENCES p (id))",
		"CREATE TABLE ok (id INTEGER PRIMARY KEY, p_id INTEGER REFERENCES p (id))",
		"INSERT INTO p VALUES (1)",
		"INSERT INTO c VALUES (7, 2)",
		"INSERT INTO ok VALUES (1, 1)",
	)

	err := db.ForeignKeyCheck(ctx, "")
	var fkErr *ForeignKeyViolationError
	require.True(t, errors.As(err, &fkErr), "got %v", err)
	require.Len(t, fkErr.Violations, 1)
	v := fkErr.Violations[0]
	assert.Equal(t, "c", v.Table)
	assert.Equal(t, "p", v.Parent)
	require.NotNil(t, v.RowID)
	assert.Equal(t, int64(7), *v.RowID)

	assert.NoError(t, db.ForeignKeyCheck(ctx, "ok"))

	violations, err := db.ForeignKeyViolations(ctx, "c")
	require.NoError(t, err)
	assert.Len(t, violations, 1)
}
