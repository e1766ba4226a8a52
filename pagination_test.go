package geopackage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindPagination(t *testing.T) {
	tests := []struct {
		sql                 string
		limit, offset       int
		hasLimit, hasOffset bool
	}{
		{"SELECT * FROM t LIMIT 10", 10, 0, true, false},
		{"SELECT * FROM t limit 10 offset 20", 10, 20, true, true},
		{"SELECT * FROM t LIMIT 5, 10", 10, 5, true, true},
		{"SELECT * FROM t LIMIT -1 OFFSET 3", -1, 3, false, true},
		{"SELECT * FROM t LIMIT 10 OFFSET -4", 10, 0, true, false},
		{"SELECT * FROM (SELECT * FROM t LIMIT 2) LIMIT 7", 7, 0, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			p, ok := FindPagination(tt.sql)
			require.True(t, ok)
			assert.Equal(t, tt.limit, p.Limit)
			assert.Equal(t, tt.offset, p.Offset)
			assert.Equal(t, tt.hasLimit, p.HasLimit())
			assert.Equal(t, tt.hasOffset, p.HasOffset())
		})
	}

	for _, sql := range []string{
		"SELECT * FROM unlimited",
		"SELECT * FROM t LIMIT 99999999999999999999",
		"SELECT * FROM t LIMIT 10 OFFSET 99999999999999999999",
		"SELECT * FROM t LIMIT 99999999999999999999, 10",
	} {
		p, ok := FindPagination(sql)
		assert.False(t, ok, sql)
		assert.Nil(t, p, sql)
	}
}

func TestPaginationString(t *testing.T) {
	assert.Equal(t, " LIMIT 10", NewPagination(10, 0).String())
	assert.Equal(t, " LIMIT 10 OFFSET 20", NewPagination(10, 20).String())
	assert.Equal(t, " LIMIT -1 OFFSET 5", NewPagination(0, 5).String())
	assert.Equal(t, "", NewPagination(0, -3).String())
}

func TestPaginationNext(t *testing.T) {
	p := NewPagination(10, 0).Next()
	assert.Equal(t, 10, p.Offset)
	p = p.Next()
	assert.Equal(t, 20, p.Offset)
	assert.Equal(t, 10, p.Limit)

	unbounded := NewPagination(0, 5)
	assert.Equal(t, unbounded, unbounded.Next())
}

func TestReplacePagination(t *testing.T) {
	got, err := ReplacePagination(NewPagination(10, 30), "SELECT * FROM t ORDER BY id LIMIT 10 OFFSET 20")
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM t ORDER BY id LIMIT 10 OFFSET 30", got)

	got, err = ReplacePagination(NewPagination(5, 0), "SELECT * FROM t LIMIT 0, 3;")
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM t LIMIT 5;", got)

	got, err = ReplacePagination(NewPagination(0, 0), "SELECT * FROM t LIMIT 3")
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM t", got)

	got, err = ReplacePagination(NewPagination(10, 0), "SELECT * FROM t LIMIT 99999999999999999999")
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM t LIMIT 10", got)

	_, err = ReplacePagination(NewPagination(1, 0), "SELECT * FROM t")
	require.ErrorIs(t, err, ErrNoPagination)
}
