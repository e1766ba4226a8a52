package geopackage

import (
	"regexp"
	"strconv"
)

// limitPattern matches "LIMIT n", "LIMIT n OFFSET m" and "LIMIT m, n".
var limitPattern = regexp.MustCompile(`(?i)\bLIMIT\s+(-?\d+)(?:\s*,\s*(-?\d+)|\s+OFFSET\s+(-?\d+))?`)

// Pagination is the LIMIT / OFFSET window of a query.
type Pagination struct {
	// Limit is the maximum number of rows. Values <= 0 mean unbounded.
	Limit int
	// Offset is the number of rows skipped, never negative.
	Offset int
}

// NewPagination returns a window of limit rows starting at offset. Negative
// offsets are clamped to 0.
func NewPagination(limit, offset int) *Pagination {
	if offset < 0 {
		offset = 0
	}
	return &Pagination{Limit: limit, Offset: offset}
}

// HasLimit reports whether the window is bounded.
func (p *Pagination) HasLimit() bool { return p.Limit > 0 }

// HasOffset reports whether rows are skipped.
func (p *Pagination) HasOffset() bool { return p.Offset > 0 }

// String renders the window as " LIMIT n[ OFFSET m]". An offset without a
// limit is rendered with SQLite's unbounded limit, -1.
func (p *Pagination) String() string {
	switch {
	case p.HasLimit() && p.HasOffset():
		return " LIMIT " + strconv.Itoa(p.Limit) + " OFFSET " + strconv.Itoa(p.Offset)
	case p.HasLimit():
		return " LIMIT " + strconv.Itoa(p.Limit)
	case p.HasOffset():
		return " LIMIT -1 OFFSET " + strconv.Itoa(p.Offset)
	}
	return ""
}

// Next returns the window following p. An unbounded window has no next page
// and is returned unchanged.
func (p *Pagination) Next() *Pagination {
	if !p.HasLimit() {
		return NewPagination(p.Limit, p.Offset)
	}
	return NewPagination(p.Limit, p.Offset+p.Limit)
}

// FindPagination parses the last LIMIT clause of sql. A clause whose numbers
// do not fit an int is not reported.
func FindPagination(sql string) (*Pagination, bool) {
	loc := lastLimitMatch(sql)
	if loc == nil {
		return nil, false
	}
	num := func(i int) (int, bool) {
		n, err := strconv.Atoi(sql[loc[i]:loc[i+1]])
		return n, err == nil
	}
	first, ok := num(2)
	if !ok {
		return nil, false
	}
	switch {
	case loc[4] >= 0:
		// LIMIT offset, limit
		limit, ok := num(4)
		if !ok {
			return nil, false
		}
		return NewPagination(limit, first), true
	case loc[6] >= 0:
		offset, ok := num(6)
		if !ok {
			return nil, false
		}
		return NewPagination(first, offset), true
	}
	return NewPagination(first, 0), true
}

// ReplacePagination replaces the last LIMIT clause of sql with p. A window
// without limit or offset removes the clause.
func ReplacePagination(p *Pagination, sql string) (string, error) {
	loc := lastLimitMatch(sql)
	if loc == nil {
		return "", ErrNoPagination
	}
	start := loc[0]
	for start > 0 && isSpace(sql[start-1]) {
		start--
	}
	return sql[:start] + p.String() + sql[loc[1]:], nil
}

func lastLimitMatch(sql string) []int {
	all := limitPattern.FindAllStringSubmatchIndex(sql, -1)
	if len(all) == 0 {
		return nil
	}
	return all[len(all)-1]
}
