package geopackage

import "errors"

// ErrDefinition marks a malformed table definition or table mapping. It is
// returned before any change is made to the database.
var ErrDefinition = errors.New("invalid table definition")

// ErrNoPagination is returned by ReplacePagination when the SQL has no LIMIT
// clause.
var ErrNoPagination = errors.New("no LIMIT clause found")
