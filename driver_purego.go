//go:build !cgo_sqlite

package geopackage

import (
	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

const (
	driverName    = "sqlite"
	driverPackage = "modernc.org/sqlite"
)
