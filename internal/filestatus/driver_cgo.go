//go:build !nocgo

// Package filestatus's default build links mattn/go-sqlite3, which
// wraps the C SQLite amalgamation via cgo. Build with -tags nocgo to
// swap in the pure-Go modernc.org/sqlite driver instead (see
// driver_modernc.go).
package filestatus

import (
	_ "github.com/mattn/go-sqlite3"
)

const driverName = "sqlite3"
