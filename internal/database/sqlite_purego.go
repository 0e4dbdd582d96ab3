//go:build purego

package database

// Pure Go build, no C compiler needed:
//
//	CGO_ENABLED=0 go build -tags purego ./...

import (
	_ "modernc.org/sqlite"
)

// SQLiteDriverName is the database/sql driver used for SQLite.
const SQLiteDriverName = "sqlite"
