//go:build !purego

package database

// Default build: SQLite through the cgo driver.
//
//	CGO_ENABLED=1 go build ./...

import (
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDriverName is the database/sql driver used for SQLite.
const SQLiteDriverName = "sqlite3"
