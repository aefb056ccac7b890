//go:build !cgo_sqlite
// +build !cgo_sqlite

package store

// Compiled by default. The pure Go driver needs no C compiler and
// cross-compiles cleanly; artifact IO is slightly slower.
//
// Build command:
//   CGO_ENABLED=0 go build ./...
//
// Driver used: modernc.org/sqlite

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use.
	DriverName = "sqlite"

	// BuildMode describes the current build configuration.
	BuildMode = "purego"
)
