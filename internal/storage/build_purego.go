//go:build !sqlite_cgo

package storage

// Compiled by default: pure Go SQLite, no C compiler required.
//
//	CGO_ENABLED=0 go build ./...
//
// Uses modernc.org/sqlite. The SQL functions are registered once for the
// whole driver.

import (
	"database/sql/driver"

	"modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)

func init() {
	sqlite.MustRegisterDeterministicScalarFunction(funcTrigramSimilarity, 2,
		func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			return trigramSimilarity(args[0], args[1]), nil
		})
	sqlite.MustRegisterDeterministicScalarFunction(funcVecDistanceCosine, 2,
		func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			return vecDistanceCosine(args[0], args[1]), nil
		})
}
