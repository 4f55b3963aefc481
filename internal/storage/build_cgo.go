//go:build sqlite_cgo

package storage

// Compiled with the sqlite_cgo tag:
//
//	CGO_ENABLED=1 go build -tags sqlite_cgo ./...
//
// Uses github.com/mattn/go-sqlite3. The Go implementations of
// trigram_similarity and vec_distance_cosine are attached to every new
// connection through a ConnectHook on a dedicated driver name.

import (
	"database/sql"

	"github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite3_eventsage"

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)

func init() {
	sql.Register(DriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			if err := conn.RegisterFunc(funcTrigramSimilarity, func(a, b interface{}) float64 {
				return trigramSimilarity(a, b)
			}, true); err != nil {
				return err
			}
			return conn.RegisterFunc(funcVecDistanceCosine, func(a, b interface{}) float64 {
				return vecDistanceCosine(a, b)
			}, true)
		},
	})
}
