//go:build sqlite_vec && cgo

package store

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	// Register the sqlite-vec extension with the mattn/go-sqlite3 driver so
	// embedding_vector blobs can be searched in-database. The default build
	// keeps the pure-Go driver and does cosine math in embedding instead.
	vec.Auto()
}
