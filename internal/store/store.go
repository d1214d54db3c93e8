// Package store provides the durable key-value records behind the hide list.
//
// Two backends are available: SQLite (default, one file) and pebble (a
// directory). Both store opaque byte values under string keys and report
// missing keys with ErrNotFound.
package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when the key has no record.
var ErrNotFound = errors.New("store: key not found")

// KV is a minimal durable key-value store.
// Implementations must be safe for concurrent use.
type KV interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendPebble = "pebble"
)

// Open opens the KV backend by name. For sqlite, path is the database
// file (or ":memory:"); for pebble, path is a directory.
func Open(backend, path string) (KV, error) {
	switch backend {
	case "", BackendSQLite:
		return OpenSQLite(path)
	case BackendPebble:
		return OpenPebble(path)
	default:
		return nil, fmt.Errorf("store: unknown backend %q", backend)
	}
}
