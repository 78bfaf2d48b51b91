// Package store provides persistence for chatterd user records.
//
// The default backend is a flat JSON file keyed by username; a SQLite
// backend is available for servers that outgrow it, and an in-memory
// backend backs the tests.
package store

import (
	"errors"

	"github.com/chatterd/chatterd/pkg/model"
)

// ErrUserExists reports an insert for a username already in the store.
var ErrUserExists = errors.New("store: user already exists")

// UserStore is the persistence interface for user records. Implementations
// are safe for concurrent use; atomicity of check-then-insert across calls
// is the caller's concern (the Authenticator serializes registrations).
type UserStore interface {
	// Get retrieves a record by username. Returns (nil, nil) if not found.
	Get(username string) (*model.UserRecord, error)

	// Put inserts a new record. Returns ErrUserExists if the username is taken.
	Put(rec *model.UserRecord) error

	// All returns every record, ordered by username.
	All() ([]model.UserRecord, error)

	// Close releases the underlying storage.
	Close() error
}

// Compile-time checks: all backends implement UserStore.
var (
	_ UserStore = (*FileStore)(nil)
	_ UserStore = (*SQLStore)(nil)
	_ UserStore = (*Memory)(nil)
)
