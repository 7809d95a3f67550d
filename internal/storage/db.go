// Package storage provides the transactional key-value abstraction the
// ledger is built on. Every mutating ledger operation runs inside a single
// Update closure so a record and its balance effect commit or fail as one
// unit.
package storage

import "errors"

// Storage sentinels.
var (
	// ErrNotFound reports a missing key.
	ErrNotFound = errors.New("storage: key not found")
	// ErrConflict reports a serialization conflict between concurrent
	// transactions. Callers retry the whole closure.
	ErrConflict = errors.New("storage: transaction conflict")
)

// Txn is the view of the store inside a transaction. Reads observe the
// transaction's own writes.
type Txn interface {
	// Get returns the value for key, or ErrNotFound.
	Get(key []byte) ([]byte, error)
	// Set stores a key-value pair.
	Set(key, value []byte) error
	// Delete removes a key. Deleting a missing key is not an error.
	Delete(key []byte) error
	// Has checks if a key exists.
	Has(key []byte) (bool, error)
	// ForEach iterates over keys with the given prefix in ascending key
	// order. The callback receives copies it may retain.
	// Return a non-nil error from fn to stop iteration early.
	ForEach(prefix []byte, fn func(key, value []byte) error) error
}

// DB is a transactional key-value store.
type DB interface {
	// View runs fn in a read-only transaction.
	View(fn func(Txn) error) error
	// Update runs fn in a read-write transaction. Either every write in
	// fn commits, or none do. May return ErrConflict when a concurrent
	// transaction touched overlapping keys; the closure must therefore be
	// safe to re-run.
	Update(fn func(Txn) error) error
	Close() error
}
