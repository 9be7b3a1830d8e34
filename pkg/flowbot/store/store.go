// Package store provides record persistence for flows.
//
// A record store is a flat key/value space shared by every session of a
// bot. Three backends are provided: an in-memory store for tests and
// previews, a single-file JSON store, and a SQLite store.
package store

import (
	"context"
	"errors"
)

// Common store errors.
var (
	// ErrNotFound indicates a missing key.
	ErrNotFound = errors.New("record not found")

	// ErrStoreClosed indicates an operation on a closed store.
	ErrStoreClosed = errors.New("store is closed")
)

// Store persists string records by key. Implementations serialize
// concurrent operations so each Save/Load/Delete is atomic per key.
// Deleting an absent key is not an error.
type Store interface {
	Save(ctx context.Context, key, value string) error
	Load(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
	Close() error
}
