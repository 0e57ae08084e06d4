package store

import (
	"context"
	"errors"
)

var (
	// ErrQuotaExceeded is returned by size-limited backends when a write
	// would grow the store past its quota. The previous value is kept.
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// ErrSchemaTooNew is returned when a database was written by a newer
	// schema version than this build understands.
	ErrSchemaTooNew = errors.New("storage schema is newer than supported")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("storage backend closed")
)

// Backend is a key/value persistence abstraction. Values are opaque bytes.
//
// Implementations must tolerate overlapping writes to the same key
// (last write wins) and must never leave a previously stored value
// corrupted when a write fails.
type Backend interface {
	// Get returns the value for key, or nil if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error

	// Clear deletes every key owned by this backend.
	Clear(ctx context.Context) error

	// Close releases underlying resources.
	Close() error
}
