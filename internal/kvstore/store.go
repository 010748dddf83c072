// Package kvstore provides the durable key/value storage the session core
// uses to remember provider identity and in-flight magic-link state across
// restarts and redirects.
package kvstore

// file: internal/kvstore/store.go

import (
	"context"
)

// Store is a small durable string map. Every method may fail; failures are
// returned to the caller and never swallowed.
type Store interface {
	// Get returns the stored value. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing a key that does not exist is a no-op.
	Remove(ctx context.Context, key string) error
}

// Closer is implemented by stores holding external resources.
type Closer interface {
	Close() error
}

// GetString returns the stored value, or "" when absent.
func GetString(ctx context.Context, s Store, key string) (string, error) {
	v, _, err := s.Get(ctx, key)
	return v, err
}
