// Package kvstore provides a uniform key-value store over two
// interchangeable backends: an in-process memory backend and a networked
// Redis backend. Higher layers (session registry, artifact cache) are
// written against the Store interface and never probe which backend is
// active.
package kvstore

import (
	"context"
	"time"
)

// Store is the uniform contract shared by both backends.
//
// Values are opaque serialized payloads. A TTL of 0 on Set makes the entry
// persistent and clears any previously attached TTL. A logically expired
// entry is never observable by a subsequent read.
type Store interface {
	// Set stores a value, overwriting any existing value and resetting
	// the TTL. ttl == 0 clears any existing TTL.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Get retrieves a value. The second return is false when the key is
	// absent or expired.
	Get(ctx context.Context, key string) (string, bool, error)

	// Del deletes a key. Deleting a nonexistent key is not an error.
	Del(ctx context.Context, key string) error

	// Expire attaches a TTL to an existing key. No-op if the key is absent.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Exists reports whether a key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Keys returns the keys matching pattern. The pattern supports a
	// single trailing '*' wildcard; without it the match is exact.
	Keys(ctx context.Context, pattern string) ([]string, error)

	// HSet sets a field inside the hash at key, creating the hash if
	// needed. The hash shares one TTL anchored at the outer key.
	HSet(ctx context.Context, key, field, value string) error

	// HGet retrieves a hash field. The second return is false when the
	// key or field is absent.
	HGet(ctx context.Context, key, field string) (string, bool, error)

	// HGetAll returns all fields of the hash at key. An absent key yields
	// an empty map.
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	// HDel removes a field from a hash. Deleting the last field does not
	// delete the key.
	HDel(ctx context.Context, key, field string) error
}

// Backend is a Store that also manages its own connection lifecycle.
type Backend interface {
	Store

	// Connect establishes the backend connection. It is idempotent.
	Connect(ctx context.Context) error

	// Disconnect releases the connection and cancels any pending
	// eviction timers.
	Disconnect(ctx context.Context) error

	// Connected reports the observable connection state. Never errors.
	Connected() bool
}
