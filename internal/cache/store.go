// Package cache persists analysis results keyed by normalized URL.
package cache

import (
	"context"
	"time"
)

// Store is a key/value store with per-entry expiry. Implementations must make
// single-key Get and Set atomic; nothing in this package needs more.
type Store interface {
	// Get returns the value and true, or nil and false when the key is
	// absent or expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// TTL returns the remaining lifetime of key, or false when absent.
	TTL(ctx context.Context, key string) (time.Duration, bool, error)
	Close() error
}

// Purger is implemented by backends that do not expire entries on their own.
type Purger interface {
	DeleteExpired(ctx context.Context) (int, error)
}
