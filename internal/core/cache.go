// Package core holds the ports between the detectq services and their adapters.
package core

import (
	"context"
	"time"
)

// CacheRepository is the key-value store behind acceptance markers.
// The data layer provides a Redis implementation.
type CacheRepository interface {
	// Exists checks if a key exists in the cache.
	Exists(ctx context.Context, key string) (bool, error)

	// SetIfNotExists atomically sets a key only if it doesn't already exist.
	// Returns true if the key was set, false if it already existed.
	SetIfNotExists(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
}
