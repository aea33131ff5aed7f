// Package cache stores planned class results between runs.
//
// Planning a class (generating access points on its representative and
// searching instance patterns) is the expensive part of a run, and its
// result only depends on the technology, the master, the class key and the
// generation options. Access points are stored relative to the instance
// origin, so a cached result applies to every member of the class and to
// any later run that reproduces the same key.
//
// Backends:
//   - FileCache for local CLI runs
//   - RedisCache for sharing results between machines and runs
//   - NullCache to disable caching
package cache

import (
	"context"
	"time"
)

// TTLClass is the default lifetime of a cached class result.
const TTLClass = 24 * time.Hour

// Cache is a byte store with expiring entries. Implementations must be safe
// for concurrent use; the worker pool reads and writes from many goroutines.
type Cache interface {
	// Get returns the value for key. hit is false on a miss or expired
	// entry; a miss is not an error.
	Get(ctx context.Context, key string) (data []byte, hit bool, err error)

	// Set stores data under key. A zero ttl never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Clearer is implemented by caches that can drop every entry they own.
type Clearer interface {
	Clear(ctx context.Context) (removed int, err error)
}
