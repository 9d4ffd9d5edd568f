// Package sessioncache is the TTL-bounded read-through cache of the most
// recently issued access token per username. It is never a source of truth.
package sessioncache

import (
	"context"
	"time"
)

// Cache is the byte-level distributed cache contract.
type Cache interface {
	// Get returns ok=false on a miss.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Remove succeeds when the key is already absent.
	Remove(ctx context.Context, key string) error
}
