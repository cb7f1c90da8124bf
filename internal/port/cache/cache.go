// Package cache defines the key-value cache port used for extraction
// results and idempotent replies.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque values. Keys are restricted to [A-Za-z0-9._-] so every
// adapter (NATS KV included) accepts them. A miss is (nil, false, nil);
// errors are reserved for an unreachable backend.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value for ttl. Adapters with a bucket-wide TTL ignore it.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
