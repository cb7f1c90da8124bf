// Package ristretto is the in-process L1 cache, backed by dgraph-io/ristretto.
package ristretto

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

const (
	minCounters = 1000
	// avgEntryBytes sizes the admission counters; an extraction result of a
	// short fragment serializes to a few hundred bytes.
	avgEntryBytes = 512
)

// Cache is an in-process cache bounded by total value size.
type Cache struct {
	c *ristretto.Cache[string, []byte]
}

// New creates a cache holding at most maxCostBytes of keys plus values.
func New(maxCostBytes int64) (*Cache, error) {
	counters := max(maxCostBytes/avgEntryBytes*10, minCounters)
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters:        counters,
		MaxCost:            maxCostBytes,
		BufferItems:        64,
		Metrics:            true,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{c: c}, nil
}

func (c *Cache) Get(_ context.Context, key string) (data []byte, ok bool, err error) {
	val, found := c.c.Get(key)
	if !found {
		return nil, false, nil
	}
	return val, true, nil
}

// Set stores a value for ttl (0 = until evicted). Ristretto buffers writes
// and may reject them under pressure; Set waits so a following Get on this
// process observes an admitted value.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.c.SetWithTTL(key, value, int64(len(key)+len(value)), ttl)
	c.c.Wait()
	return nil
}

func (c *Cache) Delete(_ context.Context, key string) error {
	c.c.Del(key)
	return nil
}

// HitRatio reports hits / (hits + misses) since creation.
func (c *Cache) HitRatio() float64 {
	return c.c.Metrics.Ratio()
}

// Close stops the cache goroutines.
func (c *Cache) Close() {
	c.c.Close()
}
