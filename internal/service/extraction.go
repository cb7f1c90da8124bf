package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Strob0t/MedScribe/internal/domain/clinical"
	"github.com/Strob0t/MedScribe/internal/port/cache"
	"github.com/Strob0t/MedScribe/internal/port/extraction"
)

const entityKeyPrefix = "entities."

// CachedExtractor memoizes extraction results keyed by the SHA-256 of the
// fragment text. Cache errors are logged and fall through to the backend.
type CachedExtractor struct {
	next  extraction.Extractor
	cache cache.Cache
	ttl   time.Duration
}

// NewCachedExtractor wraps next with c.
func NewCachedExtractor(next extraction.Extractor, c cache.Cache, ttl time.Duration) *CachedExtractor {
	return &CachedExtractor{next: next, cache: c, ttl: ttl}
}

// Extract returns cached entities when present, otherwise calls the backend
// and stores its answer. Failed extractions are never cached.
func (e *CachedExtractor) Extract(ctx context.Context, text string) ([]clinical.Entity, error) {
	key := EntityCacheKey(text)

	data, ok, err := e.cache.Get(ctx, key)
	switch {
	case err != nil:
		slog.WarnContext(ctx, "entity cache get failed", "error", err)
	case ok:
		var entities []clinical.Entity
		if err := json.Unmarshal(data, &entities); err == nil {
			return entities, nil
		}
		slog.WarnContext(ctx, "discarding corrupt entity cache entry", "key", key)
	}

	entities, err := e.next.Extract(ctx, text)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(entities); err == nil {
		if err := e.cache.Set(ctx, key, data, e.ttl); err != nil {
			slog.WarnContext(ctx, "entity cache set failed", "error", err)
		}
	}
	return entities, nil
}

// EntityCacheKey is the cache key for a fragment text.
func EntityCacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return entityKeyPrefix + hex.EncodeToString(sum[:])
}
