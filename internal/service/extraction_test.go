package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Strob0t/MedScribe/internal/domain/clinical"
	"github.com/Strob0t/MedScribe/internal/service"
)

func TestCachedExtractor_HitsCache(t *testing.T) {
	backend := &fakeExtractor{entities: []clinical.Entity{{Text: "dipirona", Category: clinical.CategoryMedicationName, Confidence: 0.9}}}
	c := newMemCache()
	ext := service.NewCachedExtractor(backend, c, time.Minute)

	for range 3 {
		got, err := ext.Extract(context.Background(), "tomar dipirona")
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0].Text != "dipirona" {
			t.Fatalf("entities = %+v", got)
		}
	}
	if backend.calls.Load() != 1 {
		t.Errorf("backend calls = %d, want 1", backend.calls.Load())
	}
	if _, ok := c.data[service.EntityCacheKey("tomar dipirona")]; !ok {
		t.Error("expected entry under the text hash key")
	}
}

func TestCachedExtractor_DoesNotCacheFailures(t *testing.T) {
	backend := &fakeExtractor{err: errors.New("down")}
	c := newMemCache()
	ext := service.NewCachedExtractor(backend, c, time.Minute)

	if _, err := ext.Extract(context.Background(), "x"); err == nil {
		t.Fatal("expected error")
	}
	if len(c.data) != 0 {
		t.Error("failed extraction must not be cached")
	}
}

func TestCachedExtractor_FallsThrough(t *testing.T) {
	backend := &fakeExtractor{entities: []clinical.Entity{}}

	broken := newMemCache()
	broken.getErr = errors.New("kv unavailable")
	if _, err := service.NewCachedExtractor(backend, broken, 0).Extract(context.Background(), "x"); err != nil {
		t.Fatalf("cache errors must fall through: %v", err)
	}

	corrupt := newMemCache()
	corrupt.data[service.EntityCacheKey("y")] = []byte("{not json")
	if _, err := service.NewCachedExtractor(backend, corrupt, 0).Extract(context.Background(), "y"); err != nil {
		t.Fatalf("corrupt entries must fall through: %v", err)
	}
	if backend.calls.Load() != 2 {
		t.Errorf("backend calls = %d, want 2", backend.calls.Load())
	}
}

func TestEntityCacheKey(t *testing.T) {
	a, b := service.EntityCacheKey("a"), service.EntityCacheKey("b")
	if a == b || a != service.EntityCacheKey("a") {
		t.Fatal("key must be a deterministic function of the text")
	}
}
