package services

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/ingredient-matcher/app/models"
)

// MemoryCacheService is a size-bounded in-process cache with per-entry TTL.
type MemoryCacheService struct {
	cache  *expirable.LRU[string, models.MatchResult]
	hits   atomic.Int64
	misses atomic.Int64
}

// NewMemoryCacheService creates a cache holding at most size entries for ttl each.
func NewMemoryCacheService(size int, ttl time.Duration) *MemoryCacheService {
	if size <= 0 {
		size = 10000
	}
	return &MemoryCacheService{
		cache: expirable.NewLRU[string, models.MatchResult](size, nil, ttl),
	}
}

// Get looks key up in the LRU.
func (m *MemoryCacheService) Get(ctx context.Context, key string) (*models.MatchResult, bool, error) {
	res, ok := m.cache.Get(key)
	if !ok {
		m.misses.Add(1)
		return nil, false, nil
	}
	m.hits.Add(1)
	return &res, true, nil
}

// Set stores result under key for the configured TTL.
func (m *MemoryCacheService) Set(ctx context.Context, key string, result *models.MatchResult) error {
	if result == nil {
		return nil
	}
	m.cache.Add(key, *result)
	return nil
}

// Delete removes key.
func (m *MemoryCacheService) Delete(ctx context.Context, key string) error {
	m.cache.Remove(key)
	return nil
}

// Clear drops every entry and resets the counters.
func (m *MemoryCacheService) Clear(ctx context.Context) error {
	m.cache.Purge()
	m.hits.Store(0)
	m.misses.Store(0)
	return nil
}

// InvalidateByIndexVersion drops entries keyed under any other index namespace.
func (m *MemoryCacheService) InvalidateByIndexVersion(ctx context.Context, indexVersion string) error {
	prefix := indexVersion + ":"
	for _, key := range m.cache.Keys() {
		if !strings.HasPrefix(key, prefix) {
			m.cache.Remove(key)
		}
	}
	return nil
}

// GetStats reports hits, misses and size.
func (m *MemoryCacheService) GetStats(ctx context.Context) (*CacheStats, error) {
	hits, misses := m.hits.Load(), m.misses.Load()
	return &CacheStats{
		Backend:    "memory",
		HitRate:    hitRate(hits, misses),
		TotalHits:  hits,
		TotalMiss:  misses,
		TotalItems: int64(m.cache.Len()),
	}, nil
}

// Exists reports whether key is cached without counting a hit.
func (m *MemoryCacheService) Exists(ctx context.Context, key string) (bool, error) {
	return m.cache.Contains(key), nil
}

// Close is a no-op.
func (m *MemoryCacheService) Close() error {
	return nil
}
