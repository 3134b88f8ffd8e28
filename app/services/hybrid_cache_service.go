package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ingredient-matcher/app/models"
)

// HybridCacheService layers a fast cache (usually Redis) over a persistent
// one (usually MongoDB). Reads fall through and backfill; writes go to both.
type HybridCacheService struct {
	l1     ICacheService
	l2     ICacheService
	logger *zap.Logger
}

// NewHybridCacheService combines two caches.
func NewHybridCacheService(l1, l2 ICacheService, logger *zap.Logger) *HybridCacheService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HybridCacheService{l1: l1, l2: l2, logger: logger}
}

// Get checks L1, then L2, and backfills L1 on an L2 hit.
func (h *HybridCacheService) Get(ctx context.Context, key string) (*models.MatchResult, bool, error) {
	res, found, err := h.l1.Get(ctx, key)
	if err != nil {
		h.logger.Warn("L1 cache read failed, falling back to L2", zap.Error(err))
	} else if found {
		return res, true, nil
	}

	res, found, err = h.l2.Get(ctx, key)
	if err != nil || !found {
		return nil, false, err
	}

	go func(r models.MatchResult) {
		bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.l1.Set(bgCtx, key, &r); err != nil {
			h.logger.Warn("Cannot backfill L1 cache", zap.Error(err), zap.String("key", key))
		}
	}(*res)

	return res, true, nil
}

// Set writes to both layers.
func (h *HybridCacheService) Set(ctx context.Context, key string, result *models.MatchResult) error {
	return h.both(func(c ICacheService) error { return c.Set(ctx, key, result) }, "set")
}

// Delete removes key from both layers.
func (h *HybridCacheService) Delete(ctx context.Context, key string) error {
	return h.both(func(c ICacheService) error { return c.Delete(ctx, key) }, "delete")
}

// Clear empties both layers.
func (h *HybridCacheService) Clear(ctx context.Context) error {
	return h.both(func(c ICacheService) error { return c.Clear(ctx) }, "clear")
}

// InvalidateByIndexVersion invalidates both layers.
func (h *HybridCacheService) InvalidateByIndexVersion(ctx context.Context, indexVersion string) error {
	return h.both(func(c ICacheService) error { return c.InvalidateByIndexVersion(ctx, indexVersion) }, "invalidate")
}

// GetStats reports combined hits. Items are the persistent layer's count.
func (h *HybridCacheService) GetStats(ctx context.Context) (*CacheStats, error) {
	s1, err1 := h.l1.GetStats(ctx)
	s2, err2 := h.l2.GetStats(ctx)
	switch {
	case err1 != nil && err2 != nil:
		return nil, fmt.Errorf("cache stats: %w", errors.Join(err1, err2))
	case err1 != nil:
		return s2, nil
	case err2 != nil:
		return s1, nil
	}
	hits := s1.TotalHits + s2.TotalHits
	return &CacheStats{
		Backend:    "hybrid",
		HitRate:    hitRate(hits, s2.TotalMiss),
		TotalHits:  hits,
		TotalMiss:  s2.TotalMiss,
		TotalItems: s2.TotalItems,
	}, nil
}

// Exists checks L1, then L2.
func (h *HybridCacheService) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := h.l1.Exists(ctx, key)
	if err == nil && ok {
		return true, nil
	}
	return h.l2.Exists(ctx, key)
}

// Close closes both layers.
func (h *HybridCacheService) Close() error {
	return h.both(func(c ICacheService) error { return c.Close() }, "close")
}

// both runs op on the two layers concurrently and joins their errors.
func (h *HybridCacheService) both(op func(ICacheService) error, name string) error {
	errCh := make(chan error, 2)
	for _, c := range []ICacheService{h.l1, h.l2} {
		go func(c ICacheService) { errCh <- op(c) }(c)
	}
	var errs []error
	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("hybrid cache %s: %w", name, errors.Join(errs...))
	}
	return nil
}
