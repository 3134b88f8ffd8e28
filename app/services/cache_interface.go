package services

import (
	"context"
	"strings"

	"github.com/ingredient-matcher/app/models"
)

// CacheStats summarises cache effectiveness.
type CacheStats struct {
	Backend    string  `json:"backend"`
	HitRate    float64 `json:"hit_rate"`
	TotalHits  int64   `json:"total_hits"`
	TotalMiss  int64   `json:"total_miss"`
	TotalItems int64   `json:"total_items"`
}

// ICacheService stores match results keyed by models.MatchCacheKey. Keys embed
// the index content namespace, so a changed canonical table makes old entries
// unreachable and InvalidateByIndexVersion reclaims their space.
type ICacheService interface {
	Get(ctx context.Context, key string) (*models.MatchResult, bool, error)
	Set(ctx context.Context, key string, result *models.MatchResult) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	// InvalidateByIndexVersion drops every entry not keyed under indexVersion,
	// the content namespace of the current index.
	InvalidateByIndexVersion(ctx context.Context, indexVersion string) error
	GetStats(ctx context.Context) (*CacheStats, error)
	Exists(ctx context.Context, key string) (bool, error)
	Close() error
}

// splitCacheKey reverses models.MatchCacheKey.
func splitCacheKey(key string) (indexVersion, normalized string) {
	version, norm, found := strings.Cut(key, ":")
	if !found {
		return "", key
	}
	return version, norm
}

func hitRate(hits, misses int64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
