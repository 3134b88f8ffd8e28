package requests

import "github.com/ingredient-matcher/app/models"

// MatchIngredientRequest canonicalizes one ingredient line.
type MatchIngredientRequest struct {
	Text string `json:"text" binding:"required"` // Raw ingredient line
}

// NormalizeRequest runs only the normalizer.
type NormalizeRequest struct {
	Text string `json:"text" binding:"required"`
}

// BatchMatchRequest matches many lines as a background job.
type BatchMatchRequest struct {
	Lines []string `json:"lines" binding:"required,min=1,max=20000"` // Raw lines, at most 20k
}

// SeedIngredientsRequest upserts canonical ingredients.
type SeedIngredientsRequest struct {
	Data         []models.CanonicalIngredient `json:"data" binding:"required"` // Canonical rows
	RebuildIndex bool                         `json:"rebuild_index,omitempty"` // Rebuild the candidate index afterwards
}

// InvalidateCacheRequest controls cache invalidation.
type InvalidateCacheRequest struct {
	All bool `json:"all,omitempty"` // Drop every entry instead of only stale versions
}

// RematchRequest bounds a rematch run.
type RematchRequest struct {
	Limit int `json:"limit,omitempty" binding:"gte=0"` // 0 = every unmatched line
}
