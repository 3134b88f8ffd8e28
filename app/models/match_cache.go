package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MatchCache is a persisted match keyed by index version and normalized text.
type MatchCache struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Key          string             `bson:"key" json:"key"`                     // version:normalized
	Normalized   string             `bson:"normalized" json:"normalized"`       // Normalized query
	IndexVersion string             `bson:"index_version" json:"index_version"` // Index namespace the result belongs to
	Result       MatchResult        `bson:"result" json:"result"`               // Cached match
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`       // Insert time, TTL anchor
	LastAccessed time.Time          `bson:"last_accessed" json:"last_accessed"` // Last read
	AccessCount  int                `bson:"access_count" json:"access_count"`   // Read counter
}

// NewMatchCache creates a cache document for one result.
func NewMatchCache(key, normalized, indexVersion string, result MatchResult) *MatchCache {
	now := time.Now()
	return &MatchCache{
		Key:          key,
		Normalized:   normalized,
		IndexVersion: indexVersion,
		Result:       result,
		CreatedAt:    now,
		LastAccessed: now,
		AccessCount:  1,
	}
}

// IsExpired reports whether the entry is older than ttl.
func (mc *MatchCache) IsExpired(ttl time.Duration) bool {
	return ttl > 0 && time.Since(mc.CreatedAt) > ttl
}

// MatchCacheKey builds the cache key for a normalized query under an index
// namespace. Processes serving the same canonical table share keys.
func MatchCacheKey(indexVersion, normalized string) string {
	return indexVersion + ":" + normalized
}
