package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/ingredient-matcher/app/models"
)

// MatchCacheCollection stores persisted match results.
const MatchCacheCollection = "match_cache"

// MongoCacheService is a persistent match cache with an in-process LRU in front.
type MongoCacheService struct {
	collection *mongo.Collection
	l1Cache    *lru.Cache[string, models.MatchResult]
	logger     *zap.Logger
	ttl        time.Duration

	l1Hits    atomic.Int64
	l1Miss    atomic.Int64
	mongoHits atomic.Int64
	mongoMiss atomic.Int64
}

// NewMongoCacheService creates the cache and its indexes. A positive ttl
// becomes a TTL index on created_at.
func NewMongoCacheService(db *mongo.Database, l1Size int, ttl time.Duration, logger *zap.Logger) (*MongoCacheService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	l1Cache, err := lru.New[string, models.MatchResult](l1Size)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}

	collection := db.Collection(MatchCacheCollection)
	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "key", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "index_version", Value: 1}}},
		{Keys: bson.D{{Key: "access_count", Value: -1}}},
	}
	if ttl > 0 {
		indexModels = append(indexModels, mongo.IndexModel{
			Keys:    bson.D{{Key: "created_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(ttl.Seconds())),
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := collection.Indexes().CreateMany(ctx, indexModels); err != nil {
		logger.Warn("Cannot create match_cache indexes", zap.Error(err))
	}

	return &MongoCacheService{
		collection: collection,
		l1Cache:    l1Cache,
		logger:     logger,
		ttl:        ttl,
	}, nil
}

// Get checks the LRU, then MongoDB.
func (m *MongoCacheService) Get(ctx context.Context, key string) (*models.MatchResult, bool, error) {
	if res, ok := m.l1Cache.Get(key); ok {
		m.l1Hits.Add(1)
		return &res, true, nil
	}
	m.l1Miss.Add(1)

	var entry models.MatchCache
	err := m.collection.FindOne(ctx, bson.M{"key": key}).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		m.mongoMiss.Add(1)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("find cached match: %w", err)
	}
	if entry.IsExpired(m.ttl) {
		m.mongoMiss.Add(1)
		return nil, false, nil
	}

	m.mongoHits.Add(1)
	m.l1Cache.Add(key, entry.Result)
	go m.updateAccessStats(entry)
	return &entry.Result, true, nil
}

// Set writes through to MongoDB.
func (m *MongoCacheService) Set(ctx context.Context, key string, result *models.MatchResult) error {
	if result == nil {
		return nil
	}
	m.l1Cache.Add(key, *result)

	version, normalized := splitCacheKey(key)
	entry := models.NewMatchCache(key, normalized, version, *result)
	_, err := m.collection.ReplaceOne(ctx, bson.M{"key": key}, entry, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("store cached match: %w", err)
	}
	return nil
}

// Delete removes key from the LRU and MongoDB.
func (m *MongoCacheService) Delete(ctx context.Context, key string) error {
	m.l1Cache.Remove(key)
	if _, err := m.collection.DeleteOne(ctx, bson.M{"key": key}); err != nil {
		return fmt.Errorf("delete cached match: %w", err)
	}
	return nil
}

// Clear empties the LRU and the collection.
func (m *MongoCacheService) Clear(ctx context.Context) error {
	m.l1Cache.Purge()
	if _, err := m.collection.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("clear match cache: %w", err)
	}
	m.l1Hits.Store(0)
	m.l1Miss.Store(0)
	m.mongoHits.Store(0)
	m.mongoMiss.Store(0)
	return nil
}

// InvalidateByIndexVersion purges the LRU and deletes documents of any other index namespace.
func (m *MongoCacheService) InvalidateByIndexVersion(ctx context.Context, indexVersion string) error {
	m.l1Cache.Purge()
	res, err := m.collection.DeleteMany(ctx, bson.M{"index_version": bson.M{"$ne": indexVersion}})
	if err != nil {
		return fmt.Errorf("invalidate match cache: %w", err)
	}
	m.logger.Info("Invalidated MongoDB match cache",
		zap.String("index_version", indexVersion),
		zap.Int64("deleted_count", res.DeletedCount))
	return nil
}

// GetStats reports hit counters and the collection size.
func (m *MongoCacheService) GetStats(ctx context.Context) (*CacheStats, error) {
	count, err := m.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("count match cache: %w", err)
	}
	hits := m.l1Hits.Load() + m.mongoHits.Load()
	misses := m.mongoMiss.Load()
	return &CacheStats{
		Backend:    "mongo",
		HitRate:    hitRate(hits, misses),
		TotalHits:  hits,
		TotalMiss:  misses,
		TotalItems: count,
	}, nil
}

// Exists checks the LRU, then MongoDB.
func (m *MongoCacheService) Exists(ctx context.Context, key string) (bool, error) {
	if m.l1Cache.Contains(key) {
		return true, nil
	}
	n, err := m.collection.CountDocuments(ctx, bson.M{"key": key})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Close is a no-op; the MongoDB client is owned by the caller.
func (m *MongoCacheService) Close() error {
	return nil
}

// WarmUp loads the most used entries of indexVersion into the LRU.
func (m *MongoCacheService) WarmUp(ctx context.Context, indexVersion string, limit int) (int, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "access_count", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := m.collection.Find(ctx, bson.M{"index_version": indexVersion}, opts)
	if err != nil {
		return 0, fmt.Errorf("warm up: %w", err)
	}
	defer cursor.Close(ctx)

	loaded := 0
	for cursor.Next(ctx) {
		var entry models.MatchCache
		if err := cursor.Decode(&entry); err != nil {
			m.logger.Warn("Skipping undecodable cache entry", zap.Error(err))
			continue
		}
		m.l1Cache.Add(entry.Key, entry.Result)
		loaded++
	}
	m.logger.Info("Warmed match cache",
		zap.String("index_version", indexVersion),
		zap.Int("loaded", loaded))
	return loaded, cursor.Err()
}

// updateAccessStats bumps the hit count and last access time of entry.
func (m *MongoCacheService) updateAccessStats(entry models.MatchCache) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := m.collection.UpdateOne(ctx, bson.M{"_id": entry.ID}, bson.M{
		"$set": bson.M{"last_accessed": time.Now()},
		"$inc": bson.M{"access_count": 1},
	})
	if err != nil {
		m.logger.Warn("Cannot update cache access stats", zap.Error(err))
	}
}
