package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ingredient-matcher/app/models"
)

const redisKeyPrefix = "ingredient_match:"

// RedisCacheService shares match results between service replicas.
type RedisCacheService struct {
	client *redis.Client
	logger *zap.Logger
	prefix string
	ttl    time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

// NewRedisCacheService connects to redisURL and verifies the connection.
func NewRedisCacheService(redisURL string, ttl time.Duration, logger *zap.Logger) (*RedisCacheService, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	return newRedisCacheService(client, ttl, logger), nil
}

// newRedisCacheService wraps an existing client.
func newRedisCacheService(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisCacheService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCacheService{
		client: client,
		logger: logger,
		prefix: redisKeyPrefix,
		ttl:    ttl,
	}
}

// Get reads and decodes the JSON result stored under key.
func (r *RedisCacheService) Get(ctx context.Context, key string) (*models.MatchResult, bool, error) {
	val, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		r.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var result models.MatchResult
	if err := json.Unmarshal(val, &result); err != nil {
		return nil, false, fmt.Errorf("decode cached match: %w", err)
	}
	r.hits.Add(1)
	return &result, true, nil
}

// Set stores result as JSON with the configured TTL.
func (r *RedisCacheService) Set(ctx context.Context, key string, result *models.MatchResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode match: %w", err)
	}
	if err := r.client.Set(ctx, r.prefix+key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes key.
func (r *RedisCacheService) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}

// Clear deletes every key under the cache prefix.
func (r *RedisCacheService) Clear(ctx context.Context) error {
	deleted, err := r.deleteWhere(ctx, func(string) bool { return true })
	if err != nil {
		return err
	}
	r.hits.Store(0)
	r.misses.Store(0)
	r.logger.Info("Cleared Redis match cache", zap.Int("keys_deleted", deleted))
	return nil
}

// InvalidateByIndexVersion deletes keys under any other index namespace.
func (r *RedisCacheService) InvalidateByIndexVersion(ctx context.Context, indexVersion string) error {
	keep := r.prefix + indexVersion + ":"
	deleted, err := r.deleteWhere(ctx, func(k string) bool { return !strings.HasPrefix(k, keep) })
	if err != nil {
		return err
	}
	r.logger.Info("Invalidated Redis match cache",
		zap.String("index_version", indexVersion),
		zap.Int("keys_deleted", deleted))
	return nil
}

// deleteWhere scans the key space under prefix and deletes matching keys.
func (r *RedisCacheService) deleteWhere(ctx context.Context, match func(string) bool) (int, error) {
	deleted := 0
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 500).Iterator()
	batch := make([]string, 0, 500)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := r.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
		deleted += len(batch)
		batch = batch[:0]
		return nil
	}
	for iter.Next(ctx) {
		if k := iter.Val(); match(k) {
			batch = append(batch, k)
		}
		if len(batch) >= 500 {
			if err := flush(); err != nil {
				return deleted, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("redis scan: %w", err)
	}
	return deleted, flush()
}

// GetStats reports local hit counters and the number of keys under the prefix.
func (r *RedisCacheService) GetStats(ctx context.Context) (*CacheStats, error) {
	var items int64
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 1000).Iterator()
	for iter.Next(ctx) {
		items++
	}
	if err := iter.Err(); err != nil {
		r.logger.Warn("Cannot count Redis keys", zap.Error(err))
	}

	hits, misses := r.hits.Load(), r.misses.Load()
	return &CacheStats{
		Backend:    "redis",
		HitRate:    hitRate(hits, misses),
		TotalHits:  hits,
		TotalMiss:  misses,
		TotalItems: items,
	}, nil
}

// Exists reports whether key is stored.
func (r *RedisCacheService) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.prefix+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Close closes the Redis client.
func (r *RedisCacheService) Close() error {
	return r.client.Close()
}
