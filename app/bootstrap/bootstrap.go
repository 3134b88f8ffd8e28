// Package bootstrap builds the shared components used by the API server and
// the CLI from a loaded configuration.
package bootstrap

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/ingredient-matcher/app/config"
	"github.com/ingredient-matcher/app/services"
	"github.com/ingredient-matcher/internal/normalizer"
	"github.com/ingredient-matcher/internal/search"
)

// InitLogger builds a production logger in production and a development one
// otherwise, at the configured level.
func InitLogger(cfg *config.Config) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.IsProduction() {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	if cfg.Log.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Log.Level)
		if err != nil {
			return nil, fmt.Errorf("log.level: %w", err)
		}
		zc.Level = level
	}
	return zc.Build()
}

// NeedsMongo reports whether the configuration uses MongoDB at all.
func NeedsMongo(cfg *config.Config) bool {
	return cfg.Source.Type == "mongo" || cfg.Cache.Mode == "mongo" || cfg.Cache.Mode == "hybrid"
}

// ConnectMongo connects and pings.
func ConnectMongo(ctx context.Context, cfg config.MongoConfig, logger *zap.Logger) (*mongo.Client, error) {
	logger.Info("Connecting to MongoDB", zap.String("database", cfg.Database))

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	logger.Info("Successfully connected to MongoDB")
	return client, nil
}

// NewNormalizer applies the accent folding and lexicon settings.
func NewNormalizer(cfg config.NormalizerConfig) (*normalizer.TextNormalizer, error) {
	folding, err := normalizer.ParseAccentFolding(cfg.AccentFolding)
	if err != nil {
		return nil, err
	}
	opts := []normalizer.Option{normalizer.WithAccentFolding(folding)}
	if cfg.LexiconPath != "" {
		lex, err := normalizer.LoadLexiconFile(cfg.LexiconPath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, normalizer.WithLexicon(lex))
	}
	return normalizer.NewTextNormalizer(opts...), nil
}

// NewCache builds the match cache selected by cache.mode. It returns nil for
// mode none. db is required for mongo and hybrid.
func NewCache(ctx context.Context, cfg *config.Config, db *mongo.Database, logger *zap.Logger) (services.ICacheService, error) {
	c := cfg.Cache
	switch c.Mode {
	case "none":
		return nil, nil
	case "memory":
		return services.NewMemoryCacheService(c.L1Size, c.TTL), nil
	case "redis":
		redisCache, err := services.NewRedisCacheService(cfg.Redis.URL, c.TTL, logger)
		if err != nil {
			return nil, err
		}
		return redisCache, nil
	case "mongo":
		if db == nil {
			return nil, fmt.Errorf("cache mode mongo needs a database")
		}
		mongoCache, err := services.NewMongoCacheService(db, c.L1Size, c.TTL, logger)
		if err != nil {
			return nil, err
		}
		return mongoCache, nil
	case "hybrid":
		if db == nil {
			return nil, fmt.Errorf("cache mode hybrid needs a database")
		}
		redisCache, err := services.NewRedisCacheService(cfg.Redis.URL, c.TTL, logger)
		if err != nil {
			return nil, err
		}
		mongoCache, err := services.NewMongoCacheService(db, c.L1Size, c.TTL, logger)
		if err != nil {
			redisCache.Close()
			return nil, err
		}
		return services.NewHybridCacheService(redisCache, mongoCache, logger), nil
	}
	return nil, fmt.Errorf("unknown cache mode %q", c.Mode)
}

// NewSearcher returns nil when Meilisearch is disabled.
func NewSearcher(cfg config.MeiliConfig, logger *zap.Logger) (*search.IngredientSearcher, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	return search.NewIngredientSearcher(search.SearchConfig{
		Host:      cfg.URL,
		APIKey:    cfg.APIKey,
		IndexName: cfg.IndexName,
		Timeout:   cfg.Timeout,
	}, logger)
}
