package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ingredient-matcher/app/bootstrap"
	"github.com/ingredient-matcher/app/config"
	"github.com/ingredient-matcher/app/services"
	"github.com/ingredient-matcher/internal/parser"
	"github.com/ingredient-matcher/internal/source"
)

// The worker keeps stored recipe lines attached to canonical ingredients. It
// rebuilds the index on the configured interval and rematches unattached
// lines after every rebuild and on its own ticker.
func main() {
	configPath := flag.String("config", "", "path to app.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("Cannot load config: ", err)
	}
	logger, err := bootstrap.InitLogger(cfg)
	if err != nil {
		log.Fatal("Cannot initialize logger: ", err)
	}
	defer logger.Sync()

	logger.Info("Starting Ingredient Rematch Worker...",
		zap.Duration("rematch_interval", cfg.Jobs.RematchInterval),
		zap.Duration("refresh_interval", cfg.Index.RefreshInterval))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := bootstrap.ConnectMongo(ctx, cfg.Mongo, logger)
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			logger.Error("Failed to disconnect from MongoDB", zap.Error(err))
		}
	}()
	db := client.Database(cfg.Mongo.Database)

	tn, err := bootstrap.NewNormalizer(cfg.Normalizer)
	if err != nil {
		logger.Fatal("Failed to create normalizer", zap.Error(err))
	}
	src, err := source.New(ctx, cfg.Source, db, logger)
	if err != nil {
		logger.Fatal("Failed to create candidate source", zap.Error(err))
	}
	if closer, ok := src.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	// the worker shares the API's cache so rebuilds here also retire stale entries
	cache, err := bootstrap.NewCache(ctx, cfg, db, logger)
	if err != nil {
		logger.Fatal("Failed to create cache service", zap.Error(err))
	}
	if cache != nil {
		defer cache.Close()
	}

	indexService := services.NewIndexService(src, tn, cache, cfg.Index.MaxCandidates, logger)
	rematch := services.NewRematchService(db, parser.NewIngredientParser(tn, logger), indexService, logger)

	trigger := make(chan struct{}, 1)
	indexService.OnSwap(func(context.Context, *parser.CandidateIndex) {
		select {
		case trigger <- struct{}{}:
		default:
		}
	})

	if _, err := indexService.Rebuild(ctx); err != nil {
		logger.Fatal("Initial index build failed", zap.Error(err))
	}
	go indexService.Run(ctx, cfg.Index.RefreshInterval)

	runRematchLoop(ctx, rematch, trigger, cfg.Jobs.RematchInterval, cfg.Jobs.RematchLimit, logger)

	logger.Info("Worker exited")
}

func runRematchLoop(ctx context.Context, rematch *services.RematchService, trigger <-chan struct{}, interval time.Duration, limit int, logger *zap.Logger) {
	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-trigger:
		case <-tick:
		}
		res, err := rematch.Rematch(ctx, limit)
		if err != nil {
			logger.Error("Rematch failed", zap.Error(err))
			continue
		}
		logger.Info("Rematch pass finished",
			zap.String("index_version", res.IndexVersion),
			zap.Int("scanned", res.Scanned),
			zap.Int("matched", res.Matched))
	}
}
