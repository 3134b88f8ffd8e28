package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/ingredient-matcher/app/bootstrap"
	"github.com/ingredient-matcher/app/config"
	"github.com/ingredient-matcher/app/controllers"
	"github.com/ingredient-matcher/app/services"
	"github.com/ingredient-matcher/internal/parser"
	"github.com/ingredient-matcher/internal/source"
	"github.com/ingredient-matcher/routes"
)

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

	logger.Info("Starting Ingredient Matcher Service...",
		zap.String("env", cfg.App.Env),
		zap.String("version", cfg.App.Version))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var db *mongo.Database
	if bootstrap.NeedsMongo(cfg) {
		client, err := bootstrap.ConnectMongo(ctx, cfg.Mongo, logger)
		if err != nil {
			logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		defer func() {
			if err := client.Disconnect(context.Background()); err != nil {
				logger.Error("Failed to disconnect from MongoDB", zap.Error(err))
			}
		}()
		db = client.Database(cfg.Mongo.Database)
	}

	tn, err := bootstrap.NewNormalizer(cfg.Normalizer)
	if err != nil {
		logger.Fatal("Failed to create normalizer", zap.Error(err))
	}

	src, err := source.New(ctx, cfg.Source, db, logger)
	if err != nil {
		logger.Fatal("Failed to create candidate source", zap.Error(err))
	}

	cache, err := bootstrap.NewCache(ctx, cfg, db, logger)
	if err != nil {
		logger.Fatal("Failed to create cache service", zap.Error(err))
	}
	if cache != nil {
		defer cache.Close()
	}

	searcher, err := bootstrap.NewSearcher(cfg.Meilisearch, logger)
	if err != nil {
		// autocomplete is optional; matching does not depend on it
		logger.Warn("Meilisearch unavailable, search disabled", zap.Error(err))
		searcher = nil
	}

	ingredientParser := parser.NewIngredientParser(tn, logger)
	indexService := services.NewIndexService(src, tn, cache, cfg.Index.MaxCandidates, logger)
	ingredientService := services.NewIngredientService(ingredientParser, indexService, cache, searcher,
		services.IngredientServiceConfig{
			Workers:      cfg.Jobs.Workers,
			MaxLines:     cfg.Jobs.MaxLines,
			JobRetention: cfg.Jobs.Retention,
		}, logger)

	deps := services.AdminServiceDeps{
		Index:       indexService,
		Ingredients: ingredientService,
		Source:      src,
		Normalizer:  tn,
		Searcher:    searcher,
		Cache:       cache,
	}
	if w, ok := src.(source.CanonicalWriter); ok {
		deps.Writer = w
	}
	if db != nil {
		deps.Rematch = services.NewRematchService(db, ingredientParser, indexService, logger)
	}
	adminService := services.NewAdminService(deps, logger)

	if searcher != nil {
		indexService.OnSwap(func(ctx context.Context, idx *parser.CandidateIndex) {
			go func() {
				if _, err := adminService.SyncSearch(context.WithoutCancel(ctx)); err != nil {
					logger.Warn("Search sync after rebuild failed", zap.Error(err))
				}
			}()
		})
	}

	if _, err := indexService.Rebuild(ctx); err != nil {
		logger.Fatal("Initial index build failed", zap.Error(err))
	}
	go indexService.Run(ctx, cfg.Index.RefreshInterval)
	go ingredientService.RunJanitor(ctx)

	router := routes.NewRouter(cfg,
		controllers.NewIngredientController(ingredientService, indexService, cfg.App.Version, logger),
		controllers.NewAdminController(adminService, logger),
		logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if closer, ok := src.(interface{ Close() error }); ok {
		closer.Close()
	}

	logger.Info("Server exited")
}
