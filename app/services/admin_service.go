package services

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/ingredient-matcher/app/models"
	"github.com/ingredient-matcher/internal/normalizer"
	"github.com/ingredient-matcher/internal/parser"
	"github.com/ingredient-matcher/internal/search"
	"github.com/ingredient-matcher/internal/source"
)

// SeedResult summarises a seed run.
type SeedResult struct {
	Received         int                 `json:"received"`
	Upserted         int                 `json:"upserted"`
	Rebuilt          bool                `json:"rebuilt"`
	Report           *parser.BuildReport `json:"report,omitempty"`
	ProcessingTimeMs int64               `json:"processing_time_ms"`
}

// IndexStats describes the installed candidate index.
type IndexStats struct {
	Ready       bool                `json:"ready"`
	Source      string              `json:"source"`
	Version     string              `json:"version"`
	Namespace   string              `json:"cache_namespace"`
	Candidates  int                 `json:"candidates"`
	Fingerprint string              `json:"normalizer_fingerprint"`
	BuiltAt     *time.Time          `json:"built_at,omitempty"`
	Rebuilds    int64               `json:"rebuilds"`
	LastReport  *parser.BuildReport `json:"last_report,omitempty"`
}

// SystemStats is the admin stats payload.
type SystemStats struct {
	Uptime        string                 `json:"uptime"`
	MemoryUsage   map[string]interface{} `json:"memory_usage"`
	Goroutines    int                    `json:"goroutines"`
	Index         IndexStats             `json:"index"`
	Cache         *CacheStats            `json:"cache,omitempty"`
	Matches       MatchCounts            `json:"matches"`
	TotalMatched  int64                  `json:"total_processed"`
	ActiveJobs    int                    `json:"active_jobs"`
	SearchEnabled bool                   `json:"search_enabled"`
}

// AdminServiceDeps collects AdminService collaborators. Writer, Searcher,
// Cache and Rematch are optional.
type AdminServiceDeps struct {
	Index       *IndexService
	Ingredients *IngredientService
	Source      source.CandidateSource
	Writer      source.CanonicalWriter
	Normalizer  *normalizer.TextNormalizer
	Searcher    *search.IngredientSearcher
	Cache       ICacheService
	Rematch     *RematchService
}

// AdminService runs maintenance operations: seeding, rebuilds, search sync,
// cache invalidation, rematch and stats.
type AdminService struct {
	deps   AdminServiceDeps
	logger *zap.Logger
}

func NewAdminService(deps AdminServiceDeps, logger *zap.Logger) *AdminService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminService{deps: deps, logger: logger}
}

// Seed validates items, upserts them into the writable source and optionally
// rebuilds the index.
func (as *AdminService) Seed(ctx context.Context, items []models.CanonicalIngredient, rebuild bool) (*SeedResult, error) {
	if as.deps.Writer == nil {
		return nil, source.ErrReadOnly
	}
	if err := source.Validate(items); err != nil {
		return nil, err
	}
	start := time.Now()

	upserted, err := as.deps.Writer.UpsertCanonical(ctx, items)
	if err != nil {
		return nil, fmt.Errorf("seed canonical ingredients: %w", err)
	}
	result := &SeedResult{Received: len(items), Upserted: upserted}

	if rebuild {
		report, err := as.deps.Index.Rebuild(ctx)
		if err != nil {
			return nil, fmt.Errorf("rebuild after seed: %w", err)
		}
		result.Rebuilt = true
		result.Report = report
	}

	result.ProcessingTimeMs = time.Since(start).Milliseconds()
	as.logger.Info("Canonical ingredients seeded",
		zap.Int("received", result.Received),
		zap.Int("upserted", result.Upserted),
		zap.Bool("rebuilt", result.Rebuilt))
	return result, nil
}

// RebuildIndex reloads the canonical table.
func (as *AdminService) RebuildIndex(ctx context.Context) (*parser.BuildReport, error) {
	return as.deps.Index.Rebuild(ctx)
}

// SyncSearch replaces the autocomplete documents with the canonical table,
// tagged with the current index version.
func (as *AdminService) SyncSearch(ctx context.Context) (int, error) {
	if as.deps.Searcher == nil {
		return 0, ErrSearchDisabled
	}
	idx, err := as.deps.Index.Current()
	if err != nil {
		return 0, err
	}
	items, err := as.deps.Source.LoadCanonical(ctx)
	if err != nil {
		return 0, fmt.Errorf("load canonical ingredients: %w", err)
	}

	docs := searchDocuments(items, as.deps.Normalizer, idx.Version())
	if err := as.deps.Searcher.BuildIndexes(); err != nil {
		return 0, fmt.Errorf("configure search index: %w", err)
	}
	n, err := as.deps.Searcher.SeedData(docs)
	if err != nil {
		return 0, fmt.Errorf("push search documents: %w", err)
	}
	as.logger.Info("Search index synced",
		zap.String("index_version", idx.Version()),
		zap.Int("documents", n))
	return n, nil
}

// InvalidateCache drops stale entries, or everything when all is set.
func (as *AdminService) InvalidateCache(ctx context.Context, all bool) error {
	if as.deps.Cache == nil {
		return nil
	}
	if all {
		return as.deps.Cache.Clear(ctx)
	}
	idx, err := as.deps.Index.Current()
	if err != nil {
		return err
	}
	return as.deps.Cache.InvalidateByIndexVersion(ctx, idx.Namespace())
}

// Rematch backfills stored lines without a canonical id.
func (as *AdminService) Rematch(ctx context.Context, limit int) (*RematchResult, error) {
	if as.deps.Rematch == nil {
		return nil, ErrRematchDisabled
	}
	return as.deps.Rematch.Rematch(ctx, limit)
}

// GetSystemStats collects runtime, index, cache and match statistics.
func (as *AdminService) GetSystemStats(ctx context.Context) (*SystemStats, error) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	stats := &SystemStats{
		MemoryUsage: map[string]interface{}{
			"alloc_mb":       bToMb(m.Alloc),
			"total_alloc_mb": bToMb(m.TotalAlloc),
			"sys_mb":         bToMb(m.Sys),
			"num_gc":         m.NumGC,
		},
		Goroutines:    runtime.NumGoroutine(),
		Index:         as.indexStats(),
		SearchEnabled: as.deps.Searcher != nil,
	}

	if svc := as.deps.Ingredients; svc != nil {
		stats.Uptime = time.Since(svc.GetStartTime()).Round(time.Second).String()
		stats.Matches = svc.Counts()
		stats.TotalMatched = stats.Matches.Total()
		stats.ActiveJobs = svc.ActiveJobs()
	}

	if as.deps.Cache != nil {
		cs, err := as.deps.Cache.GetStats(ctx)
		if err != nil {
			as.logger.Warn("Cannot read cache stats", zap.Error(err))
		} else {
			stats.Cache = cs
		}
	}
	return stats, nil
}

func (as *AdminService) indexStats() IndexStats {
	is := IndexStats{
		Source:     as.deps.Index.SourceName(),
		Rebuilds:   as.deps.Index.Rebuilds(),
		LastReport: as.deps.Index.LastReport(),
	}
	idx, err := as.deps.Index.Current()
	if err != nil {
		return is
	}
	builtAt := idx.BuiltAt()
	is.Ready = true
	is.Version = idx.Version()
	is.Namespace = idx.Namespace()
	is.Candidates = idx.Len()
	is.Fingerprint = idx.Fingerprint()
	is.BuiltAt = &builtAt
	return is
}

// searchDocuments skips names that normalize to nothing, as the index does.
func searchDocuments(items []models.CanonicalIngredient, tn *normalizer.TextNormalizer, version string) []search.IngredientDocument {
	docs := make([]search.IngredientDocument, 0, len(items))
	for _, it := range items {
		norm := tn.Normalize(it.Name).Normalized
		if norm == "" {
			continue
		}
		docs = append(docs, search.IngredientDocument{
			ID:           int64(it.ID),
			Name:         it.Name,
			Normalized:   norm,
			IndexVersion: version,
		})
	}
	return docs
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}
