package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ingredient-matcher/app/models"
	"github.com/ingredient-matcher/internal/normalizer"
	"github.com/ingredient-matcher/internal/parser"
)

var testNormalizer = normalizer.NewTextNormalizer()

// stubSource is an in-memory candidate source that also accepts seeds.
type stubSource struct {
	mu    sync.Mutex
	items []models.CanonicalIngredient
	err   error
	loads int
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) LoadCanonical(ctx context.Context) ([]models.CanonicalIngredient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.err != nil {
		return nil, s.err
	}
	out := make([]models.CanonicalIngredient, len(s.items))
	copy(out, s.items)
	return out, nil
}

func (s *stubSource) UpsertCanonical(ctx context.Context, items []models.CanonicalIngredient) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID := make(map[models.IngredientID]int, len(s.items))
	for i, it := range s.items {
		byID[it.ID] = i
	}
	for _, it := range items {
		if i, ok := byID[it.ID]; ok {
			s.items[i] = it
			continue
		}
		s.items = append(s.items, it)
	}
	return len(items), nil
}

func pantrySource() *stubSource {
	return &stubSource{items: []models.CanonicalIngredient{
		{ID: 1, Name: "Garlic"},
		{ID: 2, Name: "Salt"},
		{ID: 3, Name: "Olive Oil"},
		{ID: 4, Name: "Unsalted Butter"},
		{ID: 5, Name: "Chicken Breast"},
	}}
}

func newTestIngredientService(t *testing.T, cache ICacheService) (*IngredientService, *IndexService) {
	t.Helper()
	index := NewIndexService(pantrySource(), testNormalizer, cache, 0, nil)
	_, err := index.Rebuild(context.Background())
	require.NoError(t, err)

	p := parser.NewIngredientParser(testNormalizer, nil)
	svc := NewIngredientService(p, index, cache, nil, IngredientServiceConfig{
		Workers:      3,
		MaxLines:     10,
		JobRetention: time.Hour,
	}, nil)
	return svc, index
}

func TestIndexService_NotReady(t *testing.T) {
	index := NewIndexService(pantrySource(), testNormalizer, nil, 0, nil)

	_, err := index.Current()
	assert.ErrorIs(t, err, ErrIndexNotReady)
	assert.False(t, index.Ready())
	assert.Nil(t, index.LastReport())
}

func TestIndexService_Rebuild(t *testing.T) {
	index := NewIndexService(pantrySource(), testNormalizer, nil, 0, nil)

	report, err := index.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, report.Candidates)

	idx, err := index.Current()
	require.NoError(t, err)
	assert.Equal(t, report.Version, idx.Version())
	id, ok := idx.Lookup("olive oil")
	assert.True(t, ok)
	assert.Equal(t, models.IngredientID(3), id)
	assert.Equal(t, int64(1), index.Rebuilds())
}

func TestIndexService_FailedRebuildKeepsSnapshot(t *testing.T) {
	src := pantrySource()
	index := NewIndexService(src, testNormalizer, nil, 0, nil)
	_, err := index.Rebuild(context.Background())
	require.NoError(t, err)
	before, _ := index.Current()

	src.err = errors.New("connection refused")
	_, err = index.Rebuild(context.Background())
	require.Error(t, err)

	after, err := index.Current()
	require.NoError(t, err)
	assert.Same(t, before, after)
}

func TestIndexService_MaxCandidates(t *testing.T) {
	index := NewIndexService(pantrySource(), testNormalizer, nil, 3, nil)

	_, err := index.Rebuild(context.Background())
	assert.ErrorIs(t, err, ErrTooManyCandidates)
	assert.False(t, index.Ready())
}

func TestIndexService_SwapHookAndCacheInvalidation(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCacheService(16, time.Hour)
	src := pantrySource()
	index := NewIndexService(src, testNormalizer, cache, 0, nil)

	var versions []string
	index.OnSwap(func(ctx context.Context, idx *parser.CandidateIndex) {
		versions = append(versions, idx.Version())
	})

	first, err := index.Rebuild(ctx)
	require.NoError(t, err)
	staleKey := models.MatchCacheKey(first.Namespace, "garlic")
	require.NoError(t, cache.Set(ctx, staleKey, exactResult(1, "garlic")))

	_, err = src.UpsertCanonical(ctx, []models.CanonicalIngredient{{ID: 6, Name: "Basil"}})
	require.NoError(t, err)
	second, err := index.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{first.Version, second.Version}, versions)
	assert.NotEqual(t, first.Namespace, second.Namespace)

	assert.Eventually(t, func() bool {
		ok, _ := cache.Exists(ctx, staleKey)
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestIndexService_UnchangedTableKeepsCache(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCacheService(16, time.Hour)
	index := NewIndexService(pantrySource(), testNormalizer, cache, 0, nil)

	first, err := index.Rebuild(ctx)
	require.NoError(t, err)
	key := models.MatchCacheKey(first.Namespace, "garlic")
	require.NoError(t, cache.Set(ctx, key, exactResult(1, "garlic")))

	second, err := index.Rebuild(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first.Version, second.Version)
	assert.Equal(t, first.Namespace, second.Namespace)

	assert.Never(t, func() bool {
		ok, _ := cache.Exists(ctx, key)
		return !ok
	}, 100*time.Millisecond, 10*time.Millisecond)
}

func TestIndexService_SharedCacheBetweenProcesses(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCacheService(16, time.Hour)

	api, apiIndex := newTestIngredientService(t, cache)
	worker := NewIndexService(pantrySource(), testNormalizer, cache, 0, nil)

	out, err := api.Match(ctx, "Fresh, Chopped Garlic - minced")
	require.NoError(t, err)
	require.False(t, out.CacheHit)

	// the worker builds the same table twice; the second build replaces a
	// snapshot and would invalidate if the namespace differed
	for i := 0; i < 2; i++ {
		_, err := worker.Rebuild(ctx)
		require.NoError(t, err)
	}

	apiIdx, err := apiIndex.Current()
	require.NoError(t, err)
	workerIdx, err := worker.Current()
	require.NoError(t, err)
	assert.Equal(t, apiIdx.Namespace(), workerIdx.Namespace())
	assert.NotEqual(t, apiIdx.Version(), workerIdx.Version())

	assert.Never(t, func() bool {
		ok, _ := cache.Exists(ctx, models.MatchCacheKey(apiIdx.Namespace(), "garlic"))
		return !ok
	}, 100*time.Millisecond, 10*time.Millisecond)

	other := NewIngredientService(parser.NewIngredientParser(testNormalizer, nil), worker, cache, nil,
		IngredientServiceConfig{Workers: 1, MaxLines: 10, JobRetention: time.Hour}, nil)
	again, err := other.Match(ctx, "garlic")
	require.NoError(t, err)
	assert.True(t, again.CacheHit)
	assert.Equal(t, out.MatchResult, again.MatchResult)
}

func TestIndexService_HookMayRebuild(t *testing.T) {
	ctx := context.Background()
	index := NewIndexService(pantrySource(), testNormalizer, nil, 0, nil)

	var calls int
	index.OnSwap(func(ctx context.Context, idx *parser.CandidateIndex) {
		calls++
		if calls == 1 {
			_, err := index.Rebuild(ctx)
			assert.NoError(t, err)
		}
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := index.Rebuild(ctx)
		assert.NoError(t, err)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("rebuild from a swap hook deadlocked")
	}
	assert.Equal(t, 2, calls)
	assert.Equal(t, int64(2), index.Rebuilds())
}

func TestIngredientService_Match(t *testing.T) {
	svc, _ := newTestIngredientService(t, nil)

	out, err := svc.Match(context.Background(), "Fresh, Chopped Garlic - minced")
	require.NoError(t, err)
	assert.Equal(t, models.MatchTypeExact, out.MatchType)
	assert.Equal(t, models.IngredientID(1), out.ID())
	assert.Equal(t, "garlic", out.Normalized)
	assert.NotEmpty(t, out.IndexVersion)
	assert.False(t, out.CacheHit)

	out, err = svc.Match(context.Background(), "xyzzy plugh")
	require.NoError(t, err)
	assert.Equal(t, models.MatchTypeNone, out.MatchType)
	assert.Nil(t, out.MatchID)

	_, err = svc.Match(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyText)

	counts := svc.Counts()
	assert.Equal(t, int64(1), counts.Exact)
	assert.Equal(t, int64(1), counts.None)
	assert.Equal(t, int64(2), counts.Total())
}

func TestIngredientService_MatchUsesCache(t *testing.T) {
	cache := NewMemoryCacheService(16, time.Hour)
	svc, _ := newTestIngredientService(t, cache)
	ctx := context.Background()

	first, err := svc.Match(ctx, "2 cups salt")
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := svc.Match(ctx, "Pinch of salt")
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.MatchResult, second.MatchResult)
	assert.Equal(t, "Pinch of salt", second.Raw)
}

func TestIngredientService_IndexNotReady(t *testing.T) {
	index := NewIndexService(pantrySource(), testNormalizer, nil, 0, nil)
	svc := NewIngredientService(parser.NewIngredientParser(testNormalizer, nil), index, nil, nil, IngredientServiceConfig{}, nil)

	_, err := svc.Match(context.Background(), "garlic")
	assert.ErrorIs(t, err, ErrIndexNotReady)
	_, err = svc.SubmitJob(context.Background(), []string{"garlic"})
	assert.ErrorIs(t, err, ErrIndexNotReady)
}

func TestIngredientService_NormalizeAndSuggest(t *testing.T) {
	svc, _ := newTestIngredientService(t, nil)

	norm, err := svc.Normalize("3 tablespoons extra virgin olive oil")
	require.NoError(t, err)
	assert.Equal(t, "olive oil", norm.Normalized)

	normalized, suggestions, err := svc.Suggest("galric", 2)
	require.NoError(t, err)
	assert.Equal(t, "galric", normalized)
	require.NotEmpty(t, suggestions)
	assert.Equal(t, models.IngredientID(1), suggestions[0].ID)

	_, err = svc.Search("garlic", 5)
	assert.ErrorIs(t, err, ErrSearchDisabled)
}

func TestIngredientService_BatchJob(t *testing.T) {
	svc, _ := newTestIngredientService(t, nil)
	lines := []string{"garlic, minced", "xyzzy", "pinch of salt", "2 chicken breasts"}

	status, err := svc.SubmitJob(context.Background(), lines)
	require.NoError(t, err)
	assert.Equal(t, len(lines), status.Total)
	assert.NotEmpty(t, status.JobID)

	require.Eventually(t, func() bool {
		st, err := svc.GetJobStatus(status.JobID)
		return err == nil && st.Status == JobStatusDone
	}, 2*time.Second, 5*time.Millisecond)

	st, err := svc.GetJobStatus(status.JobID)
	require.NoError(t, err)
	assert.Equal(t, 1.0, st.Progress)
	assert.NotNil(t, st.CompletedAt)

	results, err := svc.GetJobResults(status.JobID)
	require.NoError(t, err)
	require.Len(t, results, len(lines))
	assert.Equal(t, models.IngredientID(1), results[0].ID())
	assert.Equal(t, models.MatchTypeNone, results[1].MatchType)
	assert.Equal(t, models.IngredientID(2), results[2].ID())
	assert.Equal(t, models.MatchTypeNgram, results[3].MatchType)

	stream, err := svc.GetJobResultsStream(status.JobID)
	require.NoError(t, err)
	var streamed []parser.ParseResult
	for r := range stream {
		streamed = append(streamed, r)
	}
	assert.Equal(t, results, streamed)
	assert.Equal(t, 0, svc.ActiveJobs())
}

func TestIngredientService_JobErrors(t *testing.T) {
	svc, _ := newTestIngredientService(t, nil)

	_, err := svc.SubmitJob(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyBatch)

	_, err = svc.SubmitJob(context.Background(), make([]string, 11))
	assert.ErrorIs(t, err, ErrTooManyLines)

	_, err = svc.GetJobStatus("missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
	_, err = svc.GetJobResults("missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestIngredientService_CleanupJobs(t *testing.T) {
	svc, _ := newTestIngredientService(t, nil)
	status, err := svc.SubmitJob(context.Background(), []string{"garlic"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		st, _ := svc.GetJobStatus(status.JobID)
		return st != nil && st.Status == JobStatusDone
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, 0, svc.CleanupJobs(time.Now()))
	assert.Equal(t, 1, svc.CleanupJobs(time.Now().Add(2*time.Hour)))
	_, err = svc.GetJobStatus(status.JobID)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestAdminService_Seed(t *testing.T) {
	src := pantrySource()
	index := NewIndexService(src, testNormalizer, nil, 0, nil)
	admin := NewAdminService(AdminServiceDeps{Index: index, Source: src, Writer: src, Normalizer: testNormalizer}, nil)

	res, err := admin.Seed(context.Background(), []models.CanonicalIngredient{{ID: 6, Name: "Basil"}}, true)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Upserted)
	assert.True(t, res.Rebuilt)
	assert.Equal(t, 6, res.Report.Candidates)

	_, err = admin.Seed(context.Background(), []models.CanonicalIngredient{{ID: 0, Name: ""}}, false)
	assert.Error(t, err)
}

func TestAdminService_ReadOnlyAndDisabled(t *testing.T) {
	src := pantrySource()
	index := NewIndexService(src, testNormalizer, nil, 0, nil)
	admin := NewAdminService(AdminServiceDeps{Index: index, Source: src, Normalizer: testNormalizer}, nil)

	_, err := admin.Seed(context.Background(), []models.CanonicalIngredient{{ID: 6, Name: "Basil"}}, false)
	assert.Error(t, err)
	_, err = admin.SyncSearch(context.Background())
	assert.ErrorIs(t, err, ErrSearchDisabled)
	_, err = admin.Rematch(context.Background(), 0)
	assert.ErrorIs(t, err, ErrRematchDisabled)
	assert.NoError(t, admin.InvalidateCache(context.Background(), true))
}

func TestAdminService_Stats(t *testing.T) {
	cache := NewMemoryCacheService(16, time.Hour)
	svc, index := newTestIngredientService(t, cache)
	admin := NewAdminService(AdminServiceDeps{Index: index, Ingredients: svc, Cache: cache}, nil)

	_, err := svc.Match(context.Background(), "salt")
	require.NoError(t, err)

	stats, err := admin.GetSystemStats(context.Background())
	require.NoError(t, err)
	assert.True(t, stats.Index.Ready)
	assert.Equal(t, 5, stats.Index.Candidates)
	assert.Equal(t, "stub", stats.Index.Source)
	assert.Equal(t, int64(1), stats.Matches.Exact)
	require.NotNil(t, stats.Cache)
	assert.Equal(t, "memory", stats.Cache.Backend)
	assert.Equal(t, int64(1), stats.Cache.TotalItems)
}

func TestSearchDocuments(t *testing.T) {
	docs := searchDocuments([]models.CanonicalIngredient{
		{ID: 1, Name: "Garlic"},
		{ID: 2, Name: "Fresh"},
	}, testNormalizer, "v1")

	require.Len(t, docs, 1)
	assert.Equal(t, "garlic", docs[0].Normalized)
	assert.Equal(t, "v1", docs[0].IndexVersion)
}
