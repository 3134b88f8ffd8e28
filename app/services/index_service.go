package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ingredient-matcher/internal/normalizer"
	"github.com/ingredient-matcher/internal/parser"
	"github.com/ingredient-matcher/internal/source"
)

var (
	// ErrIndexNotReady is returned before the first successful build.
	ErrIndexNotReady = errors.New("candidate index not built yet")
	// ErrTooManyCandidates is returned when the source exceeds index.max_candidates.
	ErrTooManyCandidates = errors.New("too many canonical ingredients")
)

// SwapHook is called after a new index has been installed.
type SwapHook func(ctx context.Context, idx *parser.CandidateIndex)

// IndexService owns the current candidate index. Readers load it without
// locking; rebuilds are serialized and swap the snapshot in one store.
type IndexService struct {
	source        source.CandidateSource
	normalizer    *normalizer.TextNormalizer
	cache         ICacheService
	maxCandidates int
	logger        *zap.Logger

	current    atomic.Pointer[parser.CandidateIndex]
	lastReport atomic.Pointer[parser.BuildReport]
	rebuilds   atomic.Int64

	mu    sync.Mutex // serializes Rebuild
	hooks []SwapHook
}

// NewIndexService creates an empty service. cache may be nil.
func NewIndexService(src source.CandidateSource, tn *normalizer.TextNormalizer, cache ICacheService, maxCandidates int, logger *zap.Logger) *IndexService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IndexService{
		source:        src,
		normalizer:    tn,
		cache:         cache,
		maxCandidates: maxCandidates,
		logger:        logger,
	}
}

// OnSwap registers fn to run after every successful rebuild. Hooks run on the
// rebuilding goroutine after the rebuild lock is released, so a hook may call
// Rebuild.
func (s *IndexService) OnSwap(fn SwapHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// Current returns the installed index.
func (s *IndexService) Current() (*parser.CandidateIndex, error) {
	idx := s.current.Load()
	if idx == nil {
		return nil, ErrIndexNotReady
	}
	return idx, nil
}

// Ready reports whether an index is installed.
func (s *IndexService) Ready() bool {
	return s.current.Load() != nil
}

// LastReport returns the report of the last successful build, or nil.
func (s *IndexService) LastReport() *parser.BuildReport {
	return s.lastReport.Load()
}

// Rebuilds returns the number of successful rebuilds since start.
func (s *IndexService) Rebuilds() int64 {
	return s.rebuilds.Load()
}

// SourceName names the configured candidate source.
func (s *IndexService) SourceName() string {
	return s.source.Name()
}

// Rebuild loads the canonical table and installs a fresh index. On error the
// previous index stays in place.
func (s *IndexService) Rebuild(ctx context.Context) (*parser.BuildReport, error) {
	idx, report, hooks, err := s.swap(ctx)
	if err != nil {
		return nil, err
	}
	for _, hook := range hooks {
		hook(ctx, idx)
	}
	return report, nil
}

// swap builds and installs an index under the rebuild lock and returns the
// hooks to run once the lock is released.
func (s *IndexService) swap(ctx context.Context) (*parser.CandidateIndex, *parser.BuildReport, []SwapHook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.source.LoadCanonical(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load canonical ingredients from %s: %w", s.source.Name(), err)
	}
	if s.maxCandidates > 0 && len(items) > s.maxCandidates {
		return nil, nil, nil, fmt.Errorf("%w: %d > %d", ErrTooManyCandidates, len(items), s.maxCandidates)
	}

	idx, report := parser.BuildCandidateIndex(items, s.normalizer)
	previous := s.current.Swap(idx)
	s.lastReport.Store(&report)
	s.rebuilds.Add(1)

	s.logger.Info("Candidate index rebuilt",
		zap.String("source", s.source.Name()),
		zap.String("version", report.Version),
		zap.String("cache_namespace", report.Namespace),
		zap.Int("loaded", report.Loaded),
		zap.Int("candidates", report.Candidates),
		zap.Int("skipped_empty", len(report.SkippedEmpty)),
		zap.Int("duplicate_keys", len(report.DuplicateKeys)),
		zap.Duration("took", report.BuildDuration))
	if len(report.DuplicateKeys) > 0 {
		s.logger.Warn("Canonical names collide after normalization",
			zap.Any("duplicate_keys", report.DuplicateKeys))
	}

	// an unchanged table keeps its namespace, so entries shared with other
	// processes stay valid
	if previous != nil && s.cache != nil && previous.Namespace() != idx.Namespace() {
		go s.invalidateCache(idx.Namespace())
	}

	hooks := make([]SwapHook, len(s.hooks))
	copy(hooks, s.hooks)
	return idx, &report, hooks, nil
}

// Run rebuilds every interval until ctx is done. A non-positive interval
// returns immediately.
func (s *IndexService) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Rebuild(ctx); err != nil {
				s.logger.Error("Scheduled index rebuild failed", zap.Error(err))
			}
		}
	}
}

func (s *IndexService) invalidateCache(namespace string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := s.cache.InvalidateByIndexVersion(ctx, namespace); err != nil {
		s.logger.Warn("Cannot invalidate match cache", zap.Error(err), zap.String("cache_namespace", namespace))
	}
}
