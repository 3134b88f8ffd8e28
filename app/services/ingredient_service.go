package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ingredient-matcher/app/models"
	"github.com/ingredient-matcher/helpers/utils"
	"github.com/ingredient-matcher/internal/normalizer"
	"github.com/ingredient-matcher/internal/parser"
	"github.com/ingredient-matcher/internal/search"
)

var (
	ErrEmptyText      = errors.New("ingredient text is empty")
	ErrEmptyBatch     = errors.New("batch has no lines")
	ErrTooManyLines   = errors.New("batch exceeds the line limit")
	ErrJobNotFound    = errors.New("job not found")
	ErrJobNotDone     = errors.New("job is still running")
	ErrSearchDisabled = errors.New("search is not configured")
)

// Job states.
const (
	JobStatusRunning = "running"
	JobStatusDone    = "done"
	JobStatusFailed  = "failed"
)

// MatchOutcome is a pipeline result plus service metadata.
type MatchOutcome struct {
	parser.ParseResult
	IndexVersion   string        `json:"index_version"`
	CacheHit       bool          `json:"cache_hit"`
	ProcessingTime time.Duration `json:"-"`
}

// JobStatus is a snapshot of a batch job.
type JobStatus struct {
	JobID        string     `json:"job_id"`
	Status       string     `json:"status"`
	Progress     float64    `json:"progress"`
	Processed    int        `json:"processed"`
	Total        int        `json:"total"`
	IndexVersion string     `json:"index_version"`
	Message      string     `json:"message"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

type batchJob struct {
	status    JobStatus
	processed atomic.Int64
	results   []parser.ParseResult
}

// MatchCounts tallies results by match type.
type MatchCounts struct {
	Exact       int64 `json:"exact"`
	Ngram       int64 `json:"ngram"`
	Levenshtein int64 `json:"levenshtein"`
	None        int64 `json:"none"`
}

// Total returns the number of lines processed.
func (c MatchCounts) Total() int64 {
	return c.Exact + c.Ngram + c.Levenshtein + c.None
}

// IngredientServiceConfig bounds batch processing.
type IngredientServiceConfig struct {
	Workers      int
	MaxLines     int
	JobRetention time.Duration
}

// IngredientService matches ingredient lines against the current index,
// going through the match cache when one is configured.
type IngredientService struct {
	parser   *parser.IngredientParser
	index    *IndexService
	cache    ICacheService
	searcher *search.IngredientSearcher
	cfg      IngredientServiceConfig
	logger   *zap.Logger

	startTime time.Time
	counts    [4]atomic.Int64 // exact, ngram, levenshtein, none

	mu   sync.RWMutex
	jobs map[string]*batchJob
}

// NewIngredientService wires the service. cache and searcher may be nil.
func NewIngredientService(p *parser.IngredientParser, index *IndexService, cache ICacheService, searcher *search.IngredientSearcher, cfg IngredientServiceConfig, logger *zap.Logger) *IngredientService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.MaxLines < 1 {
		cfg.MaxLines = 20000
	}
	return &IngredientService{
		parser:    p,
		index:     index,
		cache:     cache,
		searcher:  searcher,
		cfg:       cfg,
		logger:    logger,
		startTime: time.Now(),
		jobs:      make(map[string]*batchJob),
	}
}

// Match canonicalizes one line.
func (s *IngredientService) Match(ctx context.Context, text string) (*MatchOutcome, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	idx, err := s.index.Current()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, hit := s.matchLine(ctx, text, idx)
	return &MatchOutcome{
		ParseResult:    res,
		IndexVersion:   idx.Version(),
		CacheHit:       hit,
		ProcessingTime: time.Since(start),
	}, nil
}

// Normalize runs only the normalizer.
func (s *IngredientService) Normalize(text string) (normalizer.NormalizationResult, error) {
	if strings.TrimSpace(text) == "" {
		return normalizer.NormalizationResult{}, ErrEmptyText
	}
	return s.parser.Normalizer().Normalize(text), nil
}

// Suggest returns the k nearest candidates for text along with its normalized form.
func (s *IngredientService) Suggest(text string, k int) (string, []parser.Suggestion, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil, ErrEmptyText
	}
	idx, err := s.index.Current()
	if err != nil {
		return "", nil, err
	}
	norm := s.parser.Normalizer().Normalize(text)
	return norm.Normalized, parser.Suggest(norm.Normalized, idx, k), nil
}

// Search queries the autocomplete index.
func (s *IngredientService) Search(query string, limit int) ([]search.SearchHit, error) {
	if s.searcher == nil {
		return nil, ErrSearchDisabled
	}
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyText
	}
	return s.searcher.Search(query, limit, "")
}

// SubmitJob starts matching lines in the background and returns the initial
// status. The whole job uses the index current at submission.
func (s *IngredientService) SubmitJob(ctx context.Context, lines []string) (*JobStatus, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(lines) > s.cfg.MaxLines {
		return nil, ErrTooManyLines
	}
	idx, err := s.index.Current()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	job := &batchJob{
		status: JobStatus{
			JobID:        utils.GenerateULID(),
			Status:       JobStatusRunning,
			Total:        len(lines),
			IndexVersion: idx.Version(),
			Message:      "processing",
			CreatedAt:    now,
			UpdatedAt:    now,
		},
	}
	s.mu.Lock()
	s.jobs[job.status.JobID] = job
	s.mu.Unlock()

	// detached from the request; the job outlives it
	go s.runJob(context.WithoutCancel(ctx), job, lines, idx)

	status := job.status
	return &status, nil
}

func (s *IngredientService) runJob(ctx context.Context, job *batchJob, lines []string, idx *parser.CandidateIndex) {
	start := time.Now()
	results := make([]parser.ParseResult, len(lines))

	work := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < s.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				results[i], _ = s.matchLine(ctx, lines[i], idx)
				job.processed.Add(1)
			}
		}()
	}
	for i := range lines {
		work <- i
	}
	close(work)
	wg.Wait()

	now := time.Now()
	s.mu.Lock()
	job.results = results
	job.status.Status = JobStatusDone
	job.status.Message = "completed"
	job.status.UpdatedAt = now
	job.status.CompletedAt = &now
	s.mu.Unlock()

	s.logger.Info("Batch job completed",
		zap.String("job_id", job.status.JobID),
		zap.Int("total_lines", len(lines)),
		zap.Duration("took", time.Since(start)))
}

// GetJobStatus returns a snapshot of the job.
func (s *IngredientService) GetJobStatus(jobID string) (*JobStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	status := job.status
	status.Processed = int(job.processed.Load())
	if status.Total > 0 {
		status.Progress = float64(status.Processed) / float64(status.Total)
	}
	if status.Status == JobStatusRunning {
		status.UpdatedAt = time.Now()
	}
	return &status, nil
}

// GetJobResults returns the results of a finished job in input order.
func (s *IngredientService) GetJobResults(jobID string) ([]parser.ParseResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	if job.status.Status != JobStatusDone {
		return nil, ErrJobNotDone
	}
	return job.results, nil
}

// GetJobResultsStream yields a finished job's results one at a time.
func (s *IngredientService) GetJobResultsStream(jobID string) (<-chan parser.ParseResult, error) {
	results, err := s.GetJobResults(jobID)
	if err != nil {
		return nil, err
	}

	ch := make(chan parser.ParseResult, 100)
	go func() {
		defer close(ch)
		for _, r := range results {
			ch <- r
		}
	}()
	return ch, nil
}

// CleanupJobs drops finished jobs completed before now minus the retention.
func (s *IngredientService) CleanupJobs(now time.Time) int {
	if s.cfg.JobRetention <= 0 {
		return 0
	}
	cutoff := now.Add(-s.cfg.JobRetention)

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, job := range s.jobs {
		if job.status.CompletedAt != nil && job.status.CompletedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}

// RunJanitor removes expired jobs until ctx is done.
func (s *IngredientService) RunJanitor(ctx context.Context) {
	if s.cfg.JobRetention <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.JobRetention / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.CleanupJobs(now); n > 0 {
				s.logger.Info("Removed expired batch jobs", zap.Int("count", n))
			}
		}
	}
}

// Counts returns match type totals since start.
func (s *IngredientService) Counts() MatchCounts {
	return MatchCounts{
		Exact:       s.counts[0].Load(),
		Ngram:       s.counts[1].Load(),
		Levenshtein: s.counts[2].Load(),
		None:        s.counts[3].Load(),
	}
}

// ActiveJobs returns the number of jobs still running.
func (s *IngredientService) ActiveJobs() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, job := range s.jobs {
		if job.status.Status == JobStatusRunning {
			n++
		}
	}
	return n
}

func (s *IngredientService) GetStartTime() time.Time {
	return s.startTime
}

// matchLine normalizes once, consults the cache, and falls back to the matcher.
// Cache failures are logged and ignored.
func (s *IngredientService) matchLine(ctx context.Context, raw string, idx *parser.CandidateIndex) (parser.ParseResult, bool) {
	norm := s.parser.Normalizer().Normalize(raw)
	key := models.MatchCacheKey(idx.Namespace(), norm.Normalized)

	if s.cache != nil {
		cached, found, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("Match cache read failed", zap.Error(err), zap.String("key", key))
		} else if found {
			s.count(cached.MatchType)
			return parser.ParseResult{
				MatchResult: *cached,
				Raw:         raw,
				Tokens:      norm.Tokens,
				Normalized:  norm.Normalized,
			}, true
		}
	}

	res := s.parser.MatchNormalized(raw, norm, idx)
	s.count(res.MatchType)

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, &res.MatchResult); err != nil {
			s.logger.Warn("Match cache write failed", zap.Error(err), zap.String("key", key))
		}
	}
	return res, false
}

func (s *IngredientService) count(t models.MatchType) {
	switch t {
	case models.MatchTypeExact:
		s.counts[0].Add(1)
	case models.MatchTypeNgram:
		s.counts[1].Add(1)
	case models.MatchTypeLevenshtein:
		s.counts[2].Add(1)
	default:
		s.counts[3].Add(1)
	}
}
