package search

import (
	"errors"
	"fmt"
	"time"

	"github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"
)

const batchSize = 1000

// SearchConfig configures the Meilisearch connection.
type SearchConfig struct {
	Host      string
	APIKey    string
	IndexName string
	Timeout   time.Duration
}

// IngredientDocument is one canonical ingredient as stored in Meilisearch.
type IngredientDocument struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Normalized   string `json:"normalized"`
	IndexVersion string `json:"index_version"`
}

// SearchHit is one autocomplete result.
type SearchHit struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Normalized string  `json:"normalized"`
	Score      float64 `json:"score"`
}

// IngredientSearcher pushes canonical ingredients to Meilisearch and queries them.
type IngredientSearcher struct {
	client    meilisearch.ServiceManager
	logger    *zap.Logger
	indexName string
	timeout   time.Duration
}

// NewIngredientSearcher connects to Meilisearch.
func NewIngredientSearcher(config SearchConfig, logger *zap.Logger) (*IngredientSearcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := newClient(config.Host, config.APIKey)
	if err != nil {
		return nil, err
	}
	return &IngredientSearcher{
		client:    client,
		logger:    logger,
		indexName: config.IndexName,
		timeout:   config.Timeout,
	}, nil
}

// BuildIndexes applies index settings. Typo tolerance starts at 4 letters so
// short names like "egg" or "oil" are matched literally.
func (s *IngredientSearcher) BuildIndexes() error {
	index := s.client.Index(s.indexName)

	task, err := index.UpdateSettings(&meilisearch.Settings{
		SearchableAttributes: []string{"name", "normalized"},
		FilterableAttributes: []string{"id", "index_version"},
		SortableAttributes:   []string{"id"},
		RankingRules:         []string{"words", "typo", "proximity", "attribute", "sort", "exactness"},
		TypoTolerance: &meilisearch.TypoTolerance{
			Enabled: true,
			MinWordSizeForTypos: meilisearch.MinWordSizeForTypos{
				OneTypo:  4,
				TwoTypos: 8,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("update index settings: %w", err)
	}

	s.logger.Info("Configured Meilisearch index",
		zap.String("index", s.indexName),
		zap.Int64("task_uid", task.TaskUID))
	return nil
}

// SeedData replaces the indexed documents with docs.
func (s *IngredientSearcher) SeedData(docs []IngredientDocument) (int, error) {
	if len(docs) == 0 {
		return 0, errors.New("no documents to seed")
	}

	index := s.client.Index(s.indexName)
	if _, err := index.DeleteAllDocuments(); err != nil {
		return 0, fmt.Errorf("clear documents: %w", err)
	}

	for _, b := range batches(len(docs), batchSize) {
		task, err := index.AddDocuments(docs[b[0]:b[1]], "id")
		if err != nil {
			return b[0], fmt.Errorf("add documents %d-%d: %w", b[0], b[1], err)
		}
		s.logger.Debug("Queued document batch",
			zap.Int("from", b[0]),
			zap.Int("to", b[1]),
			zap.Int64("task_uid", task.TaskUID))
	}

	s.logger.Info("Seeded Meilisearch", zap.Int("documents", len(docs)))
	return len(docs), nil
}

// Search returns up to limit hits for query. A non-empty indexVersion hides
// documents left over from an older sync.
func (s *IngredientSearcher) Search(query string, limit int, indexVersion string) ([]SearchHit, error) {
	if query == "" {
		return nil, errors.New("query must not be empty")
	}
	if limit <= 0 {
		limit = 10
	}

	req := &meilisearch.SearchRequest{
		Limit:            int64(limit),
		ShowRankingScore: true,
	}
	if filter := FilterIndexVersion(indexVersion); filter != "" {
		req.Filter = filter
	}

	result, err := s.client.Index(s.indexName).Search(query, req)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	return parseHits(result.Hits), nil
}

// parseHits converts raw Meilisearch hits. Hits without a numeric id are dropped.
func parseHits(hits []interface{}) []SearchHit {
	out := make([]SearchHit, 0, len(hits))
	for _, hit := range hits {
		m, ok := hit.(map[string]interface{})
		if !ok {
			continue
		}
		id, ok := m["id"].(float64)
		if !ok {
			continue
		}
		h := SearchHit{ID: int64(id)}
		if name, ok := m["name"].(string); ok {
			h.Name = name
		}
		if norm, ok := m["normalized"].(string); ok {
			h.Normalized = norm
		}
		if score, ok := m["_rankingScore"].(float64); ok {
			h.Score = score
		}
		out = append(out, h)
	}
	return out
}

// batches splits [0, n) into half-open ranges of at most size.
func batches(n, size int) [][2]int {
	var out [][2]int
	for i := 0; i < n; i += size {
		end := i + size
		if end > n {
			end = n
		}
		out = append(out, [2]int{i, end})
	}
	return out
}
