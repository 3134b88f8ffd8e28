package source

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/ingredient-matcher/app/models"
)

// HTTPSource fetches canonical ingredients from a reference-data service
// exposing GET {base}/canonical-ingredients.
type HTTPSource struct {
	client *resty.Client
	logger *zap.Logger
}

// NewHTTPSource creates a source against baseURL.
func NewHTTPSource(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond)
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &HTTPSource{client: client, logger: logger}
}

func (s *HTTPSource) Name() string { return "http" }

// LoadCanonical downloads the full ingredient list.
func (s *HTTPSource) LoadCanonical(ctx context.Context) ([]models.CanonicalIngredient, error) {
	var items []models.CanonicalIngredient
	resp, err := s.client.R().
		SetContext(ctx).
		SetResult(&items).
		Get("/canonical-ingredients")
	if err != nil {
		return nil, fmt.Errorf("fetch canonical ingredients: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("fetch canonical ingredients: unexpected status %d: %s", resp.StatusCode(), resp.String())
	}

	s.logger.Debug("Fetched canonical ingredients",
		zap.Int("items", len(items)),
		zap.Duration("took", resp.Time()))
	if items == nil {
		items = make([]models.CanonicalIngredient, 0)
	}
	return items, nil
}
