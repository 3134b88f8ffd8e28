// Package source loads canonical ingredients from the reference store.
package source

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/ingredient-matcher/app/config"
	"github.com/ingredient-matcher/app/models"
)

var (
	// ErrNoIngredients is returned when a seed batch is empty.
	ErrNoIngredients = errors.New("no canonical ingredients")
	// ErrReadOnly is returned by sources that cannot be seeded.
	ErrReadOnly = errors.New("source is read-only")
)

// CandidateSource returns the full canonical ingredient table.
type CandidateSource interface {
	Name() string
	LoadCanonical(ctx context.Context) ([]models.CanonicalIngredient, error)
}

// CanonicalWriter is implemented by sources that accept seed data.
type CanonicalWriter interface {
	UpsertCanonical(ctx context.Context, items []models.CanonicalIngredient) (int, error)
}

// New builds the source selected by cfg. db is only used by the mongo source.
func New(ctx context.Context, cfg config.SourceConfig, db *mongo.Database, logger *zap.Logger) (CandidateSource, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Type {
	case "mongo":
		if db == nil {
			return nil, errors.New("mongo source needs a database")
		}
		return NewMongoSource(db, logger), nil
	case "sql":
		return OpenSQLSource(ctx, cfg.SQLDSN, logger)
	case "http":
		return NewHTTPSource(cfg.HTTPBaseURL, cfg.HTTPTimeout, logger), nil
	case "file":
		return NewFileSource(cfg.FilePath), nil
	}
	return nil, fmt.Errorf("unknown source type %q", cfg.Type)
}

// Validate checks seed data: positive ids, non-blank names, no duplicate ids.
// All problems are reported in one error.
func Validate(items []models.CanonicalIngredient) error {
	if len(items) == 0 {
		return ErrNoIngredients
	}
	var problems []string
	seen := make(map[models.IngredientID]bool, len(items))
	for i, it := range items {
		if it.ID <= 0 {
			problems = append(problems, fmt.Sprintf("item %d: id must be positive", i))
		}
		if strings.TrimSpace(it.Name) == "" {
			problems = append(problems, fmt.Sprintf("item %d: name is blank", i))
		}
		if seen[it.ID] {
			problems = append(problems, fmt.Sprintf("item %d: duplicate id %d", i, it.ID))
		}
		seen[it.ID] = true
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid canonical ingredients: %s", strings.Join(problems, "; "))
	}
	return nil
}
