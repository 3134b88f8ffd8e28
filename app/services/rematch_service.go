package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/ingredient-matcher/app/models"
	"github.com/ingredient-matcher/internal/parser"
)

// RecipeIngredientCollection holds stored recipe ingredient lines.
const RecipeIngredientCollection = "recipe_ingredients"

const rematchBatchSize = 500

// ErrRematchDisabled is returned when no line store is configured.
var ErrRematchDisabled = errors.New("rematch needs a MongoDB line store")

// RematchResult summarises one backfill run.
type RematchResult struct {
	IndexVersion     string `json:"index_version"`
	Namespace        string `json:"cache_namespace"`
	Scanned          int    `json:"scanned"`
	Matched          int    `json:"matched"`
	Unmatched        int    `json:"unmatched"`
	ProcessingTimeMs int64  `json:"processing_time_ms"`
}

// lineStore reads unmatched lines and writes rematch outcomes.
type lineStore interface {
	// EachUnmatched visits lines without a canonical id that were not already
	// tried under namespace, in _id order, up to limit (0 = all).
	EachUnmatched(ctx context.Context, namespace string, limit int, fn func(models.RecipeIngredientLine) error) error
	// Apply attaches matched lines and marks the unmatched ones as tried.
	Apply(ctx context.Context, namespace string, matched []models.RecipeIngredientLine, unmatched []primitive.ObjectID) error
}

// RematchService attaches canonical ids to stored lines that have none,
// typically after the canonical table changed. Lines that stay unmatched are
// tagged with the index namespace so later passes move on to new lines, and
// a changed table makes all of them eligible again.
type RematchService struct {
	store  lineStore
	parser *parser.IngredientParser
	index  *IndexService
	logger *zap.Logger
}

func NewRematchService(db *mongo.Database, p *parser.IngredientParser, index *IndexService, logger *zap.Logger) *RematchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	store := &mongoLineStore{collection: db.Collection(RecipeIngredientCollection), logger: logger}
	return newRematchService(store, p, index, logger)
}

func newRematchService(store lineStore, p *parser.IngredientParser, index *IndexService, logger *zap.Logger) *RematchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RematchService{store: store, parser: p, index: index, logger: logger}
}

// Rematch scans up to limit untried unmatched lines (0 = all) and writes back
// every line that now matches.
func (s *RematchService) Rematch(ctx context.Context, limit int) (*RematchResult, error) {
	idx, err := s.index.Current()
	if err != nil {
		return nil, err
	}
	start := time.Now()
	ns := idx.Namespace()

	result := &RematchResult{IndexVersion: idx.Version(), Namespace: ns}
	batch := make([]models.RecipeIngredientLine, 0, rematchBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		matched, unmatched := rematchLines(batch, s.parser, idx, time.Now())
		result.Scanned += len(batch)
		result.Matched += len(matched)
		batch = batch[:0]
		if err := s.store.Apply(ctx, ns, matched, unmatched); err != nil {
			return fmt.Errorf("write matches: %w", err)
		}
		return nil
	}

	err = s.store.EachUnmatched(ctx, ns, limit, func(line models.RecipeIngredientLine) error {
		batch = append(batch, line)
		if len(batch) == rematchBatchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := flush(); err != nil {
		return nil, err
	}

	result.Unmatched = result.Scanned - result.Matched
	result.ProcessingTimeMs = time.Since(start).Milliseconds()
	s.logger.Info("Rematch completed",
		zap.String("index_version", result.IndexVersion),
		zap.String("cache_namespace", ns),
		zap.Int("scanned", result.Scanned),
		zap.Int("matched", result.Matched))
	return result, nil
}

// rematchLines matches each line. It returns the lines that now carry a
// canonical id and the ids of those that still do not.
func rematchLines(lines []models.RecipeIngredientLine, p *parser.IngredientParser, idx *parser.CandidateIndex, at time.Time) ([]models.RecipeIngredientLine, []primitive.ObjectID) {
	matched := make([]models.RecipeIngredientLine, 0, len(lines))
	unmatched := make([]primitive.ObjectID, 0)
	for i := range lines {
		line := &lines[i]
		if line.Attach(p.Match(line.Text, idx), at) {
			matched = append(matched, *line)
			continue
		}
		unmatched = append(unmatched, line.ID)
	}
	return matched, unmatched
}

// mongoLineStore keeps lines in the recipe_ingredients collection.
type mongoLineStore struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

func unmatchedFilter(namespace string) bson.M {
	return bson.M{
		"canonical_ingredient_id": nil,
		"rematch_namespace":       bson.M{"$ne": namespace},
	}
}

func (m *mongoLineStore) EachUnmatched(ctx context.Context, namespace string, limit int, fn func(models.RecipeIngredientLine) error) error {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := m.collection.Find(ctx, unmatchedFilter(namespace), opts)
	if err != nil {
		return fmt.Errorf("find unmatched lines: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var line models.RecipeIngredientLine
		if err := cursor.Decode(&line); err != nil {
			m.logger.Warn("Skipping undecodable ingredient line", zap.Error(err))
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	if err := cursor.Err(); err != nil {
		return fmt.Errorf("iterate unmatched lines: %w", err)
	}
	return nil
}

func (m *mongoLineStore) Apply(ctx context.Context, namespace string, matched []models.RecipeIngredientLine, unmatched []primitive.ObjectID) error {
	writes := lineWrites(namespace, matched, unmatched)
	if len(writes) == 0 {
		return nil
	}
	_, err := m.collection.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	return err
}

// lineWrites builds one update per matched line and one update tagging every
// unmatched line with namespace.
func lineWrites(namespace string, matched []models.RecipeIngredientLine, unmatched []primitive.ObjectID) []mongo.WriteModel {
	writes := make([]mongo.WriteModel, 0, len(matched)+1)
	for _, line := range matched {
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": line.ID, "canonical_ingredient_id": nil}).
			SetUpdate(bson.M{
				"$set": bson.M{
					"canonical_ingredient_id": line.CanonicalIngredientID,
					"match_type":              line.MatchType,
					"matched_at":              line.MatchedAt,
				},
				"$unset": bson.M{"rematch_namespace": ""},
			}))
	}
	if len(unmatched) > 0 {
		writes = append(writes, mongo.NewUpdateManyModel().
			SetFilter(bson.M{"_id": bson.M{"$in": unmatched}, "canonical_ingredient_id": nil}).
			SetUpdate(bson.M{"$set": bson.M{"rematch_namespace": namespace}}))
	}
	return writes
}
