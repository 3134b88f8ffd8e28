package source

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/ingredient-matcher/app/models"
)

// CanonicalCollection holds one document per canonical ingredient, keyed by id.
const CanonicalCollection = "canonical_ingredients"

// MongoSource reads and seeds canonical ingredients in MongoDB.
type MongoSource struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

// NewMongoSource creates a source over db.canonical_ingredients.
func NewMongoSource(db *mongo.Database, logger *zap.Logger) *MongoSource {
	return &MongoSource{
		collection: db.Collection(CanonicalCollection),
		logger:     logger,
	}
}

func (s *MongoSource) Name() string { return "mongo" }

// LoadCanonical returns every ingredient ordered by id.
func (s *MongoSource) LoadCanonical(ctx context.Context) ([]models.CanonicalIngredient, error) {
	cursor, err := s.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find canonical ingredients: %w", err)
	}
	defer cursor.Close(ctx)

	items := make([]models.CanonicalIngredient, 0)
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("decode canonical ingredients: %w", err)
	}
	return items, nil
}

// UpsertCanonical inserts or renames ingredients by id in one bulk write.
func (s *MongoSource) UpsertCanonical(ctx context.Context, items []models.CanonicalIngredient) (int, error) {
	if err := Validate(items); err != nil {
		return 0, err
	}

	now := time.Now()
	writes := make([]mongo.WriteModel, 0, len(items))
	for _, it := range items {
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": it.ID}).
			SetUpdate(bson.M{
				"$set":         bson.M{"canonical_name": it.Name, "updated_at": now},
				"$setOnInsert": bson.M{"created_at": now},
			}).
			SetUpsert(true))
	}

	res, err := s.collection.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return 0, fmt.Errorf("upsert canonical ingredients: %w", err)
	}

	s.logger.Info("Seeded canonical ingredients",
		zap.Int("items", len(items)),
		zap.Int64("inserted", res.UpsertedCount),
		zap.Int64("modified", res.ModifiedCount))
	return int(res.UpsertedCount + res.ModifiedCount), nil
}

// Count returns the number of stored ingredients.
func (s *MongoSource) Count(ctx context.Context) (int64, error) {
	return s.collection.CountDocuments(ctx, bson.M{})
}
