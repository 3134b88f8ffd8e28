package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/ingredient-matcher/app/models"
	"github.com/ingredient-matcher/internal/parser"
)

// memLineStore applies the same selection rules as the Mongo store to a slice
// kept in _id order.
type memLineStore struct {
	mu    sync.Mutex
	lines []models.RecipeIngredientLine
}

func (m *memLineStore) EachUnmatched(ctx context.Context, namespace string, limit int, fn func(models.RecipeIngredientLine) error) error {
	m.mu.Lock()
	selected := make([]models.RecipeIngredientLine, 0)
	for _, line := range m.lines {
		if line.CanonicalIngredientID != nil || line.RematchNamespace == namespace {
			continue
		}
		selected = append(selected, line)
		if limit > 0 && len(selected) == limit {
			break
		}
	}
	m.mu.Unlock()

	for _, line := range selected {
		if err := fn(line); err != nil {
			return err
		}
	}
	return nil
}

func (m *memLineStore) Apply(ctx context.Context, namespace string, matched []models.RecipeIngredientLine, unmatched []primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.lines {
		line := &m.lines[i]
		for _, hit := range matched {
			if hit.ID == line.ID && line.CanonicalIngredientID == nil {
				line.CanonicalIngredientID = hit.CanonicalIngredientID
				line.MatchType = hit.MatchType
				line.MatchedAt = hit.MatchedAt
				line.RematchNamespace = ""
			}
		}
		for _, id := range unmatched {
			if id == line.ID && line.CanonicalIngredientID == nil {
				line.RematchNamespace = namespace
			}
		}
	}
	return nil
}

func (m *memLineStore) line(i int) models.RecipeIngredientLine {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lines[i]
}

func newLineStore(texts ...string) *memLineStore {
	store := &memLineStore{}
	for _, text := range texts {
		store.lines = append(store.lines, models.RecipeIngredientLine{
			ID:       primitive.NewObjectID(),
			RecipeID: "r1",
			Text:     text,
		})
	}
	return store
}

func TestRematchLines(t *testing.T) {
	idx, _ := parser.BuildCandidateIndex(pantrySource().items, testNormalizer)
	p := parser.NewIngredientParser(testNormalizer, nil)
	store := newLineStore("1 cup chopped garlic, minced", "xyzzy plugh", "1 tsp salt")
	lines := store.lines
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	matched, unmatched := rematchLines(lines, p, idx, at)
	require.Len(t, matched, 2)
	assert.Equal(t, []primitive.ObjectID{lines[1].ID}, unmatched)
	require.NotNil(t, matched[0].CanonicalIngredientID)
	assert.Equal(t, models.IngredientID(1), *matched[0].CanonicalIngredientID)
	assert.Equal(t, models.IngredientID(2), *matched[1].CanonicalIngredientID)
	assert.Equal(t, at, *matched[1].MatchedAt)
	assert.Nil(t, lines[1].CanonicalIngredientID)
}

func TestLineWrites(t *testing.T) {
	id := models.IngredientID(2)
	at := time.Now()
	matched := []models.RecipeIngredientLine{{
		ID:                    primitive.NewObjectID(),
		CanonicalIngredientID: &id,
		MatchType:             models.MatchTypeExact,
		MatchedAt:             &at,
	}}
	missing := []primitive.ObjectID{primitive.NewObjectID(), primitive.NewObjectID()}

	writes := lineWrites("ns1", matched, missing)
	require.Len(t, writes, 2)

	one, ok := writes[0].(*mongo.UpdateOneModel)
	require.True(t, ok)
	assert.Equal(t, bson.M{"_id": matched[0].ID, "canonical_ingredient_id": nil}, one.Filter)

	many, ok := writes[1].(*mongo.UpdateManyModel)
	require.True(t, ok)
	assert.Equal(t, bson.M{"$set": bson.M{"rematch_namespace": "ns1"}}, many.Update)

	assert.Empty(t, lineWrites("ns1", nil, nil))
	assert.Equal(t, bson.M{
		"canonical_ingredient_id": nil,
		"rematch_namespace":       bson.M{"$ne": "ns1"},
	}, unmatchedFilter("ns1"))
}

func TestRematchService_LimitAdvancesPastUnmatchable(t *testing.T) {
	ctx := context.Background()
	src := pantrySource()
	index := NewIndexService(src, testNormalizer, nil, 0, nil)
	_, err := index.Rebuild(ctx)
	require.NoError(t, err)

	store := newLineStore("xyzzy plugh", "frobnicate quux", "1 tsp salt")
	svc := newRematchService(store, parser.NewIngredientParser(testNormalizer, nil), index, nil)

	first, err := svc.Rematch(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Scanned)
	assert.Equal(t, 0, first.Matched)

	second, err := svc.Rematch(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Scanned)
	assert.Equal(t, 1, second.Matched)
	salt := store.line(2)
	require.NotNil(t, salt.CanonicalIngredientID)
	assert.Equal(t, models.IngredientID(2), *salt.CanonicalIngredientID)

	third, err := svc.Rematch(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, third.Scanned)

	// a changed table makes the tried lines eligible again
	_, err = src.UpsertCanonical(ctx, []models.CanonicalIngredient{{ID: 6, Name: "Basil"}})
	require.NoError(t, err)
	_, err = index.Rebuild(ctx)
	require.NoError(t, err)

	fourth, err := svc.Rematch(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, fourth.Scanned)
	assert.Equal(t, 2, fourth.Unmatched)
	assert.NotEqual(t, first.Namespace, fourth.Namespace)
}

func TestRematchService_IndexNotReady(t *testing.T) {
	index := NewIndexService(pantrySource(), testNormalizer, nil, 0, nil)
	svc := newRematchService(newLineStore("salt"), parser.NewIngredientParser(testNormalizer, nil), index, nil)

	_, err := svc.Rematch(context.Background(), 0)
	assert.ErrorIs(t, err, ErrIndexNotReady)
}
