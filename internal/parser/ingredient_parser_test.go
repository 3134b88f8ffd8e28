package parser

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ingredient-matcher/app/models"
	"github.com/ingredient-matcher/internal/normalizer"
)

var testNormalizer = normalizer.NewTextNormalizer()

var pantry = []models.CanonicalIngredient{
	{ID: 1, Name: "Garlic"},
	{ID: 2, Name: "Salt"},
	{ID: 3, Name: "Olive Oil"},
	{ID: 4, Name: "Unsalted Butter"},
	{ID: 5, Name: "Chicken Breast"},
	{ID: 6, Name: "Basil"},
	{ID: 7, Name: "Black Pepper"},
}

func newPantryIndex(t *testing.T) *CandidateIndex {
	t.Helper()
	idx, report := BuildCandidateIndex(pantry, testNormalizer)
	require.Equal(t, len(pantry), report.Candidates)
	return idx
}

func TestIngredientParser_Match(t *testing.T) {
	p := NewIngredientParser(testNormalizer, nil)
	idx := newPantryIndex(t)

	testCases := []struct {
		raw      string
		wantType models.MatchType
		wantID   models.IngredientID
	}{
		{"Fresh, Chopped Garlic - minced", models.MatchTypeExact, 1},
		{"2 cups fresh chopped garlic, minced", models.MatchTypeExact, 1},
		{"Pinch of salt", models.MatchTypeExact, 2},
		{"3 tablespoons extra virgin olive oil", models.MatchTypeExact, 3},
		{"Half a pound of unsalted butter, room temperature", models.MatchTypeExact, 4},
		{"2 chicken breasts", models.MatchTypeNgram, 5},
		{"xyzzy plugh", models.MatchTypeNone, 0},
		{"!!!", models.MatchTypeNone, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			res := p.Match(tc.raw, idx)
			require.True(t, res.Valid())
			assert.Equal(t, tc.wantType, res.MatchType)
			assert.Equal(t, tc.wantID, res.ID())
		})
	}
}

func TestIngredientParser_ParseKeepsNormalization(t *testing.T) {
	p := NewIngredientParser(testNormalizer, nil)

	res := p.Parse("Fresh, Chopped Garlic - minced", newPantryIndex(t))
	assert.Equal(t, "garlic", res.Normalized)
	assert.Equal(t, []string{"garlic"}, res.Tokens)
	assert.Equal(t, "garlic", res.Text())
	assert.Equal(t, "Fresh, Chopped Garlic - minced", res.Raw)
}

func TestIngredientParser_NilIndex(t *testing.T) {
	p := NewIngredientParser(nil, nil)

	res := p.Match("garlic", nil)
	assert.Equal(t, models.MatchTypeNone, res.MatchType)
	assert.Nil(t, res.MatchID)
}

func TestIngredientParser_MatchBatchKeepsOrder(t *testing.T) {
	p := NewIngredientParser(testNormalizer, nil)

	results := p.MatchBatch([]string{"salt", "xyzzy", "basil leaves"}, newPantryIndex(t))
	require.Len(t, results, 3)
	assert.Equal(t, models.IngredientID(2), results[0].ID())
	assert.Equal(t, models.MatchTypeNone, results[1].MatchType)
	assert.Equal(t, "basil leaves", results[2].Normalized)
}

func TestIngredientParser_ConcurrentReads(t *testing.T) {
	p := NewIngredientParser(testNormalizer, nil)
	idx := newPantryIndex(t)
	want := p.Match("garlic, minced", idx)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				assert.Equal(t, want, p.Match("garlic, minced", idx))
			}
		}()
	}
	wg.Wait()
}
