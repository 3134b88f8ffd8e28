package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ingredient-matcher/app/config"
	"github.com/ingredient-matcher/app/models"
)

func TestValidate(t *testing.T) {
	require.NoError(t, Validate([]models.CanonicalIngredient{{ID: 1, Name: "Garlic"}}))

	assert.ErrorIs(t, Validate(nil), ErrNoIngredients)

	err := Validate([]models.CanonicalIngredient{
		{ID: 1, Name: "Garlic"},
		{ID: 1, Name: "Salt"},
		{ID: 0, Name: " "},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate id 1")
	assert.Contains(t, err.Error(), "id must be positive")
	assert.Contains(t, err.Error(), "name is blank")
}

func TestFileSource(t *testing.T) {
	src := NewFileSource(filepath.Join("testdata", "canonical.yaml"))

	items, err := src.LoadCanonical(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, models.CanonicalIngredient{ID: 2, Name: "Salt"}, items[0])
	assert.Equal(t, "file", src.Name())

	_, err = NewFileSource("testdata/missing.yaml").LoadCanonical(context.Background())
	assert.Error(t, err)
}

func TestSQLSource_UpsertAndLoad(t *testing.T) {
	ctx := context.Background()
	src, err := OpenSQLSource(ctx, filepath.Join(t.TempDir(), "recipes.db"), nil)
	require.NoError(t, err)
	defer src.Close()

	items, err := src.LoadCanonical(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)

	n, err := src.UpsertCanonical(ctx, []models.CanonicalIngredient{
		{ID: 3, Name: "Olive Oil"},
		{ID: 1, Name: "Garlic"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = src.UpsertCanonical(ctx, []models.CanonicalIngredient{{ID: 3, Name: "Extra Virgin Olive Oil"}})
	require.NoError(t, err)

	items, err = src.LoadCanonical(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.CanonicalIngredient{
		{ID: 1, Name: "Garlic"},
		{ID: 3, Name: "Extra Virgin Olive Oil"},
	}, items)
}

func TestSQLSource_RejectsInvalidSeed(t *testing.T) {
	ctx := context.Background()
	src, err := OpenSQLSource(ctx, filepath.Join(t.TempDir(), "recipes.db"), nil)
	require.NoError(t, err)
	defer src.Close()

	_, err = src.UpsertCanonical(ctx, nil)
	assert.ErrorIs(t, err, ErrNoIngredients)
}

func TestHTTPSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/canonical-ingredients" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": 1, "name": "Garlic"},
			{"id": 2, "name": "Salt"},
		})
	}))
	defer server.Close()

	src := NewHTTPSource(server.URL, time.Second, nil)
	items, err := src.LoadCanonical(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, models.IngredientID(1), items[0].ID)
	assert.Equal(t, "Salt", items[1].Name)
}

func TestHTTPSource_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewHTTPSource(server.URL, time.Second, nil).LoadCanonical(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	src, err := New(ctx, config.SourceConfig{Type: "file", FilePath: "testdata/canonical.yaml"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "file", src.Name())

	_, err = New(ctx, config.SourceConfig{Type: "mongo"}, nil, nil)
	assert.Error(t, err)

	_, err = New(ctx, config.SourceConfig{Type: "ftp"}, nil, nil)
	assert.Error(t, err)
}
