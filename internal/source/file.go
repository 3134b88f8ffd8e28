package source

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ingredient-matcher/app/models"
)

// FileSource reads a YAML list of {id, name} entries.
type FileSource struct {
	path string
}

// NewFileSource creates a source over path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Name() string { return "file" }

// LoadCanonical parses the file on every call, so edits are picked up by the
// next rebuild.
func (s *FileSource) LoadCanonical(ctx context.Context) ([]models.CanonicalIngredient, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ReadFile(s.path)
}

// ReadFile parses a canonical ingredient YAML file.
func ReadFile(path string) ([]models.CanonicalIngredient, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	items := make([]models.CanonicalIngredient, 0)
	if err := yaml.Unmarshal(b, &items); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return items, nil
}
