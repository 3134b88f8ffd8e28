package models

import (
	"time"
)

// IngredientID is the primary key of a canonical ingredient.
type IngredientID int64

// CanonicalIngredient is one row of the canonical ingredient reference table.
type CanonicalIngredient struct {
	ID        IngredientID `bson:"_id" json:"id" yaml:"id"`                                        // Primary key
	Name      string       `bson:"canonical_name" json:"name" yaml:"name"`                         // Display name, e.g. "Garlic"
	CreatedAt time.Time    `bson:"created_at,omitempty" json:"created_at,omitempty" yaml:"-"` // Insert time
	UpdatedAt time.Time    `bson:"updated_at,omitempty" json:"updated_at,omitempty" yaml:"-"` // Last change
}

// NewCanonicalIngredient creates a CanonicalIngredient stamped with the current time.
func NewCanonicalIngredient(id IngredientID, name string) *CanonicalIngredient {
	now := time.Now()
	return &CanonicalIngredient{
		ID:        id,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
