package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RecipeIngredientLine is one stored ingredient line of a recipe.
// CanonicalIngredientID stays nil until a match is attached.
type RecipeIngredientLine struct {
	ID                    primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	RecipeID              string             `bson:"recipe_id" json:"recipe_id"`
	Text                  string             `bson:"text" json:"text"`                                       // Raw line as typed
	CanonicalIngredientID *IngredientID      `bson:"canonical_ingredient_id" json:"canonical_ingredient_id"` // Attached match
	MatchType             MatchType          `bson:"match_type,omitempty" json:"match_type,omitempty"`
	MatchedAt             *time.Time         `bson:"matched_at,omitempty" json:"matched_at,omitempty"`
	RematchNamespace      string             `bson:"rematch_namespace,omitempty" json:"-"` // Index namespace of the last failed rematch
}

// Attach copies a match onto the line. Unmatched results leave the line untouched.
func (l *RecipeIngredientLine) Attach(res MatchResult, at time.Time) bool {
	if !res.Matched() {
		return false
	}
	id := res.ID()
	l.CanonicalIngredientID = &id
	l.MatchType = res.MatchType
	l.MatchedAt = &at
	return true
}
