package models

// MatchType is the tier that produced a match.
type MatchType string

const (
	MatchTypeExact       MatchType = "exact"
	MatchTypeNgram       MatchType = "ngram"
	MatchTypeLevenshtein MatchType = "levenshtein"
	MatchTypeNone        MatchType = "none"
)

// MatchResult is the outcome of matching one ingredient line.
// MatchID and MatchedText are both nil exactly when MatchType is none.
type MatchResult struct {
	MatchID     *IngredientID `json:"match_id" bson:"match_id"`         // Canonical id, null when unmatched
	MatchedText *string       `json:"matched_text" bson:"matched_text"` // Normalized query (exact) or candidate key
	MatchType   MatchType     `json:"match_type" bson:"match_type"`     // exact, ngram, levenshtein or none
	Score       float64       `json:"score" bson:"score"`               // Jaccard, 1 for exact, edit distance for levenshtein
}

// NoMatch returns the empty result.
func NoMatch() MatchResult {
	return MatchResult{MatchType: MatchTypeNone}
}

// Matched reports whether the result carries a canonical id.
func (r MatchResult) Matched() bool {
	return r.MatchType != MatchTypeNone && r.MatchID != nil
}

// ID returns the matched id or 0.
func (r MatchResult) ID() IngredientID {
	if r.MatchID == nil {
		return 0
	}
	return *r.MatchID
}

// Text returns the matched text or "".
func (r MatchResult) Text() string {
	if r.MatchedText == nil {
		return ""
	}
	return *r.MatchedText
}

// Valid checks the invariant between MatchType and the optional fields.
func (r MatchResult) Valid() bool {
	switch r.MatchType {
	case MatchTypeNone:
		return r.MatchID == nil && r.MatchedText == nil
	case MatchTypeExact, MatchTypeNgram, MatchTypeLevenshtein:
		return r.MatchID != nil && r.MatchedText != nil
	}
	return false
}
