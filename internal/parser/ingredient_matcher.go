package parser

import (
	"github.com/agnivade/levenshtein"

	"github.com/ingredient-matcher/app/models"
)

const (
	// NgramThreshold is the minimum trigram Jaccard score accepted by the ngram tier.
	NgramThreshold = 0.45
	// LevenshteinRatio scales the candidate length into an edit budget.
	LevenshteinRatio = 0.25
	// LevenshteinCap bounds the edit budget regardless of candidate length.
	LevenshteinCap = 1
)

// IngredientMatcher resolves a normalized query against a CandidateIndex using
// tiers tried in order: exact, ngram, levenshtein. The first tier that
// produces a match wins. Within a tier, ties go to the lowest id.
type IngredientMatcher struct{}

// NewIngredientMatcher creates a matcher. It holds no state.
func NewIngredientMatcher() *IngredientMatcher {
	return &IngredientMatcher{}
}

// FindMatch returns the best canonical match for normalized. A nil or empty
// index always yields a none result.
func (m *IngredientMatcher) FindMatch(normalized string, idx *CandidateIndex) models.MatchResult {
	if idx == nil || idx.Len() == 0 {
		return models.NoMatch()
	}

	// Tier 0: exact
	if id, ok := idx.Lookup(normalized); ok {
		return matched(id, normalized, models.MatchTypeExact, 1)
	}

	// Tier 1: trigram Jaccard
	if c, score, ok := bestNgram(normalized, idx); ok {
		return matched(c.id, c.key, models.MatchTypeNgram, score)
	}

	// Tier 2: bounded edit distance
	if c, dist, ok := bestLevenshtein(normalized, idx); ok {
		return matched(c.id, c.key, models.MatchTypeLevenshtein, float64(dist))
	}

	return models.NoMatch()
}

// bestNgram scans candidates in ascending id order, so a strictly greater
// score is required to replace the current best.
func bestNgram(query string, idx *CandidateIndex) (candidate, float64, bool) {
	qgrams := trigrams(query)
	if len(qgrams) == 0 {
		return candidate{}, 0, false
	}

	var (
		best      candidate
		bestScore float64
		found     bool
	)
	for _, c := range idx.candidates {
		score := jaccard(qgrams, c.grams)
		if !found || score > bestScore {
			best, bestScore, found = c, score, true
		}
	}
	if !found || bestScore < NgramThreshold {
		return candidate{}, 0, false
	}
	return best, bestScore, true
}

func bestLevenshtein(query string, idx *CandidateIndex) (candidate, int, bool) {
	qlen := len([]rune(query))

	var (
		best     candidate
		bestDist int
		found    bool
	)
	for _, c := range idx.candidates {
		allowed := MaxEditDistance(c.length)
		if abs(qlen-c.length) > allowed {
			continue
		}
		dist := levenshtein.ComputeDistance(query, c.key)
		if dist > allowed {
			continue
		}
		if !found || dist < bestDist {
			best, bestDist, found = c, dist, true
		}
	}
	return best, bestDist, found
}

// MaxEditDistance is the edit budget for a candidate of the given length:
// min(LevenshteinCap, floor(length * LevenshteinRatio)).
func MaxEditDistance(length int) int {
	allowed := int(float64(length) * LevenshteinRatio)
	if allowed > LevenshteinCap {
		allowed = LevenshteinCap
	}
	return allowed
}

func matched(id models.IngredientID, text string, mt models.MatchType, score float64) models.MatchResult {
	return models.MatchResult{
		MatchID:     &id,
		MatchedText: &text,
		MatchType:   mt,
		Score:       score,
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
