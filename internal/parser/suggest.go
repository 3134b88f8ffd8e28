package parser

import (
	"sort"

	"github.com/xrash/smetrics"

	"github.com/ingredient-matcher/app/models"
)

// DefaultSuggestions is the number of suggestions returned when k <= 0.
const DefaultSuggestions = 5

// Suggestion is a ranked candidate offered for manual review of a line the
// matcher could not resolve. Suggestions never feed back into MatchResult.
type Suggestion struct {
	ID    models.IngredientID `json:"id"`
	Text  string              `json:"text"`
	Score float64             `json:"score"` // Jaro-Winkler, 0..1
}

// Suggest ranks every candidate by Jaro-Winkler similarity to normalized and
// returns the top k, ties broken by ascending id.
func Suggest(normalized string, idx *CandidateIndex, k int) []Suggestion {
	if k <= 0 {
		k = DefaultSuggestions
	}
	out := make([]Suggestion, 0, k)
	if idx == nil || normalized == "" {
		return out
	}

	all := make([]Suggestion, 0, idx.Len())
	for _, c := range idx.candidates {
		score := smetrics.JaroWinkler(normalized, c.key, 0.7, 4)
		if score <= 0 {
			continue
		}
		all = append(all, Suggestion{ID: c.id, Text: c.key, Score: score})
	}

	// candidates are already in id order, a stable sort keeps it for ties
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Score > all[j].Score
	})
	if len(all) > k {
		all = all[:k]
	}
	return append(out, all...)
}
