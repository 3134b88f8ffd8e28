package parser

import (
	"sort"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"

	"github.com/ingredient-matcher/app/models"
	"github.com/ingredient-matcher/helpers/utils"
	"github.com/ingredient-matcher/internal/normalizer"
)

// trigramSet is the set of 3-character shingles of a string.
type trigramSet map[string]struct{}

// candidate is one index entry with its shingles precomputed.
type candidate struct {
	id     models.IngredientID
	key    string
	length int
	grams  trigramSet
}

// CandidateIndex is an immutable snapshot mapping normalized ingredient names
// to canonical ids. It is never modified after construction and is safe for
// concurrent reads; a rebuild produces a new snapshot.
type CandidateIndex struct {
	byKey       map[string]models.IngredientID
	candidates  []candidate // ascending id
	version     string
	namespace   string
	builtAt     time.Time
	fingerprint string
}

// BuildReport describes what happened while building an index.
type BuildReport struct {
	Version       string                           `json:"version"`
	Namespace     string                           `json:"cache_namespace"`
	Candidates    int                              `json:"candidates"`
	Loaded        int                              `json:"loaded"`
	SkippedEmpty  []models.IngredientID            `json:"skipped_empty"`  // names that normalize to ""
	DuplicateKeys map[string][]models.IngredientID `json:"duplicate_keys"` // key -> ids dropped in favour of the lowest
	Fingerprint   string                           `json:"normalizer_fingerprint"`
	BuildDuration time.Duration                    `json:"build_duration_ns"`
	BuiltAt       time.Time                        `json:"built_at"`
}

// BuildCandidateIndex normalizes every canonical name with tn and indexes the
// result. Names that normalize to nothing are skipped. When several names
// normalize to the same key, the lowest id keeps it.
func BuildCandidateIndex(ingredients []models.CanonicalIngredient, tn *normalizer.TextNormalizer) (*CandidateIndex, BuildReport) {
	start := time.Now()
	report := BuildReport{
		Loaded:        len(ingredients),
		SkippedEmpty:  make([]models.IngredientID, 0),
		DuplicateKeys: make(map[string][]models.IngredientID),
		Fingerprint:   tn.Fingerprint(),
	}

	sorted := make([]models.CanonicalIngredient, len(ingredients))
	copy(sorted, ingredients)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	entries := make(map[string]models.IngredientID, len(sorted))
	for _, ing := range sorted {
		key := tn.Normalize(ing.Name).Normalized
		if key == "" {
			report.SkippedEmpty = append(report.SkippedEmpty, ing.ID)
			continue
		}
		if _, taken := entries[key]; taken {
			report.DuplicateKeys[key] = append(report.DuplicateKeys[key], ing.ID)
			continue
		}
		entries[key] = ing.ID
	}

	idx := newCandidateIndex(entries, tn.Fingerprint())
	report.Version = idx.version
	report.Namespace = idx.namespace
	report.Candidates = idx.Len()
	report.BuiltAt = idx.builtAt
	report.BuildDuration = time.Since(start)
	return idx, report
}

// NewCandidateIndex indexes keys that are already normalized. Callers must
// produce keys with the same normalizer that will process queries.
func NewCandidateIndex(entries map[string]models.IngredientID) *CandidateIndex {
	cp := make(map[string]models.IngredientID, len(entries))
	for k, v := range entries {
		if k == "" {
			continue
		}
		cp[k] = v
	}
	return newCandidateIndex(cp, "")
}

func newCandidateIndex(entries map[string]models.IngredientID, fingerprint string) *CandidateIndex {
	idx := &CandidateIndex{
		byKey:       entries,
		candidates:  make([]candidate, 0, len(entries)),
		version:     utils.GenerateULID(),
		builtAt:     time.Now(),
		fingerprint: fingerprint,
	}
	for key, id := range entries {
		idx.candidates = append(idx.candidates, candidate{
			id:     id,
			key:    key,
			length: utf8.RuneCountInString(key),
			grams:  trigrams(key),
		})
	}
	sort.Slice(idx.candidates, func(i, j int) bool {
		a, b := idx.candidates[i], idx.candidates[j]
		if a.id != b.id {
			return a.id < b.id
		}
		return a.key < b.key
	})
	idx.namespace = contentDigest(fingerprint, idx.candidates)
	return idx
}

// contentDigest hashes the normalizer fingerprint and the sorted (id, key)
// pairs. Equal tables built by equal normalizers share a digest in every process.
func contentDigest(fingerprint string, candidates []candidate) string {
	d := xxhash.New()
	_, _ = d.WriteString(fingerprint)
	_, _ = d.WriteString("\x00")
	buf := make([]byte, 0, 64)
	for _, c := range candidates {
		buf = strconv.AppendInt(buf[:0], int64(c.id), 10)
		buf = append(buf, 0x1f)
		buf = append(buf, c.key...)
		buf = append(buf, 0x1e)
		_, _ = d.Write(buf)
	}
	return strconv.FormatUint(d.Sum64(), 16)
}

// Lookup returns the id indexed under an exact normalized key.
func (ci *CandidateIndex) Lookup(key string) (models.IngredientID, bool) {
	if ci == nil {
		return 0, false
	}
	id, ok := ci.byKey[key]
	return id, ok
}

// Len returns the number of indexed keys.
func (ci *CandidateIndex) Len() int {
	if ci == nil {
		return 0
	}
	return len(ci.candidates)
}

// Version is a sortable id unique to this snapshot. It is for display and
// logs; caches key on Namespace.
func (ci *CandidateIndex) Version() string {
	if ci == nil {
		return ""
	}
	return ci.version
}

// Namespace identifies the index content: the same canonical table and
// normalizer give the same namespace in every process.
func (ci *CandidateIndex) Namespace() string {
	if ci == nil {
		return ""
	}
	return ci.namespace
}

// BuiltAt returns the snapshot creation time.
func (ci *CandidateIndex) BuiltAt() time.Time {
	if ci == nil {
		return time.Time{}
	}
	return ci.builtAt
}

// Fingerprint identifies the normalizer that produced the keys, or "" when
// the keys were supplied pre-normalized.
func (ci *CandidateIndex) Fingerprint() string {
	if ci == nil {
		return ""
	}
	return ci.fingerprint
}

// Each calls fn for every entry in ascending id order until fn returns false.
func (ci *CandidateIndex) Each(fn func(key string, id models.IngredientID) bool) {
	if ci == nil {
		return
	}
	for _, c := range ci.candidates {
		if !fn(c.key, c.id) {
			return
		}
	}
}

// trigrams returns the set of contiguous 3-character substrings of s.
// Strings shorter than three characters have none.
func trigrams(s string) trigramSet {
	r := []rune(s)
	if len(r) < 3 {
		return trigramSet{}
	}
	grams := make(trigramSet, len(r)-2)
	for i := 0; i+3 <= len(r); i++ {
		grams[string(r[i:i+3])] = struct{}{}
	}
	return grams
}

// jaccard returns |A∩B| / |A∪B|, or 0 when both sets are empty.
func jaccard(a, b trigramSet) float64 {
	if len(a) > len(b) {
		a, b = b, a
	}
	inter := 0
	for g := range a {
		if _, ok := b[g]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
