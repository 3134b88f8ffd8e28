package normalizer

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/kljensen/snowball/english"
)

// NormalizationResult is the canonical form of one ingredient line.
type NormalizationResult struct {
	Tokens     []string `json:"tokens"`
	Normalized string   `json:"normalized"`
}

// Option configures a TextNormalizer.
type Option func(*TextNormalizer)

// WithAccentFolding enables folding of accented letters before filtering.
func WithAccentFolding(f AccentFolding) Option {
	return func(tn *TextNormalizer) {
		tn.folding = f
	}
}

// WithLexicon replaces the embedded lexicon.
func WithLexicon(lex *Lexicon) Option {
	return func(tn *TextNormalizer) {
		if lex != nil {
			tn.lexicon = lex
		}
	}
}

// TextNormalizer turns raw ingredient text into a noise-free token sequence.
// It holds no mutable state and is safe for concurrent use.
type TextNormalizer struct {
	lexicon    *Lexicon
	folding    AccentFolding
	reNonAlpha *regexp.Regexp
}

// NewTextNormalizer creates a normalizer over the embedded lexicon.
func NewTextNormalizer(opts ...Option) *TextNormalizer {
	tn := &TextNormalizer{
		lexicon:    DefaultLexicon(),
		folding:    FoldNone,
		reNonAlpha: regexp.MustCompile(`[^a-z]`),
	}
	for _, opt := range opts {
		opt(tn)
	}
	return tn
}

// Lexicon returns the vocabulary in use.
func (tn *TextNormalizer) Lexicon() *Lexicon {
	return tn.lexicon
}

// Fingerprint identifies the exact normalization procedure. Two normalizers
// with the same fingerprint produce identical output for every input, so
// index keys built by one are comparable with queries from the other.
func (tn *TextNormalizer) Fingerprint() string {
	sum := sha256.Sum256([]byte(tn.lexicon.Digest() + "|" + string(tn.folding)))
	return hex.EncodeToString(sum[:])[:12]
}

// Normalize runs the normalization pass until its output stops changing.
// Removing a word can join two words into a prep phrase ("extra fresh
// virgin"), so a single pass is not always idempotent.
func (tn *TextNormalizer) Normalize(rawText string) NormalizationResult {
	res := tn.pass(tn.folding.apply(rawText))
	for {
		next := tn.pass(res.Normalized)
		if next.Normalized == res.Normalized {
			return res
		}
		res = next
	}
}

// NormalizeBatch normalizes many lines.
func (tn *TextNormalizer) NormalizeBatch(lines []string) []NormalizationResult {
	results := make([]NormalizationResult, len(lines))
	for i, line := range lines {
		results[i] = tn.Normalize(line)
	}
	return results
}

func (tn *TextNormalizer) pass(text string) NormalizationResult {
	// 1. lowercase
	s := strings.ToLower(text)

	// 2. letters only, single spaces
	s = collapseSpaces(tn.reNonAlpha.ReplaceAllString(s, " "))

	// 3. multi-word phrases span tokens, so they go before the split
	for _, phrase := range tn.lexicon.phrases {
		if strings.Contains(s, phrase) {
			s = collapseSpaces(strings.ReplaceAll(s, phrase, ""))
		}
	}

	// 4 + 5. units, prep words, number words, then stopwords
	tokens := make([]string, 0, 8)
	for _, tok := range strings.Fields(s) {
		if tn.lexicon.Removable(tok) {
			continue
		}
		if english.IsStopWord(tok) {
			continue
		}
		tokens = append(tokens, tok)
	}

	return NormalizationResult{
		Tokens:     tokens,
		Normalized: strings.Join(tokens, " "),
	}
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
