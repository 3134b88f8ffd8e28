package parser

import (
	"time"

	"go.uber.org/zap"

	"github.com/ingredient-matcher/app/models"
	"github.com/ingredient-matcher/internal/normalizer"
)

// ParseResult is a match together with the normalization that fed it.
type ParseResult struct {
	models.MatchResult
	Raw        string   `json:"raw"`
	Tokens     []string `json:"tokens"`
	Normalized string   `json:"normalized"`
}

// IngredientParser runs one raw ingredient line through normalization and
// matching. It performs no I/O and never returns an error.
type IngredientParser struct {
	normalizer *normalizer.TextNormalizer
	matcher    *IngredientMatcher
	logger     *zap.Logger
}

// NewIngredientParser creates the pipeline. A nil logger disables logging.
func NewIngredientParser(tn *normalizer.TextNormalizer, logger *zap.Logger) *IngredientParser {
	if tn == nil {
		tn = normalizer.NewTextNormalizer()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngredientParser{
		normalizer: tn,
		matcher:    NewIngredientMatcher(),
		logger:     logger,
	}
}

// Normalizer returns the normalizer used for queries. Indexes searched by this
// parser must be built with the same one.
func (p *IngredientParser) Normalizer() *normalizer.TextNormalizer {
	return p.normalizer
}

// Match maps raw text onto a canonical ingredient in idx.
func (p *IngredientParser) Match(rawText string, idx *CandidateIndex) models.MatchResult {
	return p.Parse(rawText, idx).MatchResult
}

// Parse is Match plus the intermediate normalization.
func (p *IngredientParser) Parse(rawText string, idx *CandidateIndex) ParseResult {
	return p.MatchNormalized(rawText, p.normalizer.Normalize(rawText), idx)
}

// MatchNormalized matches text that was already normalized by Normalizer().
// Callers that look up caches by normalized text use it to normalize once.
func (p *IngredientParser) MatchNormalized(rawText string, norm normalizer.NormalizationResult, idx *CandidateIndex) ParseResult {
	start := time.Now()

	if fp := idx.Fingerprint(); fp != "" && fp != p.normalizer.Fingerprint() {
		p.logger.Warn("Index built with a different normalizer",
			zap.String("index_fingerprint", fp),
			zap.String("query_fingerprint", p.normalizer.Fingerprint()))
	}
	res := p.matcher.FindMatch(norm.Normalized, idx)

	p.logger.Debug("Matched ingredient line",
		zap.String("raw", rawText),
		zap.String("normalized", norm.Normalized),
		zap.String("match_type", string(res.MatchType)),
		zap.Int64("match_id", int64(res.ID())),
		zap.Duration("took", time.Since(start)))

	return ParseResult{
		MatchResult: res,
		Raw:         rawText,
		Tokens:      norm.Tokens,
		Normalized:  norm.Normalized,
	}
}

// MatchBatch matches each line independently. Results keep input order.
func (p *IngredientParser) MatchBatch(lines []string, idx *CandidateIndex) []ParseResult {
	results := make([]ParseResult, len(lines))
	for i, line := range lines {
		results[i] = p.Parse(line, idx)
	}
	p.logger.Info("Matched ingredient batch",
		zap.Int("total", len(lines)),
		zap.String("index_version", idx.Version()))
	return results
}
