package normalizer

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// AccentFolding selects how non-ASCII letters are treated before the
// letter-only filter runs.
type AccentFolding string

const (
	// FoldNone leaves input untouched; accented letters become word breaks.
	FoldNone AccentFolding = "none"
	// FoldStrip removes combining marks: "jalapeño" -> "jalapeno".
	FoldStrip AccentFolding = "strip"
	// FoldTransliterate maps to ASCII: "crème brûlée" -> "creme brulee", "ß" -> "ss".
	FoldTransliterate AccentFolding = "transliterate"
)

// ParseAccentFolding validates a configured folding mode. Empty means FoldNone.
func ParseAccentFolding(s string) (AccentFolding, error) {
	switch AccentFolding(strings.ToLower(strings.TrimSpace(s))) {
	case "", FoldNone:
		return FoldNone, nil
	case FoldStrip:
		return FoldStrip, nil
	case FoldTransliterate:
		return FoldTransliterate, nil
	}
	return "", fmt.Errorf("unknown accent folding %q (want none, strip or transliterate)", s)
}

// StripDiacritics removes combining marks after canonical decomposition.
func StripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Transliterate converts s to its closest ASCII spelling.
func Transliterate(s string) string {
	return unidecode.Unidecode(s)
}

func (f AccentFolding) apply(s string) string {
	switch f {
	case FoldStrip:
		return StripDiacritics(s)
	case FoldTransliterate:
		return Transliterate(s)
	}
	return s
}
