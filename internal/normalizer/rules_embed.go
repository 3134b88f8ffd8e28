package normalizer

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed data/lexicon.yaml
var lexiconYAML []byte

// LexiconConfig is the on-disk shape of the removable vocabulary.
type LexiconConfig struct {
	Units       []string `yaml:"units"`
	Numbers     []string `yaml:"numbers"`
	PrepPhrases []string `yaml:"prep_phrases"`
	PrepWords   []string `yaml:"prep_words"`
}

// Lexicon holds the word sets the normalizer strips from ingredient lines.
// A Lexicon is never modified after it is loaded.
type Lexicon struct {
	units   map[string]struct{}
	numbers map[string]struct{}
	prep    map[string]struct{}
	phrases []string
	digest  string
}

var (
	defaultLexicon     *Lexicon
	defaultLexiconOnce sync.Once
)

// DefaultLexicon returns the embedded lexicon, parsed once per process.
func DefaultLexicon() *Lexicon {
	defaultLexiconOnce.Do(func() {
		lex, err := ParseLexicon(lexiconYAML)
		if err != nil {
			panic(fmt.Sprintf("normalizer: embedded lexicon is invalid: %v", err))
		}
		defaultLexicon = lex
	})
	return defaultLexicon
}

// LoadLexiconFile reads a lexicon from a YAML file on disk.
func LoadLexiconFile(path string) (*Lexicon, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon %s: %w", path, err)
	}
	return ParseLexicon(b)
}

// ParseLexicon builds a Lexicon from YAML. Unit plurals are derived by
// appending "s" to every listed unit.
func ParseLexicon(data []byte) (*Lexicon, error) {
	var cfg LexiconConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse lexicon: %w", err)
	}
	if len(cfg.Units) == 0 && len(cfg.PrepWords) == 0 && len(cfg.Numbers) == 0 && len(cfg.PrepPhrases) == 0 {
		return nil, fmt.Errorf("parse lexicon: no entries")
	}

	lex := &Lexicon{
		units:   make(map[string]struct{}, len(cfg.Units)*2),
		numbers: make(map[string]struct{}, len(cfg.Numbers)),
		prep:    make(map[string]struct{}, len(cfg.PrepWords)),
		phrases: make([]string, 0, len(cfg.PrepPhrases)),
	}
	for _, u := range cfg.Units {
		u = cleanEntry(u)
		if u == "" {
			continue
		}
		lex.units[u] = struct{}{}
		lex.units[u+"s"] = struct{}{}
	}
	for _, n := range cfg.Numbers {
		if n = cleanEntry(n); n != "" {
			lex.numbers[n] = struct{}{}
		}
	}
	for _, w := range cfg.PrepWords {
		if w = cleanEntry(w); w != "" {
			lex.prep[w] = struct{}{}
		}
	}
	seen := make(map[string]bool, len(cfg.PrepPhrases))
	for _, p := range cfg.PrepPhrases {
		p = strings.Join(strings.Fields(cleanEntry(p)), " ")
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		lex.phrases = append(lex.phrases, p)
	}

	sum := sha256.Sum256(data)
	lex.digest = hex.EncodeToString(sum[:])[:16]
	return lex, nil
}

func cleanEntry(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// IsUnit reports whether token is a unit word, singular or plural.
func (l *Lexicon) IsUnit(token string) bool {
	_, ok := l.units[token]
	return ok
}

// IsPrepWord reports whether token is a preparation or descriptor word.
func (l *Lexicon) IsPrepWord(token string) bool {
	_, ok := l.prep[token]
	return ok
}

// IsNumberWord reports whether token is a spelled-out number or fraction.
func (l *Lexicon) IsNumberWord(token string) bool {
	_, ok := l.numbers[token]
	return ok
}

// Removable reports whether a single token is dropped in the token filter.
func (l *Lexicon) Removable(token string) bool {
	return l.IsUnit(token) || l.IsPrepWord(token) || l.IsNumberWord(token)
}

// PrepPhrases returns the multi-word phrases in application order.
func (l *Lexicon) PrepPhrases() []string {
	out := make([]string, len(l.phrases))
	copy(out, l.phrases)
	return out
}

// Digest identifies the lexicon content.
func (l *Lexicon) Digest() string {
	return l.digest
}
