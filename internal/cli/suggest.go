package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ingredient-matcher/internal/parser"
)

// SuggestResult lists suggestions for one line.
type SuggestResult struct {
	Text        string              `json:"text"`
	Normalized  string              `json:"normalized"`
	Suggestions []parser.Suggestion `json:"suggestions"`
}

func NewSuggestCommand(rootOpts *RootOptions) *cobra.Command {
	var candidates string
	var k int
	cmd := &cobra.Command{
		Use:   "suggest --candidates <file> [text...]",
		Short: "List the nearest canonical ingredients for review",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return f.Error(runSuggest(rootOpts, candidates, k, f, args, cmd.InOrStdin()))
		},
	}
	cmd.Flags().StringVarP(&candidates, "candidates", "c", "", "YAML file of canonical ingredients")
	cmd.Flags().IntVarP(&k, "k", "k", parser.DefaultSuggestions, "number of suggestions")
	_ = cmd.MarkFlagRequired("candidates")
	return cmd
}

func runSuggest(rootOpts *RootOptions, candidates string, k int, f *OutputFormatter, args []string, in io.Reader) error {
	cfg, err := loadConfig(rootOpts, false)
	if err != nil {
		return err
	}
	tn, err := newNormalizer(rootOpts, cfg)
	if err != nil {
		return err
	}
	idx, err := loadIndex(candidates, tn, newLogger(rootOpts))
	if err != nil {
		return err
	}
	lines, err := inputLines(args, in)
	if err != nil {
		return err
	}

	out := make([]SuggestResult, len(lines))
	for i, line := range lines {
		norm := tn.Normalize(line).Normalized
		out[i] = SuggestResult{Text: line, Normalized: norm, Suggestions: parser.Suggest(norm, idx, k)}
	}
	return f.Success(out, func(w io.Writer) error {
		for _, r := range out {
			if _, err := fmt.Fprintf(w, "%s\n", r.Text); err != nil {
				return err
			}
			for _, s := range r.Suggestions {
				if _, err := fmt.Fprintf(w, "  %d\t%.3f\t%s\n", s.ID, s.Score, s.Text); err != nil {
					return err
				}
			}
		}
		return nil
	})
}
