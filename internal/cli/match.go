package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ingredient-matcher/internal/parser"
)

// MatchOptions holds match command flags.
type MatchOptions struct {
	Candidates    string
	FailUnmatched bool
}

func NewMatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MatchOptions{}
	cmd := &cobra.Command{
		Use:   "match --candidates <file> [text...]",
		Short: "Match ingredient lines against a candidates file",
		Long: `Match the given text, or each line of stdin, against canonical ingredients
read from a YAML file of {id, name} entries.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return f.Error(runMatch(rootOpts, opts, f, args, cmd.InOrStdin()))
		},
	}
	cmd.Flags().StringVarP(&opts.Candidates, "candidates", "c", "", "YAML file of canonical ingredients")
	cmd.Flags().BoolVar(&opts.FailUnmatched, "fail-unmatched", false, "exit 1 when any line has no match")
	_ = cmd.MarkFlagRequired("candidates")
	return cmd
}

func runMatch(rootOpts *RootOptions, opts *MatchOptions, f *OutputFormatter, args []string, in io.Reader) error {
	cfg, err := loadConfig(rootOpts, false)
	if err != nil {
		return err
	}
	tn, err := newNormalizer(rootOpts, cfg)
	if err != nil {
		return err
	}
	logger := newLogger(rootOpts)
	idx, err := loadIndex(opts.Candidates, tn, logger)
	if err != nil {
		return err
	}
	lines, err := inputLines(args, in)
	if err != nil {
		return err
	}

	results := parser.NewIngredientParser(tn, logger).MatchBatch(lines, idx)
	if err := f.Success(results, func(w io.Writer) error {
		for _, r := range results {
			id := "-"
			if r.Matched() {
				id = fmt.Sprint(r.ID())
			}
			if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Raw, r.MatchType, id, r.Text()); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return err
	}

	if opts.FailUnmatched {
		for _, r := range results {
			if !r.Matched() {
				return NewExitError(ExitFailure, "some lines did not match")
			}
		}
	}
	return nil
}
