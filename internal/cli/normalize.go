package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ingredient-matcher/internal/normalizer"
)

// NormalizedLine is one normalize output row.
type NormalizedLine struct {
	Text string `json:"text"`
	normalizer.NormalizationResult
}

func NewNormalizeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "normalize [text...]",
		Short: "Print the normalized form of ingredient lines",
		Long:  "Normalize the given text, or each line of stdin when no text is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return f.Error(runNormalize(rootOpts, f, args, cmd.InOrStdin()))
		},
	}
}

func runNormalize(opts *RootOptions, f *OutputFormatter, args []string, in io.Reader) error {
	cfg, err := loadConfig(opts, false)
	if err != nil {
		return err
	}
	tn, err := newNormalizer(opts, cfg)
	if err != nil {
		return err
	}
	lines, err := inputLines(args, in)
	if err != nil {
		return err
	}

	out := make([]NormalizedLine, len(lines))
	for i, line := range lines {
		out[i] = NormalizedLine{Text: line, NormalizationResult: tn.Normalize(line)}
	}
	return f.Success(out, func(w io.Writer) error {
		for _, l := range out {
			if _, err := fmt.Fprintln(w, l.Normalized); err != nil {
				return err
			}
		}
		return nil
	})
}
