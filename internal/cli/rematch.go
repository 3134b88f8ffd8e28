package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ingredient-matcher/app/services"
	"github.com/ingredient-matcher/internal/parser"
	"github.com/ingredient-matcher/internal/source"
)

func NewRematchCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "rematch",
		Short: "Attach canonical ids to stored ingredient lines that have none",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return f.Error(runRematch(cmd.Context(), rootOpts, limit, f))
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum lines to scan (0 = all)")
	return cmd
}

func runRematch(ctx context.Context, rootOpts *RootOptions, limit int, f *OutputFormatter) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig(rootOpts, true)
	if err != nil {
		return err
	}
	logger := newLogger(rootOpts)
	tn, err := newNormalizer(rootOpts, cfg)
	if err != nil {
		return err
	}

	db, disconnect, err := connectMongo(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer disconnect()

	src, err := source.New(ctx, cfg.Source, db, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "open source", err)
	}
	if closer, ok := src.(io.Closer); ok {
		defer closer.Close()
	}

	index := services.NewIndexService(src, tn, nil, cfg.Index.MaxCandidates, logger)
	if _, err := index.Rebuild(ctx); err != nil {
		return WrapExitError(ExitFailure, "build index", err)
	}
	res, err := services.NewRematchService(db, parser.NewIngredientParser(tn, logger), index, logger).Rematch(ctx, limit)
	if err != nil {
		return WrapExitError(ExitFailure, "rematch", err)
	}
	return f.Success(res, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "scanned %d lines, matched %d, unmatched %d (index %s)\n",
			res.Scanned, res.Matched, res.Unmatched, res.IndexVersion)
		return err
	})
}
