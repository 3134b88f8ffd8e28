package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/ingredient-matcher/internal/source"
)

// SeedResult reports a seed run.
type SeedResult struct {
	Source   string `json:"source"`
	Received int    `json:"received"`
	Upserted int    `json:"upserted"`
}

func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed --file <file>",
		Short: "Upsert canonical ingredients into the configured source",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return f.Error(runSeed(cmd.Context(), rootOpts, file, f))
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file of canonical ingredients")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runSeed(ctx context.Context, rootOpts *RootOptions, file string, f *OutputFormatter) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig(rootOpts, true)
	if err != nil {
		return err
	}
	logger := newLogger(rootOpts)

	items, err := source.ReadFile(file)
	if err != nil {
		return WrapExitError(ExitCommandError, "read seed file", err)
	}
	if err := source.Validate(items); err != nil {
		return WrapExitError(ExitCommandError, "invalid seed file", err)
	}

	var db *mongo.Database
	if cfg.Source.Type == "mongo" {
		var disconnect func()
		db, disconnect, err = connectMongo(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer disconnect()
	}
	src, err := source.New(ctx, cfg.Source, db, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "open source", err)
	}
	if closer, ok := src.(io.Closer); ok {
		defer closer.Close()
	}
	writer, ok := src.(source.CanonicalWriter)
	if !ok {
		return WrapExitError(ExitCommandError, src.Name(), source.ErrReadOnly)
	}

	n, err := writer.UpsertCanonical(ctx, items)
	if err != nil {
		return WrapExitError(ExitFailure, "seed", err)
	}
	logger.Info("Seeded canonical ingredients", zap.String("source", src.Name()), zap.Int("upserted", n))

	res := SeedResult{Source: src.Name(), Received: len(items), Upserted: n}
	return f.Success(res, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "seeded %d of %d canonical ingredients into %s\n", res.Upserted, res.Received, res.Source)
		return err
	})
}
