package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/ingredient-matcher/app/bootstrap"
	"github.com/ingredient-matcher/app/services"
	"github.com/ingredient-matcher/internal/source"
)

// SyncSearchResult reports a search sync run.
type SyncSearchResult struct {
	IndexVersion string `json:"index_version"`
	Documents    int    `json:"documents"`
}

func NewSyncSearchCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync-search",
		Short: "Push canonical ingredients from the configured source to Meilisearch",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return f.Error(runSyncSearch(cmd.Context(), rootOpts, f))
		},
	}
}

func runSyncSearch(ctx context.Context, rootOpts *RootOptions, f *OutputFormatter) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig(rootOpts, true)
	if err != nil {
		return err
	}
	if !cfg.Meilisearch.Enabled {
		return WrapExitError(ExitCommandError, "meilisearch.enabled is false", services.ErrSearchDisabled)
	}
	logger := newLogger(rootOpts)
	tn, err := newNormalizer(rootOpts, cfg)
	if err != nil {
		return err
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
	searcher, err := bootstrap.NewSearcher(cfg.Meilisearch, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "connect meilisearch", err)
	}

	index := services.NewIndexService(src, tn, nil, cfg.Index.MaxCandidates, logger)
	report, err := index.Rebuild(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "build index", err)
	}
	admin := services.NewAdminService(services.AdminServiceDeps{
		Index:      index,
		Source:     src,
		Normalizer: tn,
		Searcher:   searcher,
	}, logger)
	n, err := admin.SyncSearch(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "sync search", err)
	}

	res := SyncSearchResult{IndexVersion: report.Version, Documents: n}
	return f.Success(res, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "pushed %d documents (index %s)\n", res.Documents, res.IndexVersion)
		return err
	})
}
