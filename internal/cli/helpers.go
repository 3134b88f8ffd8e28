package cli

import (
	"bufio"
	"context"
	"io"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/ingredient-matcher/app/bootstrap"
	"github.com/ingredient-matcher/app/config"
	"github.com/ingredient-matcher/internal/normalizer"
	"github.com/ingredient-matcher/internal/parser"
	"github.com/ingredient-matcher/internal/source"
)

// loadConfig reads the config file when one is given or found, and falls
// back to defaults for offline commands.
func loadConfig(opts *RootOptions, required bool) (*config.Config, error) {
	if opts.ConfigPath == "" && !required {
		return config.Default(), nil
	}
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load config", err)
	}
	return cfg, nil
}

func newLogger(opts *RootOptions) *zap.Logger {
	if !opts.Verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func newNormalizer(opts *RootOptions, cfg *config.Config) (*normalizer.TextNormalizer, error) {
	nc := cfg.Normalizer
	if opts.AccentFolding != "" {
		nc.AccentFolding = opts.AccentFolding
	}
	tn, err := bootstrap.NewNormalizer(nc)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "configure normalizer", err)
	}
	return tn, nil
}

// loadIndex builds an index from a YAML candidates file.
func loadIndex(path string, tn *normalizer.TextNormalizer, logger *zap.Logger) (*parser.CandidateIndex, error) {
	items, err := source.ReadFile(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "read candidates", err)
	}
	idx, report := parser.BuildCandidateIndex(items, tn)
	logger.Debug("Built candidate index",
		zap.String("file", path),
		zap.Int("candidates", report.Candidates),
		zap.Int("skipped_empty", len(report.SkippedEmpty)),
		zap.Int("duplicate_keys", len(report.DuplicateKeys)))
	return idx, nil
}

// connectMongo returns the configured database and a disconnect func.
func connectMongo(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*mongo.Database, func(), error) {
	client, err := bootstrap.ConnectMongo(ctx, cfg.Mongo, logger)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "connect mongo", err)
	}
	return client.Database(cfg.Mongo.Database), func() { _ = client.Disconnect(context.Background()) }, nil
}

// inputLines joins args into one line, or reads non-blank lines from in
// when no args are given.
func inputLines(args []string, in io.Reader) ([]string, error) {
	if len(args) > 0 {
		return []string{strings.Join(args, " ")}, nil
	}
	var lines []string
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, WrapExitError(ExitCommandError, "read input", err)
	}
	if len(lines) == 0 {
		return nil, NewExitError(ExitCommandError, "no input lines")
	}
	return lines, nil
}
