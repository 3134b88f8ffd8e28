package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
app:
  env: production
cache:
  mode: hybrid
  ttl: 2h
index:
  max_candidates: 50
normalizer:
  accent_folding: strip
jobs:
  workers: 8
`)
	t.Setenv("APP_JOBS_WORKERS", "2")
	t.Setenv("APP_SOURCE_TYPE", "sql")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "hybrid", cfg.Cache.Mode)
	assert.Equal(t, 2*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 50, cfg.Index.MaxCandidates)
	assert.Equal(t, "strip", cfg.Normalizer.AccentFolding)
	assert.Equal(t, 2, cfg.Jobs.Workers)
	assert.Equal(t, "sql", cfg.Source.Type)
	assert.Equal(t, 20000, cfg.Jobs.MaxLines)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	testCases := map[string]string{
		"cache mode":     "cache:\n  mode: disk\n",
		"source type":    "source:\n  type: ftp\n",
		"http base url":  "source:\n  type: http\n",
		"folding":        "normalizer:\n  accent_folding: ascii\n",
		"workers":        "jobs:\n  workers: 0\n",
		"max candidates": "index:\n  max_candidates: -1\n",
	}
	for name, body := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Cache.Mode)
	assert.Equal(t, "none", cfg.Normalizer.AccentFolding)
	assert.False(t, cfg.IsProduction())
}
