package source

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/ingredient-matcher/app/models"
)

const sqlSchema = `
CREATE TABLE IF NOT EXISTS canonical_ingredient (
	id INTEGER PRIMARY KEY,
	canonical_name TEXT NOT NULL
);`

// SQLSource reads the canonical_ingredient table from SQLite.
type SQLSource struct {
	db     *sql.DB
	logger *zap.Logger
}

// OpenSQLSource opens dsn with the pure-Go sqlite driver and ensures the
// table exists.
func OpenSQLSource(ctx context.Context, dsn string, logger *zap.Logger) (*SQLSource, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqlSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLSource{db: db, logger: logger}, nil
}

func (s *SQLSource) Name() string { return "sql" }

// Close closes the database.
func (s *SQLSource) Close() error {
	return s.db.Close()
}

// LoadCanonical returns every row ordered by id.
func (s *SQLSource) LoadCanonical(ctx context.Context) ([]models.CanonicalIngredient, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, canonical_name FROM canonical_ingredient ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query canonical_ingredient: %w", err)
	}
	defer rows.Close()

	items := make([]models.CanonicalIngredient, 0)
	for rows.Next() {
		var it models.CanonicalIngredient
		if err := rows.Scan(&it.ID, &it.Name); err != nil {
			return nil, fmt.Errorf("scan canonical_ingredient: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// UpsertCanonical inserts or renames rows by id in a single transaction.
func (s *SQLSource) UpsertCanonical(ctx context.Context, items []models.CanonicalIngredient) (int, error) {
	if err := Validate(items); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO canonical_ingredient (id, canonical_name) VALUES (?, ?)
ON CONFLICT(id) DO UPDATE SET canonical_name = excluded.canonical_name`)
	if err != nil {
		return 0, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, it := range items {
		if _, err := stmt.ExecContext(ctx, int64(it.ID), it.Name); err != nil {
			return 0, fmt.Errorf("upsert id %d: %w", it.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	s.logger.Info("Seeded canonical ingredients", zap.Int("items", len(items)))
	return len(items), nil
}
