package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// schema is the full ledger DDL. Statements are idempotent so migration can
// run on every deploy.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS analysis_runs (
		id          UUID PRIMARY KEY,
		source      TEXT NOT NULL,
		dest        TEXT NOT NULL,
		measure     TEXT NOT NULL,
		status      TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		record      JSONB NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_analysis_runs_pair ON analysis_runs (source, dest)`,
	`CREATE INDEX IF NOT EXISTS idx_analysis_runs_measure ON analysis_runs (measure)`,
	`CREATE INDEX IF NOT EXISTS idx_analysis_runs_created ON analysis_runs (created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS analysis_sweeps (
		id         UUID PRIMARY KEY,
		measure    TEXT NOT NULL,
		record     JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_analysis_sweeps_created ON analysis_sweeps (created_at DESC)`,
}

// EnsureSchema creates the ledger tables and indexes if absent.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
