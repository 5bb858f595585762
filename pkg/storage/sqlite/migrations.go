package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type migration struct {
	version int
	up      string
}

// migrations is the ordered list of schema migrations.
var migrations = []migration{
	{
		version: 1,
		up: `
			CREATE TABLE usage_records (
				id            TEXT PRIMARY KEY,
				subject       TEXT NOT NULL DEFAULT '',
				backend       TEXT NOT NULL DEFAULT '',
				servers       TEXT NOT NULL DEFAULT '[]',
				status        INTEGER NOT NULL DEFAULT 0,
				llm_calls     INTEGER NOT NULL DEFAULT 0,
				total_tokens  INTEGER NOT NULL DEFAULT 0,
				input_tokens  INTEGER NOT NULL DEFAULT 0,
				output_tokens INTEGER NOT NULL DEFAULT 0,
				tool_calls    INTEGER NOT NULL DEFAULT 0,
				error         TEXT NOT NULL DEFAULT '',
				started_at    TEXT NOT NULL,
				completed_at  TEXT NOT NULL
			);
			CREATE INDEX idx_usage_subject_completed ON usage_records (subject, completed_at DESC);
		`,
	},
}

// runMigrations creates the schema_version table if needed and applies
// pending migrations, each in its own transaction.
func runMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var current int
	err := db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (0)"); err != nil {
			return fmt.Errorf("insert initial schema version: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.version, err)
		}
		if _, err := tx.ExecContext(ctx, m.up); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
		if _, err := tx.ExecContext(ctx, "UPDATE schema_version SET version = ?", m.version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("update schema version to %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.version, err)
		}
	}
	return nil
}
