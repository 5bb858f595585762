// Package sqlite provides a usage ledger stored in a local SQLite file
// through the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rhuss/mcpgate/pkg/debug"
	"github.com/rhuss/mcpgate/pkg/storage"
)

const timeFormat = time.RFC3339Nano

// Store is a SQLite-backed Ledger.
type Store struct {
	db *sql.DB
}

var _ storage.Ledger = (*Store)(nil)

// New opens or creates the database at path, enables WAL mode and runs
// pending migrations.
func New(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	debug.Log("storage", "sqlite ledger opened", "path", path)
	return &Store{db: db}, nil
}

// Append inserts one record.
func (s *Store) Append(ctx context.Context, rec *storage.UsageRecord) error {
	servers, err := json.Marshal(rec.Servers)
	if err != nil {
		return fmt.Errorf("marshal servers: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO usage_records (id, subject, backend, servers, status, llm_calls,
			total_tokens, input_tokens, output_tokens, tool_calls, error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Subject, rec.Backend, string(servers), boolToInt(rec.Status), rec.LLMCalls,
		rec.TotalTokens, rec.InputTokens, rec.OutputTokens, rec.ToolCalls, rec.Error,
		rec.StartedAt.UTC().Format(timeFormat), rec.CompletedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return storage.ErrConflict
		}
		return fmt.Errorf("insert usage record: %w", err)
	}
	return nil
}

const selectColumns = `SELECT id, subject, backend, servers, status, llm_calls,
	total_tokens, input_tokens, output_tokens, tool_calls, error, started_at, completed_at
	FROM usage_records`

// Get returns one record by ID.
func (s *Store) Get(ctx context.Context, id string) (*storage.UsageRecord, error) {
	query := selectColumns + " WHERE id = ?"
	args := []any{id}
	if subject := storage.GetSubject(ctx); subject != "" {
		query += " AND subject = ?"
		args = append(args, subject)
	}

	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query usage record: %w", err)
	}
	return rec, nil
}

// Recent returns the newest records first.
func (s *Store) Recent(ctx context.Context, limit int) ([]*storage.UsageRecord, error) {
	query := selectColumns
	var args []any
	if subject := storage.GetSubject(ctx); subject != "" {
		query += " WHERE subject = ?"
		args = append(args, subject)
	}
	query += " ORDER BY completed_at DESC, id DESC LIMIT ?"
	args = append(args, storage.ClampLimit(limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query usage records: %w", err)
	}
	defer rows.Close()

	out := []*storage.UsageRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan usage record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usage records: %w", err)
	}
	return out, nil
}

// HealthCheck pings the database.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*storage.UsageRecord, error) {
	var rec storage.UsageRecord
	var servers, started, completed string
	var status int
	if err := row.Scan(
		&rec.ID, &rec.Subject, &rec.Backend, &servers, &status, &rec.LLMCalls,
		&rec.TotalTokens, &rec.InputTokens, &rec.OutputTokens, &rec.ToolCalls, &rec.Error,
		&started, &completed,
	); err != nil {
		return nil, err
	}
	rec.Status = status != 0
	if err := json.Unmarshal([]byte(servers), &rec.Servers); err != nil {
		return nil, fmt.Errorf("unmarshal servers: %w", err)
	}
	rec.StartedAt, _ = time.Parse(timeFormat, started)
	rec.CompletedAt, _ = time.Parse(timeFormat, completed)
	return &rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
