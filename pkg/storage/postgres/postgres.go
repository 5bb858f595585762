// Package postgres provides a PostgreSQL usage ledger built on pgx/v5
// connection pooling.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuss/mcpgate/pkg/debug"
	"github.com/rhuss/mcpgate/pkg/storage"
)

// Store is a PostgreSQL-backed Ledger.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Ledger = (*Store)(nil)

// New creates a new PostgreSQL ledger with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.applyDefaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	debug.Log("storage", "postgres ledger connected", "max_conns", cfg.MaxConns)
	return s, nil
}

// Append inserts one record.
func (s *Store) Append(ctx context.Context, rec *storage.UsageRecord) error {
	servers := rec.Servers
	if servers == nil {
		servers = []string{}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO usage_records (
			id, subject, backend, servers, status, llm_calls,
			total_tokens, input_tokens, output_tokens, tool_calls,
			error, started_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		rec.ID, rec.Subject, rec.Backend, servers, rec.Status, rec.LLMCalls,
		rec.TotalTokens, rec.InputTokens, rec.OutputTokens, rec.ToolCalls,
		rec.Error, rec.StartedAt, rec.CompletedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting usage record: %w", err)
	}
	return nil
}

const selectColumns = `
	SELECT id, subject, backend, servers, status, llm_calls,
	       total_tokens, input_tokens, output_tokens, tool_calls,
	       error, started_at, completed_at
	FROM usage_records`

// Get retrieves a record by ID.
func (s *Store) Get(ctx context.Context, id string) (*storage.UsageRecord, error) {
	query := selectColumns + " WHERE id = $1"
	args := []any{id}
	if subject := storage.GetSubject(ctx); subject != "" {
		query += " AND subject = $2"
		args = append(args, subject)
	}

	rec, err := scanRecord(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying usage record: %w", err)
	}
	return rec, nil
}

// Recent returns the newest records first.
func (s *Store) Recent(ctx context.Context, limit int) ([]*storage.UsageRecord, error) {
	query := selectColumns
	args := []any{}
	argIdx := 1
	if subject := storage.GetSubject(ctx); subject != "" {
		query += fmt.Sprintf(" WHERE subject = $%d", argIdx)
		args = append(args, subject)
		argIdx++
	}
	query += fmt.Sprintf(" ORDER BY completed_at DESC, id DESC LIMIT $%d", argIdx)
	args = append(args, storage.ClampLimit(limit))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying usage records: %w", err)
	}
	defer rows.Close()

	out := []*storage.UsageRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning usage record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating usage records: %w", err)
	}
	return out, nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func scanRecord(row pgx.Row) (*storage.UsageRecord, error) {
	var rec storage.UsageRecord
	if err := row.Scan(
		&rec.ID, &rec.Subject, &rec.Backend, &rec.Servers, &rec.Status, &rec.LLMCalls,
		&rec.TotalTokens, &rec.InputTokens, &rec.OutputTokens, &rec.ToolCalls,
		&rec.Error, &rec.StartedAt, &rec.CompletedAt,
	); err != nil {
		return nil, err
	}
	return &rec, nil
}

// isDuplicateKey reports a unique violation (SQLSTATE 23505).
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
