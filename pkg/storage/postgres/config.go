package postgres

import "time"

// Config holds the pool and schema settings of the PostgreSQL ledger.
type Config struct {
	// DSN is a pgx connection string, e.g. "postgres://user:pass@db:5432/usage?sslmode=require".
	DSN string

	// MaxConns caps the pool. Default: 25.
	MaxConns int32

	// MinConns is kept idle. Default: 5, never above MaxConns.
	MinConns int32

	// MaxConnLifetime recycles connections. Default: 5m.
	MaxConnLifetime time.Duration

	// ConnectTimeout bounds the initial ping. Default: 10s.
	ConnectTimeout time.Duration

	// MigrateOnStart applies pending schema migrations in New.
	MigrateOnStart bool
}

func (c *Config) applyDefaults() {
	if c.MaxConns <= 0 {
		c.MaxConns = 25
	}
	if c.MinConns <= 0 {
		c.MinConns = min(5, c.MaxConns)
	}
	if c.MinConns > c.MaxConns {
		c.MinConns = c.MaxConns
	}
	if c.MaxConnLifetime <= 0 {
		c.MaxConnLifetime = 5 * time.Minute
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
}
