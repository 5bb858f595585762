// Command server runs the mcpgate tool-calling gateway.
//
// Configuration is read from a YAML file (see -config and MCPGATE_CONFIG)
// and MCPGATE_* environment variables:
//
//	MCPGATE_PORT         - Listen port (default: 8080)
//	MCPGATE_BACKENDS     - Comma-separated enabled backend ids
//	MCPGATE_MCP_SERVERS  - JSON array of MCP server definitions
//	MCPGATE_STORAGE      - Usage ledger: "none", "memory", "sqlite" or "postgres" (default: "memory")
//	MCPGATE_AUTH_TYPE    - "none", "apikey" or "jwt" (default: "none")
//	MCPGATE_DEBUG        - Debug categories, e.g. "engine,mcp"
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/rhuss/mcpgate/pkg/auth"
	"github.com/rhuss/mcpgate/pkg/auth/apikey"
	"github.com/rhuss/mcpgate/pkg/auth/jwt"
	"github.com/rhuss/mcpgate/pkg/auth/noop"
	"github.com/rhuss/mcpgate/pkg/backend"
	"github.com/rhuss/mcpgate/pkg/backend/anthropic"
	"github.com/rhuss/mcpgate/pkg/backend/gemini"
	"github.com/rhuss/mcpgate/pkg/backend/openai"
	"github.com/rhuss/mcpgate/pkg/capability/mcp"
	"github.com/rhuss/mcpgate/pkg/config"
	"github.com/rhuss/mcpgate/pkg/debug"
	"github.com/rhuss/mcpgate/pkg/engine"
	"github.com/rhuss/mcpgate/pkg/storage"
	"github.com/rhuss/mcpgate/pkg/storage/memory"
	"github.com/rhuss/mcpgate/pkg/storage/postgres"
	"github.com/rhuss/mcpgate/pkg/storage/sqlite"
	transporthttp "github.com/rhuss/mcpgate/pkg/transport/http"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	debug.Init(cfg.Logging.Debug, cfg.Logging.Level)

	backends, err := createBackends(cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()

	connectCtx, cancel := context.WithTimeout(ctx, cfg.MCP.ConnectTimeout)
	registry := mcp.Connect(connectCtx, cfg.MCPServers())
	cancel()
	defer registry.Close()
	slog.Info("capability providers connected", "providers", registry.Providers())

	ledger, err := createLedger(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	if ledger != nil {
		defer ledger.Close()
	}

	authMiddleware, err := createAuth(cfg.Auth)
	if err != nil {
		return err
	}

	eng, err := engine.New(backends, registry, engine.Config{
		MaxRounds:          cfg.Engine.MaxRounds,
		DefaultTemperature: cfg.Engine.DefaultTemperature,
		DefaultMaxTokens:   cfg.Engine.DefaultMaxTokens,
	})
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	opts := []transporthttp.ServerOption{
		transporthttp.WithAddr(":" + strconv.Itoa(cfg.Server.Port)),
		transporthttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithMaxBodySize(cfg.Server.MaxBodySize),
		transporthttp.WithRegistry(registry),
		transporthttp.WithAllowedOrigins(cfg.Server.AllowedOrigins...),
	}
	if ledger != nil {
		opts = append(opts, transporthttp.WithLedger(ledger))
	}
	if authMiddleware != nil {
		opts = append(opts, transporthttp.WithAuth(authMiddleware))
	}
	if !cfg.Observability.Metrics.Enabled {
		opts = append(opts, transporthttp.WithoutMetrics())
	}

	slog.Info("server starting",
		"port", cfg.Server.Port,
		"backends", backends.Names(),
		"storage", cfg.Storage.Type,
		"auth", cfg.Auth.Type,
	)
	return transporthttp.NewServer(eng, opts...).ListenAndServe()
}

// createBackends builds the enabled LLM backends.
func createBackends(cfg *config.Config) (*backend.Set, error) {
	timeout := cfg.Engine.BackendTimeout
	var list []backend.Backend
	for _, id := range cfg.Backends.Enabled {
		var b backend.Backend
		switch id {
		case backend.OpenAI:
			c := cfg.Backends.OpenAI
			b = openai.New(openai.Config{BaseURL: c.BaseURL, APIKey: c.APIKey, Model: c.Model, Timeout: timeout})
		case backend.AzureAI:
			c := cfg.Backends.Azure
			b = openai.New(openai.Config{Azure: true, APIKey: c.APIKey, Model: c.Model, Timeout: timeout})
		case backend.Gemini:
			c := cfg.Backends.Gemini
			b = gemini.New(gemini.Config{BaseURL: c.BaseURL, APIKey: c.APIKey, Model: c.Model, Timeout: timeout})
		case backend.Claude:
			c := cfg.Backends.Claude
			b = anthropic.New(anthropic.Config{BaseURL: c.BaseURL, APIKey: c.APIKey, Model: c.Model, Timeout: timeout})
		default:
			return nil, fmt.Errorf("unknown backend %q", id)
		}
		list = append(list, backend.Instrument(b))
	}
	return backend.NewSet(list...), nil
}

// createLedger opens the configured usage ledger. A nil ledger disables
// usage recording.
func createLedger(ctx context.Context, cfg config.StorageConfig) (storage.Ledger, error) {
	switch cfg.Type {
	case "none":
		slog.Info("usage ledger disabled")
		return nil, nil
	case "sqlite":
		s, err := sqlite.New(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite ledger: %w", err)
		}
		slog.Info("usage ledger enabled", "type", "sqlite", "path", cfg.SQLite.Path)
		return s, nil
	case "postgres":
		s, err := postgres.New(ctx, postgres.Config{
			DSN:            cfg.Postgres.DSN,
			MaxConns:       cfg.Postgres.MaxConns,
			MigrateOnStart: cfg.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, fmt.Errorf("opening postgres ledger: %w", err)
		}
		slog.Info("usage ledger enabled", "type", "postgres", "max_conns", cfg.Postgres.MaxConns)
		return s, nil
	default:
		slog.Info("usage ledger enabled", "type", "memory", "max_size", cfg.MaxSize)
		return memory.New(cfg.MaxSize), nil
	}
}

// createAuth builds the authentication middleware. It returns nil when
// authentication is disabled.
func createAuth(cfg config.AuthConfig) (func(http.Handler) http.Handler, error) {
	var authenticator auth.Authenticator
	switch cfg.Type {
	case "apikey":
		entries := make([]apikey.Entry, len(cfg.APIKeys))
		for i, k := range cfg.APIKeys {
			entries[i] = apikey.Entry{Key: k.Key, Subject: k.Subject, ServiceTier: k.ServiceTier, Scopes: k.Scopes}
		}
		authenticator = apikey.New(entries)
	case "jwt":
		a, err := jwt.New(jwt.Config{
			Issuer:        cfg.JWT.Issuer,
			Audience:      cfg.JWT.Audience,
			JWKSURL:       cfg.JWT.JWKSURL,
			Secret:        cfg.JWT.Secret,
			SubjectClaim:  cfg.JWT.SubjectClaim,
			TierClaim:     cfg.JWT.TierClaim,
			ScopesClaim:   cfg.JWT.ScopesClaim,
			RequiredScope: cfg.JWT.RequiredScope,
			CacheTTL:      cfg.JWT.CacheTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("creating jwt authenticator: %w", err)
		}
		authenticator = a
	default:
		if !cfg.RateLimit.Enabled {
			return nil, nil
		}
		// Rate limiting without authentication applies to the anonymous subject.
		authenticator = noop.Authenticator{}
	}

	chain := &auth.Chain{
		Authenticators:  []auth.Authenticator{authenticator},
		DefaultDecision: auth.No,
	}
	var limiter auth.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = auth.NewInProcessLimiter(cfg.RateLimit.Tiers, cfg.RateLimit.RequestsPerMinute)
	}
	slog.Info("authentication enabled", "type", cfg.Type, "rate_limit", cfg.RateLimit.Enabled)
	return auth.Middleware(chain, limiter, auth.DefaultBypassEndpoints), nil
}
