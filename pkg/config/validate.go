package config

import (
	"errors"
	"fmt"

	"github.com/rhuss/mcpgate/pkg/backend"
)

var knownBackends = map[string]bool{
	backend.OpenAI:  true,
	backend.AzureAI: true,
	backend.Gemini:  true,
	backend.Claude:  true,
}

// Validate checks the configuration for required fields and valid values.
// All problems are reported together, each with its field path.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}
	if c.Server.MaxBodySize < 0 {
		errs = append(errs, fmt.Errorf("server.max_body_size must be >= 0, got %d", c.Server.MaxBodySize))
	}

	if c.Engine.MaxRounds < 0 {
		errs = append(errs, fmt.Errorf("engine.max_rounds must be >= 0, got %d", c.Engine.MaxRounds))
	}
	if c.Engine.DefaultTemperature < 0 || c.Engine.DefaultTemperature > 2 {
		errs = append(errs, fmt.Errorf("engine.default_temperature must be between 0 and 2, got %v", c.Engine.DefaultTemperature))
	}

	if len(c.Backends.Enabled) == 0 {
		errs = append(errs, errors.New("backends.enabled must name at least one backend"))
	}
	for _, id := range c.Backends.Enabled {
		if !knownBackends[id] {
			errs = append(errs, fmt.Errorf("backends.enabled: unknown backend %q", id))
		}
	}

	switch c.Storage.Type {
	case "none", "memory":
	case "sqlite":
		if c.Storage.SQLite.Path == "" {
			errs = append(errs, errors.New("storage.sqlite.path is required when storage.type is \"sqlite\""))
		}
	case "postgres":
		if c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
			errs = append(errs, errors.New("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\""))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"none\", \"memory\", \"sqlite\" or \"postgres\", got %q", c.Storage.Type))
	}

	switch c.Auth.Type {
	case "none":
	case "apikey":
		if len(c.Auth.APIKeys) == 0 {
			errs = append(errs, errors.New("auth.api_keys must not be empty when auth.type is \"apikey\""))
		}
		for i, k := range c.Auth.APIKeys {
			if k.Key == "" && k.KeyFile == "" {
				errs = append(errs, fmt.Errorf("auth.api_keys[%d]: key or key_file is required", i))
			}
			if k.Subject == "" {
				errs = append(errs, fmt.Errorf("auth.api_keys[%d]: subject is required", i))
			}
		}
	case "jwt":
		if c.Auth.JWT.JWKSURL == "" && c.Auth.JWT.Secret == "" && c.Auth.JWT.SecretFile == "" {
			errs = append(errs, errors.New("auth.jwt.jwks_url or auth.jwt.secret is required when auth.type is \"jwt\""))
		}
	default:
		errs = append(errs, fmt.Errorf("auth.type must be \"none\", \"apikey\", or \"jwt\", got %q", c.Auth.Type))
	}
	if c.Auth.RateLimit.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("auth.rate_limit.requests_per_minute must be >= 0, got %d", c.Auth.RateLimit.RequestsPerMinute))
	}

	seen := make(map[string]bool, len(c.MCP.Servers))
	for i, s := range c.MCP.Servers {
		if err := s.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("mcp.servers[%d]: %w", i, err))
		}
		if s.Name != "" && seen[s.Name] {
			errs = append(errs, fmt.Errorf("mcp.servers[%d]: duplicate name %q", i, s.Name))
		}
		seen[s.Name] = true
	}

	return errors.Join(errs...)
}
