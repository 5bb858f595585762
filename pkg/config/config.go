// Package config provides unified configuration for the mcpgate server.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (MCPGATE_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import (
	"time"

	"github.com/rhuss/mcpgate/pkg/auth"
	"github.com/rhuss/mcpgate/pkg/backend"
	"github.com/rhuss/mcpgate/pkg/capability/mcp"
)

// Config holds all configuration for the mcpgate server.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Engine        EngineConfig        `yaml:"engine"`
	Backends      BackendsConfig      `yaml:"backends"`
	Storage       StorageConfig       `yaml:"storage"`
	Auth          AuthConfig          `yaml:"auth"`
	MCP           MCPConfig           `yaml:"mcp"`
	Observability ObservabilityConfig `yaml:"observability"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 8080
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 30s
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // default: 0 (streams)
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 30s
	MaxBodySize     int64         `yaml:"max_body_size"`    // default: 10 MB
	AllowedOrigins  []string      `yaml:"allowed_origins"`  // WebSocket origins; empty allows all
}

// EngineConfig holds orchestration settings.
type EngineConfig struct {
	MaxRounds          int           `yaml:"max_rounds"`          // default: 10
	BackendTimeout     time.Duration `yaml:"backend_timeout"`     // default: 60s
	DefaultTemperature float64       `yaml:"default_temperature"` // default: 0.1
	DefaultMaxTokens   int           `yaml:"default_max_tokens"`  // default: 1000
}

// BackendsConfig selects the LLM backends a request may name.
type BackendsConfig struct {
	// Enabled lists backend ids, e.g. MCP_CLIENT_OPENAI.
	Enabled []string      `yaml:"enabled"`
	OpenAI  BackendConfig `yaml:"openai"`
	Azure   BackendConfig `yaml:"azure"`
	Gemini  BackendConfig `yaml:"gemini"`
	Claude  BackendConfig `yaml:"claude"`
}

// BackendConfig holds per-backend defaults. Request-level client_details
// values take precedence.
type BackendConfig struct {
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	APIKeyFile string `yaml:"api_key_file"` // _file variant for api_key
	Model      string `yaml:"model"`
}

// IsEnabled reports whether id is in Enabled.
func (b BackendsConfig) IsEnabled(id string) bool {
	for _, e := range b.Enabled {
		if e == id {
			return true
		}
	}
	return false
}

// StorageConfig selects the usage ledger.
type StorageConfig struct {
	Type     string         `yaml:"type"`     // "none", "memory", "sqlite" or "postgres", default: "memory"
	MaxSize  int            `yaml:"max_size"` // for memory, default: 10000
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path string `yaml:"path"` // default: "data/mcpgate.db"
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 25
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: true
}

// AuthConfig holds gateway authentication settings.
type AuthConfig struct {
	Type      string          `yaml:"type"`     // "none", "apikey" or "jwt", default: "none"
	APIKeys   []APIKeyConfig  `yaml:"api_keys"` // entries for type=apikey
	JWT       JWTConfig       `yaml:"jwt"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// APIKeyConfig describes a single API key entry.
type APIKeyConfig struct {
	Key         string   `yaml:"key" json:"key"`
	KeyFile     string   `yaml:"key_file" json:"key_file"` // _file variant for key
	Subject     string   `yaml:"subject" json:"subject"`
	ServiceTier string   `yaml:"tier" json:"tier"`
	Scopes      []string `yaml:"scopes" json:"scopes"`
}

// JWTConfig holds bearer token validation settings.
type JWTConfig struct {
	Issuer        string        `yaml:"issuer"`
	Audience      string        `yaml:"audience"`
	JWKSURL       string        `yaml:"jwks_url"`
	Secret        string        `yaml:"secret"`
	SecretFile    string        `yaml:"secret_file"` // _file variant for secret
	SubjectClaim  string        `yaml:"subject_claim"`
	TierClaim     string        `yaml:"tier_claim"`
	ScopesClaim   string        `yaml:"scopes_claim"`
	RequiredScope string        `yaml:"required_scope"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`
}

// RateLimitConfig holds per-tier request limits.
type RateLimitConfig struct {
	Enabled           bool                       `yaml:"enabled"`
	RequestsPerMinute int                        `yaml:"requests_per_minute"` // for tiers not listed
	Tiers             map[string]auth.TierConfig `yaml:"tiers"`
}

// MCPConfig holds the capability providers connected at startup.
type MCPConfig struct {
	Servers        []MCPServerConfig `yaml:"servers"`
	ConnectTimeout time.Duration     `yaml:"connect_timeout"` // default: 30s
}

// MCPServerConfig is an mcp.ServerConfig plus its secret file references.
type MCPServerConfig struct {
	mcp.ServerConfig `yaml:",inline"`

	ClientSecretFile string `yaml:"client_secret_file" json:"client_secret_file,omitempty"`
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"` // default: true
}

// LoggingConfig selects debug categories and the log level.
// MCPGATE_DEBUG and MCPGATE_LOG_LEVEL take precedence.
type LoggingConfig struct {
	Debug string `yaml:"debug"` // comma-separated categories
	Level string `yaml:"level"` // TRACE, DEBUG, INFO, WARN, ERROR; default: INFO
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodySize:     10 << 20,
		},
		Engine: EngineConfig{
			MaxRounds:          10,
			BackendTimeout:     60 * time.Second,
			DefaultTemperature: 0.1,
			DefaultMaxTokens:   1000,
		},
		Backends: BackendsConfig{
			Enabled: []string{backend.OpenAI, backend.AzureAI, backend.Gemini},
		},
		Storage: StorageConfig{
			Type:    "memory",
			MaxSize: 10000,
			SQLite: SQLiteConfig{
				Path: "data/mcpgate.db",
			},
			Postgres: PostgresConfig{
				MaxConns:       25,
				MigrateOnStart: true,
			},
		},
		Auth: AuthConfig{
			Type: "none",
		},
		MCP: MCPConfig{
			ConnectTimeout: 30 * time.Second,
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
			},
		},
		Logging: LoggingConfig{
			Level: "INFO",
		},
	}
}

// MCPServers returns the plain server configs for mcp.Connect.
func (c *Config) MCPServers() []mcp.ServerConfig {
	out := make([]mcp.ServerConfig, len(c.MCP.Servers))
	for i, s := range c.MCP.Servers {
		out[i] = s.ServerConfig
	}
	return out
}
