package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rhuss/mcpgate/pkg/debug"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, MCPGATE_CONFIG env, ./config.yaml, /etc/mcpgate/config.yaml)
//  3. MCPGATE_* environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
		debug.Log("config", "config file loaded", "path", filePath)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. MCPGATE_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/mcpgate/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("MCPGATE_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/mcpgate/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps MCPGATE_* environment variables to config fields.
// Malformed numbers and JSON are errors rather than silently ignored.
func applyEnvOverrides(cfg *Config) error {
	var err error
	setInt := func(name string, dst *int) {
		v := os.Getenv(name)
		if v == "" || err != nil {
			return
		}
		n, convErr := strconv.Atoi(v)
		if convErr != nil {
			err = fmt.Errorf("%s: %w", name, convErr)
			return
		}
		*dst = n
	}
	setString := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	setInt("MCPGATE_PORT", &cfg.Server.Port)
	setInt("MCPGATE_MAX_ROUNDS", &cfg.Engine.MaxRounds)
	setInt("MCPGATE_STORAGE_SIZE", &cfg.Storage.MaxSize)
	setString("MCPGATE_STORAGE", &cfg.Storage.Type)
	setString("MCPGATE_SQLITE_PATH", &cfg.Storage.SQLite.Path)
	setString("MCPGATE_POSTGRES_DSN", &cfg.Storage.Postgres.DSN)
	setString("MCPGATE_AUTH_TYPE", &cfg.Auth.Type)
	setString("MCPGATE_JWT_SECRET", &cfg.Auth.JWT.Secret)
	setString("MCPGATE_JWKS_URL", &cfg.Auth.JWT.JWKSURL)
	setString("MCPGATE_OPENAI_BASE_URL", &cfg.Backends.OpenAI.BaseURL)
	setString("MCPGATE_OPENAI_API_KEY", &cfg.Backends.OpenAI.APIKey)
	setString("MCPGATE_GEMINI_API_KEY", &cfg.Backends.Gemini.APIKey)
	setString("MCPGATE_CLAUDE_API_KEY", &cfg.Backends.Claude.APIKey)
	if err != nil {
		return err
	}

	// MCPGATE_BACKENDS: comma-separated backend ids.
	if v := os.Getenv("MCPGATE_BACKENDS"); v != "" {
		var ids []string
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		cfg.Backends.Enabled = ids
	}

	// MCPGATE_API_KEYS: JSON array of API key configs.
	if v := os.Getenv("MCPGATE_API_KEYS"); v != "" {
		var keys []APIKeyConfig
		if err := json.Unmarshal([]byte(v), &keys); err != nil {
			return fmt.Errorf("parsing MCPGATE_API_KEYS: %w", err)
		}
		cfg.Auth.APIKeys = keys
	}

	// MCPGATE_MCP_SERVERS: JSON array of MCP server configs.
	if v := os.Getenv("MCPGATE_MCP_SERVERS"); v != "" {
		var servers []MCPServerConfig
		if err := json.Unmarshal([]byte(v), &servers); err != nil {
			return fmt.Errorf("parsing MCPGATE_MCP_SERVERS: %w", err)
		}
		cfg.MCP.Servers = servers
	}

	return nil
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
// For each field ending in _file, if the value field is empty and the file field is set,
// the file is read, whitespace is trimmed, and the value field is populated.
func resolveFileReferences(cfg *Config) error {
	backends := []struct {
		path string
		cfg  *BackendConfig
	}{
		{"backends.openai", &cfg.Backends.OpenAI},
		{"backends.azure", &cfg.Backends.Azure},
		{"backends.gemini", &cfg.Backends.Gemini},
		{"backends.claude", &cfg.Backends.Claude},
	}
	for _, b := range backends {
		if err := resolve(b.path+".api_key_file", b.cfg.APIKeyFile, &b.cfg.APIKey); err != nil {
			return err
		}
	}

	if err := resolve("storage.postgres.dsn_file", cfg.Storage.Postgres.DSNFile, &cfg.Storage.Postgres.DSN); err != nil {
		return err
	}
	if err := resolve("auth.jwt.secret_file", cfg.Auth.JWT.SecretFile, &cfg.Auth.JWT.Secret); err != nil {
		return err
	}

	for i := range cfg.Auth.APIKeys {
		k := &cfg.Auth.APIKeys[i]
		if err := resolve(fmt.Sprintf("auth.api_keys[%d].key_file", i), k.KeyFile, &k.Key); err != nil {
			return err
		}
	}

	for i := range cfg.MCP.Servers {
		s := &cfg.MCP.Servers[i]
		if err := resolve(fmt.Sprintf("mcp.servers[%d].client_secret_file", i), s.ClientSecretFile, &s.Auth.ClientSecret); err != nil {
			return err
		}
	}

	return nil
}

// resolve fills *dst from file when file is set and *dst is empty.
func resolve(field, file string, dst *string) error {
	if file == "" || *dst != "" {
		return nil
	}
	val, err := readSecretFile(file)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	*dst = val
	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
