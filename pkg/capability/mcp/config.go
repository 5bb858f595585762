package mcp

import (
	"errors"
	"fmt"
)

// Transport kinds.
const (
	TransportStdio      = "stdio"
	TransportSSE        = "sse"
	TransportStreamable = "streamable-http"
)

// ServerConfig describes a single MCP server connection.
type ServerConfig struct {
	// Name is the provider id, e.g. "CODE-RESEARCH" or "JIRA".
	Name string `yaml:"name" json:"name"`

	// Transport is "stdio", "sse" or "streamable-http". Defaults to
	// "stdio" when Command is set, "streamable-http" otherwise.
	Transport string `yaml:"transport" json:"transport"`

	// Command, Args and Env launch a stdio server as a child process.
	Command string            `yaml:"command" json:"command,omitempty"`
	Args    []string          `yaml:"args" json:"args,omitempty"`
	Env     map[string]string `yaml:"env" json:"env,omitempty"`

	// URL is the endpoint of an sse or streamable-http server.
	URL string `yaml:"url" json:"url,omitempty"`

	// Headers are added to every HTTP request.
	Headers map[string]string `yaml:"headers" json:"headers,omitempty"`

	Auth AuthConfig `yaml:"auth" json:"auth,omitempty"`
}

// AuthConfig selects how the gateway authenticates to an HTTP server.
type AuthConfig struct {
	// Type is "" (none) or "oauth_client_credentials".
	Type         string   `yaml:"type" json:"type,omitempty"`
	TokenURL     string   `yaml:"token_url" json:"token_url,omitempty"`
	ClientID     string   `yaml:"client_id" json:"client_id,omitempty"`
	ClientSecret string   `yaml:"client_secret" json:"client_secret,omitempty"`
	Scopes       []string `yaml:"scopes" json:"scopes,omitempty"`
}

// TransportKind returns the effective transport.
func (c ServerConfig) TransportKind() string {
	if c.Transport != "" {
		return c.Transport
	}
	if c.Command != "" {
		return TransportStdio
	}
	return TransportStreamable
}

// Validate checks that the fields the transport needs are present.
func (c ServerConfig) Validate() error {
	var errs []error
	if c.Name == "" {
		errs = append(errs, errors.New("mcp server: name is required"))
	}
	switch c.TransportKind() {
	case TransportStdio:
		if c.Command == "" {
			errs = append(errs, fmt.Errorf("mcp server %q: command is required for stdio", c.Name))
		}
	case TransportSSE, TransportStreamable:
		if c.URL == "" {
			errs = append(errs, fmt.Errorf("mcp server %q: url is required for %s", c.Name, c.TransportKind()))
		}
	default:
		errs = append(errs, fmt.Errorf("mcp server %q: unsupported transport %q", c.Name, c.Transport))
	}
	switch c.Auth.Type {
	case "":
	case "oauth_client_credentials":
		if c.Auth.TokenURL == "" || c.Auth.ClientID == "" {
			errs = append(errs, fmt.Errorf("mcp server %q: oauth_client_credentials requires token_url and client_id", c.Name))
		}
	default:
		errs = append(errs, fmt.Errorf("mcp server %q: unsupported auth type %q", c.Name, c.Auth.Type))
	}
	return errors.Join(errs...)
}
