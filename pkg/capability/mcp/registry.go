package mcp

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/rhuss/mcpgate/pkg/capability"
	"github.com/rhuss/mcpgate/pkg/debug"
	"github.com/rhuss/mcpgate/pkg/observability"
)

// Registry is a capability.Registry backed by live MCP sessions.
type Registry struct {
	mu      sync.RWMutex
	servers map[string]*server
}

var _ capability.Registry = (*Registry)(nil)

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{servers: make(map[string]*server)}
}

// Connect dials every configured server concurrently. Servers that fail
// validation or the handshake are logged and skipped.
func Connect(ctx context.Context, configs []ServerConfig) *Registry {
	r := NewRegistry()

	var g errgroup.Group
	g.SetLimit(8)
	for _, cfg := range configs {
		g.Go(func() error {
			if err := cfg.Validate(); err != nil {
				slog.Error("skipping MCP server", "server", cfg.Name, "error", err.Error())
				return nil
			}
			if err := r.Add(ctx, cfg, nil); err != nil {
				slog.Error("failed to connect MCP server", "server", cfg.Name, "error", err.Error())
				return nil
			}
			slog.Info("connected MCP server", "server", cfg.Name, "transport", cfg.TransportKind())
			return nil
		})
	}
	_ = g.Wait()
	return r
}

// Add connects one server and registers it under cfg.Name. A non-nil
// transport replaces the one described by cfg. An existing connection
// with the same name is closed and replaced.
func (r *Registry) Add(ctx context.Context, cfg ServerConfig, transport mcp.Transport) error {
	s, err := dial(ctx, cfg, transport)
	if err != nil {
		return err
	}

	r.mu.Lock()
	old := r.servers[cfg.Name]
	r.servers[cfg.Name] = s
	r.mu.Unlock()

	if old != nil {
		_ = old.close()
	}
	return nil
}

func (r *Registry) get(provider string) *server {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.servers[provider]
}

// Has reports whether provider is connected.
func (r *Registry) Has(provider string) bool {
	return r.get(provider) != nil
}

// Providers returns the connected provider ids in sorted order.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.servers))
	for name := range r.servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListCapabilities asks the provider for its current tool list.
func (r *Registry) ListCapabilities(ctx context.Context, provider string) ([]capability.Tool, error) {
	s := r.get(provider)
	if s == nil {
		return nil, capability.ErrUnknownProvider
	}
	tools, err := s.tools(ctx)
	if err != nil {
		return nil, err
	}
	debug.Log("mcp", "listed tools", "server", provider, "count", len(tools))
	return tools, nil
}

// Invoke calls tool on provider.
func (r *Registry) Invoke(ctx context.Context, provider, tool string, args map[string]any) (any, error) {
	s := r.get(provider)
	if s == nil {
		return nil, capability.ErrUnknownProvider
	}
	debug.Trace("mcp", "tool call", "server", provider, "tool", tool, "arguments", debug.Redact(args))

	result, err := s.call(ctx, tool, args)
	status := "success"
	if err != nil {
		status = "error"
	}
	observability.ToolInvocationsTotal.WithLabelValues(provider, tool, status).Inc()
	return result, err
}

// Close closes every session.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var lastErr error
	for name, s := range r.servers {
		if err := s.close(); err != nil {
			slog.Warn("failed to close MCP session", "server", name, "error", err)
			lastErr = err
		}
	}
	r.servers = make(map[string]*server)
	return lastErr
}
