// Package capability defines the registry of external capability
// providers (tool servers) that the engine can list and invoke.
package capability

import "context"

// Tool describes one operation a provider offers. Description and
// InputSchema may be empty; callers apply their own defaults.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// Registry maps provider ids to live handles. Implementations must be
// safe for concurrent use.
type Registry interface {
	// Has reports whether provider is connected.
	Has(provider string) bool

	// ListCapabilities returns the tools the provider currently offers.
	ListCapabilities(ctx context.Context, provider string) ([]Tool, error)

	// Invoke calls one tool. A failure reported by the provider itself
	// is returned as a *ToolError.
	Invoke(ctx context.Context, provider, tool string, args map[string]any) (any, error)

	// Providers returns the connected provider ids, sorted.
	Providers() []string
}
