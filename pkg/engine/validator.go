package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rhuss/mcpgate/pkg/api"
)

// Payload is a validated request ready for the loop. Details is a private
// copy whose Tools hold the declarations of every selected provider.
type Payload struct {
	Backend     string
	Servers     []string
	Credentials map[string]map[string]any
	Details     *api.ClientDetails

	// owners maps a tool name to the first selected provider declaring it.
	owners map[string]string
}

// Provider returns the provider that serves tool, falling back to the
// first selected provider for names no provider declared.
func (p *Payload) Provider(tool string) string {
	if owner, ok := p.owners[tool]; ok {
		return owner
	}
	if len(p.Servers) > 0 {
		return p.Servers[0]
	}
	return ""
}

// defaultSchema is the parameter schema of a tool that declares none.
func defaultSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
		"required":   []any{},
	}
}

// Validate checks the request and gathers tool declarations. Rejections
// are *api.RejectionError and contact no provider; any other error comes
// from listing a provider's tools.
func (e *Engine) Validate(ctx context.Context, req *api.ProcessRequest) (*Payload, error) {
	if req == nil || req.SelectedClient == "" || len(req.SelectedServers) == 0 ||
		len(req.SelectedServerCredentials) == 0 || req.ClientDetails == nil {
		return nil, api.NewRejection(api.ReasonInvalidPayload)
	}
	for _, server := range req.SelectedServers {
		if !e.registry.Has(server) {
			return nil, api.NewRejection(api.ReasonInvalidServer)
		}
	}
	if !e.backends.Has(req.SelectedClient) {
		return nil, api.NewRejection(api.ReasonInvalidClient)
	}

	p := &Payload{
		Backend:     req.SelectedClient,
		Servers:     append([]string(nil), req.SelectedServers...),
		Credentials: req.SelectedServerCredentials,
		Details:     req.ClientDetails.Clone(),
		owners:      make(map[string]string),
	}

	var decls []api.ToolDeclaration
	warned := make(map[string]bool)
	for _, server := range p.Servers {
		tools, err := e.registry.ListCapabilities(ctx, server)
		if err != nil {
			return nil, fmt.Errorf("listing tools of %s: %w", server, err)
		}
		for _, t := range tools {
			desc := t.Description
			if desc == "" {
				desc = "Tool for " + t.Name
			}
			schema := t.InputSchema
			if schema == nil {
				schema = defaultSchema()
			}
			decls = append(decls, api.ToolDeclaration{
				Type:     "function",
				Function: api.FunctionSchema{Name: t.Name, Description: desc, Parameters: schema},
			})

			if owner, ok := p.owners[t.Name]; ok {
				if owner != server && !warned[t.Name] {
					warned[t.Name] = true
					slog.Warn("duplicate tool name, using first provider",
						"tool", t.Name, "provider", owner, "ignored", server)
				}
				continue
			}
			p.owners[t.Name] = server
		}
	}
	p.Details.Tools = decls
	return p, nil
}
