package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/mcpgate/pkg/capability"
)

// startServer runs an in-memory MCP server with the given tools and
// registers it in r under name.
func startServer(t *testing.T, r *Registry, name string, tools map[string]mcp.ToolHandler) {
	t.Helper()

	srv := mcp.NewServer(&mcp.Implementation{Name: name, Version: "1.0.0"}, nil)
	for toolName, handler := range tools {
		srv.AddTool(&mcp.Tool{
			Name:        toolName,
			Description: "Test tool: " + toolName,
			InputSchema: map[string]any{"type": "object"},
		}, handler)
	}

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverTransport) }()

	if err := r.Add(ctx, ServerConfig{Name: name}, clientTransport); err != nil {
		t.Fatalf("Add(%s): %v", name, err)
	}
}

func textResult(s string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: s}}}
}

func TestRegistryListAndInvoke(t *testing.T) {
	r := NewRegistry()
	t.Cleanup(func() { r.Close() })

	var gotArgs map[string]any
	startServer(t, r, "CODE-RESEARCH", map[string]mcp.ToolHandler{
		"search_github": func(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			_ = jsonUnmarshal(req.Params.Arguments, &gotArgs)
			return textResult("3 repositories"), nil
		},
	})

	if !r.Has("CODE-RESEARCH") || r.Has("JIRA") {
		t.Fatal("Has reports wrong providers")
	}
	if p := r.Providers(); len(p) != 1 || p[0] != "CODE-RESEARCH" {
		t.Errorf("Providers() = %v", p)
	}

	tools, err := r.ListCapabilities(context.Background(), "CODE-RESEARCH")
	if err != nil {
		t.Fatalf("ListCapabilities: %v", err)
	}
	if len(tools) != 1 || tools[0].Name != "search_github" || tools[0].InputSchema["type"] != "object" {
		t.Errorf("tools = %+v", tools)
	}

	result, err := r.Invoke(context.Background(), "CODE-RESEARCH", "search_github", map[string]any{"query": "router"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if gotArgs["query"] != "router" {
		t.Errorf("server received %v", gotArgs)
	}
	m, ok := result.(map[string]any)
	if !ok {
		t.Fatalf("result = %T, want map", result)
	}
	content, _ := m["content"].([]any)
	if len(content) != 1 || content[0].(map[string]any)["text"] != "3 repositories" {
		t.Errorf("result = %v", m)
	}
}

func TestRegistryInvokeToolError(t *testing.T) {
	r := NewRegistry()
	t.Cleanup(func() { r.Close() })

	startServer(t, r, "FLAKY", map[string]mcp.ToolHandler{
		"flaky_lookup": func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			res := textResult("upstream timeout")
			res.IsError = true
			return res, nil
		},
	})

	_, err := r.Invoke(context.Background(), "FLAKY", "flaky_lookup", nil)
	var te *capability.ToolError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want ToolError", err)
	}
	if te.Error() != "upstream timeout" || te.Provider != "FLAKY" {
		t.Errorf("ToolError = %+v", te)
	}
}

func TestRegistryUnknownProvider(t *testing.T) {
	r := NewRegistry()
	if _, err := r.ListCapabilities(context.Background(), "NOPE"); !errors.Is(err, capability.ErrUnknownProvider) {
		t.Errorf("ListCapabilities err = %v", err)
	}
	if _, err := r.Invoke(context.Background(), "NOPE", "x", nil); !errors.Is(err, capability.ErrUnknownProvider) {
		t.Errorf("Invoke err = %v", err)
	}
}

func TestConnectSkipsFailingServers(t *testing.T) {
	r := Connect(context.Background(), []ServerConfig{
		{Name: "BROKEN", Transport: TransportStdio},                   // no command
		{Name: "MISSING", Command: "/nonexistent/mcp-server-binary"}, // cannot start
		{Name: "", URL: "http://localhost"},                          // no name
	})
	defer r.Close()

	if got := r.Providers(); len(got) != 0 {
		t.Errorf("Providers() = %v, want none", got)
	}
}

func TestServerConfigTransportKind(t *testing.T) {
	tests := []struct {
		cfg  ServerConfig
		want string
	}{
		{ServerConfig{Command: "node"}, TransportStdio},
		{ServerConfig{URL: "http://x"}, TransportStreamable},
		{ServerConfig{Transport: TransportSSE, URL: "http://x"}, TransportSSE},
	}
	for _, tt := range tests {
		if got := tt.cfg.TransportKind(); got != tt.want {
			t.Errorf("TransportKind(%+v) = %q, want %q", tt.cfg, got, tt.want)
		}
	}
}
