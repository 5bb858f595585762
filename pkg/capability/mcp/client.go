package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/mcpgate/pkg/capability"
)

// clientName and clientVersion identify the gateway during the handshake.
const (
	clientName    = "mcpgate"
	clientVersion = "1.0.0"
)

// server is one connected MCP provider.
type server struct {
	name    string
	session *mcp.ClientSession
}

// dial connects to the server described by cfg, or over transport when
// one is given.
func dial(ctx context.Context, cfg ServerConfig, transport mcp.Transport) (*server, error) {
	if transport == nil {
		t, err := newTransport(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("creating transport for %q: %w", cfg.Name, err)
		}
		transport = t
	}

	client := mcp.NewClient(
		&mcp.Implementation{Name: clientName, Version: clientVersion},
		&mcp.ClientOptions{Capabilities: &mcp.ClientCapabilities{}},
	)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to MCP server %q: %w", cfg.Name, err)
	}
	return &server{name: cfg.Name, session: session}, nil
}

func newTransport(ctx context.Context, cfg ServerConfig) (mcp.Transport, error) {
	switch cfg.TransportKind() {
	case TransportStdio:
		cmd := exec.Command(cfg.Command, cfg.Args...)
		if len(cfg.Env) > 0 {
			cmd.Env = os.Environ()
			for k, v := range cfg.Env {
				cmd.Env = append(cmd.Env, k+"="+v)
			}
		}
		return &mcp.CommandTransport{Command: cmd}, nil

	case TransportSSE:
		t := &mcp.SSEClientTransport{Endpoint: cfg.URL}
		if c := httpClient(ctx, cfg); c != nil {
			t.HTTPClient = c
		}
		return t, nil

	case TransportStreamable:
		t := &mcp.StreamableClientTransport{Endpoint: cfg.URL}
		if c := httpClient(ctx, cfg); c != nil {
			t.HTTPClient = c
		}
		return t, nil

	default:
		return nil, fmt.Errorf("unsupported transport type %q", cfg.Transport)
	}
}

// tools lists every tool, following pagination.
func (s *server) tools(ctx context.Context) ([]capability.Tool, error) {
	var out []capability.Tool
	for tool, err := range s.session.Tools(ctx, nil) {
		if err != nil {
			return nil, fmt.Errorf("listing tools from %q: %w", s.name, err)
		}
		schema, err := schemaMap(tool.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("converting schema of tool %q from %q: %w", tool.Name, s.name, err)
		}
		out = append(out, capability.Tool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schema,
		})
	}
	return out, nil
}

// call invokes one tool. Transport failures and results flagged isError
// are returned as *capability.ToolError.
func (s *server) call(ctx context.Context, tool string, args map[string]any) (any, error) {
	result, err := s.session.CallTool(ctx, &mcp.CallToolParams{Name: tool, Arguments: args})
	if err != nil {
		return nil, &capability.ToolError{Provider: s.name, Tool: tool, Err: err}
	}
	if result.IsError {
		msg := textOf(result)
		if msg == "" {
			msg = "tool reported an error"
		}
		return nil, &capability.ToolError{Provider: s.name, Tool: tool, Err: errors.New(msg)}
	}
	return toGeneric(result)
}

func (s *server) close() error {
	return s.session.Close()
}

// schemaMap converts the SDK's schema value to a plain JSON object.
func schemaMap(schema any) (map[string]any, error) {
	if schema == nil {
		return nil, nil
	}
	if m, ok := schema.(map[string]any); ok {
		return m, nil
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// toGeneric turns a tool result into plain JSON data with the wire
// shape {"content":[...]} so it can be recorded and replayed as-is.
func toGeneric(result *mcp.CallToolResult) (any, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encoding tool result: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decoding tool result: %w", err)
	}
	return out, nil
}

func textOf(result *mcp.CallToolResult) string {
	var parts []string
	for _, c := range result.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}
