// Command mcp-test-server runs a small MCP server for exercising the
// gateway's capability providers. It provides "search_github", "echo"
// and "flaky_lookup" tools over stdio or streamable HTTP.
//
// Usage:
//
//	mcp-test-server -transport stdio
//	mcp-test-server -transport http -port 8081
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type searchInput struct {
	Query string `json:"query" jsonschema:"free-text repository search"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results"`
}

type echoInput struct {
	Message string `json:"message" jsonschema:"the message to echo back"`
}

type lookupInput struct {
	Key string `json:"key" jsonschema:"the key to look up"`
}

// repositories is the fixed corpus search_github answers from.
var repositories = []string{
	"gorilla/mux - A powerful HTTP router and URL matcher",
	"go-chi/chi - Lightweight, idiomatic router for Go HTTP services",
	"julienschmidt/httprouter - A high performance HTTP request router",
	"modelcontextprotocol/go-sdk - The official Go SDK for MCP",
}

func main() {
	transport := flag.String("transport", "stdio", `"stdio" or "http"`)
	port := flag.String("port", envOrDefault("PORT", "8081"), "listen port for -transport http")
	flag.Parse()

	// stdout belongs to the protocol in stdio mode.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	server := newServer()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch *transport {
	case "stdio":
		err = server.Run(ctx, &mcp.StdioTransport{})
	case "http":
		err = serveHTTP(ctx, server, ":"+*port)
	default:
		err = fmt.Errorf("unknown transport %q", *transport)
	}
	if err != nil && ctx.Err() == nil {
		slog.Error("mcp test server failed", "error", err)
		os.Exit(1)
	}
}

func newServer() *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "mcpgate-test-mcp", Version: "v1.0.0"}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_github",
		Description: "Search GitHub repositories by keyword",
	}, func(_ context.Context, _ *mcp.CallToolRequest, in searchInput) (*mcp.CallToolResult, any, error) {
		var hits []string
		for _, r := range repositories {
			if strings.Contains(strings.ToLower(r), strings.ToLower(in.Query)) {
				hits = append(hits, r)
			}
		}
		if in.Limit > 0 && len(hits) > in.Limit {
			hits = hits[:in.Limit]
		}
		text := "No repositories found for " + in.Query
		if len(hits) > 0 {
			text = strings.Join(hits, "\n")
		}
		slog.Info("search_github", "query", in.Query, "hits", len(hits))
		return textResult(text), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "echo",
		Description: "Echoes the provided message back",
	}, func(_ context.Context, _ *mcp.CallToolRequest, in echoInput) (*mcp.CallToolResult, any, error) {
		return textResult("Echo: " + in.Message), nil, nil
	})

	// flaky_lookup fails every other call with a tool-level error.
	var calls atomic.Int64
	mcp.AddTool(server, &mcp.Tool{
		Name:        "flaky_lookup",
		Description: "Looks up a key; fails on every second call",
	}, func(_ context.Context, _ *mcp.CallToolRequest, in lookupInput) (*mcp.CallToolResult, any, error) {
		if calls.Add(1)%2 == 0 {
			res := textResult("lookup backend unavailable")
			res.IsError = true
			return res, nil, nil
		}
		return textResult(fmt.Sprintf("%s=%d", in.Key, len(in.Key))), nil, nil
	})

	return server
}

func serveHTTP(ctx context.Context, server *mcp.Server, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, nil))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("mcp test server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
