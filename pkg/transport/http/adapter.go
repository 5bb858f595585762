package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rhuss/mcpgate/pkg/api"
	"github.com/rhuss/mcpgate/pkg/capability"
	"github.com/rhuss/mcpgate/pkg/observability"
	"github.com/rhuss/mcpgate/pkg/storage"
	"github.com/rhuss/mcpgate/pkg/stream"
	"github.com/rhuss/mcpgate/pkg/transport"
)

const requestIDHeader = "X-Request-ID"

// Adapter serves the mcpgate API over HTTP.
// It routes requests to the processor and serializes results.
type Adapter struct {
	processor transport.Processor
	upgrader  *websocket.Upgrader
	mux       *http.ServeMux
	config    Config
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	MaxBodySize int64

	// Registry backs GET /api/v1/mcp/servers. Optional.
	Registry capability.Registry
	// Ledger backs GET /api/v1/mcp/usage and the readiness check. Optional.
	Ledger storage.Ledger
	// Auth wraps every route. Public paths are skipped by the auth
	// middleware itself. Optional.
	Auth func(http.Handler) http.Handler
	// AllowedOrigins restricts WebSocket upgrades. Empty accepts any origin.
	AllowedOrigins []string
	// DisableMetrics removes the /metrics route.
	DisableMetrics bool
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize: 10 << 20, // 10 MB
	}
}

// NewAdapter creates an HTTP adapter for processor. Middleware is applied
// to the processor in the given order.
func NewAdapter(processor transport.Processor, cfg Config, middlewares ...transport.Middleware) *Adapter {
	if len(middlewares) > 0 {
		processor = transport.Chain(middlewares...)(processor)
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultConfig().MaxBodySize
	}

	a := &Adapter{
		processor: processor,
		mux:       http.NewServeMux(),
		config:    cfg,
	}
	a.upgrader = a.newUpgrader()

	a.handle("GET /{$}", a.handleRoot)
	a.handle("GET /healthz", a.handleHealth)
	a.handle("GET /readyz", a.handleReady)
	a.handle("POST /api/v1/mcp/process_message", a.handleProcess)
	a.handle("POST /api/v1/mcp/process_message_stream", a.handleProcessStream)
	a.handle("GET /api/v1/mcp/ws", a.handleWebSocket)
	a.handle("GET /api/v1/mcp/servers", a.handleListServers)
	a.handle("GET /api/v1/mcp/usage", a.handleListUsage)
	a.handle("GET /api/v1/mcp/usage/{id}", a.handleGetUsage)
	if !cfg.DisableMetrics {
		a.mux.Handle("GET /metrics", promhttp.Handler())
	}

	return a
}

// handle registers a route behind auth and request metrics. Metrics sit
// inside the mux so the route label is the matched pattern.
func (a *Adapter) handle(pattern string, h http.HandlerFunc) {
	var handler http.Handler = h
	if a.config.Auth != nil {
		handler = a.config.Auth(handler)
	}
	a.mux.Handle(pattern, observability.MetricsMiddleware(handler))
}

// Handler returns the http.Handler for this adapter. Use this to integrate
// with an http.Server or test with httptest. The returned handler includes
// HTTP-level request ID propagation.
func (a *Adapter) Handler() http.Handler {
	return httpRequestIDMiddleware(a.mux)
}

// httpRequestIDMiddleware assigns every HTTP request an ID before any
// handler runs. A well-formed X-Request-ID from the client is kept;
// anything else is replaced. The ID is echoed in the response header and
// stored in the context for the transport middleware.
func httpRequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if !api.ValidateRequestID(id) {
			id = api.NewRequestID()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(transport.ContextWithRequestID(r.Context(), id)))
	})
}

func (a *Adapter) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("mcpgate is running\n"))
}

func (a *Adapter) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// handleReady reports 503 while the ledger is unreachable.
func (a *Adapter) handleReady(w http.ResponseWriter, r *http.Request) {
	if a.config.Ledger != nil {
		if err := a.config.Ledger.HealthCheck(r.Context()); err != nil {
			http.Error(w, "ledger unavailable: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// decodeRequest validates the content type and decodes a ProcessRequest
// from the size-limited body. The returned status accompanies the error.
func (a *Adapter) decodeRequest(w http.ResponseWriter, r *http.Request) (*api.ProcessRequest, *api.APIError, int) {
	ct := r.Header.Get("Content-Type")
	if ct != "" && ct != "application/json" {
		return nil, api.NewInvalidRequestError("content_type", "Content-Type must be application/json"),
			http.StatusUnsupportedMediaType
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	var req api.ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return nil, api.NewInvalidRequestError("body", fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)),
				http.StatusRequestEntityTooLarge
		}
		return nil, api.NewInvalidRequestError("body", "invalid JSON: "+err.Error()), http.StatusBadRequest
	}
	return &req, nil, 0
}

// handleProcess handles POST /api/v1/mcp/process_message. Every engine
// outcome, rejections included, is a 200 with the ExecutionResult body.
func (a *Adapter) handleProcess(w http.ResponseWriter, r *http.Request) {
	req, apiErr, status := a.decodeRequest(w, r)
	if apiErr != nil {
		transport.WriteErrorResponse(w, apiErr, status)
		return
	}

	res := a.processor.Process(r.Context(), req, nil)
	transport.WriteJSON(w, http.StatusOK, res)
}

// handleProcessStream handles POST /api/v1/mcp/process_message_stream.
// A body that cannot be decoded is still answered as a stream:
// STARTED, ERROR, COMPLETED. Only a wrong content type gets a JSON error.
func (a *Adapter) handleProcessStream(w http.ResponseWriter, r *http.Request) {
	req, apiErr, status := a.decodeRequest(w, r)
	if apiErr != nil && status == http.StatusUnsupportedMediaType {
		transport.WriteErrorResponse(w, apiErr, status)
		return
	}

	defer observability.TrackStream()()
	sink := newSSESink(w)
	em := stream.New(sink)

	if apiErr != nil {
		rejectStream(r.Context(), em, apiErr.Message)
		return
	}
	a.processor.Process(r.Context(), req, em)

	// The processor closes the emitter. This only matters if it returned
	// without writing anything at all.
	if !sink.started() {
		_ = em.Close(context.WithoutCancel(r.Context()))
	}
}

type serverInfo struct {
	Name  string   `json:"name"`
	Tools []string `json:"tools"`
	Error string   `json:"error,omitempty"`
}

// handleListServers handles GET /api/v1/mcp/servers.
func (a *Adapter) handleListServers(w http.ResponseWriter, r *http.Request) {
	if a.config.Registry == nil {
		transport.WriteJSON(w, http.StatusOK, map[string]any{"servers": []serverInfo{}})
		return
	}

	providers := a.config.Registry.Providers()
	out := make([]serverInfo, 0, len(providers))
	for _, p := range providers {
		info := serverInfo{Name: p, Tools: []string{}}
		tools, err := a.config.Registry.ListCapabilities(r.Context(), p)
		if err != nil {
			info.Error = err.Error()
		}
		for _, t := range tools {
			info.Tools = append(info.Tools, t.Name)
		}
		out = append(out, info)
	}
	transport.WriteJSON(w, http.StatusOK, map[string]any{"servers": out})
}

// handleListUsage handles GET /api/v1/mcp/usage?limit=N.
func (a *Adapter) handleListUsage(w http.ResponseWriter, r *http.Request) {
	if a.config.Ledger == nil {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("", "usage listing is not available (no ledger configured)"),
			http.StatusNotImplemented,
		)
		return
	}

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			transport.WriteAPIError(w, api.NewInvalidRequestError("limit", "limit must be a positive integer"))
			return
		}
		limit = n
	}

	records, err := a.config.Ledger.Recent(r.Context(), storage.ClampLimit(limit))
	if err != nil {
		transport.WriteAPIError(w, api.NewServerError(err.Error()))
		return
	}
	if records == nil {
		records = []*storage.UsageRecord{}
	}
	transport.WriteJSON(w, http.StatusOK, map[string]any{"records": records})
}

// handleGetUsage handles GET /api/v1/mcp/usage/{id}.
func (a *Adapter) handleGetUsage(w http.ResponseWriter, r *http.Request) {
	if a.config.Ledger == nil {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("", "usage retrieval is not available (no ledger configured)"),
			http.StatusNotImplemented,
		)
		return
	}

	id := r.PathValue("id")
	if !api.ValidateRequestID(id) {
		transport.WriteAPIError(w, api.NewInvalidRequestError("id", "malformed request ID"))
		return
	}

	rec, err := a.config.Ledger.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			transport.WriteAPIError(w, api.NewNotFoundError("usage record "+id+" not found"))
		} else {
			transport.WriteAPIError(w, api.NewServerError(err.Error()))
		}
		return
	}
	transport.WriteJSON(w, http.StatusOK, rec)
}
