package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rhuss/mcpgate/pkg/api"
	"github.com/rhuss/mcpgate/pkg/auth"
	"github.com/rhuss/mcpgate/pkg/auth/apikey"
	"github.com/rhuss/mcpgate/pkg/capability"
	"github.com/rhuss/mcpgate/pkg/storage"
	"github.com/rhuss/mcpgate/pkg/storage/memory"
	"github.com/rhuss/mcpgate/pkg/stream"
	"github.com/rhuss/mcpgate/pkg/transport"
)

// fakeProcessor narrates a fixed script and returns a fixed result.
type fakeProcessor struct {
	result *api.ExecutionResult
	notes  []string

	mu       sync.Mutex
	requests []*api.ProcessRequest
	ids      []string
	subjects []string
}

func newFakeProcessor() *fakeProcessor {
	res := api.NewExecutionResult()
	res.Status = true
	res.Data.TotalLLMCalls = 1
	res.Data.Messages = []string{"hello"}
	return &fakeProcessor{result: res, notes: []string{"Tool Calls Started"}}
}

func (p *fakeProcessor) Process(ctx context.Context, req *api.ProcessRequest, em stream.Emitter) *api.ExecutionResult {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.ids = append(p.ids, transport.RequestIDFromContext(ctx))
	p.subjects = append(p.subjects, storage.GetSubject(ctx))
	p.mu.Unlock()

	if em != nil {
		defer em.Close(ctx)
		_ = em.Emit(ctx, stream.Started())
		for _, n := range p.notes {
			_ = em.Emit(ctx, stream.Notification(n))
		}
		if p.result.Status {
			_ = em.Emit(ctx, stream.AIResponse(p.result.Data))
		} else {
			_ = em.Emit(ctx, stream.Failure(p.result.Data, p.result.ErrorMessage()))
		}
	}
	return p.result
}

func (p *fakeProcessor) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

func (p *fakeProcessor) requestIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.ids...)
}

type fakeRegistry struct {
	tools map[string][]capability.Tool
	err   map[string]error
}

func (r *fakeRegistry) Has(p string) bool { _, ok := r.tools[p]; return ok }

func (r *fakeRegistry) ListCapabilities(_ context.Context, p string) ([]capability.Tool, error) {
	if err := r.err[p]; err != nil {
		return nil, err
	}
	return r.tools[p], nil
}

func (r *fakeRegistry) Invoke(context.Context, string, string, map[string]any) (any, error) {
	return nil, errors.New("not used")
}

func (r *fakeRegistry) Providers() []string {
	return []string{"GITHUB", "SLACK"}
}

const validBody = `{
  "selected_client": "MCP_CLIENT_OPENAI",
  "selected_servers": ["GITHUB"],
  "selected_server_credentials": {"GITHUB": {"token": "t"}},
  "client_details": {"input": "find a router", "api_key": "sk-test"}
}`

func newTestServer(p transport.Processor, opts ...ServerOption) http.Handler {
	return NewServer(p, opts...).Handler()
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

// readEvents parses an SSE body into its data payloads.
func readEvents(t *testing.T, body io.Reader) []api.StreamEvent {
	t.Helper()
	var events []api.StreamEvent
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			if line != "" {
				t.Errorf("unexpected SSE line %q", line)
			}
			continue
		}
		var ev api.StreamEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			t.Fatalf("decoding event %q: %v", data, err)
		}
		events = append(events, ev)
	}
	return events
}

func TestProcessMessageReturnsResult(t *testing.T) {
	p := newFakeProcessor()
	rec := post(t, newTestServer(p), "/api/v1/mcp/process_message", validBody)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var got api.ExecutionResult
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if !got.Status || got.Data == nil || got.Data.Messages[0] != "hello" {
		t.Errorf("result = %+v", got)
	}

	if len(p.requests) != 1 || p.requests[0].SelectedClient != "MCP_CLIENT_OPENAI" {
		t.Fatalf("requests = %+v", p.requests)
	}
	if p.requests[0].ClientDetails.APIKey != "sk-test" {
		t.Error("client details not decoded")
	}
	id := rec.Header().Get("X-Request-ID")
	if !api.ValidateRequestID(id) || p.requestIDs()[0] != id {
		t.Errorf("X-Request-ID = %q, processor saw %v", id, p.requestIDs())
	}
}

func TestProcessMessageRejectionIs200(t *testing.T) {
	p := newFakeProcessor()
	p.result = api.RejectedResult(api.ReasonInvalidServer)

	rec := post(t, newTestServer(p), "/api/v1/mcp/process_message", validBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	want := `{"Data":null,"Error":"Invalid Server","Status":false}`
	if got := strings.TrimSpace(rec.Body.String()); got != want {
		t.Errorf("body = %s, want %s", got, want)
	}
}

func TestRequestIDHeader(t *testing.T) {
	p := newFakeProcessor()
	h := newTestServer(p)
	clientID := api.NewRequestID()

	for _, tt := range []struct {
		name   string
		header string
		keep   bool
	}{
		{"well-formed id is kept", clientID, true},
		{"foreign id is replaced", "abc-123", false},
	} {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/mcp/process_message", strings.NewReader(validBody))
			req.Header.Set("X-Request-ID", tt.header)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			got := rec.Header().Get("X-Request-ID")
			if (got == tt.header) != tt.keep || !api.ValidateRequestID(got) {
				t.Errorf("X-Request-ID = %q (sent %q)", got, tt.header)
			}
		})
	}
}

func TestInvalidJSONBodyReturns400(t *testing.T) {
	p := newFakeProcessor()
	rec := post(t, newTestServer(p), "/api/v1/mcp/process_message", `{not json`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var resp api.ErrorResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Error == nil || resp.Error.Type != api.ErrorTypeInvalidRequest || resp.Error.Param != "body" {
		t.Errorf("error = %+v", resp.Error)
	}
	if p.count() != 0 {
		t.Error("processor must not run for an undecodable body")
	}
}

func TestOversizedBodyReturns413(t *testing.T) {
	h := newTestServer(newFakeProcessor(), WithMaxBodySize(64))
	big := `{"selected_client":"` + strings.Repeat("x", 200) + `"}`

	if rec := post(t, h, "/api/v1/mcp/process_message", big); rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestWrongContentTypeReturns415(t *testing.T) {
	h := newTestServer(newFakeProcessor())
	for _, path := range []string{"/api/v1/mcp/process_message", "/api/v1/mcp/process_message_stream"} {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(validBody))
		req.Header.Set("Content-Type", "text/plain")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnsupportedMediaType {
			t.Errorf("%s: status = %d, want 415", path, rec.Code)
		}
	}
}

func TestRoutingErrors(t *testing.T) {
	h := newTestServer(newFakeProcessor())

	if rec := get(t, h, "/api/v1/unknown"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown path status = %d, want 404", rec.Code)
	}
	if rec := get(t, h, "/api/v1/mcp/process_message"); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET process_message status = %d, want 405", rec.Code)
	}
}

func TestLivenessAndHealth(t *testing.T) {
	h := newTestServer(newFakeProcessor())

	if rec := get(t, h, "/"); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "running") {
		t.Errorf("GET / = %d %q", rec.Code, rec.Body)
	}
	for _, path := range []string{"/healthz", "/readyz"} {
		if rec := get(t, h, path); rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d", path, rec.Code)
		}
	}
}

type unhealthyLedger struct{ *memory.Store }

func (unhealthyLedger) HealthCheck(context.Context) error { return errors.New("connection refused") }

func TestReadinessFollowsLedger(t *testing.T) {
	h := newTestServer(newFakeProcessor(), WithLedger(unhealthyLedger{memory.New(1)}))
	if rec := get(t, h, "/readyz"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("GET /readyz = %d, want 503", rec.Code)
	}
}

func TestMetricsRoute(t *testing.T) {
	h := newTestServer(newFakeProcessor())
	post(t, h, "/api/v1/mcp/process_message", validBody)

	rec := get(t, h, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "mcpgate_requests_total") {
		t.Error("request counter missing from /metrics")
	}

	h = newTestServer(newFakeProcessor(), WithoutMetrics())
	if rec := get(t, h, "/metrics"); rec.Code != http.StatusNotFound {
		t.Errorf("disabled /metrics = %d, want 404", rec.Code)
	}
}

func TestProcessStreamWritesSSE(t *testing.T) {
	p := newFakeProcessor()
	rec := post(t, newTestServer(p), "/api/v1/mcp/process_message_stream", validBody)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("Cache-Control = %q", cc)
	}

	events := readEvents(t, rec.Body)
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4: %+v", len(events), events)
	}
	if events[0].StreamingStatus != api.StreamStarted {
		t.Errorf("first event = %+v", events[0])
	}
	if events[1].Action != api.ActionNotification || events[1].Data != "Tool Calls Started" {
		t.Errorf("notification = %+v", events[1])
	}
	if events[2].Action != api.ActionAIResponse {
		t.Errorf("result event = %+v", events[2])
	}
	if !events[3].IsTerminal() {
		t.Errorf("last event = %+v", events[3])
	}
}

func TestProcessStreamInvalidJSON(t *testing.T) {
	p := newFakeProcessor()
	rec := post(t, newTestServer(p), "/api/v1/mcp/process_message_stream", `{"selected_client":`)

	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "text/event-stream" {
		t.Fatalf("status = %d, Content-Type = %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	events := readEvents(t, rec.Body)
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	failure := events[1]
	if failure.Action != api.ActionError || failure.Error == nil || !strings.HasPrefix(*failure.Error, "invalid JSON") {
		t.Errorf("failure event = %+v", failure)
	}
	if !events[2].IsTerminal() {
		t.Errorf("last event = %+v", events[2])
	}
	if p.count() != 0 {
		t.Error("processor must not run for an undecodable body")
	}
}

func TestListServers(t *testing.T) {
	reg := &fakeRegistry{
		tools: map[string][]capability.Tool{
			"GITHUB": {{Name: "search_github"}, {Name: "list_issues"}},
			"SLACK":  nil,
		},
		err: map[string]error{"SLACK": errors.New("connection closed")},
	}
	rec := get(t, newTestServer(newFakeProcessor(), WithRegistry(reg)), "/api/v1/mcp/servers")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Servers []serverInfo `json:"servers"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Servers) != 2 {
		t.Fatalf("servers = %+v", body.Servers)
	}
	gh, slack := body.Servers[0], body.Servers[1]
	if gh.Name != "GITHUB" || strings.Join(gh.Tools, ",") != "search_github,list_issues" || gh.Error != "" {
		t.Errorf("GITHUB = %+v", gh)
	}
	if slack.Name != "SLACK" || len(slack.Tools) != 0 || slack.Error != "connection closed" {
		t.Errorf("SLACK = %+v", slack)
	}
}

func TestUsageRoutes(t *testing.T) {
	ledger := memory.New(10)
	h := newTestServer(newFakeProcessor(), WithLedger(ledger))

	first := post(t, h, "/api/v1/mcp/process_message", validBody)
	post(t, h, "/api/v1/mcp/process_message_stream", validBody)

	rec := get(t, h, "/api/v1/mcp/usage?limit=10")
	if rec.Code != http.StatusOK {
		t.Fatalf("usage status = %d", rec.Code)
	}
	var list struct {
		Records []storage.UsageRecord `json:"records"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if len(list.Records) != 2 {
		t.Fatalf("records = %d, want 2", len(list.Records))
	}

	id := first.Header().Get("X-Request-ID")
	rec = get(t, h, "/api/v1/mcp/usage/"+id)
	if rec.Code != http.StatusOK {
		t.Fatalf("usage/%s status = %d", id, rec.Code)
	}
	var one storage.UsageRecord
	json.NewDecoder(rec.Body).Decode(&one)
	if one.ID != id || one.Backend != "MCP_CLIENT_OPENAI" || one.LLMCalls != 1 || !one.Status {
		t.Errorf("record = %+v", one)
	}

	for _, tt := range []struct {
		path string
		want int
	}{
		{"/api/v1/mcp/usage?limit=0", http.StatusBadRequest},
		{"/api/v1/mcp/usage?limit=abc", http.StatusBadRequest},
		{"/api/v1/mcp/usage/not-an-id", http.StatusBadRequest},
		{"/api/v1/mcp/usage/" + api.NewRequestID(), http.StatusNotFound},
	} {
		if rec := get(t, h, tt.path); rec.Code != tt.want {
			t.Errorf("GET %s = %d, want %d", tt.path, rec.Code, tt.want)
		}
	}
}

func TestUsageWithoutLedger(t *testing.T) {
	h := newTestServer(newFakeProcessor())
	if rec := get(t, h, "/api/v1/mcp/usage"); rec.Code != http.StatusNotImplemented {
		t.Errorf("status = %d, want 501", rec.Code)
	}
}

func TestAuthProtectsAPIRoutes(t *testing.T) {
	p := newFakeProcessor()
	ledger := memory.New(10)
	chain := &auth.Chain{
		Authenticators:  []auth.Authenticator{apikey.New([]apikey.Entry{{Key: "secret-key", Subject: "alice"}})},
		DefaultDecision: auth.No,
	}
	h := newTestServer(p,
		WithLedger(ledger),
		WithAuth(auth.Middleware(chain, nil, auth.DefaultBypassEndpoints)),
	)

	if rec := post(t, h, "/api/v1/mcp/process_message", validBody); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", rec.Code)
	}
	if rec := get(t, h, "/healthz"); rec.Code != http.StatusOK {
		t.Errorf("/healthz behind auth = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/mcp/process_message", bytes.NewBufferString(validBody))
	req.Header.Set("X-API-Key", "secret-key")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("authenticated status = %d, body = %s", rec.Code, rec.Body)
	}
	if len(p.subjects) != 1 || p.subjects[0] != "alice" {
		t.Errorf("subjects = %v", p.subjects)
	}

	records, err := ledger.Recent(storage.SetSubject(context.Background(), "alice"), 10)
	if err != nil || len(records) != 1 || records[0].Subject != "alice" {
		t.Errorf("ledger = %+v, %v", records, err)
	}
}
