package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rhuss/mcpgate/pkg/api"
	"github.com/rhuss/mcpgate/pkg/backend"
)

func newServer(t *testing.T, status int, reply string, seen *generateRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-test:generateContent" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "g-key" {
			t.Errorf("key = %q", r.URL.Query().Get("key"))
		}
		if seen != nil {
			json.NewDecoder(r.Body).Decode(seen)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCompleteText(t *testing.T) {
	var seen generateRequest
	srv := newServer(t, http.StatusOK, `{
	  "candidates": [{"content": {"role": "model", "parts": [{"text": "Hello "}, {"text": "there"}]}}],
	  "usageMetadata": {"promptTokenCount": 9, "candidatesTokenCount": 3, "totalTokenCount": 12}
	}`, &seen)

	b := New(Config{BaseURL: srv.URL + "/", Model: "gemini-test"})
	if b.ToolResultRole() != api.RoleModel {
		t.Errorf("ToolResultRole() = %q", b.ToolResultRole())
	}
	reply, err := b.Complete(context.Background(), &backend.Request{
		SystemPrompt: "be brief",
		History: []api.ChatMessage{
			{Role: api.RoleUser, Content: "hi"},
			{Role: api.RoleAssistant, Content: "Executed tool: echo with arguments: {} and the result is: {}"},
		},
		Temperature: 0.1,
		MaxTokens:   1000,
		Access:      backend.Access{APIKey: "g-key"},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if reply.Text() != "Hello there" || reply.OutputType != api.OutputText {
		t.Errorf("reply = %+v", reply)
	}
	if reply.Usage != (backend.Usage{Total: 12, Input: 9, Output: 3}) {
		t.Errorf("usage = %+v", reply.Usage)
	}
	if seen.SystemInstruction == nil || seen.SystemInstruction.Parts[0].Text != "be brief" {
		t.Errorf("system_instruction = %+v", seen.SystemInstruction)
	}
	if len(seen.Contents) != 2 || seen.Contents[1].Role != api.RoleModel {
		t.Errorf("contents = %+v", seen.Contents)
	}
	if seen.GenerationConfig.MaxOutputTokens != 1000 {
		t.Errorf("generationConfig = %+v", seen.GenerationConfig)
	}
}

func TestCompleteFunctionCall(t *testing.T) {
	var seen generateRequest
	srv := newServer(t, http.StatusOK, `{
	  "candidates": [{"content": {"role": "model", "parts": [
	    {"functionCall": {"name": "search_github", "args": {"query": "router"}}}
	  ]}}]
	}`, &seen)

	b := New(Config{BaseURL: srv.URL, Model: "gemini-test", APIKey: "g-key"})
	reply, err := b.Complete(context.Background(), &backend.Request{
		History: []api.ChatMessage{{Role: api.RoleUser, Content: "find a router"}},
		Tools: []api.ToolDeclaration{{Type: "function", Function: api.FunctionSchema{
			Name: "search_github",
			Parameters: map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"query": map[string]any{"type": "string", "minLength": 1},
					"tags":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				},
				"required": []any{"query"},
			},
		}}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if reply.OutputType != api.OutputToolCall || len(reply.ToolCalls) != 1 {
		t.Fatalf("reply = %+v", reply)
	}
	if tc := reply.ToolCalls[0]; tc.Name != "search_github" || tc.Arguments["query"] != "router" {
		t.Errorf("tool call = %+v", tc)
	}
	// No usageMetadata: counters are estimated.
	if reply.Usage.Input <= 0 || reply.Usage.Total != reply.Usage.Input+reply.Usage.Output {
		t.Errorf("estimated usage = %+v", reply.Usage)
	}

	if len(seen.Tools) != 1 || len(seen.Tools[0].FunctionDeclarations) != 1 {
		t.Fatalf("tools = %+v", seen.Tools)
	}
	params := seen.Tools[0].FunctionDeclarations[0].Parameters
	if _, ok := params["additionalProperties"]; ok {
		t.Error("unsupported schema keys should be stripped")
	}
	props := params["properties"].(map[string]any)
	if _, ok := props["query"].(map[string]any)["minLength"]; ok {
		t.Error("property constraints should be stripped")
	}
	if items := props["tags"].(map[string]any)["items"].(map[string]any); items["type"] != "string" {
		t.Errorf("array items = %+v", items)
	}
}

func TestCompleteHTTPError(t *testing.T) {
	srv := newServer(t, http.StatusBadRequest, `{"error":{"code":400,"message":"API key not valid"}}`, nil)

	b := New(Config{BaseURL: srv.URL, Model: "gemini-test", APIKey: "g-key"})
	_, err := b.Complete(context.Background(), &backend.Request{})
	if err == nil || !strings.Contains(err.Error(), "API key not valid") {
		t.Fatalf("err = %v", err)
	}
}

func TestCompleteRequiresKey(t *testing.T) {
	b := New(Config{})
	if _, err := b.Complete(context.Background(), &backend.Request{}); err == nil {
		t.Fatal("expected error without api key")
	}
}
