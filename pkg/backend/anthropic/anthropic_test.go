package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rhuss/mcpgate/pkg/api"
	"github.com/rhuss/mcpgate/pkg/backend"
)

type messagesRequest struct {
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
	System    []struct {
		Text string `json:"text"`
	} `json:"system"`
	Messages []struct {
		Role    string            `json:"role"`
		Content []json.RawMessage `json:"content"`
	} `json:"messages"`
	Tools []struct {
		Name        string `json:"name"`
		InputSchema struct {
			Required []string `json:"required"`
		} `json:"input_schema"`
	} `json:"tools"`
}

func newMessagesServer(t *testing.T, reply string, seen *messagesRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("X-Api-Key"); got != "sk-ant" {
			t.Errorf("X-Api-Key = %q", got)
		}
		if seen != nil {
			if err := json.NewDecoder(r.Body).Decode(seen); err != nil {
				t.Errorf("decoding request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCompleteText(t *testing.T) {
	var seen messagesRequest
	srv := newMessagesServer(t, `{
	  "id": "msg_1", "type": "message", "role": "assistant", "model": "claude-sonnet-4-5",
	  "content": [{"type": "text", "text": "<function_call>TRUE</function_call>"}],
	  "stop_reason": "end_turn",
	  "usage": {"input_tokens": 20, "output_tokens": 7}
	}`, &seen)

	b := New(Config{BaseURL: srv.URL + "/", APIKey: "sk-ant"})
	if b.Name() != backend.Claude {
		t.Fatalf("Name() = %q", b.Name())
	}
	reply, err := b.Complete(context.Background(), &backend.Request{
		SystemPrompt: "decide",
		History: []api.ChatMessage{
			{Role: api.RoleUser, Content: "first"},
			{Role: api.RoleUser, Content: "second"},
			{Role: api.RoleAssistant, Content: "ok"},
		},
		Temperature: 0.1,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if reply.OutputType != api.OutputText || reply.Text() != "<function_call>TRUE</function_call>" {
		t.Errorf("reply = %+v", reply)
	}
	if reply.Usage != (backend.Usage{Total: 27, Input: 20, Output: 7}) {
		t.Errorf("usage = %+v", reply.Usage)
	}
	if seen.Model != DefaultModel || seen.MaxTokens != defaultMaxTokens {
		t.Errorf("model=%q max_tokens=%d", seen.Model, seen.MaxTokens)
	}
	if len(seen.System) != 1 || seen.System[0].Text != "decide" {
		t.Errorf("system = %+v", seen.System)
	}
	// Two consecutive user turns collapse into one message.
	if len(seen.Messages) != 2 || seen.Messages[0].Role != "user" || len(seen.Messages[0].Content) != 2 {
		t.Errorf("messages = %+v", seen.Messages)
	}
}

func TestCompleteToolUse(t *testing.T) {
	var seen messagesRequest
	srv := newMessagesServer(t, `{
	  "id": "msg_2", "type": "message", "role": "assistant", "model": "claude-sonnet-4-5",
	  "content": [
	    {"type": "text", "text": "Let me look"},
	    {"type": "tool_use", "id": "toolu_1", "name": "search_github", "input": {"query": "router"}}
	  ],
	  "stop_reason": "tool_use",
	  "usage": {"input_tokens": 50, "output_tokens": 12}
	}`, &seen)

	b := New(Config{BaseURL: srv.URL + "/"})
	reply, err := b.Complete(context.Background(), &backend.Request{
		History: []api.ChatMessage{{Role: api.RoleUser, Content: "find a router"}},
		Tools: []api.ToolDeclaration{{Type: "function", Function: api.FunctionSchema{
			Name: "search_github",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"query": map[string]any{"type": "string"}},
				"required":   []any{"query"},
			},
		}}},
		Access: backend.Access{APIKey: "sk-ant", Model: "claude-haiku-4-5"},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if reply.OutputType != api.OutputToolCall || len(reply.ToolCalls) != 1 {
		t.Fatalf("reply = %+v", reply)
	}
	tc := reply.ToolCalls[0]
	if tc.ID != "toolu_1" || tc.Name != "search_github" || tc.Arguments["query"] != "router" {
		t.Errorf("tool call = %+v", tc)
	}
	if reply.Text() != "Let me look" {
		t.Errorf("text = %q", reply.Text())
	}
	if seen.Model != "claude-haiku-4-5" {
		t.Errorf("model = %q", seen.Model)
	}
	if len(seen.Tools) != 1 || len(seen.Tools[0].InputSchema.Required) != 1 {
		t.Errorf("tools = %+v", seen.Tools)
	}
}

func TestToMessagesMapsModelRole(t *testing.T) {
	msgs := toMessages([]api.ChatMessage{
		{Role: api.RoleUser, Content: "q"},
		{Role: api.RoleModel, Content: "Executed tool: echo with arguments: {} and the result is: {}"},
	})
	if len(msgs) != 2 || msgs[1].Role != "assistant" {
		t.Errorf("messages = %+v", msgs)
	}
}
