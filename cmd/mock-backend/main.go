// Command mock-backend runs a deterministic Chat Completions server for
// end-to-end testing of the gateway. It answers the gate prompt with
// decision tags, calls the first offered tool the user mentions and then
// summarises the tool result as text.
//
// Configuration:
//
//	MOCK_PORT - Listen port (default: 9090)
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"
	"time"
)

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", handleChatCompletions)
	mux.HandleFunc("GET /v1/models", handleModels)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: ":" + port, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock backend starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock backend failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock backend shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

// --- Request types ---

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Tools    []toolParam   `json:"tools,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type toolParam struct {
	Function struct {
		Name       string         `json:"name"`
		Parameters map[string]any `json:"parameters"`
	} `json:"function"`
}

// --- Handler ---

func handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":{"message":"invalid request","type":"invalid_request_error"}}`, http.StatusBadRequest)
		return
	}

	model := req.Model
	if model == "" {
		model = "mock-model"
	}
	choice, usage := respond(&req)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"id":      fmt.Sprintf("chatcmpl-mock-%d", time.Now().UnixNano()),
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   model,
		"choices": []any{choice},
		"usage": map[string]int{
			"prompt_tokens":     usage[0],
			"completion_tokens": usage[1],
			"total_tokens":      usage[0] + usage[1],
		},
	})
}

// respond picks the reply for req and returns it as a choice object
// together with its prompt and completion token counts.
func respond(req *chatRequest) (map[string]any, [2]int) {
	if system := systemPrompt(req); strings.Contains(system, "<function_call>TRUE/FALSE</function_call>") {
		return gateResponse(system, lastUserMessage(req))
	}

	last := lastMessage(req)
	if m := toolResultPattern.FindStringSubmatch(last.Content); m != nil {
		return text(fmt.Sprintf("Here is what %s returned: %s", m[1], strings.TrimSpace(m[2])))
	}

	input := lastUserMessage(req)
	for _, tool := range req.Tools {
		if mentions(input, tool.Function.Name) {
			return toolCallResponse(tool, input)
		}
	}

	return text("Hello, nice day!")
}

var (
	availableTools    = regexp.MustCompile(`Available tools: (\[.*?\])\n`)
	toolResultPattern = regexp.MustCompile(`(?s)^Executed tool: (\S+) with arguments: .*? and the result is: (.*)$`)
)

// gateResponse selects every advertised tool the user's message mentions.
func gateResponse(system, input string) (map[string]any, [2]int) {
	var tools []struct {
		Name string `json:"function_name"`
	}
	if m := availableTools.FindStringSubmatch(system); m != nil {
		json.Unmarshal([]byte(m[1]), &tools)
	}

	var selected []string
	for _, t := range tools {
		if mentions(input, t.Name) {
			selected = append(selected, t.Name)
		}
	}

	if len(selected) == 0 {
		return text("<function_call>FALSE</function_call>\n<selected_tools>none</selected_tools>")
	}
	return text(fmt.Sprintf("<function_call>TRUE</function_call>\n<selected_tools>%s</selected_tools>",
		strings.Join(selected, ",")))
}

// toolCallResponse calls tool once, filling every string property with
// the user's message.
func toolCallResponse(tool toolParam, input string) (map[string]any, [2]int) {
	args := map[string]any{}
	props, _ := tool.Function.Parameters["properties"].(map[string]any)
	for name, schema := range props {
		if s, ok := schema.(map[string]any); ok && s["type"] == "string" {
			args[name] = input
		}
	}
	encoded, _ := json.Marshal(args)

	call := map[string]any{
		"id":   "call_mock_1",
		"type": "function",
		"function": map[string]string{
			"name":      tool.Function.Name,
			"arguments": string(encoded),
		},
	}
	return map[string]any{
		"index":         0,
		"finish_reason": "tool_calls",
		"message":       map[string]any{"role": "assistant", "content": nil, "tool_calls": []any{call}},
	}, [2]int{20, 15}
}

func text(content string) (map[string]any, [2]int) {
	return map[string]any{
		"index":         0,
		"finish_reason": "stop",
		"message":       map[string]any{"role": "assistant", "content": content},
	}, [2]int{10, 5}
}

// --- Models endpoint ---

func handleModels(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"object": "list",
		"data": []map[string]any{
			{"id": "mock-model", "object": "model", "owned_by": "mcpgate-mock"},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// --- Helpers ---

// mentions reports whether input contains one of the words of a
// snake_case tool name.
func mentions(input, tool string) bool {
	input = strings.ToLower(input)
	for _, word := range strings.Split(strings.ToLower(tool), "_") {
		if len(word) > 2 && strings.Contains(input, word) {
			return true
		}
	}
	return false
}

func systemPrompt(req *chatRequest) string {
	for _, msg := range req.Messages {
		if msg.Role == "system" {
			return msg.Content
		}
	}
	return ""
}

func lastUserMessage(req *chatRequest) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			return req.Messages[i].Content
		}
	}
	return ""
}

func lastMessage(req *chatRequest) chatMessage {
	if len(req.Messages) == 0 {
		return chatMessage{}
	}
	return req.Messages[len(req.Messages)-1]
}
