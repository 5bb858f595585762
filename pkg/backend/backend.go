// Package backend defines the vendor-neutral contract for LLM backends.
// Each adapter (openai, anthropic, gemini) performs one vendor call per
// Complete and normalizes the reply into text or tool-call directives
// plus token counters. Adapters hold no per-request state and must be
// safe for concurrent use.
package backend

import (
	"context"

	"github.com/rhuss/mcpgate/pkg/api"
)

// Backend identifiers as sent in selected_client.
const (
	OpenAI  = "MCP_CLIENT_OPENAI"
	AzureAI = "MCP_CLIENT_AZURE_AI"
	Gemini  = "MCP_CLIENT_GEMINI"
	Claude  = "MCP_CLIENT_CLAUDE"
)

// Backend is one LLM vendor integration.
type Backend interface {
	// Name returns the backend identifier (e.g. MCP_CLIENT_OPENAI).
	Name() string

	// Complete performs one non-streaming call. Any returned error is
	// fatal to the request.
	Complete(ctx context.Context, req *Request) (*Reply, error)

	// ToolResultRole is the history role used for synthesized
	// "Executed tool" turns ("assistant", or "model" for Gemini).
	ToolResultRole() string
}

// Request is the normalized input of one backend call.
type Request struct {
	SystemPrompt string
	History      []api.ChatMessage
	Tools        []api.ToolDeclaration
	Temperature  float64
	MaxTokens    int

	// Access carries the per-request vendor credentials and model
	// selection from client_details.
	Access Access
}

// Access identifies the account and model a call is made with.
type Access struct {
	APIKey       string
	Model        string
	Endpoint     string
	DeploymentID string
	APIVersion   string
}

// Reply is the normalized output of one backend call.
type Reply struct {
	// Messages holds the natural-language content of the reply.
	Messages []string
	// OutputType is api.OutputText or api.OutputToolCall.
	OutputType string
	// ToolCalls lists the directives in the order the backend emitted them.
	ToolCalls []ToolCall
	Usage     Usage
	// Raw is the vendor response, kept for llm_responses_arr.
	Raw any
}

// Text returns the first message or "".
func (r *Reply) Text() string {
	if r == nil || len(r.Messages) == 0 {
		return ""
	}
	return r.Messages[0]
}

// ToolCall is one tool-call directive.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// Usage holds the token counters reported for one call.
type Usage struct {
	Total  int
	Input  int
	Output int
}

// Classify sets OutputType from the presence of tool calls.
func (r *Reply) Classify() {
	if len(r.ToolCalls) > 0 {
		r.OutputType = api.OutputToolCall
		return
	}
	r.OutputType = api.OutputText
}
