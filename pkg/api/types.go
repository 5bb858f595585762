package api

import "encoding/json"

// Role values used in chat history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleModel     = "model"
)

// Output classifications of a backend reply.
const (
	OutputText     = "text"
	OutputToolCall = "tool_call"
)

// ProcessRequest is the session input for one request. It is treated as
// immutable by the engine; working copies are made before mutation.
type ProcessRequest struct {
	SelectedClient            string                    `json:"selected_client"`
	SelectedServers           []string                  `json:"selected_servers"`
	SelectedServerCredentials map[string]map[string]any `json:"selected_server_credentials"`
	ClientDetails             *ClientDetails            `json:"client_details"`
}

// ClientDetails carries the conversation context and the generation
// parameters for the chosen backend.
type ClientDetails struct {
	Prompt      string        `json:"prompt,omitempty"`
	Input       string        `json:"input"`
	ChatHistory []ChatMessage `json:"chat_history,omitempty"`

	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`

	APIKey    string `json:"api_key,omitempty"`
	ChatModel string `json:"chat_model,omitempty"`

	// Azure OpenAI deployment addressing.
	Endpoint     string `json:"endpoint,omitempty"`
	DeploymentID string `json:"deployment_id,omitempty"`
	APIVersion   string `json:"api_version,omitempty"`

	// Tools is filled by the validator from the selected servers.
	Tools []ToolDeclaration `json:"tools,omitempty"`
}

// Clone returns a deep copy of the mutable parts of the details
// (history and tools). Scalar fields are copied by value.
func (c *ClientDetails) Clone() *ClientDetails {
	if c == nil {
		return nil
	}
	cp := *c
	if c.ChatHistory != nil {
		cp.ChatHistory = append([]ChatMessage(nil), c.ChatHistory...)
	}
	if c.Tools != nil {
		cp.Tools = append([]ToolDeclaration(nil), c.Tools...)
	}
	if c.Temperature != nil {
		t := *c.Temperature
		cp.Temperature = &t
	}
	return &cp
}

// ChatMessage is one role/content pair of the conversation history.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToolDeclaration describes a callable tool in the function-calling shape
// backends understand.
type ToolDeclaration struct {
	Type     string         `json:"type"`
	Function FunctionSchema `json:"function"`
}

// FunctionSchema is the name, description and JSON schema of a tool.
type FunctionSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Name returns the function name of the declaration.
func (d ToolDeclaration) Name() string { return d.Function.Name }

// ToolInvocation records one executed capability call. Records are
// appended in arrival order and never modified afterwards.
type ToolInvocation struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
	Result    any            `json:"result"`
}

// ResultData holds the usage totals and outputs accumulated over all
// backend rounds of a request.
type ResultData struct {
	TotalLLMCalls     int              `json:"total_llm_calls"`
	TotalTokens       int              `json:"total_tokens"`
	TotalInputTokens  int              `json:"total_input_tokens"`
	TotalOutputTokens int              `json:"total_output_tokens"`
	FinalLLMResponse  any              `json:"final_llm_response"`
	LLMResponses      []any            `json:"llm_responses_arr"`
	Messages          []string         `json:"messages"`
	OutputType        string           `json:"output_type"`
	ExecutedToolCalls []ToolInvocation `json:"executed_tool_calls"`
}

// ExecutionResult is returned to the caller once the engine reaches a
// terminal state.
type ExecutionResult struct {
	Data   *ResultData `json:"Data"`
	Error  *string     `json:"Error"`
	Status bool        `json:"Status"`
}

// NewExecutionResult returns an empty result with non-nil slices so the
// JSON form always carries arrays.
func NewExecutionResult() *ExecutionResult {
	return &ExecutionResult{
		Data: &ResultData{
			LLMResponses:      []any{},
			Messages:          []string{},
			OutputType:        OutputText,
			ExecutedToolCalls: []ToolInvocation{},
		},
	}
}

// Fail marks the result as failed with the given message.
func (r *ExecutionResult) Fail(msg string) *ExecutionResult {
	r.Error = &msg
	r.Status = false
	return r
}

// ErrorMessage returns the error text or "".
func (r *ExecutionResult) ErrorMessage() string {
	if r == nil || r.Error == nil {
		return ""
	}
	return *r.Error
}

// RejectedResult builds the response body for a request that never reached
// the engine loop: no Data, only the error.
func RejectedResult(msg string) *ExecutionResult {
	return &ExecutionResult{Error: &msg}
}

// MarshalResult renders a tool result as compact JSON. Values that cannot
// be marshaled fall back to their quoted string form.
func MarshalResult(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		b, _ = json.Marshal(err.Error())
	}
	return string(b)
}
