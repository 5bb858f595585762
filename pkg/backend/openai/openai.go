// Package openai implements the OpenAI and Azure OpenAI backends on top of
// the official openai-go SDK. Both speak Chat Completions; the Azure
// variant addresses a deployment instead of a model.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/rhuss/mcpgate/pkg/api"
	"github.com/rhuss/mcpgate/pkg/backend"
)

// DefaultModel is used when neither the request nor the config names one.
const DefaultModel = "gpt-4o"

// Config holds adapter settings. Request-level Access values take
// precedence over the defaults here.
type Config struct {
	// Name overrides the backend identifier. Defaults to backend.OpenAI,
	// or backend.AzureAI when Azure is set.
	Name string
	// BaseURL points at any OpenAI-compatible server.
	BaseURL string
	// APIKey is used when a request carries no api_key.
	APIKey string
	// Model is used when a request carries no chat_model.
	Model string
	// Azure switches to deployment addressing:
	// {endpoint}/openai/deployments/{deployment_id}/chat/completions?api-version={api_version}.
	Azure bool
	// Timeout bounds one call. Default: 60s.
	Timeout time.Duration
	// MaxRetries is passed to the SDK. Default: 0.
	MaxRetries int
}

// Backend is an OpenAI Chat Completions backend.
type Backend struct {
	cfg Config
}

var _ backend.Backend = (*Backend)(nil)

// New creates an OpenAI or Azure OpenAI backend.
func New(cfg Config) *Backend {
	if cfg.Name == "" {
		cfg.Name = backend.OpenAI
		if cfg.Azure {
			cfg.Name = backend.AzureAI
		}
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Backend{cfg: cfg}
}

func (b *Backend) Name() string { return b.cfg.Name }

func (b *Backend) ToolResultRole() string { return api.RoleAssistant }

// Complete performs one Chat Completions call.
func (b *Backend) Complete(ctx context.Context, req *backend.Request) (*backend.Reply, error) {
	client, model, err := b.client(req.Access)
	if err != nil {
		return nil, err
	}

	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(model),
		Messages:    toMessages(req.SystemPrompt, req.History),
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if len(req.Tools) > 0 {
		params.Tools = toTools(req.Tools)
	}

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, err
	}
	return fromCompletion(resp)
}

// client builds an SDK client for the request's credentials.
func (b *Backend) client(access backend.Access) (*openai.Client, string, error) {
	key := access.APIKey
	if key == "" {
		key = b.cfg.APIKey
	}
	opts := []option.RequestOption{
		option.WithRequestTimeout(b.cfg.Timeout),
		option.WithMaxRetries(b.cfg.MaxRetries),
	}

	model := access.Model
	if b.cfg.Azure {
		if access.Endpoint == "" || access.DeploymentID == "" || access.APIVersion == "" {
			return nil, "", errors.New("azure backend requires endpoint, deployment_id and api_version")
		}
		// The azure middleware routes by model, so the deployment takes its place.
		model = access.DeploymentID
		opts = append(opts, azure.WithEndpoint(access.Endpoint, access.APIVersion), azure.WithAPIKey(key))
	} else {
		opts = append(opts, option.WithAPIKey(key))
		if b.cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(b.cfg.BaseURL))
		}
	}
	if model == "" {
		model = b.cfg.Model
	}

	client := openai.NewClient(opts...)
	return &client, model, nil
}

func toMessages(system string, history []api.ChatMessage) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)
	if system != "" {
		msgs = append(msgs, openai.SystemMessage(system))
	}
	for _, m := range history {
		switch m.Role {
		case api.RoleAssistant, api.RoleModel:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		case "system":
			msgs = append(msgs, openai.SystemMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}
	return msgs
}

func toTools(tools []api.ToolDeclaration) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, len(tools))
	for i, t := range tools {
		out[i] = openai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        t.Function.Name,
				Description: openai.String(t.Function.Description),
				Parameters:  shared.FunctionParameters(t.Function.Parameters),
			},
		}
	}
	return out
}

func fromCompletion(resp *openai.ChatCompletion) (*backend.Reply, error) {
	reply := &backend.Reply{
		Usage: backend.Usage{
			Total:  int(resp.Usage.TotalTokens),
			Input:  int(resp.Usage.PromptTokens),
			Output: int(resp.Usage.CompletionTokens),
		},
		Raw: rawOf(resp),
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("backend returned no choices")
	}

	msg := resp.Choices[0].Message
	if msg.Content != "" {
		reply.Messages = []string{msg.Content}
	}
	for _, tc := range msg.ToolCalls {
		args, err := parseArguments(tc.Function.Arguments)
		if err != nil {
			return nil, fmt.Errorf("parsing arguments of tool %s: %w", tc.Function.Name, err)
		}
		reply.ToolCalls = append(reply.ToolCalls, backend.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	reply.Classify()
	return reply, nil
}

// parseArguments decodes a JSON arguments string. Empty means no arguments.
func parseArguments(s string) (map[string]any, error) {
	args := map[string]any{}
	if s == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(s), &args); err != nil {
		return nil, err
	}
	return args, nil
}

// rawOf keeps the vendor JSON verbatim when the SDK retained it.
func rawOf(resp *openai.ChatCompletion) any {
	if raw := resp.RawJSON(); raw != "" {
		return json.RawMessage(raw)
	}
	return resp
}
