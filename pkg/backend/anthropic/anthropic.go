// Package anthropic implements the Claude backend on the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/rhuss/mcpgate/pkg/api"
	"github.com/rhuss/mcpgate/pkg/backend"
)

// DefaultModel is used when neither the request nor the config names one.
const DefaultModel = "claude-sonnet-4-5"

// defaultMaxTokens applies when the request leaves max_tokens unset;
// the Messages API requires one.
const defaultMaxTokens = 1000

// Config holds adapter settings.
type Config struct {
	Name    string
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Backend is a Claude backend.
type Backend struct {
	cfg Config
}

var _ backend.Backend = (*Backend)(nil)

// New creates a Claude backend.
func New(cfg Config) *Backend {
	if cfg.Name == "" {
		cfg.Name = backend.Claude
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

// Complete performs one Messages call.
func (b *Backend) Complete(ctx context.Context, req *backend.Request) (*backend.Reply, error) {
	key := req.Access.APIKey
	if key == "" {
		key = b.cfg.APIKey
	}
	opts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithRequestTimeout(b.cfg.Timeout),
		option.WithMaxRetries(0),
	}
	if b.cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(b.cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	model := req.Access.Model
	if model == "" {
		model = b.cfg.Model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		Messages:    toMessages(req.History),
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(req.Temperature),
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}
	if len(req.Tools) > 0 {
		params.Tools = toTools(req.Tools)
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return nil, err
	}
	return fromMessage(resp)
}

// toMessages maps history onto the two roles the Messages API accepts.
// Consecutive turns of the same role are merged since the API rejects them.
func toMessages(history []api.ChatMessage) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(history))
	var lastRole string
	for _, m := range history {
		role := api.RoleUser
		if m.Role == api.RoleAssistant || m.Role == api.RoleModel {
			role = api.RoleAssistant
		}
		block := anthropic.NewTextBlock(m.Content)
		if role == lastRole && len(out) > 0 {
			last := &out[len(out)-1]
			last.Content = append(last.Content, block)
			continue
		}
		if role == api.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(block))
		} else {
			out = append(out, anthropic.NewUserMessage(block))
		}
		lastRole = role
	}
	return out
}

func toTools(tools []api.ToolDeclaration) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(tools))
	for i, t := range tools {
		props, _ := t.Function.Parameters["properties"].(map[string]any)
		if props == nil {
			props = map[string]any{}
		}
		out[i] = anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Function.Name,
				Description: anthropic.String(t.Function.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: props,
					Required:   requiredOf(t.Function.Parameters),
				},
			},
		}
	}
	return out
}

func requiredOf(schema map[string]any) []string {
	switch req := schema["required"].(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func fromMessage(resp *anthropic.Message) (*backend.Reply, error) {
	reply := &backend.Reply{
		Usage: backend.Usage{
			Input:  int(resp.Usage.InputTokens),
			Output: int(resp.Usage.OutputTokens),
		},
	}
	reply.Usage.Total = reply.Usage.Input + reply.Usage.Output
	if raw := resp.RawJSON(); raw != "" {
		reply.Raw = json.RawMessage(raw)
	} else {
		reply.Raw = resp
	}

	var text []string
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text = append(text, block.AsText().Text)
		case "tool_use":
			tu := block.AsToolUse()
			args := map[string]any{}
			if len(tu.Input) > 0 {
				if err := json.Unmarshal(tu.Input, &args); err != nil {
					return nil, fmt.Errorf("parsing arguments of tool %s: %w", tu.Name, err)
				}
			}
			reply.ToolCalls = append(reply.ToolCalls, backend.ToolCall{ID: tu.ID, Name: tu.Name, Arguments: args})
		}
	}
	if len(text) > 0 {
		reply.Messages = []string{strings.Join(text, "\n")}
	}
	reply.Classify()
	return reply, nil
}
