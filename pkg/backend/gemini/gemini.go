// Package gemini implements the Gemini backend against the Generative
// Language REST API (generateContent).
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rhuss/mcpgate/pkg/api"
	"github.com/rhuss/mcpgate/pkg/backend"
)

const (
	// DefaultBaseURL is the public Generative Language endpoint.
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	// DefaultModel is used when neither the request nor the config names one.
	DefaultModel = "gemini-2.0-flash"
)

// Config holds adapter settings.
type Config struct {
	Name    string
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Backend is a Gemini backend.
type Backend struct {
	cfg        Config
	httpClient *http.Client
}

var _ backend.Backend = (*Backend)(nil)

// New creates a Gemini backend.
func New(cfg Config) *Backend {
	if cfg.Name == "" {
		cfg.Name = backend.Gemini
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Backend{cfg: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}}
}

func (b *Backend) Name() string { return b.cfg.Name }

// ToolResultRole is "model": Gemini accepts only user and model turns.
func (b *Backend) ToolResultRole() string { return api.RoleModel }

// Complete performs one generateContent call.
func (b *Backend) Complete(ctx context.Context, req *backend.Request) (*backend.Reply, error) {
	key := req.Access.APIKey
	if key == "" {
		key = b.cfg.APIKey
	}
	if key == "" {
		return nil, errors.New("gemini api key is required")
	}
	model := req.Access.Model
	if model == "" {
		model = b.cfg.Model
	}

	body, err := json.Marshal(translate(req))
	if err != nil {
		return nil, fmt.Errorf("marshaling gemini request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		b.cfg.BaseURL, url.PathEscape(model), url.QueryEscape(key))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating gemini request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, backend.HTTPError(resp)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading gemini response: %w", err)
	}
	return parse(req, raw)
}

// translate builds the request body. Only user and model turns are sent;
// assistant turns are renamed to model.
func translate(req *backend.Request) *generateRequest {
	out := &generateRequest{
		GenerationConfig: generationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
		},
	}
	if req.SystemPrompt != "" {
		out.SystemInstruction = &content{Parts: []part{{Text: req.SystemPrompt}}}
	}
	for _, m := range req.History {
		role := api.RoleUser
		if m.Role == api.RoleModel || m.Role == api.RoleAssistant {
			role = api.RoleModel
		}
		out.Contents = append(out.Contents, content{Role: role, Parts: []part{{Text: m.Content}}})
	}
	if len(req.Tools) > 0 {
		decls := make([]functionDeclaration, len(req.Tools))
		for i, t := range req.Tools {
			decls[i] = functionDeclaration{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  simplifySchema(t.Function.Parameters),
			}
		}
		out.Tools = []toolSet{{FunctionDeclarations: decls}}
	}
	return out
}

// simplifySchema reduces a JSON Schema to the OpenAPI subset Gemini
// accepts: top-level type, properties and required, where each property
// keeps only type, items.type and description.
func simplifySchema(schema map[string]any) map[string]any {
	typ, _ := schema["type"].(string)
	if typ == "" {
		typ = "object"
	}
	props := map[string]any{}
	if in, ok := schema["properties"].(map[string]any); ok {
		for name, v := range in {
			p, _ := v.(map[string]any)
			ptype, _ := p["type"].(string)
			if ptype == "" {
				ptype = "string"
			}
			desc, _ := p["description"].(string)
			prop := map[string]any{"type": ptype, "description": desc}
			if ptype == "array" {
				itype := "string"
				if items, ok := p["items"].(map[string]any); ok {
					if t, ok := items["type"].(string); ok && t != "" {
						itype = t
					}
				}
				prop["items"] = map[string]any{"type": itype}
			}
			props[name] = prop
		}
	}
	required := schema["required"]
	if required == nil {
		required = []any{}
	}
	return map[string]any{"type": typ, "properties": props, "required": required}
}

func parse(req *backend.Request, raw []byte) (*backend.Reply, error) {
	var resp generateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decoding gemini response: %w", err)
	}

	reply := &backend.Reply{Raw: json.RawMessage(raw)}
	if len(resp.Candidates) > 0 {
		var text []string
		for i, p := range resp.Candidates[0].Content.Parts {
			if p.FunctionCall != nil {
				args := map[string]any{}
				if len(p.FunctionCall.Args) > 0 && string(p.FunctionCall.Args) != "null" {
					if err := json.Unmarshal(p.FunctionCall.Args, &args); err != nil {
						return nil, fmt.Errorf("parsing arguments of tool %s: %w", p.FunctionCall.Name, err)
					}
				}
				reply.ToolCalls = append(reply.ToolCalls, backend.ToolCall{
					ID:        fmt.Sprintf("call_%d", i),
					Name:      p.FunctionCall.Name,
					Arguments: args,
				})
				continue
			}
			if p.Text != "" {
				text = append(text, p.Text)
			}
		}
		if len(text) > 0 {
			reply.Messages = []string{strings.Join(text, "")}
		}
	}

	if u := resp.UsageMetadata; u != nil {
		reply.Usage = backend.Usage{Total: u.TotalTokenCount, Input: u.PromptTokenCount, Output: u.CandidatesTokenCount}
	} else {
		reply.Usage = backend.EstimateUsage(req, reply)
	}
	reply.Classify()
	return reply, nil
}
