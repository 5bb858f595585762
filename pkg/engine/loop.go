package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rhuss/mcpgate/pkg/api"
	"github.com/rhuss/mcpgate/pkg/backend"
	"github.com/rhuss/mcpgate/pkg/credentials"
	"github.com/rhuss/mcpgate/pkg/debug"
	"github.com/rhuss/mcpgate/pkg/observability"
	"github.com/rhuss/mcpgate/pkg/stream"
)

// state is a phase of the session state machine.
type state int

const (
	stateGate state = iota
	stateAnswer
	stateToolExecution
	stateTextResponse
	stateError
	stateInvalidBackend
)

var stateNames = [...]string{"GATE", "ANSWER_WITH_TOOLS", "TOOL_EXECUTION", "TEXT_RESPONSE", "ERROR", "INVALID_BACKEND"}

func (s state) String() string { return stateNames[s] }

func (s state) terminal() bool {
	return s == stateTextResponse || s == stateError || s == stateInvalidBackend
}

// Notification texts.
const (
	gateCompletedText    = "Optimized Token LLM call Successfully Completed"
	toolCallsStartedText = "Tool Calls Started"
)

// session is the working state of one Run.
type session struct {
	engine  *Engine
	payload *Payload
	backend backend.Backend
	emitter stream.Emitter
	result  *api.ExecutionResult

	history     []api.ChatMessage
	activeTools []api.ToolDeclaration
	pending     []backend.ToolCall
	rounds      int
	err         error
}

// Run executes the state machine for a validated payload. It does not
// emit the final AI-RESPONSE or ERROR event; Process does.
func (e *Engine) Run(ctx context.Context, p *Payload, em stream.Emitter) *api.ExecutionResult {
	return e.newSession(p, em).run(ctx)
}

func (e *Engine) newSession(p *Payload, em stream.Emitter) *session {
	b, _ := e.backends.Get(p.Backend)
	return &session{
		engine:  e,
		payload: p,
		backend: b,
		emitter: em,
		result:  api.NewExecutionResult(),
		history: append([]api.ChatMessage(nil), p.Details.ChatHistory...),
	}
}

func (s *session) run(ctx context.Context) *api.ExecutionResult {
	st := stateGate
	if s.backend == nil {
		st = stateInvalidBackend
	}
	for !st.terminal() {
		next := s.step(ctx, st)
		debug.Log("engine", "transition", "from", st, "to", next, "round", s.rounds)
		st = next
	}

	switch st {
	case stateInvalidBackend:
		return api.RejectedResult(api.ReasonInvalidClient)
	case stateError:
		slog.Warn("session failed", "backend", s.payload.Backend, "error", s.err.Error())
		return s.result.Fail(s.err.Error())
	}
	s.result.Status = true
	return s.result
}

func (s *session) step(ctx context.Context, st state) state {
	switch st {
	case stateGate:
		return s.gate(ctx)
	case stateAnswer:
		return s.answer(ctx)
	case stateToolExecution:
		call := s.pending[0]
		s.pending = s.pending[1:]
		s.execute(ctx, call)
		if len(s.pending) > 0 {
			return stateToolExecution
		}
		return stateAnswer
	}
	s.err = fmt.Errorf("engine: no transition from %s", st)
	return stateError
}

// gate asks the backend, without tool schemas, whether tools are needed
// and which ones.
func (s *session) gate(ctx context.Context) state {
	d := s.payload.Details
	s.history = append(s.history, api.ChatMessage{Role: api.RoleUser, Content: d.Input})

	reply, err := s.call(ctx, gatePrompt(s.payload.Servers, d.Tools), nil)
	if err != nil {
		s.err = err
		return stateError
	}
	s.notify(ctx, gateCompletedText)

	decision := ParseGate(reply.Text())
	if decision.IsFunctionCall {
		s.activeTools = selectTools(d.Tools, decision.SelectedTools)
		observability.GateDecisionsTotal.WithLabelValues("tools").Inc()
	} else {
		s.activeTools = d.Tools
		observability.GateDecisionsTotal.WithLabelValues("no_tools").Inc()
	}
	debug.Log("engine", "gate decision", "function_call", decision.IsFunctionCall,
		"selected", decision.SelectedTools, "active_tools", len(s.activeTools))
	return stateAnswer
}

// answer runs one backend round with the original prompt and the active
// tools.
func (s *session) answer(ctx context.Context) state {
	s.rounds++
	if s.rounds > s.engine.cfg.maxRounds() {
		s.err = ErrMaxRoundsExceeded
		return stateError
	}

	reply, err := s.call(ctx, s.payload.Details.Prompt, s.activeTools)
	if err != nil {
		s.err = err
		return stateError
	}

	if reply.OutputType != api.OutputToolCall {
		s.result.Data.Messages = append(s.result.Data.Messages, reply.Messages...)
		s.result.Data.OutputType = api.OutputText
		for _, m := range reply.Messages {
			s.emit(ctx, stream.Message(m))
		}
		return stateTextResponse
	}

	if len(reply.ToolCalls) == 0 {
		// Nothing to run; ask again. MaxRounds bounds the retries.
		debug.Log("engine", "tool_call reply without directives", "round", s.rounds)
		return stateAnswer
	}
	s.notify(ctx, toolCallsStartedText)
	s.pending = reply.ToolCalls
	return stateToolExecution
}

// execute invokes one tool. Invocation errors become the recorded
// result and never end the session. The record keeps the arguments as
// sent, credentials included; the history turn carries only the
// backend's own arguments.
func (s *session) execute(ctx context.Context, call backend.ToolCall) {
	provider := s.payload.Provider(call.Name)
	s.notify(ctx, fmt.Sprintf("%s MCP server %s call initiated", provider, call.Name))

	args := call.Arguments
	if args == nil {
		args = map[string]any{}
	}
	withCreds := credentials.Resolve(provider, args, s.payload.Credentials[provider])
	debug.Log("credentials", "credentials resolved", "provider", provider, "tool", call.Name)

	result, err := s.engine.registry.Invoke(ctx, provider, call.Name, withCreds)
	if err != nil {
		slog.Warn("tool execution error", "tool", call.Name, "server", provider, "error", err.Error())
		result = err.Error()
	}
	text := api.MarshalResult(result)
	s.notify(ctx, fmt.Sprintf("%s MCP server %s call result  : %s", provider, call.Name, text))

	s.result.Data.ExecutedToolCalls = append(s.result.Data.ExecutedToolCalls, api.ToolInvocation{
		ID:        call.ID,
		Name:      call.Name,
		Arguments: withCreds,
		Result:    result,
	})
	s.history = append(s.history, api.ChatMessage{
		Role: s.backend.ToolResultRole(),
		Content: fmt.Sprintf("Executed tool: %s with arguments: %s and the result is: %s",
			call.Name, api.MarshalResult(args), text),
	})
}

// call performs one backend round and records its usage.
func (s *session) call(ctx context.Context, prompt string, tools []api.ToolDeclaration) (*backend.Reply, error) {
	d := s.payload.Details
	temperature := s.engine.cfg.temperature()
	if d.Temperature != nil {
		temperature = *d.Temperature
	}
	maxTokens := d.MaxTokens
	if maxTokens <= 0 {
		maxTokens = s.engine.cfg.maxTokens()
	}

	reply, err := s.backend.Complete(ctx, &backend.Request{
		SystemPrompt: prompt,
		History:      s.history,
		Tools:        tools,
		Temperature:  temperature,
		MaxTokens:    maxTokens,
		Access: backend.Access{
			APIKey:       d.APIKey,
			Model:        d.ChatModel,
			Endpoint:     d.Endpoint,
			DeploymentID: d.DeploymentID,
			APIVersion:   d.APIVersion,
		},
	})
	if err != nil {
		return nil, backend.Fatal(s.backend.Name(), err)
	}

	data := s.result.Data
	data.TotalLLMCalls++
	data.TotalTokens += reply.Usage.Total
	data.TotalInputTokens += reply.Usage.Input
	data.TotalOutputTokens += reply.Usage.Output
	data.FinalLLMResponse = reply.Raw
	data.LLMResponses = append(data.LLMResponses, reply.Raw)
	return reply, nil
}

func (s *session) notify(ctx context.Context, text string) {
	s.emit(ctx, stream.Notification(text))
}

func (s *session) emit(ctx context.Context, ev api.StreamEvent) {
	if s.emitter != nil {
		_ = s.emitter.Emit(ctx, ev)
	}
}
