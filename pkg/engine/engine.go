package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/rhuss/mcpgate/pkg/api"
	"github.com/rhuss/mcpgate/pkg/backend"
	"github.com/rhuss/mcpgate/pkg/capability"
	"github.com/rhuss/mcpgate/pkg/stream"
)

// ErrMaxRoundsExceeded ends a session whose backend keeps requesting
// tools past Config.MaxRounds.
var ErrMaxRoundsExceeded = errors.New("maximum tool rounds exceeded")

// Engine runs tool-calling sessions against a set of backends and a
// capability registry.
type Engine struct {
	backends *backend.Set
	registry capability.Registry
	cfg      Config
}

// New creates an Engine. Both dependencies are required.
func New(backends *backend.Set, registry capability.Registry, cfg Config) (*Engine, error) {
	if backends == nil {
		return nil, fmt.Errorf("engine: backend set must not be nil")
	}
	if registry == nil {
		return nil, fmt.Errorf("engine: capability registry must not be nil")
	}
	return &Engine{backends: backends, registry: registry, cfg: cfg}, nil
}

// Backends returns the configured backend set.
func (e *Engine) Backends() *backend.Set { return e.backends }

// Registry returns the capability registry.
func (e *Engine) Registry() capability.Registry { return e.registry }

// Process validates and runs one request. With a non-nil emitter it
// narrates progress and closes the emitter exactly once before
// returning, on every path. The returned result is never nil.
func (e *Engine) Process(ctx context.Context, req *api.ProcessRequest, em stream.Emitter) (res *api.ExecutionResult) {
	if em != nil {
		defer em.Close(ctx)
		_ = em.Emit(ctx, stream.Started())
	}

	var sess *session
	defer func() {
		if r := recover(); r != nil {
			slog.Error("engine panic", "panic", r, "stack", string(debug.Stack()))
			res = api.NewExecutionResult()
			if sess != nil {
				res = sess.result
			}
			res.Fail(fmt.Sprint(r))
			if em != nil {
				_ = em.Emit(ctx, stream.Failure(res.Data, res.ErrorMessage()))
			}
		}
	}()

	payload, err := e.Validate(ctx, req)
	if err != nil {
		var rej *api.RejectionError
		if errors.As(err, &rej) {
			res = api.RejectedResult(rej.Reason)
		} else {
			res = api.RejectedResult(err.Error())
		}
		if em != nil {
			_ = em.Emit(ctx, stream.Failure(nil, res.ErrorMessage()))
		}
		return res
	}

	sess = e.newSession(payload, em)
	res = sess.run(ctx)
	if em != nil {
		if res.Status {
			_ = em.Emit(ctx, stream.AIResponse(res.Data))
		} else {
			_ = em.Emit(ctx, stream.Failure(res.Data, res.ErrorMessage()))
		}
	}
	return res
}
