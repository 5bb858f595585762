package backend

import (
	"context"
	"log/slog"
	"time"

	"github.com/rhuss/mcpgate/pkg/debug"
	"github.com/rhuss/mcpgate/pkg/observability"
)

// instrumented records metrics and debug logs around a Backend.
type instrumented struct {
	Backend
}

// Instrument wraps b so every Complete call is counted, timed and logged.
func Instrument(b Backend) Backend {
	if _, ok := b.(*instrumented); ok {
		return b
	}
	return &instrumented{Backend: b}
}

func (i *instrumented) Complete(ctx context.Context, req *Request) (*Reply, error) {
	name := i.Name()
	debug.Log("backends", "backend call", "backend", name, "model", req.Access.Model,
		"history", len(req.History), "tools", len(req.Tools))

	start := time.Now()
	reply, err := i.Backend.Complete(ctx, req)
	observability.BackendLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())

	if err != nil {
		observability.BackendRequestsTotal.WithLabelValues(name, "error").Inc()
		slog.Warn("backend call failed", "backend", name, "error", err.Error())
		return nil, err
	}

	observability.BackendRequestsTotal.WithLabelValues(name, "success").Inc()
	observability.BackendTokensTotal.WithLabelValues(name, "input").Add(float64(reply.Usage.Input))
	observability.BackendTokensTotal.WithLabelValues(name, "output").Add(float64(reply.Usage.Output))
	debug.Log("backends", "backend reply", "backend", name, "output_type", reply.OutputType,
		"tool_calls", len(reply.ToolCalls), "total_tokens", reply.Usage.Total)
	return reply, nil
}
