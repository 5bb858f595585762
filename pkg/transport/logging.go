package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/rhuss/mcpgate/pkg/api"
	"github.com/rhuss/mcpgate/pkg/stream"
)

// Logging returns middleware that emits one structured log entry per
// request with the request ID, backend, servers, delivery mode, outcome
// and duration. Failed and rejected requests are logged at WARN.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Processor) Processor {
		return ProcessorFunc(func(ctx context.Context, req *api.ProcessRequest, em stream.Emitter) *api.ExecutionResult {
			start := time.Now()
			res := next.Process(ctx, req, em)

			attrs := []slog.Attr{
				slog.String("request_id", RequestIDFromContext(ctx)),
				slog.String("client", req.SelectedClient),
				slog.Any("servers", req.SelectedServers),
				slog.Bool("stream", em != nil),
				slog.Duration("duration", time.Since(start)),
			}
			if res.Data != nil {
				attrs = append(attrs,
					slog.Int("llm_calls", res.Data.TotalLLMCalls),
					slog.Int("tool_calls", len(res.Data.ExecutedToolCalls)),
				)
			}

			if !res.Status {
				attrs = append(attrs, slog.String("error", res.ErrorMessage()))
				logger.LogAttrs(ctx, slog.LevelWarn, "request failed", attrs...)
			} else {
				logger.LogAttrs(ctx, slog.LevelInfo, "request completed", attrs...)
			}
			return res
		})
	}
}
