package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/rhuss/mcpgate/pkg/api"
	"github.com/rhuss/mcpgate/pkg/storage"
	"github.com/rhuss/mcpgate/pkg/stream"
)

// Ledger returns middleware that appends a usage record for every
// request, including rejected ones. Ledger failures are logged and never
// change the result. It must run inside RequestID.
func Ledger(ledger storage.Ledger) Middleware {
	return func(next Processor) Processor {
		if ledger == nil {
			return next
		}
		return ProcessorFunc(func(ctx context.Context, req *api.ProcessRequest, em stream.Emitter) *api.ExecutionResult {
			started := time.Now()
			res := next.Process(ctx, req, em)

			id := RequestIDFromContext(ctx)
			if id == "" {
				id = api.NewRequestID()
			}
			rec := storage.NewRecord(ctx, id, req, res, started)
			// The request context may already be cancelled by a gone client.
			if err := ledger.Append(context.WithoutCancel(ctx), rec); err != nil {
				slog.Warn("recording usage failed", "request_id", id, "error", err.Error())
			}
			return res
		})
	}
}
