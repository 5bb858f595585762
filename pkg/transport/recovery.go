package transport

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rhuss/mcpgate/pkg/api"
	"github.com/rhuss/mcpgate/pkg/stream"
)

// Recovery returns middleware that catches panics escaping the processor
// and turns them into a failed result. A streaming caller still receives
// an ERROR event and the closing COMPLETED event.
func Recovery() Middleware {
	return func(next Processor) Processor {
		return ProcessorFunc(func(ctx context.Context, req *api.ProcessRequest, em stream.Emitter) (res *api.ExecutionResult) {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("processor panic", "request_id", RequestIDFromContext(ctx), "panic", r)
					res = api.NewExecutionResult().Fail(fmt.Sprintf("internal server error: %v", r))
					if em != nil {
						_ = em.Emit(ctx, stream.Failure(nil, res.ErrorMessage()))
						_ = em.Close(ctx)
					}
				}
			}()
			return next.Process(ctx, req, em)
		})
	}
}
