package transport

import (
	"context"

	"github.com/rhuss/mcpgate/pkg/api"
	"github.com/rhuss/mcpgate/pkg/stream"
)

type requestIDKey struct{}

// RequestIDFromContext returns the request id, or "" when none is set.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// ContextWithRequestID attaches id to ctx. The id keys the usage record
// of the request.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID fills in a generated id when the transport did not supply
// one. HTTP requests arrive with the X-Request-ID value already set.
func RequestID() Middleware {
	return func(next Processor) Processor {
		return ProcessorFunc(func(ctx context.Context, req *api.ProcessRequest, em stream.Emitter) *api.ExecutionResult {
			if RequestIDFromContext(ctx) == "" {
				ctx = ContextWithRequestID(ctx, api.NewRequestID())
			}
			return next.Process(ctx, req, em)
		})
	}
}
