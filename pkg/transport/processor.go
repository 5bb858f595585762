package transport

import (
	"context"

	"github.com/rhuss/mcpgate/pkg/api"
	"github.com/rhuss/mcpgate/pkg/stream"
)

// Processor runs one request. A nil emitter means the caller only wants
// the final result. With a non-nil emitter the processor closes it
// before returning. The result is never nil.
type Processor interface {
	Process(ctx context.Context, req *api.ProcessRequest, em stream.Emitter) *api.ExecutionResult
}

// ProcessorFunc adapts a function to a Processor.
type ProcessorFunc func(ctx context.Context, req *api.ProcessRequest, em stream.Emitter) *api.ExecutionResult

// Process calls f(ctx, req, em).
func (f ProcessorFunc) Process(ctx context.Context, req *api.ProcessRequest, em stream.Emitter) *api.ExecutionResult {
	return f(ctx, req, em)
}
