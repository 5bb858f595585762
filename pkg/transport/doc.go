// Package transport defines the processor interface and middleware chain
// shared by the mcpgate delivery modes.
//
// A Processor runs one ProcessRequest and returns its ExecutionResult,
// optionally narrating progress through a stream.Emitter. The engine
// satisfies it directly. Delivery (JSON, SSE, WebSocket) lives in the
// http subpackage and only differs in the emitter it passes.
//
// # Middleware
//
// The middleware chain wraps a Processor with cross-cutting concerns:
// panic recovery, request ID assignment (X-Request-ID), structured
// logging via log/slog and usage accounting into a storage.Ledger.
package transport
