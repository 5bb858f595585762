// Package stream narrates request progress as a sequence of
// api.StreamEvent envelopes. An Emitter wraps a transport-specific Sink
// (SSE, WebSocket, or an in-memory Recorder) and guarantees the stream
// ends with exactly one COMPLETED event.
package stream

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/rhuss/mcpgate/pkg/api"
	"github.com/rhuss/mcpgate/pkg/debug"
)

// ErrClosed is returned by Emit after Close.
var ErrClosed = errors.New("stream is closed")

// Sink delivers one event to the client.
type Sink interface {
	Write(ctx context.Context, event api.StreamEvent) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(ctx context.Context, event api.StreamEvent) error

// Write calls f(ctx, event).
func (f SinkFunc) Write(ctx context.Context, event api.StreamEvent) error {
	return f(ctx, event)
}

// Emitter is the engine-facing side of a stream.
type Emitter interface {
	// Emit sends one event. After Close it does nothing and returns ErrClosed.
	Emit(ctx context.Context, event api.StreamEvent) error

	// Close sends the COMPLETED event. Only the first call has an effect.
	Close(ctx context.Context) error
}

type emitter struct {
	sink Sink

	mu     sync.Mutex
	closed bool
}

// New returns an Emitter writing to sink. Sink errors are logged and
// returned but never stop later events: a slow or gone client does not
// stall the request.
func New(sink Sink) Emitter {
	return &emitter{sink: sink}
}

func (e *emitter) Emit(ctx context.Context, event api.StreamEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	return e.write(ctx, event)
}

func (e *emitter) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	return e.write(ctx, Completed())
}

func (e *emitter) write(ctx context.Context, event api.StreamEvent) error {
	debug.Log("streaming", "emit", "status", event.StreamingStatus, "action", event.Action)
	if err := e.sink.Write(ctx, event); err != nil {
		slog.Warn("stream write failed", "status", event.StreamingStatus, "action", event.Action, "error", err.Error())
		return err
	}
	return nil
}
