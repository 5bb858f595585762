package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/rhuss/mcpgate/pkg/api"
	"github.com/rhuss/mcpgate/pkg/stream"
)

// errSinkCompleted is returned for writes after the COMPLETED event.
var errSinkCompleted = errors.New("cannot write event: stream is completed")

// sinkState tracks the state of an SSE sink.
type sinkState int

const (
	sinkIdle      sinkState = iota // no writes yet
	sinkStreaming                  // headers sent, at least one event written
	sinkCompleted                  // COMPLETED event written
)

// sseSink implements stream.Sink for HTTP Server-Sent Events. Each event
// is written as a single data line:
//
//	data: {json}\n
//	\n
type sseSink struct {
	w  http.ResponseWriter
	rc *http.ResponseController

	mu    sync.Mutex
	state sinkState
}

var _ stream.Sink = (*sseSink)(nil)

func newSSESink(w http.ResponseWriter) *sseSink {
	return &sseSink{w: w, rc: http.NewResponseController(w)}
}

// Write sends one event and flushes it immediately.
func (s *sseSink) Write(_ context.Context, event api.StreamEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == sinkCompleted {
		return errSinkCompleted
	}

	if s.state == sinkIdle {
		h := s.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		s.w.WriteHeader(http.StatusOK)
		s.state = sinkStreaming
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	if err := s.rc.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	if event.IsTerminal() {
		s.state = sinkCompleted
	}
	return nil
}

func (s *sseSink) started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != sinkIdle
}
