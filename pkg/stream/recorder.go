package stream

import (
	"context"
	"sync"

	"github.com/rhuss/mcpgate/pkg/api"
)

// Recorder is a Sink that keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []api.StreamEvent
}

// Write appends event.
func (r *Recorder) Write(_ context.Context, event api.StreamEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []api.StreamEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]api.StreamEvent, len(r.events))
	copy(out, r.events)
	return out
}

// Notifications returns the Data of every NOTIFICATION event, in order.
func (r *Recorder) Notifications() []string {
	var out []string
	for _, e := range r.Events() {
		if e.Action == api.ActionNotification {
			if s, ok := e.Data.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}
