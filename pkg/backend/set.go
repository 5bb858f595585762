package backend

import (
	"log/slog"
	"sort"
	"sync"
)

// Set is the configured collection of backends, keyed by identifier. It is
// built at startup and handed to the engine; lookups are safe for
// concurrent use.
type Set struct {
	mu       sync.RWMutex
	backends map[string]Backend
}

// NewSet creates a Set holding the given backends. A later backend with
// the same name replaces an earlier one.
func NewSet(backends ...Backend) *Set {
	s := &Set{backends: make(map[string]Backend, len(backends))}
	for _, b := range backends {
		s.Register(b)
	}
	return s
}

// Register adds or replaces a backend.
func (s *Set) Register(b Backend) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.backends[b.Name()]; exists {
		slog.Warn("replacing backend", "backend", b.Name())
	}
	s.backends[b.Name()] = b
}

// Get returns the backend for id.
func (s *Set) Get(id string) (Backend, bool) {
	if s == nil {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.backends[id]
	return b, ok
}

// Has reports whether id is a configured backend.
func (s *Set) Has(id string) bool {
	_, ok := s.Get(id)
	return ok
}

// Names returns the configured backend identifiers, sorted.
func (s *Set) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.backends))
	for name := range s.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
