// Package memory provides an in-memory usage ledger for tests and
// single-instance deployments. Records are lost on restart. When maxSize
// is set the oldest record is evicted first.
package memory

import (
	"container/list"
	"context"
	"sync"

	"github.com/rhuss/mcpgate/pkg/storage"
)

type entry struct {
	rec  *storage.UsageRecord
	elem *list.Element
}

// Store is an in-memory Ledger.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   *list.List // front = newest
	maxSize int        // 0 = unlimited
}

var _ storage.Ledger = (*Store)(nil)

// New creates an in-memory ledger holding at most maxSize records.
// maxSize 0 means unbounded.
func New(maxSize int) *Store {
	return &Store{
		entries: make(map[string]*entry),
		order:   list.New(),
		maxSize: maxSize,
	}
}

// Append stores a copy of rec.
func (s *Store) Append(_ context.Context, rec *storage.UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[rec.ID]; exists {
		return storage.ErrConflict
	}
	if s.maxSize > 0 && len(s.entries) >= s.maxSize {
		s.evictOldest()
	}

	cp := clone(rec)
	s.entries[rec.ID] = &entry{rec: cp, elem: s.order.PushFront(rec.ID)}
	return nil
}

// Get returns a record by ID.
func (s *Store) Get(ctx context.Context, id string) (*storage.UsageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if subject := storage.GetSubject(ctx); subject != "" && e.rec.Subject != subject {
		return nil, storage.ErrNotFound
	}
	return clone(e.rec), nil
}

// Recent returns the newest records first.
func (s *Store) Recent(ctx context.Context, limit int) ([]*storage.UsageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit = storage.ClampLimit(limit)
	subject := storage.GetSubject(ctx)

	out := make([]*storage.UsageRecord, 0, min(limit, len(s.entries)))
	for el := s.order.Front(); el != nil && len(out) < limit; el = el.Next() {
		rec := s.entries[el.Value.(string)].rec
		if subject != "" && rec.Subject != subject {
			continue
		}
		out = append(out, clone(rec))
	}
	return out, nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// HealthCheck always returns nil for the in-memory store.
func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

// evictOldest removes the oldest record. Must be called with s.mu held.
func (s *Store) evictOldest() {
	back := s.order.Back()
	if back == nil {
		return
	}
	s.order.Remove(back)
	delete(s.entries, back.Value.(string))
}

func clone(rec *storage.UsageRecord) *storage.UsageRecord {
	cp := *rec
	cp.Servers = append([]string(nil), rec.Servers...)
	return &cp
}
