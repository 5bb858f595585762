package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rhuss/mcpgate/pkg/storage"
)

func makeRecord(id, subject string) *storage.UsageRecord {
	return &storage.UsageRecord{
		ID:          id,
		Subject:     subject,
		Backend:     "MCP_CLIENT_OPENAI",
		Servers:     []string{"GITHUB"},
		Status:      true,
		LLMCalls:    2,
		TotalTokens: 42,
		StartedAt:   time.Now(),
		CompletedAt: time.Now(),
	}
}

func TestAppendAndGet(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	if err := s.Append(ctx, makeRecord("req_1", "")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	got, err := s.Get(ctx, "req_1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.TotalTokens != 42 || got.Servers[0] != "GITHUB" {
		t.Errorf("record = %+v", got)
	}

	got.Servers[0] = "MUTATED"
	again, _ := s.Get(ctx, "req_1")
	if again.Servers[0] != "GITHUB" {
		t.Error("Get returned a shared record")
	}
}

func TestAppendConflict(t *testing.T) {
	s := New(0)
	ctx := context.Background()
	s.Append(ctx, makeRecord("req_dup", ""))

	if err := s.Append(ctx, makeRecord("req_dup", "")); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestGetNotFound(t *testing.T) {
	s := New(0)
	if _, err := s.Get(context.Background(), "req_missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRecentNewestFirst(t *testing.T) {
	s := New(0)
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		s.Append(ctx, makeRecord(fmt.Sprintf("req_%d", i), ""))
	}

	got, err := s.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(got) != 3 || got[0].ID != "req_5" || got[2].ID != "req_3" {
		t.Errorf("Recent = %v", ids(got))
	}
}

func TestEviction(t *testing.T) {
	s := New(2)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		s.Append(ctx, makeRecord(id, ""))
	}

	if s.Len() != 2 {
		t.Errorf("Len = %d, want 2", s.Len())
	}
	if _, err := s.Get(ctx, "a"); !errors.Is(err, storage.ErrNotFound) {
		t.Error("oldest record should have been evicted")
	}
}

func TestSubjectScoping(t *testing.T) {
	s := New(0)
	ctx := context.Background()
	s.Append(ctx, makeRecord("r_alice", "alice"))
	s.Append(ctx, makeRecord("r_bob", "bob"))

	alice := storage.SetSubject(ctx, "alice")
	got, _ := s.Recent(alice, 10)
	if len(got) != 1 || got[0].ID != "r_alice" {
		t.Errorf("alice sees %v", ids(got))
	}
	if _, err := s.Get(alice, "r_bob"); !errors.Is(err, storage.ErrNotFound) {
		t.Error("alice should not see bob's record")
	}

	all, _ := s.Recent(ctx, 10)
	if len(all) != 2 {
		t.Errorf("unscoped Recent = %v", ids(all))
	}
}

func ids(recs []*storage.UsageRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}
