package storage

import (
	"context"
	"time"

	"github.com/rhuss/mcpgate/pkg/api"
)

// DefaultListLimit is used when Recent is called with a non-positive limit.
const DefaultListLimit = 50

// MaxListLimit caps the number of records one Recent call returns.
const MaxListLimit = 500

// UsageRecord is the accounting entry for one request.
type UsageRecord struct {
	ID           string    `json:"id"`
	Subject      string    `json:"subject,omitempty"`
	Backend      string    `json:"backend"`
	Servers      []string  `json:"servers"`
	Status       bool      `json:"status"`
	LLMCalls     int       `json:"llm_calls"`
	TotalTokens  int       `json:"total_tokens"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	ToolCalls    int       `json:"tool_calls"`
	Error        string    `json:"error,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	CompletedAt  time.Time `json:"completed_at"`
}

// Ledger persists usage records.
type Ledger interface {
	// Append stores rec. A duplicate ID returns ErrConflict.
	Append(ctx context.Context, rec *UsageRecord) error

	// Get returns one record, scoped to the context subject when set.
	Get(ctx context.Context, id string) (*UsageRecord, error)

	// Recent returns up to limit records, newest first, scoped to the
	// context subject when set.
	Recent(ctx context.Context, limit int) ([]*UsageRecord, error)

	HealthCheck(ctx context.Context) error
	Close() error
}

// NewRecord builds the record for a finished request. The subject is
// taken from ctx.
func NewRecord(ctx context.Context, id string, req *api.ProcessRequest, res *api.ExecutionResult, started time.Time) *UsageRecord {
	rec := &UsageRecord{
		ID:          id,
		Subject:     GetSubject(ctx),
		Servers:     []string{},
		StartedAt:   started.UTC(),
		CompletedAt: time.Now().UTC(),
	}
	if req != nil {
		rec.Backend = req.SelectedClient
		rec.Servers = append(rec.Servers, req.SelectedServers...)
	}
	if res == nil {
		return rec
	}
	rec.Status = res.Status
	rec.Error = res.ErrorMessage()
	if d := res.Data; d != nil {
		rec.LLMCalls = d.TotalLLMCalls
		rec.TotalTokens = d.TotalTokens
		rec.InputTokens = d.TotalInputTokens
		rec.OutputTokens = d.TotalOutputTokens
		rec.ToolCalls = len(d.ExecutedToolCalls)
	}
	return rec
}

// ClampLimit applies DefaultListLimit and MaxListLimit.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
