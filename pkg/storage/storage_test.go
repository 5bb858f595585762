package storage

import (
	"context"
	"testing"
	"time"

	"github.com/rhuss/mcpgate/pkg/api"
)

func TestSubjectContext(t *testing.T) {
	ctx := context.Background()
	if got := GetSubject(ctx); got != "" {
		t.Errorf("GetSubject(empty) = %q", got)
	}
	ctx = SetSubject(ctx, "alice")
	if got := GetSubject(ctx); got != "alice" {
		t.Errorf("GetSubject = %q, want alice", got)
	}
}

func TestNewRecord(t *testing.T) {
	ctx := SetSubject(context.Background(), "team-a")
	req := &api.ProcessRequest{SelectedClient: "MCP_CLIENT_OPENAI", SelectedServers: []string{"GITHUB", "SLACK"}}
	res := api.NewExecutionResult()
	res.Status = true
	res.Data.TotalLLMCalls = 3
	res.Data.TotalTokens = 120
	res.Data.TotalInputTokens = 100
	res.Data.TotalOutputTokens = 20
	res.Data.ExecutedToolCalls = []api.ToolInvocation{{Name: "a"}, {Name: "b"}}

	started := time.Now().Add(-time.Second)
	rec := NewRecord(ctx, "req_1", req, res, started)

	if rec.Subject != "team-a" || rec.Backend != "MCP_CLIENT_OPENAI" || len(rec.Servers) != 2 {
		t.Errorf("record = %+v", rec)
	}
	if !rec.Status || rec.LLMCalls != 3 || rec.TotalTokens != 120 || rec.ToolCalls != 2 || rec.Error != "" {
		t.Errorf("counters = %+v", rec)
	}
	if rec.CompletedAt.Before(rec.StartedAt) {
		t.Error("CompletedAt before StartedAt")
	}

	req.SelectedServers[0] = "CHANGED"
	if rec.Servers[0] != "GITHUB" {
		t.Error("record shares the request's server slice")
	}
}

func TestNewRecordRejected(t *testing.T) {
	rec := NewRecord(context.Background(), "req_2", nil, api.RejectedResult(api.ReasonInvalidServer), time.Now())
	if rec.Status || rec.Error != api.ReasonInvalidServer || rec.LLMCalls != 0 || rec.Servers == nil {
		t.Errorf("record = %+v", rec)
	}
}

func TestClampLimit(t *testing.T) {
	for in, want := range map[int]int{0: DefaultListLimit, -3: DefaultListLimit, 7: 7, 10000: MaxListLimit} {
		if got := ClampLimit(in); got != want {
			t.Errorf("ClampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}
