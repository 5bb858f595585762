package capability

import (
	"errors"
	"fmt"
	"testing"
)

func TestToolErrorKeepsMessage(t *testing.T) {
	cause := errors.New("timeout")
	var err error = &ToolError{Provider: "CODE-RESEARCH", Tool: "search_github", Err: cause}

	if err.Error() != "timeout" {
		t.Errorf("Error() = %q, want %q", err.Error(), "timeout")
	}
	if !errors.Is(err, cause) {
		t.Error("ToolError should unwrap to its cause")
	}

	wrapped := fmt.Errorf("invoke: %w", err)
	var te *ToolError
	if !errors.As(wrapped, &te) || te.Tool != "search_github" {
		t.Errorf("errors.As failed on %v", wrapped)
	}
}
