package api

import "testing"

func TestNewRequestID(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		id := NewRequestID()
		if !ValidateRequestID(id) {
			t.Fatalf("NewRequestID() = %q does not validate", id)
		}
		if seen[id] {
			t.Fatalf("duplicate request id %q", id)
		}
		seen[id] = true
	}
}

func TestValidateRequestID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"req_0123456789abcdef0123456789abcdef", true},
		{"req_0123456789abcdef", false},
		{"resp_0123456789abcdef0123456789abcdef", false},
		{"req_zz23456789abcdef0123456789abcdef", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidateRequestID(tt.id); got != tt.want {
			t.Errorf("ValidateRequestID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}
