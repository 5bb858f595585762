package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestHTTPClientNone(t *testing.T) {
	if c := httpClient(context.Background(), ServerConfig{URL: "http://x"}); c != nil {
		t.Error("expected nil client without headers or auth")
	}
}

func TestHTTPClientStaticHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	}))
	defer srv.Close()

	c := httpClient(context.Background(), ServerConfig{Headers: map[string]string{"X-Api-Key": "k1"}})
	resp, err := c.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if got.Get("X-Api-Key") != "k1" {
		t.Errorf("X-Api-Key = %q", got.Get("X-Api-Key"))
	}
}

func TestHTTPClientOAuthClientCredentials(t *testing.T) {
	var tokenCalls atomic.Int32
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		if err := r.ParseForm(); err != nil || r.FormValue("grant_type") != "client_credentials" {
			http.Error(w, "bad grant", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-123",
			"token_type":   "bearer",
			"expires_in":   3600,
		})
	}))
	defer tokenSrv.Close()

	var auths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auths = append(auths, r.Header.Get("Authorization"))
	}))
	defer srv.Close()

	c := httpClient(context.Background(), ServerConfig{
		Headers: map[string]string{"Authorization": "Bearer static"},
		Auth: AuthConfig{
			Type:         "oauth_client_credentials",
			TokenURL:     tokenSrv.URL,
			ClientID:     "gateway",
			ClientSecret: "secret",
			Scopes:       []string{"tools"},
		},
	})
	for range 2 {
		resp, err := c.Get(srv.URL)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
	}

	for _, a := range auths {
		if a != "Bearer tok-123" {
			t.Errorf("Authorization = %q, want the OAuth token", a)
		}
	}
	if n := tokenCalls.Load(); n != 1 {
		t.Errorf("token endpoint called %d times, want 1 (cached)", n)
	}
}

func TestServerConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  ServerConfig
		ok   bool
	}{
		{"stdio", ServerConfig{Name: "A", Command: "node"}, true},
		{"http", ServerConfig{Name: "A", URL: "http://x"}, true},
		{"sse without url", ServerConfig{Name: "A", Transport: TransportSSE}, false},
		{"unknown transport", ServerConfig{Name: "A", Transport: "grpc"}, false},
		{"oauth without token url", ServerConfig{Name: "A", URL: "http://x", Auth: AuthConfig{Type: "oauth_client_credentials"}}, false},
		{"unknown auth", ServerConfig{Name: "A", URL: "http://x", Auth: AuthConfig{Type: "basic"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, ok=%v", err, tt.ok)
			}
		})
	}
}
