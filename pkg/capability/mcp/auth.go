package mcp

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// headerTransport sets static headers on every request.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}

// httpClient returns the client used by HTTP transports, or nil when the
// server needs neither headers nor auth. OAuth tokens are cached by the
// token source and refreshed shortly before expiry; an OAuth
// Authorization header overrides a static one.
func httpClient(ctx context.Context, cfg ServerConfig) *http.Client {
	if cfg.Auth.Type == "" && len(cfg.Headers) == 0 {
		return nil
	}

	var rt http.RoundTripper = http.DefaultTransport
	if cfg.Auth.Type == "oauth_client_credentials" {
		cc := &clientcredentials.Config{
			ClientID:     cfg.Auth.ClientID,
			ClientSecret: cfg.Auth.ClientSecret,
			TokenURL:     cfg.Auth.TokenURL,
			Scopes:       cfg.Auth.Scopes,
		}
		// The token source outlives the connect call.
		rt = &oauth2.Transport{Source: cc.TokenSource(context.WithoutCancel(ctx)), Base: rt}
	}
	if len(cfg.Headers) > 0 {
		rt = &headerTransport{base: rt, headers: cfg.Headers}
	}
	return &http.Client{Transport: rt}
}
