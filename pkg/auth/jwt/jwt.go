// Package jwt authenticates gateway callers by JWT bearer tokens. Tokens
// are verified either against the RSA keys of a JWKS endpoint or, for
// service-to-service setups, against a shared HMAC secret.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/rhuss/mcpgate/pkg/auth"
	"github.com/rhuss/mcpgate/pkg/debug"
)

// Config holds the JWT authenticator settings.
type Config struct {
	// Issuer is the expected iss claim. Empty skips the check.
	Issuer string

	// Audience is the expected aud claim. Empty skips the check.
	Audience string

	// JWKSURL serves the RSA verification keys.
	JWKSURL string

	// Secret enables HS256 verification instead of JWKS.
	Secret string

	// SubjectClaim names the claim used as identity subject. Default: "sub".
	SubjectClaim string

	// TierClaim names the claim holding the service tier. Default: "tier".
	TierClaim string

	// ScopesClaim names the scope claim. Default: "scope". It may be a
	// space-separated string or an array.
	ScopesClaim string

	// RequiredScope, when set, must be among the token's scopes.
	RequiredScope string

	// CacheTTL controls how long JWKS keys are cached. Default: 1 hour.
	CacheTTL time.Duration

	// HTTPClient fetches the JWKS. Default: http.DefaultClient.
	HTTPClient *http.Client
}

func (c *Config) applyDefaults() {
	if c.SubjectClaim == "" {
		c.SubjectClaim = "sub"
	}
	if c.TierClaim == "" {
		c.TierClaim = "tier"
	}
	if c.ScopesClaim == "" {
		c.ScopesClaim = "scope"
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = time.Hour
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
}

// Authenticator validates JWT bearer tokens.
type Authenticator struct {
	cfg  Config
	keys *keySet
}

// New creates a JWT authenticator. Either Secret or JWKSURL must be set.
func New(cfg Config) (*Authenticator, error) {
	cfg.applyDefaults()
	if cfg.Secret == "" && cfg.JWKSURL == "" {
		return nil, errors.New("jwt: either secret or jwks_url is required")
	}
	a := &Authenticator{cfg: cfg}
	if cfg.Secret == "" {
		a.keys = newKeySet(cfg.JWKSURL, cfg.CacheTTL, cfg.HTTPClient)
	}
	return a, nil
}

// Authenticate abstains without a bearer token and votes No for any
// token that fails verification.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) auth.Result {
	raw, ok := auth.BearerToken(r)
	if !ok {
		return auth.Result{Decision: auth.Abstain}
	}
	if raw == "" {
		return auth.Result{Decision: auth.No, Err: errors.New("empty bearer token")}
	}
	// API keys share the bearer scheme; only dotted tokens are JWTs.
	if strings.Count(raw, ".") != 2 {
		return auth.Result{Decision: auth.Abstain}
	}

	token, err := jwtlib.Parse(raw, func(t *jwtlib.Token) (any, error) {
		return a.verificationKey(ctx, t)
	}, a.parserOptions()...)
	if err != nil {
		debug.Log("auth", "jwt rejected", "error", err.Error())
		return auth.Result{Decision: auth.No, Err: fmt.Errorf("invalid JWT: %w", err)}
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok || !token.Valid {
		return auth.Result{Decision: auth.No, Err: errors.New("invalid JWT claims")}
	}

	subject := claimString(claims, a.cfg.SubjectClaim)
	if subject == "" {
		return auth.Result{Decision: auth.No, Err: fmt.Errorf("JWT missing %q claim", a.cfg.SubjectClaim)}
	}
	id := &auth.Identity{
		Subject:     subject,
		ServiceTier: claimString(claims, a.cfg.TierClaim),
		Scopes:      scopes(claims, a.cfg.ScopesClaim),
	}
	if id.ServiceTier == "" {
		id.ServiceTier = auth.DefaultTier
	}
	if a.cfg.RequiredScope != "" && !id.HasScope(a.cfg.RequiredScope) {
		return auth.Result{Decision: auth.No, Err: fmt.Errorf("%w: missing scope %q", auth.ErrForbidden, a.cfg.RequiredScope)}
	}
	return auth.Result{Decision: auth.Yes, Identity: id}
}

func (a *Authenticator) verificationKey(ctx context.Context, t *jwtlib.Token) (any, error) {
	if a.keys == nil {
		return []byte(a.cfg.Secret), nil
	}
	kid, _ := t.Header["kid"].(string)
	if kid == "" {
		return nil, errors.New("token missing kid header")
	}
	return a.keys.get(ctx, kid)
}

func (a *Authenticator) parserOptions() []jwtlib.ParserOption {
	methods := []string{"RS256", "RS384", "RS512"}
	if a.keys == nil {
		methods = []string{"HS256"}
	}
	opts := []jwtlib.ParserOption{jwtlib.WithValidMethods(methods), jwtlib.WithExpirationRequired()}
	if a.cfg.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(a.cfg.Issuer))
	}
	if a.cfg.Audience != "" {
		opts = append(opts, jwtlib.WithAudience(a.cfg.Audience))
	}
	return opts
}

func claimString(claims jwtlib.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return s
}

// scopes reads a space-separated string or an array claim.
func scopes(claims jwtlib.MapClaims, key string) []string {
	switch v := claims[key].(type) {
	case string:
		if f := strings.Fields(v); len(f) > 0 {
			return f
		}
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
