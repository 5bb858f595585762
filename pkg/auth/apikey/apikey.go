// Package apikey authenticates gateway callers by static API keys. Keys
// are accepted as a bearer token or in the X-API-Key header, are hashed
// with SHA-256 at startup and compared in constant time.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"

	"github.com/rhuss/mcpgate/pkg/auth"
)

// HeaderName is the alternative header carrying a key.
const HeaderName = "X-API-Key"

// Entry maps one raw key to the identity it grants.
type Entry struct {
	Key         string   `yaml:"key" json:"key"`
	Subject     string   `yaml:"subject" json:"subject"`
	ServiceTier string   `yaml:"tier" json:"tier"`
	Scopes      []string `yaml:"scopes" json:"scopes"`
}

type hashedKey struct {
	hash     [32]byte
	identity auth.Identity
}

// Authenticator validates keys against a fixed set.
type Authenticator struct {
	keys []hashedKey
}

// New hashes the entries' keys. Plaintext keys are not kept.
func New(entries []Entry) *Authenticator {
	a := &Authenticator{keys: make([]hashedKey, 0, len(entries))}
	for _, e := range entries {
		tier := e.ServiceTier
		if tier == "" {
			tier = auth.DefaultTier
		}
		a.keys = append(a.keys, hashedKey{
			hash:     sha256.Sum256([]byte(e.Key)),
			identity: auth.Identity{Subject: e.Subject, ServiceTier: tier, Scopes: e.Scopes},
		})
	}
	return a
}

// Authenticate abstains when no key is presented, returns No for an
// unknown or empty key and Yes otherwise.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.Result {
	key, ok := auth.BearerToken(r)
	if !ok {
		key = r.Header.Get(HeaderName)
		if key == "" && r.Header.Values(HeaderName) == nil {
			return auth.Result{Decision: auth.Abstain}
		}
	}
	if key == "" {
		return auth.Result{Decision: auth.No, Err: auth.ErrUnauthenticated}
	}

	sum := sha256.Sum256([]byte(key))
	for _, k := range a.keys {
		if subtle.ConstantTimeCompare(sum[:], k.hash[:]) == 1 {
			id := k.identity
			id.Scopes = append([]string(nil), k.identity.Scopes...)
			return auth.Result{Decision: auth.Yes, Identity: &id}
		}
	}
	return auth.Result{Decision: auth.No, Err: auth.ErrUnauthenticated}
}
