// Package noop provides an authenticator that admits every request as
// the anonymous identity. It is used when auth.type is "none".
package noop

import (
	"context"
	"net/http"

	"github.com/rhuss/mcpgate/pkg/auth"
)

// Authenticator always votes Yes.
type Authenticator struct{}

func (Authenticator) Authenticate(_ context.Context, _ *http.Request) auth.Result {
	return auth.Result{Decision: auth.Yes, Identity: auth.Anonymous()}
}
