package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/rhuss/mcpgate/pkg/api"
	"github.com/rhuss/mcpgate/pkg/debug"
	"github.com/rhuss/mcpgate/pkg/observability"
	"github.com/rhuss/mcpgate/pkg/storage"
)

// DefaultBypassEndpoints skip authentication.
var DefaultBypassEndpoints = []string{"/", "/healthz", "/readyz", "/metrics"}

// Middleware authenticates each request with chain, applies limiter when
// non-nil and stores the identity in the request context. Paths in
// bypass are served without authentication.
func Middleware(chain *Chain, limiter RateLimiter, bypass []string) func(http.Handler) http.Handler {
	skip := make(map[string]bool, len(bypass))
	for _, p := range bypass {
		skip[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			res := chain.Authenticate(r.Context(), r)
			if res.Decision != Yes || res.Identity == nil {
				slog.Warn("authentication failed",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"error", res.Err,
				)
				status, msg := http.StatusUnauthorized, ErrUnauthenticated.Error()
				if errors.Is(res.Err, ErrForbidden) {
					status, msg = http.StatusForbidden, ErrForbidden.Error()
				}
				writeError(w, status, api.NewUnauthorizedError(msg))
				return
			}

			id := res.Identity
			if id.Subject == "" {
				slog.Error("authenticator returned identity with empty subject")
				writeError(w, http.StatusInternalServerError, api.NewServerError("internal authentication error"))
				return
			}
			debug.Log("auth", "authenticated", "subject", id.Subject, "tier", id.ServiceTier, "path", r.URL.Path)

			if limiter != nil {
				if err := limiter.Allow(r.Context(), id); err != nil {
					slog.Warn("rate limit exceeded", "subject", id.Subject, "tier", id.ServiceTier)
					observability.RateLimitRejectedTotal.WithLabelValues(id.ServiceTier).Inc()
					var le *LimitError
					if errors.As(err, &le) && le.RetryAfter > 0 {
						w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(le.RetryAfter.Seconds()))))
					}
					writeError(w, http.StatusTooManyRequests, api.NewTooManyRequestsError(err.Error()))
					return
				}
			}

			ctx := SetIdentity(r.Context(), id)
			ctx = storage.SetSubject(ctx, id.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeError(w http.ResponseWriter, status int, apiErr *api.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(api.ErrorResponse{Error: apiErr})
}
