package auth

import (
	"context"
	"sync"
	"time"
)

// RateLimiter decides whether an identity may make another request.
type RateLimiter interface {
	// Allow returns nil, or a *LimitError when the caller must wait.
	Allow(ctx context.Context, identity *Identity) error
}

// LimitError reports an exhausted window.
type LimitError struct {
	RetryAfter time.Duration
}

func (e *LimitError) Error() string { return ErrTooManyRequests.Error() }

// Unwrap lets errors.Is match ErrTooManyRequests.
func (e *LimitError) Unwrap() error { return ErrTooManyRequests }

// TierConfig holds the limit of one service tier.
type TierConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// InProcessLimiter is a fixed one-minute window counter per subject and
// tier, kept in memory. Limits are per process.
type InProcessLimiter struct {
	tiers      map[string]TierConfig
	defaultRPM int
	now        func() time.Time

	mu       sync.Mutex
	counters map[string]*window
}

type window struct {
	count   int
	startAt time.Time
}

// NewInProcessLimiter creates a limiter. Tiers without an entry use
// defaultRPM; a limit of zero or less disables limiting for that tier.
func NewInProcessLimiter(tiers map[string]TierConfig, defaultRPM int) *InProcessLimiter {
	return &InProcessLimiter{
		tiers:      tiers,
		defaultRPM: defaultRPM,
		now:        time.Now,
		counters:   make(map[string]*window),
	}
}

// Allow counts the request against the identity's window.
func (l *InProcessLimiter) Allow(_ context.Context, identity *Identity) error {
	tier := identity.ServiceTier
	if tier == "" {
		tier = DefaultTier
	}
	rpm := l.defaultRPM
	if tc, ok := l.tiers[tier]; ok {
		rpm = tc.RequestsPerMinute
	}
	if rpm <= 0 {
		return nil
	}

	key := identity.Subject + ":" + tier
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.counters[key]
	if !ok || now.Sub(w.startAt) >= time.Minute {
		l.counters[key] = &window{count: 1, startAt: now}
		l.sweep(now)
		return nil
	}
	w.count++
	if w.count > rpm {
		return &LimitError{RetryAfter: w.startAt.Add(time.Minute).Sub(now)}
	}
	return nil
}

// sweep drops expired windows once the map grows. Must hold l.mu.
func (l *InProcessLimiter) sweep(now time.Time) {
	if len(l.counters) < 1024 {
		return
	}
	for k, w := range l.counters {
		if now.Sub(w.startAt) >= time.Minute {
			delete(l.counters, k)
		}
	}
}
