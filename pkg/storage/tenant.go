package storage

import "context"

// subjectKey is the context key for the authenticated subject.
type subjectKey struct{}

// SetSubject attaches the authenticated subject to the context. Ledger
// reads are scoped to it.
func SetSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey{}, subject)
}

// GetSubject returns the subject from the context, or "" when the
// gateway runs without authentication.
func GetSubject(ctx context.Context) string {
	if v, ok := ctx.Value(subjectKey{}).(string); ok {
		return v
	}
	return ""
}
