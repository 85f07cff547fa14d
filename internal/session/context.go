// Package session carries the authenticated caller's identity through the
// request context. It replaces ambient storage reads with an explicit
// session object whose lifecycle is tied to authentication.
package session

import "context"

type ctxKey string

const sessionKey ctxKey = "orthopulse.session"

// Session identifies the authenticated account for a request.
type Session struct {
	AccountID string
	Email     string
	OrgID     string
	Role      string
}

// WithSession stores the session in context.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// FromContext extracts the session if present.
func FromContext(ctx context.Context) (Session, bool) {
	val := ctx.Value(sessionKey)
	if val == nil {
		return Session{}, false
	}
	s, ok := val.(Session)
	return s, ok && s.AccountID != ""
}

// OrgIDFromContext extracts the session's org id if present.
func OrgIDFromContext(ctx context.Context) (string, bool) {
	s, ok := FromContext(ctx)
	if !ok || s.OrgID == "" {
		return "", false
	}
	return s.OrgID, true
}
