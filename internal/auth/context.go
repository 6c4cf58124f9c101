package auth

import (
	"context"

	"huddle-admin/backend/pkg/models"
)

type sessionKey struct{}

// WithSession returns a copy of ctx carrying the session.
func WithSession(ctx context.Context, s models.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the session stored by RequireAuth.
func SessionFromContext(ctx context.Context) (models.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(models.Session)
	return s, ok
}
