package auth

import (
	"context"
	"errors"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid bearer token")
)

// Verifier maps a bearer token issued by the identity provider to a user id.
type Verifier interface {
	Verify(ctx context.Context, token string) (userID string, err error)
}

type contextKey string

const userContextKey = contextKey("user")

// WithUserID returns a copy of ctx carrying the authenticated user id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userContextKey, userID)
}

// UserID returns the id stored by RequireUser.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userContextKey).(string)
	return id, ok && id != ""
}
