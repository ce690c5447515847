package auth

import (
	"context"

	"github.com/sipico/practice-server/internal/storage"
)

// ctxKey is a private type for context keys to prevent collisions.
type ctxKey int

const (
	userKey  ctxKey = iota // stores storage.Record
	tokenKey               // stores string
)

// UserFromContext retrieves the authenticated user from context.
// Returns nil for anonymous requests.
func UserFromContext(ctx context.Context) storage.Record {
	if v := ctx.Value(userKey); v != nil {
		if user, ok := v.(storage.Record); ok {
			return user
		}
	}
	return nil
}

// TokenFromContext retrieves the access token the user authenticated with.
func TokenFromContext(ctx context.Context) string {
	if v := ctx.Value(tokenKey); v != nil {
		if token, ok := v.(string); ok {
			return token
		}
	}
	return ""
}

// WithUser adds the authenticated user to the context.
func WithUser(ctx context.Context, user storage.Record) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// WithToken adds the access token to the context.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey, token)
}
