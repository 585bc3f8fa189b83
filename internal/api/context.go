package api

import (
	"context"
	"errors"

	"github.com/logicgrid/logicgrid/internal/types"
)

// userContextKey is the context key for the authenticated user.
type userContextKey struct{}

// sessionContextKey is the context key for the session token.
type sessionContextKey struct{}

// ErrNoUserInContext indicates no authenticated user was found in the context.
var ErrNoUserInContext = errors.New("no user in context")

// WithUser returns a new context with the authenticated user attached.
func WithUser(ctx context.Context, u *types.User) context.Context {
	return context.WithValue(ctx, userContextKey{}, u)
}

// UserFromContext extracts the authenticated user from the context.
// Returns ErrNoUserInContext if not present or nil.
func UserFromContext(ctx context.Context) (*types.User, error) {
	u, ok := ctx.Value(userContextKey{}).(*types.User)
	if !ok || u == nil {
		return nil, ErrNoUserInContext
	}
	return u, nil
}

// MustUserFromContext extracts the authenticated user or panics.
// Use only when middleware guarantees user presence.
func MustUserFromContext(ctx context.Context) *types.User {
	u, err := UserFromContext(ctx)
	if err != nil {
		panic("user not in context: middleware misconfiguration")
	}
	return u
}

// WithSessionToken returns a new context with the session token attached.
func WithSessionToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, token)
}

// SessionTokenFromContext extracts the session token from the context.
// Returns the empty string if not present.
func SessionTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(sessionContextKey{}).(string)
	return token
}
