package common

import (
	"context"
)

// UserContext holds the per-request identity resolved by the HTTP middleware
// from a bearer token or the X-Stacker-User-ID header.
type UserContext struct {
	UserID string
	Email  string
	Source string // "bearer" or "header"
}

type contextKey int

const (
	userContextKey contextKey = iota
)

// WithUserContext stores a UserContext in the request context.
func WithUserContext(ctx context.Context, uc *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, uc)
}

// UserContextFromContext retrieves the UserContext from context, or nil if absent.
func UserContextFromContext(ctx context.Context) *UserContext {
	uc, _ := ctx.Value(userContextKey).(*UserContext)
	return uc
}

// ResolveUserID returns the UserID from context, or "" when no user context is present.
func ResolveUserID(ctx context.Context) string {
	if uc := UserContextFromContext(ctx); uc != nil {
		return uc.UserID
	}
	return ""
}
