package common

import (
	"context"
)

// ContextKey represents a context key type
type ContextKey string

// Context keys
const (
	ContextKeyUserID ContextKey = "user_id"
)

// WithUserID adds the caller's opaque user id to context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ContextKeyUserID, userID)
}

// GetUserID extracts the caller's user id from context. Anonymous callers
// have none.
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(ContextKeyUserID).(string)
	return userID, ok && userID != ""
}
