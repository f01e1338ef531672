// Package requestcontext stores request-scoped values (request ID, authenticated
// user, request time) in a context.Context.
package requestcontext

import (
	"context"
	"time"

	id "companion/pkg/domain"
)

type (
	contextKeyRequestID struct{}
	contextKeyUserID    struct{}
	contextKeyTime      struct{}
)

// WithRequestID stores the request ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID{}, requestID)
}

// RequestID returns the request ID or "" when unset.
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(contextKeyRequestID{}).(string); ok {
		return v
	}
	return ""
}

// WithUserID stores the authenticated user.
func WithUserID(ctx context.Context, userID id.UserID) context.Context {
	return context.WithValue(ctx, contextKeyUserID{}, userID)
}

// UserID returns the authenticated user, or the nil UserID.
func UserID(ctx context.Context) id.UserID {
	if v, ok := ctx.Value(contextKeyUserID{}).(id.UserID); ok {
		return v
	}
	return id.UserID{}
}

// WithTime pins the request time. Tests use it to make day and period
// boundaries deterministic.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, contextKeyTime{}, t)
}

// Now returns the pinned request time or time.Now().
func Now(ctx context.Context) time.Time {
	if v, ok := ctx.Value(contextKeyTime{}).(time.Time); ok {
		return v
	}
	return time.Now()
}
