// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets these values; services read them without importing net/http.
//
//	actorID := requestcontext.ActorID(ctx)
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//
// Tests inject values directly:
//
//	ctx = requestcontext.WithActor(ctx, 7, domain.RoleAdmin)
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	"casevault/pkg/domain"
)

type (
	actorIDKey     struct{}
	roleKey        struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyActorID     = actorIDKey{}
	ContextKeyRole        = roleKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// -----------------------------------------------------------------------------
// Identity
// -----------------------------------------------------------------------------

// ActorID retrieves the authenticated actor. Returns zero if unauthenticated.
func ActorID(ctx context.Context) domain.ActorID {
	if actorID, ok := ctx.Value(ContextKeyActorID).(domain.ActorID); ok {
		return actorID
	}
	return 0
}

// Role retrieves the authenticated actor's role. Returns "" if unauthenticated.
func Role(ctx context.Context) domain.Role {
	if role, ok := ctx.Value(ContextKeyRole).(domain.Role); ok {
		return role
	}
	return ""
}

// WithActor injects the authenticated actor and role into the context.
func WithActor(ctx context.Context, actorID domain.ActorID, role domain.Role) context.Context {
	ctx = context.WithValue(ctx, ContextKeyActorID, actorID)
	return context.WithValue(ctx, ContextKeyRole, role)
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (workers, relays, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
