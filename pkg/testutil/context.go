package testutil

import (
	"context"
	"net/http"

	"casevault/pkg/domain"
	"casevault/pkg/requestcontext"
)

// WithActor adds an authenticated actor and role to the request context.
// This simulates what the auth middleware would do for authenticated requests.
func WithActor(req *http.Request, actorID domain.ActorID, role domain.Role) *http.Request {
	return req.WithContext(requestcontext.WithActor(req.Context(), actorID, role))
}

// WithAdmin is WithActor with the admin role.
func WithAdmin(req *http.Request, actorID domain.ActorID) *http.Request {
	return WithActor(req, actorID, domain.RoleAdmin)
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
