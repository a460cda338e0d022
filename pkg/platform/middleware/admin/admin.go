package admin

import (
	"log/slog"
	"net/http"

	request "casevault/pkg/platform/middleware/request"
	"casevault/pkg/requestcontext"
)

// RequireAdmin rejects callers whose authenticated role lacks elevated
// privilege. It must run after auth.RequireAuth.
func RequireAdmin(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			actorID := requestcontext.ActorID(ctx)
			if actorID.IsNil() {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"authentication required"}`))
				return
			}
			if !requestcontext.Role(ctx).IsAdmin() {
				logger.WarnContext(ctx, "admin role required",
					"actor_id", actorID,
					"role", requestcontext.Role(ctx),
					"request_id", request.GetRequestID(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"forbidden","error_description":"administrator role required"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
