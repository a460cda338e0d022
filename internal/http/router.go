package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"casevault/internal/platform/metrics"
	"casevault/pkg/platform/httputil"
	"casevault/pkg/platform/middleware/auth"
	request "casevault/pkg/platform/middleware/request"
	"casevault/pkg/platform/middleware/requesttime"
)

// RouteRegistrar mounts a module's routes. Mutating routes wrap themselves in
// requireAuth.
type RouteRegistrar interface {
	Register(r chi.Router, requireAuth func(http.Handler) http.Handler)
}

// HealthCheck reports whether a backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Dependencies is everything the router needs from main.
type Dependencies struct {
	Logger       *slog.Logger
	Registry     *prometheus.Registry
	JWTValidator auth.JWTValidator
	Modules      []RouteRegistrar
	HealthChecks map[string]HealthCheck
}

// NewRouter wires platform middleware, operational endpoints and module routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(accessLog(deps.Logger))

	r.Get("/healthz", healthz(deps.HealthChecks))
	if deps.Registry != nil {
		r.Handle("/metrics", metrics.Handler(deps.Registry))
	}

	requireAuth := auth.RequireAuth(deps.JWTValidator, deps.Logger)
	for _, m := range deps.Modules {
		m.Register(r, requireAuth)
	}
	return r
}

func healthz(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{}
		healthy := true
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status[name] = "unavailable"
				healthy = false
				continue
			}
			status[name] = "ok"
		}

		code := http.StatusOK
		if !healthy {
			code = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, code, map[string]any{"healthy": healthy, "checks": status})
	}
}

// accessLog emits one structured line per request.
func accessLog(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.InfoContext(r.Context(), "http request",
				"request_id", request.GetRequestID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}
