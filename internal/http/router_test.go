package httpapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"casevault/internal/platform/metrics"
	"casevault/pkg/platform/middleware/auth"
	request "casevault/pkg/platform/middleware/request"
	"casevault/pkg/requestcontext"
	"casevault/pkg/testutil"
)

type rejectAll struct{}

func (rejectAll) ValidateToken(string) (*auth.JWTClaims, error) {
	return nil, errors.New("invalid token")
}

// pingModule mounts one public and one protected route.
type pingModule struct{}

func (pingModule) Register(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		if requestcontext.RequestID(r.Context()) == "" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	r.With(requireAuth).Post("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/panic", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
}

func newTestRouter(checks map[string]HealthCheck) http.Handler {
	return NewRouter(Dependencies{
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		Registry:     metrics.NewRegistry(),
		JWTValidator: rejectAll{},
		Modules:      []RouteRegistrar{pingModule{}},
		HealthChecks: checks,
	})
}

func TestRouterScaffold(t *testing.T) {
	testutil.Given(t, "the HTTP router", func(t *testing.T) {
		router := newTestRouter(nil)

		testutil.When(t, "calling a public module route", func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

			testutil.Then(t, "it carries a request id", func(t *testing.T) {
				if rec.Code != http.StatusOK {
					t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
				}
				if rec.Header().Get(request.HeaderRequestID) == "" {
					t.Fatal("expected X-Request-ID response header")
				}
			})
		})

		testutil.When(t, "calling a protected route without a token", func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ping", nil))

			testutil.Then(t, "it should respond unauthorized", func(t *testing.T) {
				if rec.Code != http.StatusUnauthorized {
					t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
				}
			})
		})

		testutil.When(t, "a handler panics", func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))

			testutil.Then(t, "it should recover with 500", func(t *testing.T) {
				if rec.Code != http.StatusInternalServerError {
					t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, rec.Code)
				}
			})
		})

		testutil.When(t, "scraping /metrics", func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

			testutil.Then(t, "it exposes runtime metrics", func(t *testing.T) {
				if rec.Code != http.StatusOK {
					t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
				}
			})
		})
	})
}

func TestHealthz(t *testing.T) {
	t.Run("all checks pass", func(t *testing.T) {
		router := newTestRouter(map[string]HealthCheck{
			"redis": func(context.Context) error { return nil },
		})
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/healthz"))
		testutil.AssertStatusOK(t, rr)
		testutil.AssertJSONContains(t, rr, "healthy", true)
	})

	t.Run("failing check is 503", func(t *testing.T) {
		router := newTestRouter(map[string]HealthCheck{
			"postgres": func(context.Context) error { return errors.New("down") },
		})
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/healthz"))
		testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
	})
}
