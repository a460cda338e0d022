package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"casevault/internal/deletion"
	"casevault/pkg/domain"
	dErrors "casevault/pkg/domain-errors"
	"casevault/pkg/platform/httputil"
	"casevault/pkg/platform/middleware/admin"
	request "casevault/pkg/platform/middleware/request"
	"casevault/pkg/requestcontext"
)

const (
	defaultStatusWait    = 10 * time.Second
	defaultStatusMaxWait = 30 * time.Second
)

// Service is the deletion workflow as seen by the gateway.
type Service interface {
	Initiate(ctx context.Context, id domain.ResourceID, actorID domain.ActorID) (string, error)
	Confirm(ctx context.Context, id domain.ResourceID, actorID domain.ActorID, decision string) (deletion.Outcome, error)
	Clear(ctx context.Context, id domain.ResourceID) error
}

// StatusWatcher performs bounded long-poll reads.
type StatusWatcher interface {
	Await(ctx context.Context, id domain.ResourceID, maxWait time.Duration) (deletion.State, error)
}

// Handler exposes the deletion workflow over HTTP.
type Handler struct {
	workflow    Service
	watcher     StatusWatcher
	logger      *slog.Logger
	defaultWait time.Duration
	maxWait     time.Duration
}

type Option func(*Handler)

// WithStatusWait sets the wait used when ?wait= is absent and the cap applied
// to any requested wait.
func WithStatusWait(defaultWait, maxWait time.Duration) Option {
	return func(h *Handler) {
		if maxWait > 0 {
			h.maxWait = maxWait
		}
		if defaultWait >= 0 {
			h.defaultWait = min(defaultWait, h.maxWait)
		}
	}
}

// New creates a new deletion Handler.
func New(workflow Service, watcher StatusWatcher, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		workflow:    workflow,
		watcher:     watcher,
		logger:      logger,
		defaultWait: defaultStatusWait,
		maxWait:     defaultStatusMaxWait,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the deletion routes with the chi router. Status is
// public; the mutating routes sit behind requireAuth and the admin check.
func (h *Handler) Register(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Get("/deletions/{resourceId}/status", h.HandleStatus)

	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Use(admin.RequireAdmin(h.logger))
		r.Post("/deletions/{resourceId}", h.HandleInitiate)
		r.Post("/deletions/{resourceId}/confirm", h.HandleConfirm)
		r.Delete("/deletions/{resourceId}", h.HandleClear)
	})
}

// HandleInitiate opens a deletion workflow and returns the confirmation prompt.
func (h *Handler) HandleInitiate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, actorID, ok := h.parseTarget(w, r)
	if !ok {
		return
	}

	prompt, err := h.workflow.Initiate(ctx, id, actorID)
	if err != nil {
		h.writeError(ctx, w, err, "failed to initiate deletion", id)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, InitiateResponse{Message: prompt})
}

// HandleConfirm applies the admin's yes/no answer. A failed destructive
// operation is still a 200 with success=false and status "Failed".
func (h *Handler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, actorID, ok := h.parseTarget(w, r)
	if !ok {
		return
	}
	decision := r.URL.Query().Get("decision")

	h.logger.InfoContext(ctx, "confirming deletion",
		"request_id", request.GetRequestID(ctx),
		"resource_id", id,
		"actor_id", actorID,
		"decision", decision,
	)

	outcome, err := h.workflow.Confirm(ctx, id, actorID, decision)
	if err != nil {
		h.writeError(ctx, w, err, "failed to confirm deletion", id)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toConfirmResponse(outcome))
}

// HandleStatus reports the deletion state, waiting up to ?wait= for a
// terminal phase. Unknown ids report status "Unknown", never an error.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseResourceID(chi.URLParam(r, "resourceId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	wait, err := h.parseWait(r.URL.Query().Get("wait"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	state, err := h.watcher.Await(ctx, id, wait)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		h.writeError(ctx, w, err, "failed to read deletion status", id)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toStatusResponse(state))
}

// HandleClear forgets a terminal deletion record.
func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, _, ok := h.parseTarget(w, r)
	if !ok {
		return
	}

	if err := h.workflow.Clear(ctx, id); err != nil {
		h.writeError(ctx, w, err, "failed to clear deletion state", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseTarget reads the resource id and resolves the acting admin. An
// explicit ?actorId= must match the authenticated actor.
func (h *Handler) parseTarget(w http.ResponseWriter, r *http.Request) (domain.ResourceID, domain.ActorID, bool) {
	ctx := r.Context()

	id, err := domain.ParseResourceID(chi.URLParam(r, "resourceId"))
	if err != nil {
		httputil.WriteError(w, err)
		return 0, 0, false
	}

	actorID := requestcontext.ActorID(ctx)
	if actorID.IsNil() {
		// RequireAuth runs before every mutating route.
		h.logger.ErrorContext(ctx, "actor missing from context despite auth middleware",
			"request_id", request.GetRequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return 0, 0, false
	}

	if raw := r.URL.Query().Get("actorId"); raw != "" {
		claimed, err := domain.ParseActorID(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return 0, 0, false
		}
		if claimed != actorID {
			h.logger.WarnContext(ctx, "actorId does not match authenticated actor",
				"request_id", request.GetRequestID(ctx),
				"actor_id", actorID,
				"claimed_actor_id", claimed,
			)
			httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "actorId does not match authenticated actor"))
			return 0, 0, false
		}
	}
	return id, actorID, true
}

func (h *Handler) parseWait(raw string) (time.Duration, error) {
	if raw == "" {
		return h.defaultWait, nil
	}
	wait, err := time.ParseDuration(raw)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeBadRequest, "wait must be a duration such as 5s")
	}
	return max(0, min(wait, h.maxWait)), nil
}

// writeError logs by severity and renders err. Internal errors reach the
// client without their cause.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error, msg string, id domain.ResourceID) {
	attrs := []any{
		"request_id", request.GetRequestID(ctx),
		"resource_id", id,
		"error", err,
	}
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, attrs...)
	} else {
		h.logger.WarnContext(ctx, msg, attrs...)
	}
	httputil.WriteError(w, err)
}
