package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"casevault/internal/audit"
	"casevault/pkg/domain"
	dErrors "casevault/pkg/domain-errors"
	"casevault/pkg/platform/httputil"
	"casevault/pkg/platform/middleware/admin"
	request "casevault/pkg/platform/middleware/request"
)

// Reader lists audit entries, most recent first.
type Reader interface {
	ListByTarget(ctx context.Context, targetID domain.ResourceID) ([]audit.Entry, error)
	ListByActor(ctx context.Context, actorID domain.ActorID) ([]audit.Entry, error)
	ListAll(ctx context.Context) ([]audit.Entry, error)
}

// Handler serves read-only audit trail endpoints to administrators.
type Handler struct {
	reader Reader
	logger *slog.Logger
}

func New(reader Reader, logger *slog.Logger) *Handler {
	return &Handler{reader: reader, logger: logger}
}

type EntryResponse struct {
	ID         string    `json:"id"`
	ResourceID int64     `json:"resourceId"`
	ActorID    *int64    `json:"actorId"`
	Action     string    `json:"action"`
	Details    string    `json:"details,omitempty"`
	RequestID  string    `json:"requestId,omitempty"`
	ActedAt    time.Time `json:"actedAt"`
}

type ListResponse struct {
	Entries []EntryResponse `json:"entries"`
}

func (h *Handler) Register(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Use(admin.RequireAdmin(h.logger))
		r.Get("/audit", h.HandleListAll)
		r.Get("/deletions/{resourceId}/audit", h.HandleListByResource)
		r.Get("/audit/actors/{actorId}", h.HandleListByActor)
	})
}

func (h *Handler) HandleListAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entries, err := h.reader.ListAll(ctx)
	h.respond(ctx, w, entries, err)
}

func (h *Handler) HandleListByResource(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseResourceID(chi.URLParam(r, "resourceId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	entries, err := h.reader.ListByTarget(ctx, id)
	h.respond(ctx, w, entries, err)
}

func (h *Handler) HandleListByActor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actorID, err := domain.ParseActorID(chi.URLParam(r, "actorId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	entries, err := h.reader.ListByActor(ctx, actorID)
	h.respond(ctx, w, entries, err)
}

func (h *Handler) respond(ctx context.Context, w http.ResponseWriter, entries []audit.Entry, err error) {
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list audit entries",
			"request_id", request.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit entries"))
		return
	}

	resp := ListResponse{Entries: make([]EntryResponse, 0, len(entries))}
	for _, e := range entries {
		item := EntryResponse{
			ID:         e.ID.String(),
			ResourceID: int64(e.TargetID),
			Action:     string(e.Action),
			Details:    e.Details,
			RequestID:  e.RequestID,
			ActedAt:    e.Timestamp,
		}
		if e.ActorID != nil {
			actor := int64(*e.ActorID)
			item.ActorID = &actor
		}
		resp.Entries = append(resp.Entries, item)
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
