package audit

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"casevault/pkg/domain"
	"casevault/pkg/requestcontext"
)

// Store persists entries append-only. List methods return most-recent-first.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	ListByTarget(ctx context.Context, targetID domain.ResourceID) ([]Entry, error)
	ListByActor(ctx context.Context, actorID domain.ActorID) ([]Entry, error)
	ListAll(ctx context.Context) ([]Entry, error)
}

// Trail records actions against resources. It is append-only and uses the
// store for persistence; an optional forwarder mirrors entries downstream.
type Trail struct {
	store     Store
	forwarder *Forwarder
	logger    *slog.Logger
}

type Option func(*Trail)

func WithLogger(logger *slog.Logger) Option {
	return func(t *Trail) {
		t.logger = logger
	}
}

// WithForwarder mirrors every persisted entry to the forwarder's sink.
func WithForwarder(f *Forwarder) Option {
	return func(t *Trail) {
		t.forwarder = f
	}
}

func New(store Store, opts ...Option) (*Trail, error) {
	if store == nil {
		return nil, errors.New("audit store is required")
	}
	t := &Trail{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Record appends an entry, filling in ID, timestamp and request id when unset.
func (t *Trail) Record(ctx context.Context, entry Entry) error {
	if entry.TargetID.IsNil() {
		return errors.New("audit entry requires a target id")
	}
	if entry.Action == "" {
		return errors.New("audit entry requires an action")
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = requestcontext.Now(ctx).UTC()
	}
	if entry.RequestID == "" {
		entry.RequestID = requestcontext.RequestID(ctx)
	}

	if err := t.store.Append(ctx, entry); err != nil {
		return err
	}

	t.logger.InfoContext(ctx, "audit entry recorded",
		"log_type", "audit",
		"action", entry.Action,
		"resource_id", entry.TargetID,
		"actor_id", entry.ActorID,
		"request_id", entry.RequestID,
	)

	if t.forwarder != nil {
		t.forwarder.Enqueue(ctx, entry)
	}
	return nil
}

func (t *Trail) ListByTarget(ctx context.Context, targetID domain.ResourceID) ([]Entry, error) {
	return t.store.ListByTarget(ctx, targetID)
}

func (t *Trail) ListByActor(ctx context.Context, actorID domain.ActorID) ([]Entry, error) {
	return t.store.ListByActor(ctx, actorID)
}

// ListAll returns the whole trail, most recent first.
func (t *Trail) ListAll(ctx context.Context) ([]Entry, error) {
	return t.store.ListAll(ctx)
}
