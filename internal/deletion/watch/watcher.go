package watch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"casevault/internal/deletion"
	"casevault/internal/deletion/metrics"
	"casevault/pkg/domain"
)

// StateReader returns the current state, or deletion.UnknownState when no
// record exists.
type StateReader interface {
	State(ctx context.Context, id domain.ResourceID) (deletion.State, error)
}

// Watcher implements bounded long-poll reads of deletion state. Waiting is
// purely observational: abandoning a wait never touches the workflow.
type Watcher struct {
	states  StateReader
	hub     *Hub
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type Option func(*Watcher)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Watcher) {
		w.metrics = m
	}
}

func NewWatcher(states StateReader, hub *Hub, opts ...Option) (*Watcher, error) {
	if states == nil {
		return nil, errors.New("state reader is required")
	}
	if hub == nil {
		return nil, errors.New("hub is required")
	}
	w := &Watcher{states: states, hub: hub, logger: slog.Default()}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Await returns as soon as the state of id is terminal, or when maxWait
// elapses, whichever comes first. On timeout it returns the latest state seen,
// which is deletion.UnknownState if no record exists. maxWait <= 0 reads once.
func (w *Watcher) Await(ctx context.Context, id domain.ResourceID, maxWait time.Duration) (deletion.State, error) {
	if maxWait <= 0 {
		return w.states.State(ctx, id)
	}

	// Subscribe before reading so a transition between the read and the wait
	// is not missed.
	updates, unsubscribe := w.hub.Subscribe(id)
	defer unsubscribe()

	current, err := w.states.State(ctx, id)
	if err != nil {
		return deletion.State{}, err
	}
	if current.Phase.IsTerminal() {
		return current, nil
	}

	if w.metrics != nil {
		done := w.metrics.WaiterStarted()
		defer done()
	}

	timer := time.NewTimer(maxWait)
	defer timer.Stop()

	for {
		select {
		case state := <-updates:
			current = state
			if state.Phase.IsTerminal() {
				return current, nil
			}
		case <-timer.C:
			return current, nil
		case <-ctx.Done():
			w.logger.DebugContext(ctx, "status wait abandoned",
				"resource_id", id,
				"phase", current.Phase,
			)
			return current, ctx.Err()
		}
	}
}
