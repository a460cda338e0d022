package deletion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"casevault/internal/audit"
	"casevault/internal/deletion/metrics"
	"casevault/pkg/domain"
	dErrors "casevault/pkg/domain-errors"
	"casevault/pkg/platform/sentinel"
	"casevault/pkg/requestcontext"
)

const (
	defaultStoreTimeout  = 5 * time.Second
	defaultResourceLabel = "Evidence"
	tracerName           = "casevault/internal/deletion"

	// terminalWriteAttempts bounds retries of the InProgress to terminal write
	// once the destructive call has returned.
	terminalWriteAttempts = 3
	terminalWriteBackoff  = 20 * time.Millisecond
)

// StateStore holds one State per resource id. Implementations must apply
// Open, Transition and DeleteTerminal atomically per key.
type StateStore interface {
	Get(ctx context.Context, id domain.ResourceID) (State, error)
	// Open writes a fresh Pending record, replacing any Pending or terminal
	// one. It returns sentinel.ErrInvalidState if the record is InProgress.
	Open(ctx context.Context, state State) error
	// Transition applies mutate only when the stored phase equals from and
	// returns the stored result. On a phase mismatch it returns the current
	// record with sentinel.ErrConflict; an absent record is sentinel.ErrNotFound.
	Transition(ctx context.Context, id domain.ResourceID, from Phase, mutate func(*State)) (State, error)
	// DeleteTerminal removes a terminal record. Non-terminal records are left
	// untouched and reported as sentinel.ErrInvalidState.
	DeleteTerminal(ctx context.Context, id domain.ResourceID) error
}

// ResourceStore is the external record store holding the resources being
// deleted. Remove returns sentinel.ErrNotFound when the resource is absent.
type ResourceStore interface {
	Exists(ctx context.Context, id domain.ResourceID) (bool, error)
	Remove(ctx context.Context, id domain.ResourceID) error
}

type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// Notifier is told about every committed transition so status waiters can wake.
type Notifier interface {
	Notify(ctx context.Context, state State)
}

// Workflow is the two-phase confirmation state machine for irreversible
// deletion. It exclusively owns the records in its StateStore.
type Workflow struct {
	states       StateStore
	resources    ResourceStore
	auditor      AuditRecorder
	notifier     Notifier
	metrics      *metrics.Metrics
	tracer       trace.Tracer
	logger       *slog.Logger
	storeTimeout time.Duration
	staleAfter   time.Duration
	label        string
}

type Option func(*Workflow)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Workflow) {
		w.logger = logger
	}
}

func WithAuditRecorder(recorder AuditRecorder) Option {
	return func(w *Workflow) {
		w.auditor = recorder
	}
}

func WithNotifier(n Notifier) Option {
	return func(w *Workflow) {
		w.notifier = n
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Workflow) {
		w.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(w *Workflow) {
		w.tracer = t
	}
}

// WithStoreTimeout bounds the destructive call against the resource store.
func WithStoreTimeout(d time.Duration) Option {
	return func(w *Workflow) {
		if d > 0 {
			w.storeTimeout = d
		}
	}
}

// WithStaleAfter sets how long a record may sit in InProgress before Clear
// treats it as abandoned. Defaults to twice the store timeout.
func WithStaleAfter(d time.Duration) Option {
	return func(w *Workflow) {
		if d > 0 {
			w.staleAfter = d
		}
	}
}

// WithResourceLabel sets the noun used in prompts and messages ("Evidence").
func WithResourceLabel(label string) Option {
	return func(w *Workflow) {
		if label != "" {
			w.label = label
		}
	}
}

func New(states StateStore, resources ResourceStore, opts ...Option) (*Workflow, error) {
	if states == nil {
		return nil, errors.New("deletion state store is required")
	}
	if resources == nil {
		return nil, errors.New("resource store is required")
	}
	w := &Workflow{
		states:       states,
		resources:    resources,
		logger:       slog.Default(),
		storeTimeout: defaultStoreTimeout,
		label:        defaultResourceLabel,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.tracer == nil {
		w.tracer = otel.Tracer(tracerName)
	}
	if w.staleAfter == 0 {
		w.staleAfter = 2 * w.storeTimeout
	}
	return w, nil
}

// Initiate opens a Pending workflow for an existing resource and returns the
// confirmation prompt. Re-initiating a Pending or finished workflow resets it.
func (w *Workflow) Initiate(ctx context.Context, id domain.ResourceID, actorID domain.ActorID) (string, error) {
	ctx, span := w.startSpan(ctx, "deletion.Initiate", id, actorID)
	defer span.End()

	exists, err := w.resources.Exists(ctx, id)
	if err != nil {
		return "", w.fail(span, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up resource"))
	}
	if !exists {
		return "", w.fail(span, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("%s ID %d not found", w.label, id)))
	}

	state := State{
		ResourceID:  id,
		Phase:       PhasePending,
		Message:     "Awaiting confirmation.",
		UpdatedAt:   requestcontext.Now(ctx).UTC(),
		RequestedBy: actorID,
	}
	if err := w.states.Open(ctx, state); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return "", w.fail(span, dErrors.New(dErrors.CodeConflict, "deletion already in progress"))
		}
		return "", w.fail(span, dErrors.Wrap(err, dErrors.CodeInternal, "failed to open deletion workflow"))
	}
	w.committed(ctx, state)

	w.record(ctx, audit.Entry{
		TargetID: id,
		ActorID:  audit.ActedBy(actorID),
		Action:   audit.ActionInitiateDelete,
		Details:  fmt.Sprintf("Admin %d initiated hard-deletion for %s %d.", actorID, w.label, id),
	})

	return fmt.Sprintf("Are you sure you want to permanently delete %s ID: %d? (yes/no)", w.label, id), nil
}

// Confirm answers the prompt for a Pending workflow. "no" cancels it. "yes"
// moves it to InProgress and runs the destructive operation; a store failure
// ends in PhaseFailed and is reported through the Outcome, not as an error.
// Only the caller that wins the Pending transition proceeds.
func (w *Workflow) Confirm(ctx context.Context, id domain.ResourceID, actorID domain.ActorID, rawDecision string) (Outcome, error) {
	ctx, span := w.startSpan(ctx, "deletion.Confirm", id, actorID)
	defer span.End()

	decision, err := ParseDecision(rawDecision)
	if err != nil {
		return Outcome{}, w.fail(span, err)
	}
	span.SetAttributes(attribute.String("deletion.decision", string(decision)))

	if decision == DecisionNo {
		return w.cancel(ctx, span, id, actorID)
	}

	started, err := w.states.Transition(ctx, id, PhasePending, func(s *State) {
		s.Phase = PhaseInProgress
		s.Message = "Deletion in progress."
		s.UpdatedAt = requestcontext.Now(ctx).UTC()
	})
	if err != nil {
		return Outcome{}, w.fail(span, w.lostTransition(id, started, err))
	}
	w.committed(ctx, started)

	// The caller may go away; an authorized deletion still runs to a terminal phase.
	detached := context.WithoutCancel(ctx)
	phase, message, action, details := w.destroy(detached, id)

	final, finishErr := w.finish(detached, id, phase, message)
	if finishErr == nil {
		w.committed(detached, final)
	}

	// The destructive call has already happened, so its outcome is audited
	// even when the state record could not be moved out of InProgress.
	w.record(detached, audit.Entry{
		TargetID: id,
		ActorID:  audit.ActedBy(actorID),
		Action:   action,
		Details:  details,
	})

	if finishErr != nil {
		w.logger.ErrorContext(ctx, "failed to record deletion outcome",
			"resource_id", id,
			"phase", phase,
			"error", finishErr,
		)
		return Outcome{}, w.fail(span, dErrors.Wrap(finishErr, dErrors.CodeInternal, "failed to record deletion outcome"))
	}

	span.SetAttributes(attribute.String("deletion.phase", string(phase)))
	return Outcome{ResourceID: id, ActorID: actorID, Phase: phase, Message: message}, nil
}

func (w *Workflow) cancel(ctx context.Context, span trace.Span, id domain.ResourceID, actorID domain.ActorID) (Outcome, error) {
	const message = "Deletion canceled by admin."
	canceled, err := w.states.Transition(ctx, id, PhasePending, func(s *State) {
		s.Phase = PhaseCanceled
		s.Message = message
		s.UpdatedAt = requestcontext.Now(ctx).UTC()
	})
	if err != nil {
		return Outcome{}, w.fail(span, w.lostTransition(id, canceled, err))
	}
	w.committed(ctx, canceled)

	w.record(ctx, audit.Entry{
		TargetID: id,
		ActorID:  audit.ActedBy(actorID),
		Action:   audit.ActionHardDeleteCanceled,
		Details:  message,
	})

	span.SetAttributes(attribute.String("deletion.phase", string(PhaseCanceled)))
	return Outcome{ResourceID: id, ActorID: actorID, Phase: PhaseCanceled, Message: message}, nil
}

// finish moves the record from InProgress to its terminal phase, retrying
// store errors a bounded number of times. A phase mismatch is not retried.
func (w *Workflow) finish(ctx context.Context, id domain.ResourceID, phase Phase, message string) (State, error) {
	var err error
	for attempt := 1; attempt <= terminalWriteAttempts; attempt++ {
		var final State
		final, err = w.states.Transition(ctx, id, PhaseInProgress, func(s *State) {
			s.Phase = phase
			s.Message = message
			s.UpdatedAt = requestcontext.Now(ctx).UTC()
		})
		if err == nil {
			return final, nil
		}
		if errors.Is(err, sentinel.ErrConflict) || errors.Is(err, sentinel.ErrNotFound) {
			return State{}, err
		}
		w.logger.WarnContext(ctx, "terminal deletion write failed",
			"resource_id", id,
			"phase", phase,
			"attempt", attempt,
			"error", err,
		)
		if attempt < terminalWriteAttempts {
			time.Sleep(time.Duration(attempt) * terminalWriteBackoff)
		}
	}
	return State{}, err
}

// destroy removes the resource within the store timeout. Failure detail goes
// to the log and the audit trail, never into the returned message.
func (w *Workflow) destroy(ctx context.Context, id domain.ResourceID) (Phase, string, audit.Action, string) {
	ctx, cancel := context.WithTimeout(ctx, w.storeTimeout)
	defer cancel()

	start := time.Now()
	err := w.resources.Remove(ctx, id)
	if w.metrics != nil {
		w.metrics.ObserveRemove(start)
	}
	if err == nil {
		msg := w.deletedMessage(id)
		return PhaseCompleted, msg, audit.ActionHardDeleteConfirmed, msg
	}

	reason := "store error"
	if errors.Is(err, sentinel.ErrNotFound) {
		reason = "target missing"
	} else if errors.Is(err, context.DeadlineExceeded) {
		reason = "store timeout"
	}
	w.logger.ErrorContext(ctx, "destructive operation failed",
		"resource_id", id,
		"reason", reason,
		"error", err,
	)
	msg := w.failedMessage(id)
	return PhaseFailed, msg, audit.ActionHardDeleteFailed, fmt.Sprintf("%s (%s)", msg, reason)
}

func (w *Workflow) deletedMessage(id domain.ResourceID) string {
	return fmt.Sprintf("%s ID %d permanently deleted.", w.label, id)
}

func (w *Workflow) failedMessage(id domain.ResourceID) string {
	return fmt.Sprintf("Deletion of %s ID %d failed.", w.label, id)
}

// lostTransition classifies a failed Pending transition for the loser.
func (w *Workflow) lostTransition(id domain.ResourceID, current State, err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNoActiveWorkflow, fmt.Sprintf("no active deletion request for %s ID %d", w.label, id))
	case errors.Is(err, sentinel.ErrConflict) && current.Phase == PhaseInProgress:
		return dErrors.New(dErrors.CodeConflict, "deletion already in progress")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeNoActiveWorkflow,
			fmt.Sprintf("no active deletion request for %s ID %d (already %s)", w.label, id, current.Phase))
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update deletion workflow")
}

// State returns the current record, or UnknownState when none exists.
func (w *Workflow) State(ctx context.Context, id domain.ResourceID) (State, error) {
	state, err := w.states.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return UnknownState(id), nil
		}
		return State{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load deletion state")
	}
	return state, nil
}

// Clear forgets a terminal record so status reads report Unknown again. A
// record left InProgress for longer than the stale window is first resolved
// to Completed or Failed, depending on whether the resource still exists.
func (w *Workflow) Clear(ctx context.Context, id domain.ResourceID) error {
	ctx, span := w.startSpan(ctx, "deletion.Clear", id, requestcontext.ActorID(ctx))
	defer span.End()

	err := w.states.DeleteTerminal(ctx, id)
	if errors.Is(err, sentinel.ErrInvalidState) {
		err = w.clearStale(ctx, id)
	}
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return w.fail(span, dErrors.New(dErrors.CodeNotFound, "no deletion record"))
		case errors.Is(err, sentinel.ErrInvalidState):
			return w.fail(span, dErrors.New(dErrors.CodeConflict, "deletion workflow is still active"))
		}
		return w.fail(span, dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear deletion state"))
	}
	w.logger.InfoContext(ctx, "deletion state cleared", "resource_id", id)
	return nil
}

func (w *Workflow) clearStale(ctx context.Context, id domain.ResourceID) error {
	current, err := w.states.Get(ctx, id)
	if err != nil {
		return err
	}
	if current.Phase != PhaseInProgress || requestcontext.Now(ctx).Sub(current.UpdatedAt) < w.staleAfter {
		return sentinel.ErrInvalidState
	}

	exists, err := w.resources.Exists(ctx, id)
	if err != nil {
		return err
	}
	phase, message := PhaseCompleted, w.deletedMessage(id)
	if exists {
		phase, message = PhaseFailed, w.failedMessage(id)
	}

	resolved, err := w.states.Transition(ctx, id, PhaseInProgress, func(s *State) {
		s.Phase = phase
		s.Message = message
		s.UpdatedAt = requestcontext.Now(ctx).UTC()
	})
	switch {
	case errors.Is(err, sentinel.ErrConflict):
		// Finished by someone else in the meantime; clear whatever it became.
	case err != nil:
		return err
	default:
		w.logger.WarnContext(ctx, "resolved stale deletion workflow",
			"resource_id", id,
			"phase", phase,
			"stuck_since", current.UpdatedAt,
		)
		w.committed(ctx, resolved)
	}
	return w.states.DeleteTerminal(ctx, id)
}

func (w *Workflow) committed(ctx context.Context, state State) {
	w.logger.InfoContext(ctx, "deletion transition",
		"resource_id", state.ResourceID,
		"phase", state.Phase,
		"requested_by", state.RequestedBy,
	)
	if w.metrics != nil {
		w.metrics.IncrementTransition(string(state.Phase))
	}
	if w.notifier != nil {
		w.notifier.Notify(ctx, state)
	}
}

// record is best effort: a failed audit write is logged and swallowed.
func (w *Workflow) record(ctx context.Context, entry audit.Entry) {
	if w.auditor == nil {
		return
	}
	if err := w.auditor.Record(ctx, entry); err != nil {
		w.logger.WarnContext(ctx, "audit log creation failed",
			"resource_id", entry.TargetID,
			"action", entry.Action,
			"error", err,
		)
	}
}

func (w *Workflow) startSpan(ctx context.Context, name string, id domain.ResourceID, actorID domain.ActorID) (context.Context, trace.Span) {
	return w.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.Int64("resource.id", int64(id)),
		attribute.Int64("actor.id", int64(actorID)),
	))
}

func (w *Workflow) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	return err
}
