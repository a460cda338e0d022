package deletion_test

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks StateStore,ResourceStore,AuditRecorder,Notifier

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"casevault/internal/audit"
	"casevault/internal/deletion"
	"casevault/internal/deletion/mocks"
	"casevault/pkg/domain"
	dErrors "casevault/pkg/domain-errors"
	"casevault/pkg/platform/sentinel"
	"casevault/pkg/requestcontext"
)

// =============================================================================
// Workflow Test Suite
// =============================================================================
// Unit tests pin the transition table against mocked ports: which store call
// each decision makes, how losing a transition is classified, and that audit
// and store failures are contained.

type WorkflowSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	states    *mocks.MockStateStore
	resources *mocks.MockResourceStore
	auditor   *mocks.MockAuditRecorder
	notifier  *mocks.MockNotifier
	workflow  *deletion.Workflow
	ctx       context.Context
	now       time.Time
}

func TestWorkflowSuite(t *testing.T) {
	suite.Run(t, new(WorkflowSuite))
}

func (s *WorkflowSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.states = mocks.NewMockStateStore(s.ctrl)
	s.resources = mocks.NewMockResourceStore(s.ctrl)
	s.auditor = mocks.NewMockAuditRecorder(s.ctrl)
	s.notifier = mocks.NewMockNotifier(s.ctrl)
	s.now = time.Date(2025, 11, 3, 9, 30, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	var err error
	s.workflow, err = deletion.New(s.states, s.resources,
		deletion.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		deletion.WithAuditRecorder(s.auditor),
		deletion.WithNotifier(s.notifier),
	)
	s.Require().NoError(err)
}

func (s *WorkflowSuite) TearDownTest() {
	s.ctrl.Finish()
}

// applyTo returns a Transition stub that runs mutate against current.
func applyTo(current deletion.State) func(context.Context, domain.ResourceID, deletion.Phase, func(*deletion.State)) (deletion.State, error) {
	return func(_ context.Context, _ domain.ResourceID, _ deletion.Phase, mutate func(*deletion.State)) (deletion.State, error) {
		next := current
		mutate(&next)
		return next, nil
	}
}

func (s *WorkflowSuite) pendingState() deletion.State {
	return deletion.State{ResourceID: 42, Phase: deletion.PhasePending, UpdatedAt: s.now, RequestedBy: 7}
}

func (s *WorkflowSuite) TestNew() {
	s.Run("nil state store returns error", func() {
		_, err := deletion.New(nil, s.resources)
		s.Error(err)
		s.Contains(err.Error(), "deletion state store is required")
	})

	s.Run("nil resource store returns error", func() {
		_, err := deletion.New(s.states, nil)
		s.Error(err)
		s.Contains(err.Error(), "resource store is required")
	})
}

func (s *WorkflowSuite) TestInitiate() {
	s.Run("existing resource opens pending workflow and returns prompt", func() {
		s.resources.EXPECT().Exists(gomock.Any(), domain.ResourceID(42)).Return(true, nil)
		s.states.EXPECT().Open(gomock.Any(), deletion.State{
			ResourceID:  42,
			Phase:       deletion.PhasePending,
			Message:     "Awaiting confirmation.",
			UpdatedAt:   s.now,
			RequestedBy: 7,
		}).Return(nil)
		s.notifier.EXPECT().Notify(gomock.Any(), gomock.Any())
		s.auditor.EXPECT().Record(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, e audit.Entry) error {
				s.Equal(audit.ActionInitiateDelete, e.Action)
				s.Equal(domain.ResourceID(42), e.TargetID)
				s.Require().NotNil(e.ActorID)
				s.Equal(domain.ActorID(7), *e.ActorID)
				return nil
			})

		prompt, err := s.workflow.Initiate(s.ctx, 42, 7)
		s.Require().NoError(err)
		s.Equal("Are you sure you want to permanently delete Evidence ID: 42? (yes/no)", prompt)
	})

	s.Run("missing resource is not found and opens nothing", func() {
		s.resources.EXPECT().Exists(gomock.Any(), domain.ResourceID(99)).Return(false, nil)

		_, err := s.workflow.Initiate(s.ctx, 99, 7)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("lookup failure is internal", func() {
		s.resources.EXPECT().Exists(gomock.Any(), domain.ResourceID(42)).Return(false, errors.New("connection reset"))

		_, err := s.workflow.Initiate(s.ctx, 42, 7)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("in-progress workflow is a conflict", func() {
		s.resources.EXPECT().Exists(gomock.Any(), domain.ResourceID(42)).Return(true, nil)
		s.states.EXPECT().Open(gomock.Any(), gomock.Any()).Return(sentinel.ErrInvalidState)

		_, err := s.workflow.Initiate(s.ctx, 42, 7)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("audit failure does not fail initiate", func() {
		s.resources.EXPECT().Exists(gomock.Any(), domain.ResourceID(42)).Return(true, nil)
		s.states.EXPECT().Open(gomock.Any(), gomock.Any()).Return(nil)
		s.notifier.EXPECT().Notify(gomock.Any(), gomock.Any())
		s.auditor.EXPECT().Record(gomock.Any(), gomock.Any()).Return(errors.New("audit db down"))

		_, err := s.workflow.Initiate(s.ctx, 42, 7)
		s.NoError(err)
	})
}

func (s *WorkflowSuite) TestConfirm() {
	s.Run("malformed decision is rejected before any store call", func() {
		for _, raw := range []string{"", "  ", "maybe", "y", "yess"} {
			_, err := s.workflow.Confirm(s.ctx, 42, 7, raw)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation), "decision %q", raw)
		}
	})

	s.Run("no cancels pending workflow", func() {
		s.states.EXPECT().
			Transition(gomock.Any(), domain.ResourceID(42), deletion.PhasePending, gomock.Any()).
			DoAndReturn(applyTo(s.pendingState()))
		s.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Do(func(_ context.Context, st deletion.State) {
			s.Equal(deletion.PhaseCanceled, st.Phase)
		})
		s.auditor.EXPECT().Record(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, e audit.Entry) error {
				s.Equal(audit.ActionHardDeleteCanceled, e.Action)
				return nil
			})

		outcome, err := s.workflow.Confirm(s.ctx, 42, 7, " NO ")
		s.Require().NoError(err)
		s.Equal(deletion.PhaseCanceled, outcome.Phase)
		s.Equal("Deletion canceled by admin.", outcome.Message)
		s.True(outcome.Success())
	})

	s.Run("yes removes resource and completes", func() {
		gomock.InOrder(
			s.states.EXPECT().
				Transition(gomock.Any(), domain.ResourceID(42), deletion.PhasePending, gomock.Any()).
				DoAndReturn(applyTo(s.pendingState())),
			s.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Do(func(_ context.Context, st deletion.State) {
				s.Equal(deletion.PhaseInProgress, st.Phase)
			}),
			s.resources.EXPECT().Remove(gomock.Any(), domain.ResourceID(42)).Return(nil),
			s.states.EXPECT().
				Transition(gomock.Any(), domain.ResourceID(42), deletion.PhaseInProgress, gomock.Any()).
				DoAndReturn(applyTo(deletion.State{ResourceID: 42, Phase: deletion.PhaseInProgress, RequestedBy: 7})),
			s.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Do(func(_ context.Context, st deletion.State) {
				s.Equal(deletion.PhaseCompleted, st.Phase)
			}),
			s.auditor.EXPECT().Record(gomock.Any(), gomock.Any()).DoAndReturn(
				func(_ context.Context, e audit.Entry) error {
					s.Equal(audit.ActionHardDeleteConfirmed, e.Action)
					s.Equal("Evidence ID 42 permanently deleted.", e.Details)
					return nil
				}),
		)

		outcome, err := s.workflow.Confirm(s.ctx, 42, 7, "Yes")
		s.Require().NoError(err)
		s.Equal(deletion.PhaseCompleted, outcome.Phase)
		s.Equal("Evidence ID 42 permanently deleted.", outcome.Message)
		s.True(outcome.Success())
	})

	s.Run("store failure ends in failed phase without leaking detail", func() {
		s.states.EXPECT().
			Transition(gomock.Any(), domain.ResourceID(42), deletion.PhasePending, gomock.Any()).
			DoAndReturn(applyTo(s.pendingState()))
		s.resources.EXPECT().Remove(gomock.Any(), domain.ResourceID(42)).
			Return(errors.New("pq: relation \"evidence\" does not exist"))
		s.states.EXPECT().
			Transition(gomock.Any(), domain.ResourceID(42), deletion.PhaseInProgress, gomock.Any()).
			DoAndReturn(applyTo(deletion.State{ResourceID: 42, Phase: deletion.PhaseInProgress}))
		s.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Times(2)
		s.auditor.EXPECT().Record(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, e audit.Entry) error {
				s.Equal(audit.ActionHardDeleteFailed, e.Action)
				s.Contains(e.Details, "store error")
				return nil
			})

		outcome, err := s.workflow.Confirm(s.ctx, 42, 7, "yes")
		s.Require().NoError(err)
		s.Equal(deletion.PhaseFailed, outcome.Phase)
		s.False(outcome.Success())
		s.NotContains(outcome.Message, "pq:")
	})

	s.Run("target vanished ends in failed phase", func() {
		s.states.EXPECT().
			Transition(gomock.Any(), domain.ResourceID(42), deletion.PhasePending, gomock.Any()).
			DoAndReturn(applyTo(s.pendingState()))
		s.resources.EXPECT().Remove(gomock.Any(), domain.ResourceID(42)).Return(sentinel.ErrNotFound)
		s.states.EXPECT().
			Transition(gomock.Any(), domain.ResourceID(42), deletion.PhaseInProgress, gomock.Any()).
			DoAndReturn(applyTo(deletion.State{ResourceID: 42, Phase: deletion.PhaseInProgress}))
		s.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Times(2)
		s.auditor.EXPECT().Record(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, e audit.Entry) error {
				s.Contains(e.Details, "target missing")
				return nil
			})

		outcome, err := s.workflow.Confirm(s.ctx, 42, 7, "yes")
		s.Require().NoError(err)
		s.Equal(deletion.PhaseFailed, outcome.Phase)
	})

	s.Run("destructive op runs even when caller has gone away", func() {
		ctx, cancel := context.WithCancel(s.ctx)
		s.states.EXPECT().
			Transition(gomock.Any(), domain.ResourceID(42), deletion.PhasePending, gomock.Any()).
			DoAndReturn(applyTo(s.pendingState()))
		s.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Times(2)
		s.resources.EXPECT().Remove(gomock.Any(), domain.ResourceID(42)).DoAndReturn(
			func(opCtx context.Context, _ domain.ResourceID) error {
				cancel()
				s.NoError(opCtx.Err())
				_, hasDeadline := opCtx.Deadline()
				s.True(hasDeadline)
				return nil
			})
		s.states.EXPECT().
			Transition(gomock.Any(), domain.ResourceID(42), deletion.PhaseInProgress, gomock.Any()).
			DoAndReturn(applyTo(deletion.State{ResourceID: 42, Phase: deletion.PhaseInProgress}))
		s.auditor.EXPECT().Record(gomock.Any(), gomock.Any()).Return(nil)

		outcome, err := s.workflow.Confirm(ctx, 42, 7, "yes")
		s.Require().NoError(err)
		s.Equal(deletion.PhaseCompleted, outcome.Phase)
	})

	s.Run("terminal write is retried and stamped with request time", func() {
		s.states.EXPECT().
			Transition(gomock.Any(), domain.ResourceID(42), deletion.PhasePending, gomock.Any()).
			DoAndReturn(applyTo(s.pendingState()))
		s.resources.EXPECT().Remove(gomock.Any(), domain.ResourceID(42)).Return(nil)
		gomock.InOrder(
			s.states.EXPECT().
				Transition(gomock.Any(), domain.ResourceID(42), deletion.PhaseInProgress, gomock.Any()).
				Return(deletion.State{}, errors.New("connection reset")),
			s.states.EXPECT().
				Transition(gomock.Any(), domain.ResourceID(42), deletion.PhaseInProgress, gomock.Any()).
				DoAndReturn(applyTo(deletion.State{ResourceID: 42, Phase: deletion.PhaseInProgress})),
		)
		s.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Times(2).Do(func(_ context.Context, st deletion.State) {
			if st.Phase == deletion.PhaseCompleted {
				s.Equal(s.now, st.UpdatedAt)
			}
		})
		s.auditor.EXPECT().Record(gomock.Any(), gomock.Any()).Return(nil)

		outcome, err := s.workflow.Confirm(s.ctx, 42, 7, "yes")
		s.Require().NoError(err)
		s.Equal(deletion.PhaseCompleted, outcome.Phase)
	})

	s.Run("failed terminal write still audits the deletion", func() {
		s.states.EXPECT().
			Transition(gomock.Any(), domain.ResourceID(42), deletion.PhasePending, gomock.Any()).
			DoAndReturn(applyTo(s.pendingState()))
		s.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Do(func(_ context.Context, st deletion.State) {
			s.Equal(deletion.PhaseInProgress, st.Phase)
		})
		s.resources.EXPECT().Remove(gomock.Any(), domain.ResourceID(42)).Return(nil)
		s.states.EXPECT().
			Transition(gomock.Any(), domain.ResourceID(42), deletion.PhaseInProgress, gomock.Any()).
			Return(deletion.State{}, errors.New("connection reset")).
			Times(3)
		s.auditor.EXPECT().Record(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, e audit.Entry) error {
				s.Equal(audit.ActionHardDeleteConfirmed, e.Action)
				s.Equal("Evidence ID 42 permanently deleted.", e.Details)
				return nil
			})

		_, err := s.workflow.Confirm(s.ctx, 42, 7, "yes")
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("no record is no active workflow", func() {
		s.states.EXPECT().
			Transition(gomock.Any(), domain.ResourceID(42), deletion.PhasePending, gomock.Any()).
			Return(deletion.State{}, sentinel.ErrNotFound)

		_, err := s.workflow.Confirm(s.ctx, 42, 7, "yes")
		s.True(dErrors.HasCode(err, dErrors.CodeNoActiveWorkflow))
	})

	s.Run("terminal record is no active workflow", func() {
		s.states.EXPECT().
			Transition(gomock.Any(), domain.ResourceID(42), deletion.PhasePending, gomock.Any()).
			Return(deletion.State{ResourceID: 42, Phase: deletion.PhaseCompleted}, sentinel.ErrConflict)

		_, err := s.workflow.Confirm(s.ctx, 42, 7, "no")
		s.True(dErrors.HasCode(err, dErrors.CodeNoActiveWorkflow))
	})

	s.Run("in-progress record is a conflict", func() {
		s.states.EXPECT().
			Transition(gomock.Any(), domain.ResourceID(42), deletion.PhasePending, gomock.Any()).
			Return(deletion.State{ResourceID: 42, Phase: deletion.PhaseInProgress}, sentinel.ErrConflict)

		_, err := s.workflow.Confirm(s.ctx, 42, 7, "yes")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("audit failure does not fail confirm", func() {
		s.states.EXPECT().
			Transition(gomock.Any(), domain.ResourceID(42), deletion.PhasePending, gomock.Any()).
			DoAndReturn(applyTo(s.pendingState()))
		s.notifier.EXPECT().Notify(gomock.Any(), gomock.Any())
		s.auditor.EXPECT().Record(gomock.Any(), gomock.Any()).Return(errors.New("audit db down"))

		outcome, err := s.workflow.Confirm(s.ctx, 42, 7, "no")
		s.Require().NoError(err)
		s.Equal(deletion.PhaseCanceled, outcome.Phase)
	})
}

func (s *WorkflowSuite) TestState() {
	s.Run("absent record is unknown", func() {
		s.states.EXPECT().Get(gomock.Any(), domain.ResourceID(5)).Return(deletion.State{}, sentinel.ErrNotFound)

		st, err := s.workflow.State(s.ctx, 5)
		s.Require().NoError(err)
		s.Equal(deletion.UnknownState(5), st)
	})

	s.Run("store failure is internal", func() {
		s.states.EXPECT().Get(gomock.Any(), domain.ResourceID(5)).Return(deletion.State{}, errors.New("timeout"))

		_, err := s.workflow.State(s.ctx, 5)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *WorkflowSuite) TestClear() {
	s.Run("terminal record is cleared", func() {
		s.states.EXPECT().DeleteTerminal(gomock.Any(), domain.ResourceID(42)).Return(nil)
		s.NoError(s.workflow.Clear(s.ctx, 42))
	})

	s.Run("pending record is a conflict", func() {
		s.states.EXPECT().DeleteTerminal(gomock.Any(), domain.ResourceID(42)).Return(sentinel.ErrInvalidState)
		s.states.EXPECT().Get(gomock.Any(), domain.ResourceID(42)).Return(s.pendingState(), nil)
		s.True(dErrors.HasCode(s.workflow.Clear(s.ctx, 42), dErrors.CodeConflict))
	})

	s.Run("recent in-progress record is a conflict", func() {
		s.states.EXPECT().DeleteTerminal(gomock.Any(), domain.ResourceID(42)).Return(sentinel.ErrInvalidState)
		s.states.EXPECT().Get(gomock.Any(), domain.ResourceID(42)).Return(deletion.State{
			ResourceID: 42,
			Phase:      deletion.PhaseInProgress,
			UpdatedAt:  s.now.Add(-time.Second),
		}, nil)
		s.True(dErrors.HasCode(s.workflow.Clear(s.ctx, 42), dErrors.CodeConflict))
	})

	s.Run("stale in-progress record is resolved then cleared", func() {
		stuck := deletion.State{ResourceID: 42, Phase: deletion.PhaseInProgress, UpdatedAt: s.now.Add(-time.Hour), RequestedBy: 7}
		gomock.InOrder(
			s.states.EXPECT().DeleteTerminal(gomock.Any(), domain.ResourceID(42)).Return(sentinel.ErrInvalidState),
			s.states.EXPECT().Get(gomock.Any(), domain.ResourceID(42)).Return(stuck, nil),
			s.resources.EXPECT().Exists(gomock.Any(), domain.ResourceID(42)).Return(false, nil),
			s.states.EXPECT().
				Transition(gomock.Any(), domain.ResourceID(42), deletion.PhaseInProgress, gomock.Any()).
				DoAndReturn(applyTo(stuck)),
			s.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Do(func(_ context.Context, st deletion.State) {
				s.Equal(deletion.PhaseCompleted, st.Phase)
				s.Equal("Evidence ID 42 permanently deleted.", st.Message)
			}),
			s.states.EXPECT().DeleteTerminal(gomock.Any(), domain.ResourceID(42)).Return(nil),
		)
		s.NoError(s.workflow.Clear(s.ctx, 42))
	})

	s.Run("stale in-progress record with surviving resource resolves to failed", func() {
		stuck := deletion.State{ResourceID: 42, Phase: deletion.PhaseInProgress, UpdatedAt: s.now.Add(-time.Hour)}
		s.states.EXPECT().DeleteTerminal(gomock.Any(), domain.ResourceID(42)).Return(sentinel.ErrInvalidState)
		s.states.EXPECT().Get(gomock.Any(), domain.ResourceID(42)).Return(stuck, nil)
		s.resources.EXPECT().Exists(gomock.Any(), domain.ResourceID(42)).Return(true, nil)
		s.states.EXPECT().
			Transition(gomock.Any(), domain.ResourceID(42), deletion.PhaseInProgress, gomock.Any()).
			DoAndReturn(applyTo(stuck))
		s.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Do(func(_ context.Context, st deletion.State) {
			s.Equal(deletion.PhaseFailed, st.Phase)
		})
		s.states.EXPECT().DeleteTerminal(gomock.Any(), domain.ResourceID(42)).Return(nil)
		s.NoError(s.workflow.Clear(s.ctx, 42))
	})

	s.Run("absent record is not found", func() {
		s.states.EXPECT().DeleteTerminal(gomock.Any(), domain.ResourceID(42)).Return(sentinel.ErrNotFound)
		s.True(dErrors.HasCode(s.workflow.Clear(s.ctx, 42), dErrors.CodeNotFound))
	})
}

func TestParseDecision(t *testing.T) {
	tests := []struct {
		in      string
		want    deletion.Decision
		wantErr bool
	}{
		{"yes", deletion.DecisionYes, false},
		{"YES", deletion.DecisionYes, false},
		{" Yes\t", deletion.DecisionYes, false},
		{"no", deletion.DecisionNo, false},
		{"No", deletion.DecisionNo, false},
		{"", "", true},
		{"true", "", true},
		{"nope", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := deletion.ParseDecision(tt.in)
			if tt.wantErr {
				if !dErrors.HasCode(err, dErrors.CodeValidation) {
					t.Fatalf("ParseDecision(%q) error = %v, want validation error", tt.in, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("ParseDecision(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
			}
		})
	}
}

func TestPhase_IsTerminal(t *testing.T) {
	terminal := map[deletion.Phase]bool{
		deletion.PhaseUnknown:    false,
		deletion.PhasePending:    false,
		deletion.PhaseInProgress: false,
		deletion.PhaseCompleted:  true,
		deletion.PhaseFailed:     true,
		deletion.PhaseCanceled:   true,
	}
	for phase, want := range terminal {
		if got := phase.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", phase, got, want)
		}
	}
}
