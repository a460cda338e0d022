package deletion

import (
	"strings"
	"time"

	"casevault/pkg/domain"
	dErrors "casevault/pkg/domain-errors"
)

// Phase is the position of a resource in the deletion workflow. The absence of
// a record is the implicit idle phase; status readers see it as PhaseUnknown.
type Phase string

const (
	PhaseUnknown    Phase = "Unknown"
	PhasePending    Phase = "Pending"
	PhaseInProgress Phase = "InProgress"
	PhaseCompleted  Phase = "Completed"
	PhaseFailed     Phase = "Failed"
	PhaseCanceled   Phase = "Canceled"
)

// IsTerminal reports whether no further transitions can occur from p.
func (p Phase) IsTerminal() bool {
	switch p {
	case PhaseCompleted, PhaseFailed, PhaseCanceled:
		return true
	}
	return false
}

// State is the per-resource deletion record, owned by the Workflow.
type State struct {
	ResourceID  domain.ResourceID `json:"resource_id"`
	Phase       Phase             `json:"phase"`
	Message     string            `json:"message,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at"`
	RequestedBy domain.ActorID    `json:"requested_by"`
}

// UnknownState is the synthetic state reported for ids with no record.
func UnknownState(id domain.ResourceID) State {
	return State{ResourceID: id, Phase: PhaseUnknown}
}

// Decision is the admin's answer to the confirmation prompt.
type Decision string

const (
	DecisionYes Decision = "yes"
	DecisionNo  Decision = "no"
)

// ParseDecision accepts "yes" or "no" in any case, ignoring surrounding
// whitespace. Everything else is a validation error.
func ParseDecision(s string) (Decision, error) {
	switch Decision(strings.ToLower(strings.TrimSpace(s))) {
	case DecisionYes:
		return DecisionYes, nil
	case DecisionNo:
		return DecisionNo, nil
	case "":
		return "", dErrors.New(dErrors.CodeValidation, "confirmation value required (yes/no)")
	}
	return "", dErrors.New(dErrors.CodeValidation, "confirmation must be yes or no")
}

// Outcome is the result of a Confirm call that won the transition.
type Outcome struct {
	ResourceID domain.ResourceID
	ActorID    domain.ActorID
	Phase      Phase
	Message    string
}

// Success is false only when the destructive operation failed.
func (o Outcome) Success() bool {
	return o.Phase == PhaseCompleted || o.Phase == PhaseCanceled
}
