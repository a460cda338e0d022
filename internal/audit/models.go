package audit

import (
	"time"

	"github.com/google/uuid"

	"casevault/pkg/domain"
)

// Action tags what was done to a target. Other subsystems may record their
// own tags.
type Action string

const (
	ActionInitiateDelete      Action = "INITIATE_DELETE"
	ActionHardDeleteConfirmed Action = "HARD_DELETE_CONFIRMED"
	ActionHardDeleteCanceled  Action = "HARD_DELETE_CANCELED"
	ActionHardDeleteFailed    Action = "HARD_DELETE_FAILED"
)

// Entry is an immutable record of an action taken against a target. It is
// keyed by the target id but not owned by the target: entries outlive it.
type Entry struct {
	ID       uuid.UUID
	TargetID domain.ResourceID
	// ActorID is nil for system-initiated actions.
	ActorID   *domain.ActorID
	Action    Action
	Details   string
	RequestID string
	Timestamp time.Time
}

// ActedBy returns a pointer suitable for Entry.ActorID.
func ActedBy(actorID domain.ActorID) *domain.ActorID {
	if actorID.IsNil() {
		return nil
	}
	return &actorID
}
