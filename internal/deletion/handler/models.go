package handler

import (
	"time"

	"casevault/internal/deletion"
)

type InitiateResponse struct {
	Message string `json:"message"`
}

type ConfirmResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	ResourceID int64  `json:"resourceId"`
	ActorID    int64  `json:"actorId"`
	Status     string `json:"status"`
}

// StatusResponse is the public projection of a deletion record.
type StatusResponse struct {
	ResourceID int64      `json:"resourceId"`
	Status     string     `json:"status"`
	UpdatedAt  *time.Time `json:"updatedAt,omitempty"`
	Message    string     `json:"message,omitempty"`
}

// confirmStatus names the outcome the way callers of confirm expect it.
func confirmStatus(p deletion.Phase) string {
	switch p {
	case deletion.PhaseCompleted:
		return "Deleted"
	case deletion.PhaseCanceled:
		return "Canceled"
	default:
		return "Failed"
	}
}

func toConfirmResponse(o deletion.Outcome) ConfirmResponse {
	return ConfirmResponse{
		Success:    o.Success(),
		Message:    o.Message,
		ResourceID: int64(o.ResourceID),
		ActorID:    int64(o.ActorID),
		Status:     confirmStatus(o.Phase),
	}
}

func toStatusResponse(s deletion.State) StatusResponse {
	resp := StatusResponse{
		ResourceID: int64(s.ResourceID),
		Status:     string(s.Phase),
		Message:    s.Message,
	}
	if !s.UpdatedAt.IsZero() {
		updated := s.UpdatedAt
		resp.UpdatedAt = &updated
	}
	return resp
}
