package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into domain errors:
//   - ErrNotFound: record does not exist in the store
//   - ErrConflict: a compare-and-swap lost against a concurrent writer
//   - ErrInvalidState: record is in the wrong phase for the operation
//   - ErrUnavailable: backing service temporarily unavailable
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
