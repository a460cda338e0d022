// Package domainerrors carries coded errors across service boundaries.
//
// Services return *Error values (optionally wrapping a cause) so transports can
// map them to status codes without inspecting message text. The cause is kept
// for server-side logging and is never rendered to clients.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain failure.
type Code string

const (
	CodeBadRequest       Code = "bad_request"
	CodeValidation       Code = "validation_error"
	CodeInvalidInput     Code = "invalid_input"
	CodeUnauthorized     Code = "unauthorized"
	CodeForbidden        Code = "forbidden"
	CodeNotFound         Code = "not_found"
	CodeNoActiveWorkflow Code = "no_active_workflow"
	CodeConflict         Code = "conflict"
	CodeTimeout          Code = "timeout"
	CodeInternal         Code = "internal_error"
)

// Error is a domain error with a stable code and a client-safe message.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New returns a domain error without an underlying cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and client-safe message to err.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// CodeOf returns the code of the outermost domain error in err's chain,
// or CodeInternal when err carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether err is a domain error with the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if !errors.As(err, &de) {
		return false
	}
	return de.Code == code
}

// Is is errors.Is, re-exported so callers need a single import.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
