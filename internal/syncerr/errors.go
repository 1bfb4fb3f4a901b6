// Package syncerr defines the error taxonomy shared by the server
// stores and the client retry logic. Every failure the engine can
// produce carries a Code; retry decisions dispatch on the code, never
// on message text.
package syncerr

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeSessionNotFound         Code = "session_not_found"
	CodeSessionInactive         Code = "session_inactive"
	CodeInvalidSession          Code = "invalid_session"
	CodeUnregisteredParticipant Code = "unregistered_participant"
	CodeNothingToUndo           Code = "nothing_to_undo"
	CodeNothingToRedo           Code = "nothing_to_redo"
	CodeNothingToClear          Code = "nothing_to_clear"
	CodeAllocationExhausted     Code = "allocation_exhausted"
	CodeTransientNetwork        Code = "transient_network_failure"
	CodeUnknownOperation        Code = "unknown_operation"
)

type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transient reports whether retrying the failed call can succeed.
// Only network-boundary failures qualify; validation failures are
// terminal no matter how often they are replayed.
func (e *Error) Transient() bool {
	return e.Code == CodeTransientNetwork
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Transient wraps a network-boundary failure so downstream retry
// logic can recognize it by tag.
func Transient(err error) *Error {
	return &Error{Code: CodeTransientNetwork, Message: "transient network failure", Err: err}
}

// CodeOf extracts the taxonomy code from err, or "" when err does not
// originate from the engine.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func IsTransient(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Transient()
}

func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
