package session

import (
	"errors"
)

var (
	// ErrRejected is the generic outcome of a failed login. Callers that
	// need the cause use errors.Is against the other sentinels.
	ErrRejected = errors.New("session rejected")

	// ErrSessionNotFound is returned when no session row matches a token hash.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionRevoked is returned when the session has been revoked.
	ErrSessionRevoked = errors.New("session revoked")

	// ErrSubjectMismatch is returned when the token subject differs from the
	// subject recorded for the session.
	ErrSubjectMismatch = errors.New("session subject mismatch")

	// ErrSessionExists is returned by Create when the token hash is already recorded.
	ErrSessionExists = errors.New("session already exists")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)

// RejectError is the single error type returned by Handler.Handle.
//
// Its message is deliberately generic; Reason is for server-side logs only.
type RejectError struct {
	Reason error
}

func (e *RejectError) Error() string { return ErrRejected.Error() }

func (e *RejectError) Unwrap() []error {
	if e.Reason == nil {
		return []error{ErrRejected}
	}
	return []error{ErrRejected, e.Reason}
}

func reject(reason error) error { return &RejectError{Reason: reason} }
