package token

import (
	"errors"
	"fmt"
)

// Public, stable errors for callers.
var (
	ErrHMACKeyMissing  = errors.New("token HMAC key missing")
	ErrHMACKeyTooShort = errors.New("token HMAC key too short")

	// ErrInvalidSubject is returned by Create for empty, oversized or non-printable subjects.
	ErrInvalidSubject = errors.New("invalid subject")

	// ErrMalformed reports a candidate that claims a token structure but cannot be decoded.
	ErrMalformed = errors.New("malformed token")

	// ErrInvalid reports a candidate that decodes (or is a plain string) but is not authentic.
	ErrInvalid = errors.New("invalid token")

	// ErrConfig is returned for invalid token configuration.
	ErrConfig = errors.New("invalid token config")
)

// CreationError is returned when a token cannot be created.
type CreationError struct {
	Err error
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("token: create: %v", e.Err)
}

func (e *CreationError) Unwrap() error { return e.Err }

// ValidationError is returned when a candidate token is rejected.
// Kind is ErrMalformed or ErrInvalid; Err carries the underlying cause for logs.
type ValidationError struct {
	Kind error
	Err  error
}

func (e *ValidationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("token: %v", e.Kind)
	}
	return fmt.Sprintf("token: %v: %v", e.Kind, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Kind }

func malformed(cause error) error { return &ValidationError{Kind: ErrMalformed, Err: cause} }

func invalid(cause error) error { return &ValidationError{Kind: ErrInvalid, Err: cause} }
