package v1

import (
	"errors"
	"fmt"
)

// Decode error kinds. Callers must treat any of them as a rejected outcome.
var (
	// ErrTruncated: input ends before a complete message.
	ErrTruncated = errors.New("truncated")
	// ErrTypeMismatch: input is not the expected shape (wrong CBOR type, fields, trailing data).
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrUnknownVariant: a single-key map whose key names no defined variant.
	ErrUnknownVariant = errors.New("unknown variant")

	// ErrUnencodable is returned by the encoders for values the schema cannot carry.
	ErrUnencodable = errors.New("unencodable message")
)

// DecodeError reports why a payload could not be decoded.
type DecodeError struct {
	Kind error
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("protocol: decode: %v", e.Kind)
	}
	return fmt.Sprintf("protocol: decode: %v: %v", e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Kind }

// DecodeErrorKind returns a stable label for err ("truncated", "type_mismatch",
// "unknown_variant") or "other" when err is not a DecodeError.
func DecodeErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrTruncated):
		return "truncated"
	case errors.Is(err, ErrTypeMismatch):
		return "type_mismatch"
	case errors.Is(err, ErrUnknownVariant):
		return "unknown_variant"
	default:
		return "other"
	}
}
