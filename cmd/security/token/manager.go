package token

import (
	"strings"
	"time"
	"unicode"
)

const (
	// MaxTokenBytes bounds candidate tokens to avoid pathological inputs.
	MaxTokenBytes = 4096

	// MaxSubjectBytes bounds subjects embedded in tokens.
	MaxSubjectBytes = 255
)

// Claims is the identity envelope recovered from a valid token.
type Claims struct {
	Subject   string
	TokenID   string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Manager creates and validates session tokens.
//
// Create fails with *CreationError. Validate fails with *ValidationError whose
// Kind is ErrMalformed or ErrInvalid. Implementations are safe for concurrent use.
type Manager interface {
	Create(subject string, now time.Time) (string, error)
	Validate(candidate string, now time.Time) (Claims, error)
}

// NewManager builds the Manager selected by cfg.Format.
func NewManager(cfg Config) (Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Format {
	case FormatJWT:
		return NewJWTManager(cfg)
	default:
		return NewPasetoV4PublicManager(cfg)
	}
}

// ValidateSubject checks s can be bound to a token unchanged: non-empty,
// bounded, no surrounding whitespace and no control characters.
func ValidateSubject(s string) error {
	if s == "" || len(s) > MaxSubjectBytes || s != strings.TrimSpace(s) {
		return ErrInvalidSubject
	}
	for _, r := range s {
		if unicode.IsControl(r) || r == unicode.ReplacementChar {
			return ErrInvalidSubject
		}
	}
	return nil
}

// precheck rejects candidates no format could accept.
func precheck(candidate string) error {
	if candidate == "" {
		return malformed(nil)
	}
	if len(candidate) > MaxTokenBytes {
		return malformed(nil)
	}
	return nil
}
