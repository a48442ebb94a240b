package session

import (
	"context"
	"time"
)

// Row mirrors the webapp.sessions row used by the session subsystem.
type Row struct {
	ID               string
	Subject          string
	TokenHash        string
	CreatedAt        time.Time
	LastSeenAt       *time.Time
	ExpiresAt        time.Time
	RevokedAt        *time.Time
	RevocationReason *string
	ReplacedByID     *string
}

// Active reports whether the row can back a login at now.
func (r Row) Active(now time.Time) bool {
	return r.RevokedAt == nil && r.ExpiresAt.After(now)
}

// RevocationRotation is recorded on rows replaced by a renewed token.
const RevocationRotation = "rotation"

// RenewInput describes one login against the store.
//
// The row found under OldHash is checked (subject, revocation). When NewHash
// equals OldHash the row is touched (LastSeenAt=Now, ExpiresAt). Otherwise the
// old row is revoked with RevocationRotation and a new row is recorded under
// NewHash, so the presented token cannot be replayed after renewal.
type RenewInput struct {
	Now       time.Time
	Subject   string
	OldHash   string
	NewHash   string
	ExpiresAt time.Time

	// CreateIfMissing records a row for OldHash when it is unknown instead
	// of failing with ErrSessionNotFound.
	CreateIfMissing bool
}

// RevokeInput marks a token hash revoked. When no row exists one is recorded
// already revoked, so stateless tokens can be revoked too.
type RevokeInput struct {
	Now       time.Time
	Subject   string
	TokenHash string
	ExpiresAt time.Time
	Reason    string
}

// Store abstracts persistence for session state.
//
// Renew must be atomic per token hash: two concurrent logins with the same
// token must not both move the row.
type Store interface {
	// Create records a new session row and returns its ID.
	Create(ctx context.Context, now time.Time, subject, tokenHash string, expiresAt time.Time) (sessionID string, err error)

	// GetByTokenHash loads a session row by token hash.
	GetByTokenHash(ctx context.Context, tokenHash string) (Row, error)

	// Renew checks a session row and touches or rotates it (see RenewInput).
	// It returns the row now backing the session.
	Renew(ctx context.Context, in RenewInput) (Row, error)

	// Revoke revokes a single session (idempotent).
	Revoke(ctx context.Context, in RevokeInput) error

	// Close releases resources owned by the store.
	Close() error
}

// checkRow applies the login rules shared by all stores.
func checkRow(row Row, in RenewInput) error {
	if row.Subject != in.Subject {
		return ErrSubjectMismatch
	}
	if row.RevokedAt != nil {
		return ErrSessionRevoked
	}
	return nil
}
