package session

import (
	"context"
	"sync"
	"time"

	"webapp/cmd/internal/ids"
)

const (
	// Rows are dropped once this far past expiry, well beyond any token
	// clock skew, so an expired token can no longer recreate its row.
	memoryPruneGrace = 5 * time.Minute
	memoryPruneEvery = time.Minute
)

// MemoryStore implements Store in process memory. It is the development
// default and loses all state on restart. Expired rows are pruned on write.
type MemoryStore struct {
	mu        sync.Mutex
	byHash    map[string]Row
	lastPrune time.Time
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byHash: make(map[string]Row)}
}

// Create records a new session row and returns its ULID.
func (s *MemoryStore) Create(_ context.Context, now time.Time, subject, tokenHash string, expiresAt time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)

	if _, ok := s.byHash[tokenHash]; ok {
		return "", ErrSessionExists
	}
	row, err := newRow(now, subject, tokenHash, expiresAt)
	if err != nil {
		return "", err
	}
	s.byHash[tokenHash] = row
	return row.ID, nil
}

// GetByTokenHash loads a session row by token hash.
func (s *MemoryStore) GetByTokenHash(_ context.Context, tokenHash string) (Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.byHash[tokenHash]
	if !ok {
		return Row{}, ErrSessionNotFound
	}
	return row, nil
}

// Renew checks and touches or rotates a session row under the store lock.
func (s *MemoryStore) Renew(_ context.Context, in RenewInput) (Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(in.Now)

	row, ok := s.byHash[in.OldHash]
	switch {
	case ok:
		if err := checkRow(row, in); err != nil {
			return Row{}, err
		}
	case in.CreateIfMissing:
		fresh, err := newRow(in.Now, in.Subject, in.OldHash, in.ExpiresAt)
		if err != nil {
			return Row{}, err
		}
		row = fresh
	default:
		return Row{}, ErrSessionNotFound
	}

	row.LastSeenAt = timePtr(in.Now)

	if in.NewHash == in.OldHash {
		row.ExpiresAt = in.ExpiresAt
		s.byHash[in.OldHash] = row
		return row, nil
	}

	if _, taken := s.byHash[in.NewHash]; taken {
		return Row{}, ErrSessionExists
	}
	next, err := newRow(in.Now, in.Subject, in.NewHash, in.ExpiresAt)
	if err != nil {
		return Row{}, err
	}
	next.LastSeenAt = timePtr(in.Now)

	row.RevokedAt = timePtr(in.Now)
	row.RevocationReason = stringPtr(RevocationRotation)
	row.ReplacedByID = stringPtr(next.ID)

	s.byHash[in.OldHash] = row
	s.byHash[in.NewHash] = next
	return next, nil
}

// Revoke revokes a single session (idempotent).
func (s *MemoryStore) Revoke(_ context.Context, in RevokeInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.byHash[in.TokenHash]
	if !ok {
		fresh, err := newRow(in.Now, in.Subject, in.TokenHash, in.ExpiresAt)
		if err != nil {
			return err
		}
		row = fresh
	}
	if row.RevokedAt == nil {
		row.RevokedAt = timePtr(in.Now)
		row.RevocationReason = stringPtr(in.Reason)
	}
	s.byHash[in.TokenHash] = row
	return nil
}

// Len returns the number of rows held, revoked ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byHash)
}

func (s *MemoryStore) pruneLocked(now time.Time) {
	if !s.lastPrune.IsZero() && now.Sub(s.lastPrune) < memoryPruneEvery {
		return
	}
	s.lastPrune = now

	cutoff := now.Add(-memoryPruneGrace)
	for h, row := range s.byHash {
		if row.ExpiresAt.Before(cutoff) {
			delete(s.byHash, h)
		}
	}
}

// Close drops all rows.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byHash = make(map[string]Row)
	return nil
}

func newRow(now time.Time, subject, tokenHash string, expiresAt time.Time) (Row, error) {
	id, err := ids.NewULID(now)
	if err != nil {
		return Row{}, err
	}
	return Row{
		ID:        id,
		Subject:   subject,
		TokenHash: tokenHash,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}, nil
}

func timePtr(t time.Time) *time.Time { return &t }

func stringPtr(s string) *string { return &s }
