package session

import (
	"context"
	_ "embed"
	"errors"
	"time"

	"webapp/cmd/internal/ids"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

const rowColumns = `
	id, subject, token_hash,
	created_at, last_seen_at, expires_at, revoked_at,
	revocation_reason, replaced_by_session_id`

// PostgresStore implements Store using PostgreSQL (webapp.sessions).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed session store.
// The pool is owned by the caller; Close does not close it.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the webapp.sessions table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaSQL)
	return err
}

// Create inserts a new session row and returns its ULID.
func (s *PostgresStore) Create(ctx context.Context, now time.Time, subject, tokenHash string, expiresAt time.Time) (string, error) {
	id, err := ids.NewULID(now)
	if err != nil {
		return "", err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO webapp.sessions (
			id, subject, token_hash,
			created_at, last_seen_at, expires_at, revoked_at,
			revocation_reason, replaced_by_session_id
		) VALUES (
			$1, $2, $3,
			$4, NULL, $5, NULL,
			NULL, NULL
		)
	`, id, subject, tokenHash, now, expiresAt)
	if isUniqueViolation(err) {
		return "", ErrSessionExists
	}
	if err != nil {
		return "", err
	}

	return id, nil
}

// GetByTokenHash loads a session row by token hash.
func (s *PostgresStore) GetByTokenHash(ctx context.Context, tokenHash string) (Row, error) {
	return scanRow(s.pool.QueryRow(ctx, `SELECT `+rowColumns+`
		FROM webapp.sessions
		WHERE token_hash = $1
	`, tokenHash))
}

// Renew performs the login check and rotation inside a single transaction.
//
// The old row is locked with SELECT ... FOR UPDATE. A concurrent first use of
// an unknown token loses on the token_hash unique constraint.
func (s *PostgresStore) Renew(ctx context.Context, in RenewInput) (Row, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Row{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row, err := getByTokenHashForUpdateTx(ctx, tx, in.OldHash)
	switch {
	case err == nil:
		if err := checkRow(row, in); err != nil {
			return Row{}, err
		}
	case errors.Is(err, ErrSessionNotFound) && in.CreateIfMissing:
		row, err = createTx(ctx, tx, in.Now, in.Subject, in.OldHash, in.ExpiresAt)
		if err != nil {
			return Row{}, err
		}
	default:
		return Row{}, err
	}

	if in.NewHash == in.OldHash {
		if err := touchTx(ctx, tx, in.Now, row.ID, in.ExpiresAt); err != nil {
			return Row{}, err
		}
		row.LastSeenAt = timePtr(in.Now)
		row.ExpiresAt = in.ExpiresAt
	} else {
		next, err := createTx(ctx, tx, in.Now, in.Subject, in.NewHash, in.ExpiresAt)
		if err != nil {
			return Row{}, err
		}
		if err := markRotatedTx(ctx, tx, in.Now, row.ID, next.ID); err != nil {
			return Row{}, err
		}
		row = next
	}

	if err := tx.Commit(ctx); err != nil {
		return Row{}, err
	}
	return row, nil
}

// Revoke revokes a single session (idempotent). Unknown hashes are recorded revoked.
func (s *PostgresStore) Revoke(ctx context.Context, in RevokeInput) error {
	id, err := ids.NewULID(in.Now)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO webapp.sessions (
			id, subject, token_hash,
			created_at, last_seen_at, expires_at, revoked_at,
			revocation_reason, replaced_by_session_id
		) VALUES (
			$1, $2, $3,
			$4, NULL, $5, $4,
			$6, NULL
		)
		ON CONFLICT (token_hash) DO UPDATE
		SET revoked_at = COALESCE(webapp.sessions.revoked_at, EXCLUDED.revoked_at),
		    revocation_reason = COALESCE(webapp.sessions.revocation_reason, EXCLUDED.revocation_reason)
	`, id, in.Subject, in.TokenHash, in.Now, in.ExpiresAt, in.Reason)
	return err
}

// Close is a no-op; the pool belongs to the caller.
func (s *PostgresStore) Close() error { return nil }

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func scanRow(r pgx.Row) (Row, error) {
	var row Row
	err := r.Scan(
		&row.ID,
		&row.Subject,
		&row.TokenHash,
		&row.CreatedAt,
		&row.LastSeenAt,
		&row.ExpiresAt,
		&row.RevokedAt,
		&row.RevocationReason,
		&row.ReplacedByID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Row{}, ErrSessionNotFound
	}
	if err != nil {
		return Row{}, err
	}
	return row, nil
}
