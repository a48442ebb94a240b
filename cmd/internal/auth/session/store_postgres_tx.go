package session

import (
	"context"
	"time"

	"webapp/cmd/internal/ids"

	"github.com/jackc/pgx/v5"
)

func getByTokenHashForUpdateTx(ctx context.Context, tx pgx.Tx, tokenHash string) (Row, error) {
	return scanRow(tx.QueryRow(ctx, `SELECT `+rowColumns+`
		FROM webapp.sessions
		WHERE token_hash = $1
		FOR UPDATE
	`, tokenHash))
}

func createTx(ctx context.Context, tx pgx.Tx, now time.Time, subject, tokenHash string, expiresAt time.Time) (Row, error) {
	id, err := ids.NewULID(now)
	if err != nil {
		return Row{}, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO webapp.sessions (
			id, subject, token_hash,
			created_at, last_seen_at, expires_at, revoked_at,
			revocation_reason, replaced_by_session_id
		) VALUES (
			$1, $2, $3,
			$4, $4, $5, NULL,
			NULL, NULL
		)
	`, id, subject, tokenHash, now, expiresAt)
	if isUniqueViolation(err) {
		return Row{}, ErrSessionExists
	}
	if err != nil {
		return Row{}, err
	}

	return Row{
		ID:         id,
		Subject:    subject,
		TokenHash:  tokenHash,
		CreatedAt:  now,
		LastSeenAt: timePtr(now),
		ExpiresAt:  expiresAt,
	}, nil
}

func touchTx(ctx context.Context, tx pgx.Tx, now time.Time, id string, expiresAt time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE webapp.sessions
		SET last_seen_at = $2,
		    expires_at = $3
		WHERE id = $1
	`, id, now, expiresAt)
	return err
}

func markRotatedTx(ctx context.Context, tx pgx.Tx, now time.Time, oldID string, newID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE webapp.sessions
		SET
			last_seen_at = $2,
			revoked_at = $2,
			replaced_by_session_id = $3,
			revocation_reason = 'rotation'
		WHERE id = $1
	`, oldID, now, newID)
	return err
}
