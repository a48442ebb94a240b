package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultRedisKeyPrefix namespaces session keys.
	DefaultRedisKeyPrefix = "webapp:session:"

	redisMaxRetries = 4
)

var errRedisContention = errors.New("session: redis contention")

type hashGetter interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

// redisRow is the hash layout of one session key. Times are unix nanoseconds;
// zero means unset.
type redisRow struct {
	ID               string `redis:"id"`
	Subject          string `redis:"subject"`
	TokenHash        string `redis:"token_hash"`
	CreatedAt        int64  `redis:"created_at"`
	LastSeenAt       int64  `redis:"last_seen_at"`
	ExpiresAt        int64  `redis:"expires_at"`
	RevokedAt        int64  `redis:"revoked_at"`
	RevocationReason string `redis:"revocation_reason"`
	ReplacedByID     string `redis:"replaced_by_session_id"`
}

// RedisStore implements Store with one Redis hash per token hash. Keys expire
// with the session, so expired rows disappear on their own.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisStore creates a Redis-backed session store. An empty prefix selects
// DefaultRedisKeyPrefix.
func NewRedisStore(rdb redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) key(tokenHash string) string { return s.prefix + tokenHash }

// Create records a new session row and returns its ULID.
func (s *RedisStore) Create(ctx context.Context, now time.Time, subject, tokenHash string, expiresAt time.Time) (string, error) {
	row, err := newRow(now, subject, tokenHash, expiresAt)
	if err != nil {
		return "", err
	}

	key := s.key(tokenHash)
	err = s.watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrSessionExists
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			s.put(ctx, pipe, row)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return "", err
	}
	return row.ID, nil
}

// GetByTokenHash loads a session row by token hash.
func (s *RedisStore) GetByTokenHash(ctx context.Context, tokenHash string) (Row, error) {
	return s.get(ctx, s.rdb, tokenHash)
}

// Renew checks and touches or rotates a session row under WATCH.
func (s *RedisStore) Renew(ctx context.Context, in RenewInput) (Row, error) {
	oldKey, newKey := s.key(in.OldHash), s.key(in.NewHash)

	var out Row
	err := s.watch(ctx, func(tx *redis.Tx) error {
		row, err := s.get(ctx, tx, in.OldHash)
		switch {
		case err == nil:
			if err := checkRow(row, in); err != nil {
				return err
			}
		case errors.Is(err, ErrSessionNotFound) && in.CreateIfMissing:
			row, err = newRow(in.Now, in.Subject, in.OldHash, in.ExpiresAt)
			if err != nil {
				return err
			}
		default:
			return err
		}
		row.LastSeenAt = timePtr(in.Now)

		if in.NewHash == in.OldHash {
			row.ExpiresAt = in.ExpiresAt
			_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				s.put(ctx, pipe, row)
				return nil
			})
			if err != nil {
				return err
			}
			out = row
			return nil
		}

		n, err := tx.Exists(ctx, newKey).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrSessionExists
		}

		next, err := newRow(in.Now, in.Subject, in.NewHash, in.ExpiresAt)
		if err != nil {
			return err
		}
		next.LastSeenAt = timePtr(in.Now)

		row.RevokedAt = timePtr(in.Now)
		row.RevocationReason = stringPtr(RevocationRotation)
		row.ReplacedByID = stringPtr(next.ID)

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			s.put(ctx, pipe, row)
			s.put(ctx, pipe, next)
			return nil
		})
		if err != nil {
			return err
		}
		out = next
		return nil
	}, oldKey, newKey)
	if err != nil {
		return Row{}, err
	}
	return out, nil
}

// Revoke revokes a single session (idempotent). Unknown hashes are recorded revoked.
func (s *RedisStore) Revoke(ctx context.Context, in RevokeInput) error {
	key := s.key(in.TokenHash)
	return s.watch(ctx, func(tx *redis.Tx) error {
		row, err := s.get(ctx, tx, in.TokenHash)
		if errors.Is(err, ErrSessionNotFound) {
			row, err = newRow(in.Now, in.Subject, in.TokenHash, in.ExpiresAt)
		}
		if err != nil {
			return err
		}
		if row.RevokedAt != nil {
			return nil
		}
		row.RevokedAt = timePtr(in.Now)
		row.RevocationReason = stringPtr(in.Reason)

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			s.put(ctx, pipe, row)
			return nil
		})
		return err
	}, key)
}

// Close closes the Redis client.
func (s *RedisStore) Close() error { return s.rdb.Close() }

// watch runs fn under WATCH keys, retrying when another client touched them.
func (s *RedisStore) watch(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	for i := 0; i < redisMaxRetries; i++ {
		err := s.rdb.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return errRedisContention
}

func (s *RedisStore) get(ctx context.Context, c hashGetter, tokenHash string) (Row, error) {
	res := c.HGetAll(ctx, s.key(tokenHash))
	vals, err := res.Result()
	if err != nil {
		return Row{}, err
	}
	if len(vals) == 0 {
		return Row{}, ErrSessionNotFound
	}

	var rr redisRow
	if err := res.Scan(&rr); err != nil {
		return Row{}, fmt.Errorf("session: decode redis row: %w", err)
	}
	return rr.toRow(), nil
}

func (s *RedisStore) put(ctx context.Context, pipe redis.Pipeliner, row Row) {
	key := s.key(row.TokenHash)
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, fromRow(row))
	pipe.ExpireAt(ctx, key, row.ExpiresAt)
}

func fromRow(r Row) redisRow {
	rr := redisRow{
		ID:        r.ID,
		Subject:   r.Subject,
		TokenHash: r.TokenHash,
		CreatedAt: r.CreatedAt.UnixNano(),
		ExpiresAt: r.ExpiresAt.UnixNano(),
	}
	if r.LastSeenAt != nil {
		rr.LastSeenAt = r.LastSeenAt.UnixNano()
	}
	if r.RevokedAt != nil {
		rr.RevokedAt = r.RevokedAt.UnixNano()
	}
	if r.RevocationReason != nil {
		rr.RevocationReason = *r.RevocationReason
	}
	if r.ReplacedByID != nil {
		rr.ReplacedByID = *r.ReplacedByID
	}
	return rr
}

func (rr redisRow) toRow() Row {
	r := Row{
		ID:        rr.ID,
		Subject:   rr.Subject,
		TokenHash: rr.TokenHash,
		CreatedAt: time.Unix(0, rr.CreatedAt).UTC(),
		ExpiresAt: time.Unix(0, rr.ExpiresAt).UTC(),
	}
	if rr.LastSeenAt != 0 {
		r.LastSeenAt = timePtr(time.Unix(0, rr.LastSeenAt).UTC())
	}
	if rr.RevokedAt != 0 {
		r.RevokedAt = timePtr(time.Unix(0, rr.RevokedAt).UTC())
	}
	if rr.RevocationReason != "" {
		r.RevocationReason = stringPtr(rr.RevocationReason)
	}
	if rr.ReplacedByID != "" {
		r.ReplacedByID = stringPtr(rr.ReplacedByID)
	}
	return r
}
