package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"webapp/cmd/internal/auth/session"
	"webapp/cmd/security/token"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Session-state backends, in selection order.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Sessions bundles the session service with the backend it persists to.
// The app owns the Postgres pool; the Redis store owns its client.
type Sessions struct {
	Service *session.Service
	Store   session.Store
	Backend string

	pool *pgxpool.Pool
	rdb  *redis.Client
}

// OpenSessions loads session/token config from env and connects the configured backend.
func OpenSessions(ctx context.Context, cfg Config, log Logger, opts ...session.Option) (*Sessions, error) {
	scfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}

	tokens, err := token.NewManager(scfg.Token)
	if err != nil {
		return nil, fmt.Errorf("token manager: %w", err)
	}

	s, err := openBackend(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	opts = append([]session.Option{session.WithLogger(log)}, opts...)
	s.Service = session.NewService(scfg, s.Store, tokens, opts...)

	log.Info("session.store", "backend", s.Backend, "renew_on_login", scfg.RenewOnLogin, "require_known", scfg.RequireKnownSession)
	return s, nil
}

func openBackend(ctx context.Context, cfg Config, log Logger) (*Sessions, error) {
	switch {
	case cfg.DatabaseURL != "":
		pool, err := NewDBPool(ctx, cfg)
		if err != nil {
			return nil, err
		}

		st := session.NewPostgresStore(pool)
		if cfg.DBAutoMigrate {
			if err := st.EnsureSchema(ctx); err != nil {
				pool.Close()
				return nil, fmt.Errorf("ensure schema: %w", err)
			}
			log.Info("db.schema.ensured")
		}
		return &Sessions{Store: st, Backend: BackendPostgres, pool: pool}, nil

	case cfg.RedisURL != "":
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis url: %w", err)
		}
		rdb := redis.NewClient(opt)
		if err := pingRedis(ctx, rdb, 3*time.Second); err != nil {
			_ = rdb.Close()
			return nil, err
		}
		return &Sessions{Store: session.NewRedisStore(rdb, session.DefaultRedisKeyPrefix), Backend: BackendRedis, rdb: rdb}, nil

	default:
		log.Info("db.disabled.inmemory_store")
		return &Sessions{Store: session.NewMemoryStore(), Backend: BackendMemory}, nil
	}
}

// Ready reports whether the backend is reachable.
func (s *Sessions) Ready(ctx context.Context) error {
	switch {
	case s == nil:
		return errors.New("sessions not configured")
	case s.pool != nil:
		return PingDB(ctx, s.pool, 2*time.Second)
	case s.rdb != nil:
		return pingRedis(ctx, s.rdb, 2*time.Second)
	default:
		return nil
	}
}

// Persistent reports whether sessions survive a restart.
func (s *Sessions) Persistent() bool {
	return s != nil && s.Backend != BackendMemory
}

func (s *Sessions) Close() error {
	if s == nil {
		return nil
	}
	err := s.Store.Close()
	if s.pool != nil {
		s.pool.Close()
	}
	return err
}

// NewDBPool builds a pgxpool from cfg and validates connectivity.
func NewDBPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if cfg.DBMaxConns > 0 {
		pcfg.MaxConns = cfg.DBMaxConns
	}
	if cfg.DBMinConns >= 0 {
		pcfg.MinConns = cfg.DBMinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	if err := PingDB(ctx, pool, 3*time.Second); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// PingDB checks if we can acquire a connection within timeout.
func PingDB(parent context.Context, pool *pgxpool.Pool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	conn.Release()
	return nil
}

func pingRedis(parent context.Context, rdb *redis.Client, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()
	return rdb.Ping(ctx).Err()
}
