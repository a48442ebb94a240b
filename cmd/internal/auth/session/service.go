package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"webapp/cmd/security/token"
	v1 "webapp/shared/contracts/protocol/v1"
)

// Handler answers a LoginSession with the Session the client must keep.
//
// Any failure is a *RejectError; its message never carries the cause.
type Handler interface {
	Handle(ctx context.Context, req v1.LoginSession) (v1.Session, error)
}

// LoginObserver receives the outcome label of every login.
type LoginObserver interface {
	ObserveLogin(result string)
}

// Login outcome labels.
const (
	ResultOK              = "ok"
	ResultMalformed       = "malformed"
	ResultInvalid         = "invalid"
	ResultRevoked         = "revoked"
	ResultSubjectMismatch = "subject_mismatch"
	ResultUnknown         = "unknown"
	ResultError           = "error"
)

// Service implements session login on top of a token.Manager and a Store.
//
// It is stateless per request; concurrent logins are serialized by the Store.
type Service struct {
	cfg    Config
	tokens token.Manager
	store  Store

	log *slog.Logger
	obs LoginObserver
	now func() time.Time
}

var _ Handler = (*Service)(nil)

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used for login outcomes.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithObserver reports login outcomes to obs (metrics).
func WithObserver(obs LoginObserver) Option {
	return func(s *Service) { s.obs = obs }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs a Service with the provided configuration, store, and token manager.
func NewService(cfg Config, store Store, tokens token.Manager, opts ...Option) *Service {
	s := &Service{
		cfg:    cfg,
		tokens: tokens,
		store:  store,
		log:    slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue creates a token for subject and records its session row.
//
// It is the entry point after a successful authentication event (CLI, tests).
func (s *Service) Issue(ctx context.Context, subject string) (v1.Session, error) {
	now := s.now()

	tok, err := s.tokens.Create(subject, now)
	if err != nil {
		return v1.Session{}, err
	}
	claims, err := s.tokens.Validate(tok, now)
	if err != nil {
		return v1.Session{}, err
	}

	id, err := s.store.Create(ctx, now, claims.Subject, token.HashHex(tok), claims.ExpiresAt)
	if err != nil {
		return v1.Session{}, err
	}

	s.log.Info("session.issue", "session_id", id, "subject", claims.Subject)
	return v1.NewSession(tok), nil
}

// Handle validates the presented session and returns the session to keep.
//
// Steps: token validation, subject binding against the stored row,
// revocation check, then renewal (or confirmation) and last-seen update.
func (s *Service) Handle(ctx context.Context, req v1.LoginSession) (v1.Session, error) {
	now := s.now()
	presented := req.Session.Token

	claims, err := s.tokens.Validate(presented, now)
	if err != nil {
		return s.reject(ctx, err)
	}
	if err := token.ValidateSubject(claims.Subject); err != nil {
		return s.reject(ctx, ErrSubjectMismatch)
	}

	in := RenewInput{
		Now:             now,
		Subject:         claims.Subject,
		OldHash:         token.HashHex(presented),
		ExpiresAt:       claims.ExpiresAt,
		CreateIfMissing: !s.cfg.RequireKnownSession,
	}
	in.NewHash = in.OldHash

	out := presented
	if s.cfg.RenewOnLogin {
		renewed, err := s.tokens.Create(claims.Subject, now)
		if err != nil {
			return s.reject(ctx, err)
		}
		fresh, err := s.tokens.Validate(renewed, now)
		if err != nil {
			return s.reject(ctx, err)
		}
		out = renewed
		in.NewHash = token.HashHex(renewed)
		in.ExpiresAt = fresh.ExpiresAt
	}

	row, err := s.store.Renew(ctx, in)
	if err != nil {
		return s.reject(ctx, err)
	}

	s.observe(ResultOK)
	s.log.Info("session.login.ok", "session_id", row.ID, "subject", row.Subject, "renewed", out != presented)
	return v1.NewSession(out), nil
}

// Revoke marks the session backing tok revoked. Tokens that no longer
// validate cannot be logged in with and are left alone.
func (s *Service) Revoke(ctx context.Context, tok string) error {
	now := s.now()

	claims, err := s.tokens.Validate(tok, now)
	if err != nil {
		return err
	}

	err = s.store.Revoke(ctx, RevokeInput{
		Now:       now,
		Subject:   claims.Subject,
		TokenHash: token.HashHex(tok),
		ExpiresAt: claims.ExpiresAt,
		Reason:    "logout",
	})
	if err != nil {
		return err
	}

	s.log.Info("session.revoke", "subject", claims.Subject)
	return nil
}

// Lookup returns the stored row for tok.
func (s *Service) Lookup(ctx context.Context, tok string) (Row, error) {
	return s.store.GetByTokenHash(ctx, token.HashHex(tok))
}

// Inspect validates tok and returns its claims with the stored row, if any.
// A token without a row yields a nil row and no error.
func (s *Service) Inspect(ctx context.Context, tok string) (token.Claims, *Row, error) {
	claims, err := s.tokens.Validate(tok, s.now())
	if err != nil {
		return token.Claims{}, nil, err
	}

	row, err := s.Lookup(ctx, tok)
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return claims, nil, nil
	case err != nil:
		return claims, nil, err
	}
	return claims, &row, nil
}

func (s *Service) reject(ctx context.Context, reason error) (v1.Session, error) {
	result := resultOf(reason)
	s.observe(result)

	if result == ResultError {
		s.log.ErrorContext(ctx, "session.login.fail", "err", reason)
	} else {
		s.log.InfoContext(ctx, "session.login.reject", "reason", result, "err", reason)
	}
	return v1.Session{}, reject(reason)
}

func (s *Service) observe(result string) {
	if s.obs != nil {
		s.obs.ObserveLogin(result)
	}
}

func resultOf(err error) string {
	switch {
	case errors.Is(err, token.ErrMalformed):
		return ResultMalformed
	case errors.Is(err, token.ErrInvalid):
		return ResultInvalid
	case errors.Is(err, ErrSessionRevoked):
		return ResultRevoked
	case errors.Is(err, ErrSubjectMismatch):
		return ResultSubjectMismatch
	case errors.Is(err, ErrSessionNotFound):
		return ResultUnknown
	default:
		return ResultError
	}
}
