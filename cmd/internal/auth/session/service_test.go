package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"webapp/cmd/security/token"
	v1 "webapp/shared/contracts/protocol/v1"

	paseto "aidanwoods.dev/go-paseto"
)

type recordingObserver struct {
	mu      sync.Mutex
	results []string
}

func (o *recordingObserver) ObserveLogin(result string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results = append(o.results, result)
}

func (o *recordingObserver) last() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.results) == 0 {
		return ""
	}
	return o.results[len(o.results)-1]
}

type fixture struct {
	svc    *Service
	store  *MemoryStore
	tokens token.Manager
	obs    *recordingObserver
	now    time.Time
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Token.PasetoV4SecretKeyHex = paseto.NewV4AsymmetricSecretKey().ExportHex()
	if mutate != nil {
		mutate(&cfg)
	}

	tokens, err := token.NewManager(cfg.Token)
	if err != nil {
		t.Fatalf("token.NewManager: %v", err)
	}

	f := &fixture{
		store:  NewMemoryStore(),
		tokens: tokens,
		obs:    &recordingObserver{},
		now:    time.Now().UTC(),
	}
	f.svc = NewService(cfg, f.store, tokens,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithObserver(f.obs),
		WithClock(func() time.Time { return f.now }),
	)
	return f
}

func (f *fixture) login(t *testing.T, tok string) (v1.Session, error) {
	t.Helper()
	return f.svc.Handle(context.Background(), v1.LoginSession{Session: v1.NewSession(tok)})
}

func TestHandle_SucceedsWithValidToken(t *testing.T) {
	f := newFixture(t, nil)

	tok, err := f.tokens.Create("username", f.now)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	s, err := f.login(t, tok)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if s.Token == "" || s.Token == tok {
		t.Fatalf("expected a renewed token")
	}

	claims, err := f.tokens.Validate(s.Token, f.now)
	if err != nil {
		t.Fatalf("Validate(renewed): %v", err)
	}
	if claims.Subject != "username" {
		t.Fatalf("renewed subject=%q, want username", claims.Subject)
	}
	if got := f.obs.last(); got != ResultOK {
		t.Fatalf("observed %q, want %q", got, ResultOK)
	}
}

func TestHandle_RejectsWrongToken(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.login(t, "wrong")
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
	if !errors.Is(err, token.ErrInvalid) {
		t.Fatalf("expected token.ErrInvalid cause, got %v", err)
	}
	var re *RejectError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RejectError, got %T", err)
	}
	if err.Error() != "session rejected" {
		t.Fatalf("reject message leaks detail: %q", err.Error())
	}
	if got := f.obs.last(); got != ResultInvalid {
		t.Fatalf("observed %q, want %q", got, ResultInvalid)
	}
}

func TestHandle_RejectsEmptyToken(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.login(t, "")
	if !errors.Is(err, token.ErrMalformed) {
		t.Fatalf("expected token.ErrMalformed cause, got %v", err)
	}
}

func TestHandle_RejectsSubjectMismatch(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	tok, err := f.tokens.Create("alice", f.now)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.store.Create(ctx, f.now, "bob", token.HashHex(tok), f.now.Add(time.Hour)); err != nil {
		t.Fatalf("store.Create: %v", err)
	}

	_, err = f.login(t, tok)
	if !errors.Is(err, ErrSubjectMismatch) {
		t.Fatalf("expected ErrSubjectMismatch, got %v", err)
	}
	if got := f.obs.last(); got != ResultSubjectMismatch {
		t.Fatalf("observed %q, want %q", got, ResultSubjectMismatch)
	}
}

func TestHandle_RejectsRevokedSession(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	s, err := f.svc.Issue(ctx, "alice")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := f.svc.Revoke(ctx, s.Token); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	_, err = f.login(t, s.Token)
	if !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected ErrSessionRevoked, got %v", err)
	}
}

func TestHandle_RenewalRetiresPresentedToken(t *testing.T) {
	f := newFixture(t, nil)

	s, err := f.svc.Issue(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	renewed, err := f.login(t, s.Token)
	if err != nil {
		t.Fatalf("first login: %v", err)
	}
	if _, err := f.login(t, s.Token); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("replayed token: expected ErrSessionRevoked, got %v", err)
	}
	if _, err := f.login(t, renewed.Token); err != nil {
		t.Fatalf("login with renewed token: %v", err)
	}
}

func TestHandle_ConfirmsTokenWhenRenewalDisabled(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.RenewOnLogin = false })

	tok, err := f.tokens.Create("alice", f.now)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	for i := 0; i < 2; i++ {
		s, err := f.login(t, tok)
		if err != nil {
			t.Fatalf("login %d: %v", i, err)
		}
		if s.Token != tok {
			t.Fatalf("login %d: expected presented token back", i)
		}
	}

	row, err := f.svc.Lookup(context.Background(), tok)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if row.Subject != "alice" || row.LastSeenAt == nil {
		t.Fatalf("unexpected row: %+v", row)
	}
}

func TestHandle_RequireKnownSession(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.RequireKnownSession = true })

	tok, err := f.tokens.Create("alice", f.now)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.login(t, tok); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("unknown token: expected ErrSessionNotFound, got %v", err)
	}

	s, err := f.svc.Issue(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := f.login(t, s.Token); err != nil {
		t.Fatalf("issued token: %v", err)
	}
}

func TestHandle_RejectsExpiredToken(t *testing.T) {
	f := newFixture(t, nil)

	tok, err := f.tokens.Create("alice", f.now)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	f.now = f.now.Add(DefaultConfig().Token.TTL + time.Hour)
	if _, err := f.login(t, tok); !errors.Is(err, token.ErrInvalid) {
		t.Fatalf("expected token.ErrInvalid, got %v", err)
	}
}

func TestIssue_RejectsInvalidSubject(t *testing.T) {
	f := newFixture(t, nil)

	for _, subject := range []string{"   ", " bob "} {
		_, err := f.svc.Issue(context.Background(), subject)
		if !errors.Is(err, token.ErrInvalidSubject) {
			t.Fatalf("Issue(%q): expected token.ErrInvalidSubject, got %v", subject, err)
		}
	}
}

func TestHandler_TestDouble(t *testing.T) {
	var h Handler = handlerFunc(func(_ context.Context, req v1.LoginSession) (v1.Session, error) {
		return req.Session, nil
	})

	got, err := h.Handle(context.Background(), v1.LoginSession{Session: v1.NewSession("abc")})
	if err != nil || got.Token != "abc" {
		t.Fatalf("got (%v, %v)", got, err)
	}
}

type handlerFunc func(context.Context, v1.LoginSession) (v1.Session, error)

func (f handlerFunc) Handle(ctx context.Context, req v1.LoginSession) (v1.Session, error) {
	return f(ctx, req)
}

func TestInspect(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	issued, err := f.svc.Issue(ctx, "username")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, row, err := f.svc.Inspect(ctx, issued.Token)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if claims.Subject != "username" || row == nil || row.Subject != "username" {
		t.Fatalf("claims=%+v row=%+v", claims, row)
	}

	// Valid but never recorded.
	bare, err := f.tokens.Create("other", f.now)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, row, err := f.svc.Inspect(ctx, bare); err != nil || row != nil {
		t.Fatalf("unrecorded token: row=%+v err=%v", row, err)
	}

	if _, _, err := f.svc.Inspect(ctx, "wrong"); !errors.Is(err, token.ErrInvalid) {
		t.Fatalf("Inspect(wrong) err=%v", err)
	}
}
