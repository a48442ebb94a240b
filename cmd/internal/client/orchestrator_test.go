package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	v1 "webapp/shared/contracts/protocol/v1"
)

type recordingCreds struct {
	*MemoryCredentials

	mu      sync.Mutex
	sets    []string
	removes int
}

func newRecordingCreds() *recordingCreds {
	return &recordingCreds{MemoryCredentials: NewMemoryCredentials()}
}

func (r *recordingCreds) Set(ctx context.Context, key, value string) error {
	r.mu.Lock()
	r.sets = append(r.sets, value)
	r.mu.Unlock()
	return r.MemoryCredentials.Set(ctx, key, value)
}

func (r *recordingCreds) Remove(ctx context.Context, key string) error {
	r.mu.Lock()
	r.removes++
	r.mu.Unlock()
	return r.MemoryCredentials.Remove(ctx, key)
}

type recordingSender struct {
	mu     sync.Mutex
	frames [][]byte
	err    error
}

func (s *recordingSender) Send(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.frames = append(s.frames, data)
	return nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func newTestOrchestrator(t *testing.T, creds CredentialStore, sender Sender) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(creds, sender, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	return o
}

func mustEncodeResponse(t *testing.T, resp v1.Response) []byte {
	t.Helper()
	b, err := v1.EncodeResponse(resp)
	if err != nil {
		t.Fatalf("EncodeResponse: %v", err)
	}
	return b
}

func TestOrchestrator_InitialState(t *testing.T) {
	o := newTestOrchestrator(t, NewMemoryCredentials(), &recordingSender{})
	if o.State() != StateUnknown {
		t.Fatalf("state = %v", o.State())
	}
	if o.Message() != MessageLoading {
		t.Fatalf("message = %q", o.Message())
	}
}

func TestOrchestrator_OpenedWithoutCredential(t *testing.T) {
	ctx := context.Background()
	sender := &recordingSender{}
	o := newTestOrchestrator(t, NewMemoryCredentials(), sender)

	o.Handle(ctx, StatusEvent{Status: StatusOpened})

	if o.State() != StateUnAuthenticated {
		t.Fatalf("state = %v, want unauthenticated", o.State())
	}
	if sender.count() != 0 {
		t.Fatalf("expected no outbound message, got %d", sender.count())
	}
}

func TestOrchestrator_LoginSucceeds(t *testing.T) {
	ctx := context.Background()
	creds := newRecordingCreds()
	_ = creds.MemoryCredentials.Set(ctx, SessionCookie, "old-token")
	sender := &recordingSender{}
	o := newTestOrchestrator(t, creds, sender)

	o.Handle(ctx, StatusEvent{Status: StatusOpened})

	if o.State() != StateUnknown {
		t.Fatalf("state while awaiting response = %v", o.State())
	}
	if sender.count() != 1 {
		t.Fatalf("expected one login request, got %d", sender.count())
	}

	req, err := v1.DecodeRequest(sender.frames[0])
	if err != nil {
		t.Fatalf("DecodeRequest: %v", err)
	}
	if got := req.(v1.LoginSession).Session.Token; got != "old-token" {
		t.Fatalf("sent token = %q", got)
	}

	o.Handle(ctx, PayloadEvent{Data: mustEncodeResponse(t, v1.OK(v1.NewSession("new-token")))})

	if o.State() != StateAuthenticated {
		t.Fatalf("state = %v, want authenticated", o.State())
	}
	if len(creds.sets) != 1 || creds.sets[0] != "new-token" {
		t.Fatalf("credential sets = %v", creds.sets)
	}
	if v, _ := creds.Get(ctx, SessionCookie); v != "new-token" {
		t.Fatalf("stored credential = %q", v)
	}
}

func TestOrchestrator_LoginFails(t *testing.T) {
	cases := []struct {
		name    string
		payload []byte
	}{
		{name: "err response", payload: mustEncodeResponse(t, v1.Failure(v1.MsgLoginFailed))},
		{name: "undecodable", payload: []byte{0xff, 0x00}},
		{name: "request shape", payload: func() []byte {
			b, _ := v1.EncodeRequest(v1.LoginSession{Session: v1.NewSession("x")})
			return b
		}()},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			creds := newRecordingCreds()
			_ = creds.MemoryCredentials.Set(ctx, SessionCookie, "stale")
			o := newTestOrchestrator(t, creds, &recordingSender{})

			o.Handle(ctx, StatusEvent{Status: StatusOpened})
			o.Handle(ctx, PayloadEvent{Data: tc.payload})

			if o.State() != StateUnAuthenticated {
				t.Fatalf("state = %v, want unauthenticated", o.State())
			}
			if creds.removes != 1 {
				t.Fatalf("removes = %d, want 1", creds.removes)
			}
			if _, err := creds.Get(ctx, SessionCookie); !errors.Is(err, ErrCredentialNotFound) {
				t.Fatalf("credential still stored: %v", err)
			}
		})
	}
}

func TestOrchestrator_EncodeFailureClearsCredential(t *testing.T) {
	ctx := context.Background()
	creds := newRecordingCreds()
	_ = creds.MemoryCredentials.Set(ctx, SessionCookie, strings.Repeat("x", v1.MaxMessageBytes+1))
	sender := &recordingSender{}
	o := newTestOrchestrator(t, creds, sender)

	o.Handle(ctx, StatusEvent{Status: StatusOpened})

	if o.State() != StateUnAuthenticated {
		t.Fatalf("state = %v", o.State())
	}
	if creds.removes != 1 || sender.count() != 0 {
		t.Fatalf("removes=%d sends=%d", creds.removes, sender.count())
	}
}

func TestOrchestrator_SingleLoginInFlight(t *testing.T) {
	ctx := context.Background()
	creds := NewMemoryCredentials()
	_ = creds.Set(ctx, SessionCookie, "tok")
	sender := &recordingSender{}
	o := newTestOrchestrator(t, creds, sender)

	o.Handle(ctx, StatusEvent{Status: StatusOpened})
	o.Handle(ctx, StatusEvent{Status: StatusOpened})

	if sender.count() != 1 {
		t.Fatalf("sends = %d, want 1", sender.count())
	}
}

func TestOrchestrator_ResolvedStateIgnoresReconnect(t *testing.T) {
	ctx := context.Background()
	creds := NewMemoryCredentials()
	sender := &recordingSender{}
	o := newTestOrchestrator(t, creds, sender)

	o.Handle(ctx, StatusEvent{Status: StatusOpened})
	_ = creds.Set(ctx, SessionCookie, "tok")
	o.Handle(ctx, StatusEvent{Status: StatusOpened})

	if o.State() != StateUnAuthenticated || sender.count() != 0 {
		t.Fatalf("state=%v sends=%d", o.State(), sender.count())
	}
}

func TestOrchestrator_ConnectionFailureIsDisplayOnly(t *testing.T) {
	ctx := context.Background()
	creds := newRecordingCreds()
	_ = creds.MemoryCredentials.Set(ctx, SessionCookie, "tok")
	sender := &recordingSender{}
	o := newTestOrchestrator(t, creds, sender)

	o.Handle(ctx, StatusEvent{Status: StatusOpened})
	o.Handle(ctx, StatusEvent{Status: StatusClosed})

	if o.State() != StateUnknown {
		t.Fatalf("state = %v, want unknown", o.State())
	}
	if o.Message() != MessageLoadingError {
		t.Fatalf("message = %q", o.Message())
	}
	if creds.removes != 0 || len(creds.sets) != 0 {
		t.Fatalf("credential store touched: removes=%d sets=%v", creds.removes, creds.sets)
	}

	// The in-flight guard is cleared, so a new connection retries.
	o.Handle(ctx, StatusEvent{Status: StatusOpened})
	if sender.count() != 2 {
		t.Fatalf("sends = %d, want 2", sender.count())
	}
}

func TestOrchestrator_SendFailure(t *testing.T) {
	ctx := context.Background()
	creds := newRecordingCreds()
	_ = creds.MemoryCredentials.Set(ctx, SessionCookie, "tok")
	o := newTestOrchestrator(t, creds, &recordingSender{err: errors.New("broken pipe")})

	o.Handle(ctx, StatusEvent{Status: StatusOpened})

	if o.State() != StateUnknown || o.Message() != MessageLoadingError {
		t.Fatalf("state=%v message=%q", o.State(), o.Message())
	}
	if creds.removes != 0 {
		t.Fatalf("credential removed on transport failure")
	}
}

func TestOrchestrator_Subscribe(t *testing.T) {
	ctx := context.Background()
	o := newTestOrchestrator(t, NewMemoryCredentials(), &recordingSender{})

	updates, cancel := o.Subscribe()
	defer cancel()

	if snap := <-updates; snap.State != StateUnknown {
		t.Fatalf("initial snapshot = %+v", snap)
	}

	o.Handle(ctx, StatusEvent{Status: StatusOpened})

	select {
	case snap := <-updates:
		if snap.State != StateUnAuthenticated {
			t.Fatalf("snapshot = %+v", snap)
		}
	case <-time.After(time.Second):
		t.Fatalf("no snapshot published")
	}
}

type chanTransport struct {
	recordingSender
	statuses chan Status
	payloads chan []byte
}

func (c *chanTransport) Statuses() <-chan Status { return c.statuses }
func (c *chanTransport) Payloads() <-chan []byte { return c.payloads }

func TestOrchestrator_RunConsumesBothChannels(t *testing.T) {
	ctx := context.Background()
	creds := NewMemoryCredentials()
	_ = creds.Set(ctx, SessionCookie, "tok")

	tr := &chanTransport{statuses: make(chan Status, 1), payloads: make(chan []byte, 1)}
	o := newTestOrchestrator(t, creds, tr)

	tr.statuses <- StatusOpened
	close(tr.statuses)

	done := make(chan error, 1)
	go func() { done <- o.Run(ctx, tr) }()

	deadline := time.Now().Add(2 * time.Second)
	for tr.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("login request never sent")
		}
		time.Sleep(5 * time.Millisecond)
	}

	tr.payloads <- mustEncodeResponse(t, v1.OK(v1.NewSession("fresh")))
	close(tr.payloads)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after transport closed")
	}

	if o.State() != StateAuthenticated {
		t.Fatalf("state = %v", o.State())
	}
}

func TestNewOrchestrator_RequiresCollaborators(t *testing.T) {
	if _, err := NewOrchestrator(nil, &recordingSender{}); err == nil {
		t.Fatalf("expected error for nil credential store")
	}
	if _, err := NewOrchestrator(NewMemoryCredentials(), nil); err == nil {
		t.Fatalf("expected error for nil sender")
	}
}
