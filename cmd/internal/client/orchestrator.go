package client

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	v1 "webapp/shared/contracts/protocol/v1"
)

// Event is one input to the orchestrator: a StatusEvent or a PayloadEvent.
type Event interface {
	event()
}

// StatusEvent carries a transport status change.
type StatusEvent struct {
	Status Status
}

// PayloadEvent carries one inbound message.
type PayloadEvent struct {
	Data []byte
}

func (StatusEvent) event()  {}
func (PayloadEvent) event() {}

// Orchestrator drives the client authentication state machine.
//
// Handle must be called from one goroutine at a time (Run does this).
// State, Message and Subscribe are safe to call from anywhere.
type Orchestrator struct {
	log    *slog.Logger
	creds  CredentialStore
	sender Sender

	mu       sync.Mutex
	state    State
	message  string
	inFlight bool
	subs     map[chan Snapshot]struct{}
}

// OrchestratorOption configures optional orchestrator dependencies.
type OrchestratorOption func(*Orchestrator)

func WithLogger(log *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if log != nil {
			o.log = log
		}
	}
}

// NewOrchestrator starts in StateUnknown.
func NewOrchestrator(creds CredentialStore, sender Sender, opts ...OrchestratorOption) (*Orchestrator, error) {
	if creds == nil {
		return nil, errors.New("client: nil credential store")
	}
	if sender == nil {
		return nil, errors.New("client: nil sender")
	}

	o := &Orchestrator{
		log:     slog.Default(),
		creds:   creds,
		sender:  sender,
		state:   StateUnknown,
		message: MessageLoading,
		subs:    make(map[chan Snapshot]struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o, nil
}

// Run consumes transport events until ctx is done or the transport stops.
func (o *Orchestrator) Run(ctx context.Context, t Transport) error {
	statuses, payloads := t.Statuses(), t.Payloads()

	for statuses != nil || payloads != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s, ok := <-statuses:
			if !ok {
				statuses = nil
				continue
			}
			o.Handle(ctx, StatusEvent{Status: s})
		case p, ok := <-payloads:
			if !ok {
				payloads = nil
				continue
			}
			o.Handle(ctx, PayloadEvent{Data: p})
		}
	}
	return nil
}

// Handle processes one event to completion.
func (o *Orchestrator) Handle(ctx context.Context, ev Event) {
	switch e := ev.(type) {
	case StatusEvent:
		if e.Status == StatusOpened {
			o.onOpened(ctx)
			return
		}
		o.onFailure(e.Status)
	case PayloadEvent:
		o.onResponse(ctx, e.Data)
	default:
		o.onFailure(0)
	}
}

func (o *Orchestrator) onOpened(ctx context.Context) {
	o.mu.Lock()
	state, inFlight := o.state, o.inFlight
	o.mu.Unlock()

	// Resolved states are never revisited, and one login at a time.
	if state != StateUnknown || inFlight {
		return
	}

	tok, err := o.creds.Get(ctx, SessionCookie)
	if err != nil {
		if !errors.Is(err, ErrCredentialNotFound) {
			o.log.Warn("client.credential.read.fail", "err", err)
		}
		o.log.Info("client.login.none", "msg", "no token found")
		o.transition(StateUnAuthenticated)
		return
	}

	frame, err := v1.EncodeRequest(v1.LoginSession{Session: v1.NewSession(tok)})
	if err != nil {
		o.log.Info("client.login.encode.fail", "err", err)
		o.removeCredential(ctx)
		o.transition(StateUnAuthenticated)
		return
	}

	o.setInFlight(true)
	o.log.Info("client.login.start", "msg", "token found, trying to authenticate")

	if err := o.sender.Send(ctx, frame); err != nil {
		o.log.Info("client.login.send.fail", "err", err)
		o.onFailure(StatusFailed)
	}
}

func (o *Orchestrator) onResponse(ctx context.Context, data []byte) {
	o.setInFlight(false)

	resp, err := v1.DecodeResponse(data)
	if err != nil {
		o.log.Info("client.login.fail", "reason", "decode", "kind", v1.DecodeErrorKind(err))
		o.removeCredential(ctx)
		o.transition(StateUnAuthenticated)
		return
	}

	s, ok := resp.Session()
	if !ok {
		o.log.Info("client.login.fail", "reason", "rejected")
		o.removeCredential(ctx)
		o.transition(StateUnAuthenticated)
		return
	}

	if err := o.creds.Set(ctx, SessionCookie, s.Token); err != nil {
		o.log.Error("client.credential.write.fail", "err", err)
	}
	o.log.Info("client.login.succeed")
	o.transition(StateAuthenticated)
}

// onFailure is display-only: the state is left as it is.
func (o *Orchestrator) onFailure(s Status) {
	o.log.Info("client.transport.fail", "status", s.String())

	o.mu.Lock()
	o.inFlight = false
	o.message = MessageLoadingError
	snap := o.snapshotLocked()
	o.mu.Unlock()

	o.publish(snap)
}

func (o *Orchestrator) removeCredential(ctx context.Context) {
	if err := o.creds.Remove(ctx, SessionCookie); err != nil {
		o.log.Error("client.credential.remove.fail", "err", err)
	}
}

func (o *Orchestrator) setInFlight(v bool) {
	o.mu.Lock()
	o.inFlight = v
	o.mu.Unlock()
}

func (o *Orchestrator) transition(next State) {
	o.mu.Lock()
	prev := o.state
	o.state = next
	snap := o.snapshotLocked()
	o.mu.Unlock()

	if prev != next {
		o.log.Debug("client.state", "from", prev.String(), "to", next.String())
	}
	o.publish(snap)
}

// State returns the current authentication state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Message returns the display message for the Unknown state.
func (o *Orchestrator) Message() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.message
}

// Snapshot returns the current state and message together.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

// Subscribe returns a channel receiving the latest Snapshot after every
// change. Slow readers only ever see the newest value. Call cancel to stop.
func (o *Orchestrator) Subscribe() (updates <-chan Snapshot, cancel func()) {
	ch := make(chan Snapshot, 1)

	o.mu.Lock()
	o.subs[ch] = struct{}{}
	ch <- o.snapshotLocked()
	o.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.subs, ch)
			o.mu.Unlock()
		})
	}
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	return Snapshot{State: o.state, Message: o.message}
}

func (o *Orchestrator) publish(snap Snapshot) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for ch := range o.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}
