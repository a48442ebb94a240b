package client

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	v1 "webapp/shared/contracts/protocol/v1"

	"github.com/coder/websocket"
)

const (
	wsDialTimeout  = 10 * time.Second
	wsWriteTimeout = 5 * time.Second
	wsQueueSize    = 8
)

// ErrNotConnected is returned by Send before the socket is open or after it closed.
var ErrNotConnected = errors.New("client: not connected")

// WSTransport is a Transport over a single WebSocket connection.
// It does not reconnect.
type WSTransport struct {
	url    string
	origin string
	log    *slog.Logger

	statuses chan Status
	payloads chan []byte

	mu   sync.Mutex
	conn *websocket.Conn

	startOnce sync.Once
}

// NewWSTransport prepares a transport for url. Nothing is dialed until Start.
func NewWSTransport(url, origin string, log *slog.Logger) *WSTransport {
	if log == nil {
		log = slog.Default()
	}
	return &WSTransport{
		url:      url,
		origin:   strings.TrimSpace(origin),
		log:      log,
		statuses: make(chan Status, wsQueueSize),
		payloads: make(chan []byte, wsQueueSize),
	}
}

func (t *WSTransport) Statuses() <-chan Status { return t.statuses }
func (t *WSTransport) Payloads() <-chan []byte { return t.payloads }

// Start dials in the background and pumps inbound frames until the
// connection ends or ctx is cancelled. It is safe to call once.
func (t *WSTransport) Start(ctx context.Context) {
	t.startOnce.Do(func() {
		go t.run(ctx)
	})
}

func (t *WSTransport) run(ctx context.Context) {
	defer close(t.statuses)
	defer close(t.payloads)

	h := http.Header{}
	if t.origin != "" {
		h.Set("Origin", t.origin)
	}

	dialCtx, cancel := context.WithTimeout(ctx, wsDialTimeout)
	conn, resp, err := websocket.Dial(dialCtx, t.url, &websocket.DialOptions{
		Subprotocols: []string{v1.Subprotocol},
		HTTPHeader:   h,
	})
	cancel()
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		t.log.Info("client.ws.dial.fail", "url", t.url, "err", err)
		t.emit(ctx, StatusFailed)
		return
	}
	if conn.Subprotocol() != v1.Subprotocol {
		t.log.Info("client.ws.subprotocol.mismatch", "got", conn.Subprotocol())
		_ = conn.Close(websocket.StatusProtocolError, "subprotocol required")
		t.emit(ctx, StatusFailed)
		return
	}
	conn.SetReadLimit(v1.MaxMessageBytes)

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.conn = nil
		t.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
	}()

	if !t.emit(ctx, StatusOpened) {
		return
	}

	for {
		mt, data, err := conn.Read(ctx)
		if err != nil {
			t.log.Info("client.ws.closed", "close_status", websocket.CloseStatus(err), "err", err)
			t.emit(ctx, StatusClosed)
			return
		}
		if mt != websocket.MessageBinary {
			// Text frames are not part of the protocol; hand them on so the
			// orchestrator treats them as undecodable.
			t.log.Info("client.ws.text_frame")
		}

		select {
		case t.payloads <- data:
		case <-ctx.Done():
			return
		}
	}
}

func (t *WSTransport) emit(ctx context.Context, s Status) bool {
	select {
	case t.statuses <- s:
		return true
	case <-ctx.Done():
		return false
	}
}

// Send writes one binary frame.
func (t *WSTransport) Send(ctx context.Context, data []byte) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	wctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageBinary, data)
}
