package realtime

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"webapp/cmd/internal/auth/session"
	v1 "webapp/shared/contracts/protocol/v1"

	"github.com/coder/websocket"
)

const (
	wsDefaultSendQueueSize = 16
	wsMinSendQueueSize     = 4

	wsDefaultWriteTimeout = 5 * time.Second
	wsDefaultReadIdle     = 2 * time.Minute
	wsCloseGrace          = 1 * time.Second

	wsMaxPingFailures = 3

	// Security defaults:
	// - Origin is required by default.
	// - Only localhost is allowed by default (secure-by-default for dev).
	wsDefaultOriginRequired = true
	wsDefaultAllowedOrigins = "http://localhost,http://127.0.0.1"
)

// Observer receives gateway events (metrics). All methods must be cheap.
type Observer interface {
	WSConnected()
	WSDisconnected()
	WSMessage(direction string)
	ObserveDecodeFailure(kind string)
}

// WSGateway is the WebSocket entrypoint for session login.
//
// Every binary frame is decoded as a Request and answered with exactly one
// Response frame: Ok(session) when the Handler accepts the login, Err(...)
// for rejections and undecodable frames. It enforces origin policy,
// subprotocol selection, rate limits and heartbeats.
type WSGateway struct {
	log      *slog.Logger
	sessions session.Handler
	obs      Observer

	devInsecure bool
	origins     originPolicy

	// Derived for websocket.Accept origin checks.
	// Accept() authorizes same-host origins by default, but for cross-origin it requires OriginPatterns.
	originPatterns []string

	writeTimeout    time.Duration
	readIdleTimeout time.Duration
	sendQueueSize   int

	heartbeatEvery   time.Duration
	heartbeatTimeout time.Duration

	rateEvents int
	rateWindow time.Duration
}

// GatewayOption configures optional gateway dependencies.
type GatewayOption func(*WSGateway)

// WithObserver reports connection and frame events to obs.
func WithObserver(obs Observer) GatewayOption {
	return func(g *WSGateway) { g.obs = obs }
}

// NewWSGateway constructs a gateway with secure defaults read from WEBAPP_WS_* env.
func NewWSGateway(log *slog.Logger, sessions session.Handler, opts ...GatewayOption) (*WSGateway, error) {
	if sessions == nil {
		return nil, errors.New("realtime: nil session handler")
	}
	if log == nil {
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	g := &WSGateway{log: log, sessions: sessions}

	// NOTE: InsecureSkipVerify is a dev-only knob. It disables the library origin check only.
	g.devInsecure = envBoolWS("WEBAPP_WS_DEV_INSECURE", false)

	g.origins = originPolicy{
		required: envBoolWS("WEBAPP_WS_ORIGIN_REQUIRED", wsDefaultOriginRequired),
		allowed:  envCSVWS("WEBAPP_WS_ALLOWED_ORIGINS", wsDefaultAllowedOrigins),
	}
	g.originPatterns = g.origins.acceptPatterns()

	g.writeTimeout = envDurationWS("WEBAPP_WS_WRITE_TIMEOUT", wsDefaultWriteTimeout)
	g.readIdleTimeout = envDurationWS("WEBAPP_WS_READ_IDLE_TIMEOUT", wsDefaultReadIdle)

	g.sendQueueSize = envIntWS("WEBAPP_WS_SEND_QUEUE", wsDefaultSendQueueSize)
	if g.sendQueueSize < wsMinSendQueueSize {
		g.sendQueueSize = wsMinSendQueueSize
	}

	g.heartbeatEvery = envDurationWS("WEBAPP_WS_HEARTBEAT_INTERVAL", heartbeatInterval)
	g.heartbeatTimeout = envDurationWS("WEBAPP_WS_HEARTBEAT_TIMEOUT", heartbeatTimeout)

	g.rateEvents = envIntWS("WEBAPP_WS_RATE_EVENTS", rateLimitEvents)
	g.rateWindow = envDurationWS("WEBAPP_WS_RATE_WINDOW", rateLimitWindow)

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g, nil
}

// ServeHTTP adapter so it can be mounted as http.Handler.
func (g *WSGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.HandleWS(w, r)
}

// HandleWS upgrades an HTTP request to a WebSocket session and runs the request loop.
func (g *WSGateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	if err := g.origins.check(r); err != nil {
		g.log.Info("ws.reject.origin", "err", err, "origin", r.Header.Get("Origin"), "remote", r.RemoteAddr)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:       []string{v1.Subprotocol},
		OriginPatterns:     g.originPatterns,
		InsecureSkipVerify: g.devInsecure,
	})
	if err != nil {
		g.log.Error("ws.accept.fail", "err", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	if sp := conn.Subprotocol(); sp != v1.Subprotocol {
		g.log.Info("ws.reject.subprotocol", "got", sp, "want", v1.Subprotocol)
		_ = conn.Close(websocket.StatusProtocolError, "subprotocol required")
		return
	}

	conn.SetReadLimit(maxFrameBytes)

	connID := NewConnID(time.Now().UTC())
	client := NewClient(connID, g.sendQueueSize)

	g.connected()
	defer g.disconnected()
	g.log.Info("ws.connect", "conn_id", connID, "remote", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var closeOnce sync.Once

	// shutdown is idempotent. It does NOT close client.Send.
	shutdown := func(code websocket.StatusCode, reason string) {
		closeOnce.Do(func() {
			client.Close()
			_ = conn.Close(code, reason)
			cancel()
		})
	}

	rl := NewRateLimiter(g.rateEvents, g.rateWindow)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)

		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				return
			case frame := <-client.Send:
				if err := writeFrame(ctx, conn, frame, g.writeTimeout); err != nil {
					g.log.Info("ws.write.fail", "conn_id", connID, "close_status", websocket.CloseStatus(err), "err", err)
					shutdown(websocket.StatusAbnormalClosure, "write failed")
					return
				}
				g.message("out")
			}
		}
	}()

	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)

		t := time.NewTicker(g.heartbeatEvery)
		defer t.Stop()

		failures := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				return
			case <-t.C:
				hbCtx, hbCancel := context.WithTimeout(ctx, g.heartbeatTimeout)
				err := conn.Ping(hbCtx)
				hbCancel()

				if err != nil {
					failures++
					g.log.Info("ws.ping.fail", "conn_id", connID, "failures", failures, "err", err)
					if failures >= wsMaxPingFailures {
						shutdown(websocket.StatusGoingAway, "heartbeat failed")
						return
					}
					continue
				}
				failures = 0
			}
		}
	}()

readLoop:
	for {
		readCtx, readCancel := context.WithTimeout(ctx, g.readIdleTimeout)
		mt, data, err := conn.Read(readCtx)
		readCancel()

		if err != nil {
			switch classifyReadErr(err) {
			case readErrClose:
				shutdown(websocket.StatusNormalClosure, "peer closed")
			case readErrCtxDone:
				shutdown(websocket.StatusNormalClosure, "context done")
			case readErrConnClosed:
				shutdown(websocket.StatusAbnormalClosure, "conn closed")
			default:
				g.log.Info("ws.read.fail", "conn_id", connID, "err", err)
				shutdown(websocket.StatusAbnormalClosure, "read failed")
			}
			break readLoop
		}
		g.message("in")

		if !rl.Allow(time.Now().UTC()) {
			// Written inline so the reply lands before the close frame.
			if frame, err := v1.EncodeResponse(v1.Failure(v1.MsgTooManyAttempts)); err == nil {
				_ = writeFrame(ctx, conn, frame, g.writeTimeout)
				g.message("out")
			}
			g.log.Info("ws.rate_limited", "conn_id", connID)
			shutdown(websocket.StatusPolicyViolation, "rate limited")
			break readLoop
		}

		resp := g.respond(ctx, connID, mt, data)
		if !g.trySend(ctx, client, resp) {
			g.log.Info("ws.backpressure", "conn_id", connID)
			shutdown(websocket.StatusPolicyViolation, "backpressure")
			break readLoop
		}
	}

	shutdown(websocket.StatusNormalClosure, "bye")
	<-writerDone

	select {
	case <-heartbeatDone:
	case <-time.After(wsCloseGrace):
	}
	g.log.Info("ws.disconnect", "conn_id", connID)
}

// respond turns one inbound frame into exactly one Response.
func (g *WSGateway) respond(ctx context.Context, connID string, mt websocket.MessageType, data []byte) v1.Response {
	if mt != websocket.MessageBinary {
		g.decodeFailed(connID, "text_frame", errors.New("text frame"))
		return v1.Failure(v1.MsgInvalidRequest)
	}

	req, err := v1.DecodeRequest(data)
	if err != nil {
		g.decodeFailed(connID, v1.DecodeErrorKind(err), err)
		return v1.Failure(v1.MsgInvalidRequest)
	}

	login, ok := req.(v1.LoginSession)
	if !ok {
		return v1.Failure(v1.MsgInvalidRequest)
	}

	hctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()

	s, err := g.sessions.Handle(hctx, login)
	if err != nil {
		return v1.Failure(v1.MsgLoginFailed)
	}
	return v1.OK(s)
}

// ---- send helpers ----

// trySend encodes resp and queues it without blocking.
func (g *WSGateway) trySend(ctx context.Context, client *Client, resp v1.Response) bool {
	frame, err := v1.EncodeResponse(resp)
	if err != nil {
		g.log.Error("ws.encode.fail", "conn_id", client.ConnID, "err", err)
		frame, _ = v1.EncodeResponse(v1.Failure(v1.MsgLoginFailed))
	}

	select {
	case <-ctx.Done():
		return false
	case <-client.Done():
		return false
	case client.Send <- frame:
		return true
	default:
		return false
	}
}

func writeFrame(parent context.Context, conn *websocket.Conn, frame []byte, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageBinary, frame)
}

func (g *WSGateway) decodeFailed(connID, kind string, err error) {
	g.log.Info("ws.decode.fail", "conn_id", connID, "kind", kind, "err", err)
	if g.obs != nil {
		g.obs.ObserveDecodeFailure(kind)
	}
}

func (g *WSGateway) connected() {
	if g.obs != nil {
		g.obs.WSConnected()
	}
}

func (g *WSGateway) disconnected() {
	if g.obs != nil {
		g.obs.WSDisconnected()
	}
}

func (g *WSGateway) message(direction string) {
	if g.obs != nil {
		g.obs.WSMessage(direction)
	}
}

// ---- read error classification ----

type readErrKind uint8

const (
	readErrUnknown readErrKind = iota
	readErrClose
	readErrCtxDone
	readErrConnClosed
)

func classifyReadErr(err error) readErrKind {
	if websocket.CloseStatus(err) != -1 {
		return readErrClose
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return readErrCtxDone
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return readErrConnClosed
	}
	return readErrUnknown
}
