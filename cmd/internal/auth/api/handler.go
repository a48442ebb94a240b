package authapi

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"webapp/cmd/internal/auth/session"
	v1 "webapp/shared/contracts/protocol/v1"
)

// Failure messages sent to clients. Causes stay in server logs.
const (
	msgLoginFailed     = v1.MsgLoginFailed
	msgInvalidRequest  = v1.MsgInvalidRequest
	msgTooManyAttempts = v1.MsgTooManyAttempts
)

// DecodeObserver receives the kind of every undecodable request.
type DecodeObserver interface {
	ObserveDecodeFailure(kind string)
}

// Handler serves POST /session/login over raw CBOR bodies.
type Handler struct {
	log *slog.Logger
	cfg Config

	sessions session.Handler
	limiter  *failureLimiter
	decodes  DecodeObserver
	now      func() time.Time
}

// HandlerOption configures optional handler dependencies.
type HandlerOption func(*Handler)

// WithDecodeObserver reports decode failures (metrics).
func WithDecodeObserver(obs DecodeObserver) HandlerOption {
	return func(h *Handler) {
		if h == nil || obs == nil {
			return
		}
		h.decodes = obs
	}
}

// WithClock overrides the time source used for throttling (tests).
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if h == nil || now == nil {
			return
		}
		h.now = now
	}
}

// NewHandler constructs a login Handler on top of a session.Handler.
func NewHandler(log *slog.Logger, cfg Config, sessions session.Handler, opts ...HandlerOption) (*Handler, error) {
	if sessions == nil {
		return nil, errors.New("authapi: nil session handler")
	}
	if log == nil {
		log = slog.Default()
	}

	h := &Handler{
		log:      log,
		cfg:      cfg,
		sessions: sessions,
		limiter:  newFailureLimiter(cfg.LoginIPMax, cfg.LoginIPWindow),
		now:      func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}

	return h, nil
}

// Register wires session routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/session/login", h.handleLogin)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	now := h.now()
	ip := clientIP(r, h.cfg.TrustProxy)

	if blocked, retryAfter := h.limiter.blocked(ip, now); blocked {
		h.log.Info("session.login.throttle", "ip", ip.String(), "retry_after", retryAfter)
		writeRateLimited(w, retryAfter)
		return
	}

	body, err := readBody(w, r, h.cfg.MaxBodyBytes)
	if err != nil {
		h.log.Info("session.login.read.fail", "err", err)
		writeResponse(w, http.StatusBadRequest, v1.Failure(msgInvalidRequest))
		return
	}

	req, err := v1.DecodeRequest(body)
	if err != nil {
		kind := v1.DecodeErrorKind(err)
		if h.decodes != nil {
			h.decodes.ObserveDecodeFailure(kind)
		}
		h.log.Info("session.login.decode.fail", "kind", kind, "err", err)
		h.limiter.fail(ip, now)
		writeResponse(w, http.StatusBadRequest, v1.Failure(msgInvalidRequest))
		return
	}

	login, ok := req.(v1.LoginSession)
	if !ok {
		writeResponse(w, http.StatusBadRequest, v1.Failure(msgInvalidRequest))
		return
	}

	s, err := h.sessions.Handle(r.Context(), login)
	if err != nil {
		h.limiter.fail(ip, now)
		writeResponse(w, http.StatusUnauthorized, v1.Failure(msgLoginFailed))
		return
	}

	writeResponse(w, http.StatusOK, v1.OK(s))
}

func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

func parseForwardedIP(raw string) net.IP {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	for _, p := range parts {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			return ip
		}
	}
	return nil
}
