// Package app wires the webapp server runtime: config, logging, session store, HTTP routes and the WebSocket gateway.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	authapi "webapp/cmd/internal/auth/api"
	"webapp/cmd/internal/auth/session"
	"webapp/cmd/internal/realtime"
	"webapp/cmd/internal/telemetry/metrics"
)

// App is the server runtime: it owns HTTP server wiring and the session backend.
type App struct {
	cfg Config
	log Logger

	sessions *Sessions
	metrics  *metrics.Metrics

	ws   *realtime.WSGateway
	auth *authapi.Handler
}

// New constructs a fully wired App instance from config and logger.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}

	m := metrics.New()

	sessions, err := OpenSessions(ctx, cfg, log, session.WithObserver(m))
	if err != nil {
		return nil, err
	}

	authHandler, err := authapi.NewHandler(log, authapi.LoadConfigFromEnv(), sessions.Service, authapi.WithDecodeObserver(m))
	if err != nil {
		_ = sessions.Close()
		return nil, err
	}

	ws, err := realtime.NewWSGateway(log, sessions.Service, realtime.WithObserver(m))
	if err != nil {
		_ = sessions.Close()
		return nil, err
	}

	return &App{
		cfg:      cfg,
		log:      log,
		sessions: sessions,
		metrics:  m,
		ws:       ws,
		auth:     authHandler,
	}, nil
}

// Handler returns the fully wrapped root handler.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	registerHTTP(mux, routes{
		log:      a.log,
		cfg:      a.cfg,
		sessions: a.sessions,
		ws:       a.ws,
		auth:     a.auth,
		metrics:  a.metrics,
	})
	return WithRequestLogging(WithSecurityHeaders(mux), a.log)
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	base := runtimeBaseURL(a.cfg.HTTPAddr)
	a.log.Info("server.start",
		"addr", a.cfg.HTTPAddr,
		"http_url", base,
		"ws_url", wsBaseURL(base)+"/ws",
		"session_backend", a.sessions.Backend,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		_ = a.sessions.Close()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	if err := a.sessions.Close(); err != nil {
		a.log.Error("store.close.fail", "err", err)
	}

	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
