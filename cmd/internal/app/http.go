package app

import (
	"net/http"

	authapi "webapp/cmd/internal/auth/api"
	"webapp/cmd/internal/realtime"
	"webapp/cmd/internal/telemetry/metrics"
)

type routes struct {
	log      Logger
	cfg      Config
	sessions *Sessions
	ws       *realtime.WSGateway
	auth     *authapi.Handler
	metrics  *metrics.Metrics
}

func registerHTTP(mux *http.ServeMux, rt routes) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if rt.cfg.ReadinessRequireDB && !rt.sessions.Persistent() {
			http.Error(w, "db not configured", http.StatusServiceUnavailable)
			return
		}

		if err := rt.sessions.Ready(r.Context()); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			rt.log.Info("readyz.db.not_ready", "backend", rt.sessions.Backend, "err", err)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	if rt.auth != nil {
		// CORS applies to the browser-facing login route only; /ws has its own origin policy.
		login := http.NewServeMux()
		rt.auth.Register(login)
		mux.Handle("/session/", WithCORS(login, rt.cfg, rt.log))
	}

	if rt.cfg.MetricsEnabled && rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	mux.Handle("/ws", rt.ws)
}
