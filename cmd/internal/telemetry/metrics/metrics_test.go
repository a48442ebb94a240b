package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveLogin(t *testing.T) {
	m := New()

	m.ObserveLogin("ok")
	m.ObserveLogin("ok")
	m.ObserveLogin("invalid")

	if got := testutil.ToFloat64(m.Logins.WithLabelValues("ok")); got != 2 {
		t.Fatalf("ok logins = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Logins.WithLabelValues("invalid")); got != 1 {
		t.Fatalf("invalid logins = %v, want 1", got)
	}
}

func TestWSConnections(t *testing.T) {
	m := New()

	m.WSConnected()
	m.WSConnected()
	m.WSDisconnected()
	m.WSMessage("in")

	if got := testutil.ToFloat64(m.WSConnections); got != 1 {
		t.Fatalf("connections = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.WSMessages.WithLabelValues("in")); got != 1 {
		t.Fatalf("inbound messages = %v, want 1", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	m.ObserveLogin("ok")
	m.ObserveDecodeFailure("truncated")
	m.WSConnected()
	m.WSDisconnected()
	m.WSMessage("out")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 from nil metrics handler, got %d", rec.Code)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveDecodeFailure("type_mismatch")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `webapp_protocol_decode_failures_total{kind="type_mismatch"} 1`) {
		t.Fatalf("decode failure metric missing from output:\n%s", body)
	}
}
