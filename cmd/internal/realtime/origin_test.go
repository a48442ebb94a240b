package realtime

import (
	"net/http/httptest"
	"reflect"
	"testing"
	"time"
)

func TestOriginPolicy_Check(t *testing.T) {
	p := originPolicy{required: true, allowed: []string{"http://localhost", "https://app.example.com:8443"}}

	cases := []struct {
		origin string
		ok     bool
	}{
		{"", false},
		{"http://localhost", true},
		{"http://localhost:5173", true},
		{"https://app.example.com", true},
		{"https://evil.example.com", false},
	}

	for _, tc := range cases {
		r := httptest.NewRequest("GET", "/ws", nil)
		if tc.origin != "" {
			r.Header.Set("Origin", tc.origin)
		}
		err := p.check(r)
		if (err == nil) != tc.ok {
			t.Fatalf("origin %q: err=%v, want ok=%v", tc.origin, err, tc.ok)
		}
	}
}

func TestOriginPolicy_NotRequired(t *testing.T) {
	p := originPolicy{required: false}
	if err := p.check(httptest.NewRequest("GET", "/ws", nil)); err != nil {
		t.Fatalf("missing origin should pass: %v", err)
	}

	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Origin", "http://localhost")
	if err := p.check(r); err == nil {
		t.Fatalf("expected rejection with empty allowlist")
	}
}

func TestOriginPolicy_AcceptPatterns(t *testing.T) {
	p := originPolicy{allowed: []string{"http://localhost", "http://127.0.0.1:3000", "*", "LOCALHOST:8080"}}
	got := p.acceptPatterns()
	want := []string{"127.0.0.1", "localhost"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("acceptPatterns = %v, want %v", got, want)
	}
}

func TestRateLimiter_SlidingWindow(t *testing.T) {
	rl := NewRateLimiter(2, time.Second)
	base := time.Unix(1_700_000_000, 0)

	if !rl.Allow(base) || !rl.Allow(base.Add(100*time.Millisecond)) {
		t.Fatalf("first two events should pass")
	}
	if rl.Allow(base.Add(500 * time.Millisecond)) {
		t.Fatalf("third event inside window should be blocked")
	}
	if !rl.Allow(base.Add(1100 * time.Millisecond)) {
		t.Fatalf("event after first expired should pass")
	}
}

func TestNewConnID_IsULID(t *testing.T) {
	id := NewConnID(time.Now().UTC())
	if len(id) != 26 {
		t.Fatalf("conn id %q: want 26 chars", id)
	}
}
