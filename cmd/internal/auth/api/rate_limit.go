package authapi

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	v1 "webapp/shared/contracts/protocol/v1"
)

// failureLimiter tracks rejected logins per IP in a sliding window.
type failureLimiter struct {
	max    int
	window time.Duration

	mu       sync.Mutex
	failures map[string][]time.Time
}

func newFailureLimiter(max int, window time.Duration) *failureLimiter {
	return &failureLimiter{max: max, window: window, failures: make(map[string][]time.Time)}
}

// blocked reports whether ip exhausted its failures, with the time until the
// oldest counted failure leaves the window.
func (l *failureLimiter) blocked(ip net.IP, now time.Time) (bool, time.Duration) {
	if l == nil || l.max <= 0 || ip == nil {
		return false, 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	return evaluateWindowThrottle(now, l.failures[ip.String()], l.max, l.window)
}

func (l *failureLimiter) fail(ip net.IP, now time.Time) {
	if l == nil || l.max <= 0 || ip == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	key := ip.String()
	l.failures[key] = append(prune(l.failures[key], now, l.window), now)

	// Opportunistic cleanup keeps the map bounded by active IPs.
	if len(l.failures) > 1024 {
		for k, v := range l.failures {
			if v = prune(v, now, l.window); len(v) == 0 {
				delete(l.failures, k)
			} else {
				l.failures[k] = v
			}
		}
	}
}

// evaluateWindowThrottle blocks once max failures fall inside window.
func evaluateWindowThrottle(now time.Time, failures []time.Time, max int, window time.Duration) (bool, time.Duration) {
	if max <= 0 || window <= 0 {
		return false, 0
	}

	var oldest time.Time
	count := 0
	for _, f := range failures {
		if now.Sub(f) >= window {
			continue
		}
		count++
		if oldest.IsZero() || f.Before(oldest) {
			oldest = f
		}
	}
	if count < max {
		return false, 0
	}
	return true, window - now.Sub(oldest)
}

func prune(failures []time.Time, now time.Time, window time.Duration) []time.Time {
	out := failures[:0]
	for _, f := range failures {
		if now.Sub(f) < window {
			out = append(out, f)
		}
	}
	return out
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.FormatInt(int64(retryAfter.Seconds()), 10))
	}
	writeResponse(w, http.StatusTooManyRequests, v1.Failure(msgTooManyAttempts))
}
