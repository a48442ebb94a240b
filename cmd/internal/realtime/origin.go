package realtime

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// originPolicy decides which browser origins may open a socket.
type originPolicy struct {
	required bool
	allowed  []string
}

func (p originPolicy) check(r *http.Request) error {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		if p.required {
			return errors.New("missing origin")
		}
		return nil
	}
	if len(p.allowed) == 0 {
		return errors.New("origin not allowed (no allowlist)")
	}

	host := originHostOnly(origin)
	for _, a := range p.allowed {
		switch {
		case a == "*":
			return nil
		case origin == a:
			return nil
		case host != "" && host == originHostOnly(a):
			// Host match ignores scheme and port.
			return nil
		}
	}
	return fmt.Errorf("origin not allowed: %s", origin)
}

// acceptPatterns derives websocket.AcceptOptions.OriginPatterns from the
// allowlist so the library check and ours agree on cross-origin hosts.
func (p originPolicy) acceptPatterns() []string {
	seen := make(map[string]struct{}, len(p.allowed))
	for _, a := range p.allowed {
		if h := originHostOnly(a); h != "" && h != "*" {
			seen[h] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for h := range seen {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

// originHostOnly extracts the lowercased host from a URL or host[:port].
func originHostOnly(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		s = strings.TrimSpace(u.Host)
		if s == "" {
			return ""
		}
	}

	if host, _, err := net.SplitHostPort(s); err == nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(s)
}
