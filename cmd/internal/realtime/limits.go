package realtime

import (
	"time"

	v1 "webapp/shared/contracts/protocol/v1"
)

// Security/performance limits.
const (
	// Max bytes per websocket frame read (hard limit). Matches the codec bound.
	maxFrameBytes = v1.MaxMessageBytes
)

const (
	// Heartbeat defaults (can be overridden by env in ws_gateway.go).
	heartbeatInterval = 25 * time.Second
	heartbeatTimeout  = 5 * time.Second

	// Per-connection rate limits (requests per window). Login is rare, so
	// the budget is small.
	rateLimitEvents = 10
	rateLimitWindow = 10 * time.Second

	// Upper bound for one Handle call before the connection gives up.
	handleTimeout = 10 * time.Second
)
