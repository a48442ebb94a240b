package realtime

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"webapp/cmd/internal/ids"
)

// NewConnID returns a ULID used as websocket connection id in logs.
// It falls back to random hex if the ULID source fails.
func NewConnID(now time.Time) string {
	id, err := ids.NewULID(now)
	if err != nil {
		return newRandomHex(13)
	}
	return id
}

// newRandomHex returns a cryptographically secure random hex string of length 2*nBytes.
func newRandomHex(nBytes int) string {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return ""
	}
	return hex.EncodeToString(b)
}
