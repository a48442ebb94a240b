package client

// State is the client-local authentication state.
type State uint8

const (
	// StateUnknown is the initial state until a login outcome is known.
	StateUnknown State = iota
	StateAuthenticated
	StateUnAuthenticated
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateAuthenticated:
		return "authenticated"
	case StateUnAuthenticated:
		return "unauthenticated"
	default:
		return "invalid"
	}
}

// Display messages shown while the state is Unknown.
const (
	MessageLoading      = "Loading application…"
	MessageLoadingError = "Error loading application."
)

// Snapshot is what presentation observes. It is a copy, never a handle.
type Snapshot struct {
	State   State
	Message string
}
