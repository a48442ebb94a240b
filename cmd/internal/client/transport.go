package client

import "context"

// Status is a connection-status notification from a Transport.
type Status uint8

const (
	StatusOpened Status = iota + 1
	StatusFailed
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusOpened:
		return "opened"
	case StatusFailed:
		return "failed"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Sender is the outbound half of a Transport.
type Sender interface {
	Send(ctx context.Context, data []byte) error
}

// Transport is a bidirectional byte-message channel.
// Statuses and Payloads are closed when the transport stops.
type Transport interface {
	Sender
	Statuses() <-chan Status
	Payloads() <-chan []byte
}
