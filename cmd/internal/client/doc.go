// Package client is the headless side of session login.
//
// An Orchestrator owns the authentication State. It reacts to transport
// status events and inbound payloads in a single event loop, sends at most
// one LoginSession per connection attempt, and keeps the stored credential
// consistent with every resolved outcome.
package client
