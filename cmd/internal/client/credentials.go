package client

import (
	"context"
	"errors"
	"sync"
)

// SessionCookie is the fixed key the session token is stored under.
const SessionCookie = "SESSION"

// ErrCredentialNotFound is returned by Get when no value is stored for a key.
var ErrCredentialNotFound = errors.New("client: credential not found")

// CredentialStore persists the session credential between runs.
type CredentialStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// MemoryCredentials is an in-process CredentialStore.
type MemoryCredentials struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemoryCredentials() *MemoryCredentials {
	return &MemoryCredentials{values: make(map[string]string)}
}

func (m *MemoryCredentials) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.values[key]
	if !ok {
		return "", ErrCredentialNotFound
	}
	return v, nil
}

func (m *MemoryCredentials) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = value
	return nil
}

// Remove is idempotent.
func (m *MemoryCredentials) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values, key)
	return nil
}
