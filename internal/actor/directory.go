// Package actor exposes the read-only directory the provenance components use
// to turn actor IDs into usernames. User management is owned by the identity
// service; absence of a username is always tolerated.
package actor

import (
	"context"
	"sync"
)

// Directory resolves actor IDs to usernames.
type Directory interface {
	UsernameFor(ctx context.Context, actorID string) (string, bool)
}

// InMemoryDirectory is a map-backed directory for single-node deployments and
// tests.
type InMemoryDirectory struct {
	mu    sync.RWMutex
	users map[string]string
}

func NewInMemoryDirectory() *InMemoryDirectory {
	return &InMemoryDirectory{users: make(map[string]string)}
}

// Register associates an actor ID with a username.
func (d *InMemoryDirectory) Register(actorID, username string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[actorID] = username
}

func (d *InMemoryDirectory) UsernameFor(_ context.Context, actorID string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	username, ok := d.users[actorID]
	return username, ok
}
