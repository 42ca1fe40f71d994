package directory

import (
	"context"
	"fmt"
	"sync"

	"examflow/pkg/domain"
	"examflow/pkg/platform/sentinel"
)

// InMemory is a Directory backed by a map; used in dev mode and tests.
type InMemory struct {
	mu    sync.RWMutex
	users map[domain.UserID]User
}

func NewInMemory(users ...User) *InMemory {
	d := &InMemory{users: make(map[domain.UserID]User, len(users))}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

// Add inserts or replaces a user.
func (d *InMemory) Add(u User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = u
}

func (d *InMemory) Lookup(_ context.Context, id domain.UserID) (*User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, sentinel.ErrNotFound)
	}
	return &u, nil
}
