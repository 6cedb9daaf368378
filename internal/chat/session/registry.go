// Package session tracks which connections are open for each user.
package session

import (
	"sort"
	"sync"

	"github.com/AlibekovAA/booking-chat-relay/internal/observability/metrics"
)

// Registry maps a user identity to the ids of its live connections. A user
// is present iff it has at least one connection.
type Registry interface {
	Register(userID, connID string)
	// Unregister removes connID and returns how many connections the user
	// still has. Unknown users or connections are a no-op.
	Unregister(userID, connID string) int
	Lookup(userID string) []string
	Users() int
}

type MemoryRegistry struct {
	mu     sync.RWMutex
	byUser map[string]map[string]struct{}
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		byUser: make(map[string]map[string]struct{}),
	}
}

func (r *MemoryRegistry) Register(userID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.byUser[userID]
	if !ok {
		conns = make(map[string]struct{})
		r.byUser[userID] = conns
	}
	conns[connID] = struct{}{}
	metrics.ChatSessionRegistryUsers.Set(float64(len(r.byUser)))
}

func (r *MemoryRegistry) Unregister(userID, connID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.byUser[userID]
	if !ok {
		return 0
	}
	delete(conns, connID)
	if len(conns) == 0 {
		delete(r.byUser, userID)
		metrics.ChatSessionRegistryUsers.Set(float64(len(r.byUser)))
		return 0
	}
	return len(conns)
}

// Lookup returns the user's connection ids in sorted order, or nil.
func (r *MemoryRegistry) Lookup(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := r.byUser[userID]
	if len(conns) == 0 {
		return nil
	}
	out := make([]string, 0, len(conns))
	for id := range conns {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (r *MemoryRegistry) Users() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}
