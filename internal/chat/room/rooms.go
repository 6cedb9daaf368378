// Package room keeps conversation-scoped multicast groups.
package room

import (
	"sort"
	"sync"

	"github.com/AlibekovAA/booking-chat-relay/internal/observability/metrics"
)

// Member is anything that can sit in a room. Closed members are never
// (re)admitted, which keeps late backend responses from resurrecting
// membership for a connection that already went away.
type Member interface {
	ID() string
	Closed() bool
}

type Rooms[M Member] struct {
	mu       sync.RWMutex
	rooms    map[string]map[string]M
	byMember map[string]map[string]struct{}
}

func New[M Member]() *Rooms[M] {
	return &Rooms[M]{
		rooms:    make(map[string]map[string]M),
		byMember: make(map[string]map[string]struct{}),
	}
}

// Join ensures m is in roomID. It is idempotent and reports whether m is a
// member afterwards, which is false only for closed members or an empty id.
func (r *Rooms[M]) Join(roomID string, m M) bool {
	if roomID == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if m.Closed() {
		return false
	}

	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[string]M)
		r.rooms[roomID] = members
	}
	members[m.ID()] = m

	joined, ok := r.byMember[m.ID()]
	if !ok {
		joined = make(map[string]struct{})
		r.byMember[m.ID()] = joined
	}
	joined[roomID] = struct{}{}

	metrics.ChatRoomsActive.Set(float64(len(r.rooms)))
	return true
}

// Leave removes m from roomID and reports whether it was a member.
func (r *Rooms[M]) Leave(roomID string, m M) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	left := r.removeLocked(roomID, m.ID())
	metrics.ChatRoomsActive.Set(float64(len(r.rooms)))
	return left
}

// LeaveAll removes m from every room and returns the rooms it left.
func (r *Rooms[M]) LeaveAll(m M) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	joined := r.byMember[m.ID()]
	left := make([]string, 0, len(joined))
	for roomID := range joined {
		left = append(left, roomID)
	}
	for _, roomID := range left {
		r.removeLocked(roomID, m.ID())
	}
	metrics.ChatRoomsActive.Set(float64(len(r.rooms)))

	sort.Strings(left)
	return left
}

func (r *Rooms[M]) removeLocked(roomID, memberID string) bool {
	members, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	if _, ok := members[memberID]; !ok {
		return false
	}

	delete(members, memberID)
	if len(members) == 0 {
		delete(r.rooms, roomID)
	}

	if joined, ok := r.byMember[memberID]; ok {
		delete(joined, roomID)
		if len(joined) == 0 {
			delete(r.byMember, memberID)
		}
	}
	return true
}

// Members returns the room's members ordered by id.
func (r *Rooms[M]) Members(roomID string) []M {
	return r.Others(roomID, "")
}

// Others returns the room's members except exceptID, ordered by id.
func (r *Rooms[M]) Others(roomID, exceptID string) []M {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[roomID]
	out := make([]M, 0, len(members))
	for id, m := range members {
		if id == exceptID {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func (r *Rooms[M]) RoomsOf(memberID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	joined := r.byMember[memberID]
	out := make([]string, 0, len(joined))
	for roomID := range joined {
		out = append(out, roomID)
	}
	sort.Strings(out)
	return out
}

func (r *Rooms[M]) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
