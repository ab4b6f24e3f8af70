package server

import (
	"sort"
	"sync"
)

// Registry maps space ids to the sessions occupying them. It is the only place room membership
// changes. Locks are per room; the registry-wide lock only guards the room index.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*room

	metrics *Metrics
}

func NewRegistry(metrics *Metrics) *Registry {
	if metrics == nil {
		metrics = &Metrics{}
	}
	return &Registry{rooms: make(map[string]*room), metrics: metrics}
}

func (g *Registry) acquire(spaceID string) *room {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rooms[spaceID]
	if !ok {
		r = newRoom(spaceID)
		g.rooms[spaceID] = r
	}
	return r
}

func (g *Registry) lookup(spaceID string) *room {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rooms[spaceID]
}

// release removes a closed room from the index unless it was already replaced.
func (g *Registry) release(spaceID string, r *room) {
	g.mu.Lock()
	if cur, ok := g.rooms[spaceID]; ok && cur == r {
		delete(g.rooms, spaceID)
	}
	g.mu.Unlock()
}

// Join registers m under spaceID with its initial broadcast state. Within one critical section it
// enqueues reply(others) to m and announce to every other occupant, so the snapshot and the
// announcement audience are exactly the same set.
//
// If another session of the same user is present it is removed first, the remaining occupants get
// a user-left for it, and it is returned so the caller can close it.
func (g *Registry) Join(spaceID string, m Member, self UserState, reply func(others []UserState) []byte, announce []byte) (evicted Member) {
	for {
		r := g.acquire(spaceID)
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			g.release(spaceID, r)
			continue
		}

		if prev, ok := r.byUser[self.UserID]; ok && prev != m.ID() {
			if o, removed := r.removeLocked(prev); removed {
				evicted = o.member
				r.broadcastLocked(prev, Encode(TypeUserLeft, UserLeft{UserID: self.UserID}))
				g.metrics.IncEvicted()
			}
		}

		others := r.snapshotLocked(m.ID())
		r.members[m.ID()] = &occupant{member: m, state: self}
		r.byUser[self.UserID] = m.ID()

		if reply != nil {
			m.Enqueue(reply(others))
		}
		if announce != nil {
			r.broadcastLocked(m.ID(), announce)
		}
		r.mu.Unlock()
		return evicted
	}
}

// Leave removes m from spaceID and enqueues announce to the remaining occupants in the same
// critical section. It reports false, and sends nothing, if m was not a member.
func (g *Registry) Leave(spaceID string, m Member, announce []byte) bool {
	r := g.lookup(spaceID)
	if r == nil {
		return false
	}
	r.mu.Lock()
	if _, ok := r.removeLocked(m.ID()); !ok {
		r.mu.Unlock()
		return false
	}
	if announce != nil {
		r.broadcastLocked(m.ID(), announce)
	}
	empty := len(r.members) == 0
	if empty {
		r.closed = true
	}
	r.mu.Unlock()

	if empty {
		g.release(spaceID, r)
	}
	return true
}

// Update replaces m's broadcast state and enqueues msg to the other occupants atomically.
// It reports false if m is not in the room.
func (g *Registry) Update(spaceID string, m Member, state UserState, msg []byte) bool {
	r := g.lookup(spaceID)
	if r == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.members[m.ID()]
	if !ok {
		return false
	}
	o.state = state
	if msg != nil {
		r.broadcastLocked(m.ID(), msg)
	}
	return true
}

// Broadcast enqueues msg to every occupant of spaceID except exclude (which may be nil).
func (g *Registry) Broadcast(spaceID string, exclude Member, msg []byte) int {
	r := g.lookup(spaceID)
	if r == nil {
		return 0
	}
	skip := ""
	if exclude != nil {
		skip = exclude.ID()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.broadcastLocked(skip, msg)
}

// SendTo enqueues msg to the occupant of spaceID whose user id is userID.
func (g *Registry) SendTo(spaceID, userID string, msg []byte) bool {
	r := g.lookup(spaceID)
	if r == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	sid, ok := r.byUser[userID]
	if !ok {
		return false
	}
	return r.members[sid].member.Enqueue(msg)
}

// Occupants returns the broadcast state of everyone in spaceID, ordered by user id.
func (g *Registry) Occupants(spaceID string) []UserState {
	r := g.lookup(spaceID)
	if r == nil {
		return nil
	}
	r.mu.Lock()
	out := r.snapshotLocked("")
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// Has reports whether spaceID currently has an entry.
func (g *Registry) Has(spaceID string) bool {
	return g.lookup(spaceID) != nil
}

// Sizes returns the occupant count per room.
func (g *Registry) Sizes() map[string]int {
	g.mu.Lock()
	rooms := make([]*room, 0, len(g.rooms))
	for _, r := range g.rooms {
		rooms = append(rooms, r)
	}
	g.mu.Unlock()

	out := make(map[string]int, len(rooms))
	for _, r := range rooms {
		r.mu.Lock()
		if !r.closed {
			out[r.id] = len(r.members)
		}
		r.mu.Unlock()
	}
	return out
}
