package server

import "sync"

// Member is anything the registry can deliver frames to. Sessions are the only production implementation.
type Member interface {
	ID() string
	// Enqueue hands a frame to the member's outbound queue without blocking.
	// It returns false if the frame was not accepted.
	Enqueue(b []byte) bool
	Close()
}

type occupant struct {
	member Member
	state  UserState
}

// room is one space's occupant set. It is never handed out of the registry.
type room struct {
	id string

	mu      sync.Mutex
	members map[string]*occupant // session id -> occupant
	byUser  map[string]string    // user id -> session id
	closed  bool                 // set once the last occupant left; a closed room is never reused
}

func newRoom(id string) *room {
	return &room{
		id:      id,
		members: make(map[string]*occupant),
		byUser:  make(map[string]string),
	}
}

// snapshotLocked returns the broadcast state of every occupant except exclude.
func (r *room) snapshotLocked(exclude string) []UserState {
	out := make([]UserState, 0, len(r.members))
	for sid, o := range r.members {
		if sid == exclude {
			continue
		}
		out = append(out, o.state)
	}
	return out
}

// broadcastLocked enqueues msg for every occupant except exclude and returns how many accepted it.
func (r *room) broadcastLocked(exclude string, msg []byte) int {
	sent := 0
	for sid, o := range r.members {
		if sid == exclude {
			continue
		}
		if o.member.Enqueue(msg) {
			sent++
		}
	}
	return sent
}

// removeLocked drops a session from the room and returns its last state.
func (r *room) removeLocked(sid string) (occupant, bool) {
	o, ok := r.members[sid]
	if !ok {
		return occupant{}, false
	}
	delete(r.members, sid)
	if r.byUser[o.state.UserID] == sid {
		delete(r.byUser, o.state.UserID)
	}
	return *o, true
}
