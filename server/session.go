package server

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// State is a session's position in its lifecycle. Transitions only move forward.
type State int32

const (
	StateConnected State = iota // no identity, no room
	StateJoined                 // identity and room bound
	StateClosed                 // terminal
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Outbox is the sending side of a connection.
type Outbox interface {
	Enqueue(b []byte) bool
	Close()
}

// Deps are the shared collaborators every session of a gateway uses.
type Deps struct {
	Registry *Registry
	Verifier IdentityVerifier
	Spaces   SpaceLookup
	Presence Presence
	Rules    *MovementRules
	Metrics  *Metrics
	Spawn    func(width, height int) Point
}

func (d *Deps) normalize() {
	if d.Metrics == nil {
		d.Metrics = &Metrics{}
	}
	if d.Registry == nil {
		d.Registry = NewRegistry(d.Metrics)
	}
	if d.Presence == nil {
		d.Presence = nopPresence{}
	}
	if d.Rules == nil {
		d.Rules = NewMovementRules(1)
	}
	if d.Spawn == nil {
		d.Spawn = RandomSpawn
	}
}

// Session is the server side of one live connection. Apart from state, its fields are only
// touched by the goroutine reading that connection; other sessions see it solely through the
// UserState it last published to the registry.
type Session struct {
	id   string
	out  Outbox
	deps *Deps

	state       atomic.Int32
	destroyOnce sync.Once

	userID      string
	spaceID     string
	displayName string
	pos         Point
	width       int
	height      int
}

func NewSession(out Outbox, deps *Deps) *Session {
	deps.normalize()
	return &Session{id: uuid.NewString(), out: out, deps: deps}
}

func (s *Session) ID() string            { return s.id }
func (s *Session) Enqueue(b []byte) bool { return s.out.Enqueue(b) }
func (s *Session) Close()                { s.out.Close() }
func (s *Session) State() State          { return State(s.state.Load()) }
func (s *Session) UserID() string        { return s.userID }
func (s *Session) SpaceID() string       { return s.spaceID }
func (s *Session) Position() Point       { return s.pos }

func (s *Session) view() UserState {
	return UserState{UserID: s.userID, X: s.pos.X, Y: s.pos.Y, DisplayName: s.displayName}
}

// HandleFrame decodes and dispatches one inbound frame. Frames that cannot be parsed, or that are
// not valid in the current state, are ignored.
func (s *Session) HandleFrame(ctx context.Context, raw []byte) {
	if s.State() == StateClosed {
		return
	}
	in, ok := ParseFrame(raw)
	if !ok {
		s.deps.Metrics.IncIgnored()
		Log.Debugw("ignored frame", "session", s.id, "bytes", len(raw))
		return
	}
	switch in.Kind {
	case KindJoin:
		s.handleJoin(ctx, *in.Join)
	case KindMovement:
		s.handleMovement(*in.Movement)
	case KindMessage:
		s.handleMessage(*in.Message)
	}
}

func (s *Session) handleJoin(ctx context.Context, p JoinPayload) {
	if s.State() != StateConnected {
		s.deps.Metrics.IncIgnored()
		Log.Debugw("join ignored", "session", s.id, "state", s.State())
		return
	}

	userID, err := s.deps.Verifier.Verify(ctx, p.Token)
	if err != nil {
		s.refuse("identity", err)
		return
	}
	space, err := s.deps.Spaces.Find(ctx, p.SpaceID)
	if err != nil {
		s.refuse("space", err)
		return
	}
	if !space.Valid() {
		s.refuse("space", nil)
		return
	}

	s.userID = userID
	s.spaceID = p.SpaceID
	s.displayName = p.DisplayName
	s.width, s.height = space.Width, space.Height
	s.pos = s.deps.Spawn(space.Width, space.Height)
	s.state.Store(int32(StateJoined))

	self := s.view()
	spawn := s.pos
	reply := func(others []UserState) []byte {
		return Encode(TypeSpaceJoined, SpaceJoined{Spawn: spawn, Users: others})
	}
	evicted := s.deps.Registry.Join(s.spaceID, s, self, reply, Encode(TypeUserJoined, self))
	if evicted != nil {
		Log.Infow("evicting previous session", "user", userID, "space", s.spaceID, "session", evicted.ID())
		evicted.Close()
	}
	s.deps.Metrics.IncJoinAccepted()
	Log.Infow("joined", "session", s.id, "user", userID, "space", s.spaceID, "x", spawn.X, "y", spawn.Y)

	if err := s.deps.Presence.Online(ctx, s.spaceID, userID); err != nil {
		Log.Warnw("presence online failed", "space", s.spaceID, "user", userID, "err", err)
	}
}

// refuse ends a connection whose join cannot proceed. The client gets no reply.
func (s *Session) refuse(reason string, err error) {
	s.deps.Metrics.IncJoinRefused()
	Log.Infow("join refused", "session", s.id, "reason", reason, "err", err)
	s.out.Close()
}

func (s *Session) handleMovement(p MovementPayload) {
	if s.State() != StateJoined {
		s.deps.Metrics.IncIgnored()
		return
	}
	next := Point{X: p.X, Y: p.Y}
	if !s.deps.Rules.Allow(s.pos, next, s.width, s.height) {
		s.deps.Metrics.IncMoveRejected()
		s.Enqueue(Encode(TypeMovementRejected, s.pos))
		return
	}

	prev := s.pos
	s.pos = next
	moved := Encode(TypeUserMoved, UserMoved{UserID: s.userID, X: next.X, Y: next.Y})
	if !s.deps.Registry.Update(s.spaceID, s, s.view(), moved) {
		// evicted by a newer session of the same user; the connection is already closing
		s.pos = prev
		return
	}
	s.deps.Metrics.IncMoveAccepted()
	s.Enqueue(Encode(TypeMovementAccepted, next))
}

func (s *Session) handleMessage(p DirectMessagePayload) {
	if s.State() != StateJoined {
		s.deps.Metrics.IncIgnored()
		return
	}
	msg := Encode(TypeNewMessage, NewMessage{Sender: s.userID, Message: p.Message})
	if s.deps.Registry.SendTo(s.spaceID, p.To, msg) {
		s.deps.Metrics.IncMessageDelivered()
	}
}

// Destroy leaves the room, announcing the departure, and moves the session to Closed.
// Only the first call has any effect.
func (s *Session) Destroy() {
	s.destroyOnce.Do(func() {
		prev := State(s.state.Swap(int32(StateClosed)))
		if prev != StateJoined {
			return
		}
		left := Encode(TypeUserLeft, UserLeft{UserID: s.userID})
		if s.deps.Registry.Leave(s.spaceID, s, left) {
			Log.Infow("left", "session", s.id, "user", s.userID, "space", s.spaceID)
			if err := s.deps.Presence.Offline(context.Background(), s.spaceID, s.userID); err != nil {
				Log.Warnw("presence offline failed", "space", s.spaceID, "user", s.userID, "err", err)
			}
		}
		s.spaceID = ""
	})
}
