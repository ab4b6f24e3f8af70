package server

import (
	"encoding/json"
)

// Kind is the closed set of inbound message types the server understands.
type Kind int

const (
	KindUnknown Kind = iota
	KindJoin
	KindMovement
	KindMessage
)

var kindByTag = map[string]Kind{
	"join":     KindJoin,
	"movement": KindMovement,
	"message":  KindMessage,
}

// Outbound message tags.
const (
	TypeSpaceJoined      = "space-joined"
	TypeUserJoined       = "user-joined"
	TypeMovementAccepted = "movement-accepted"
	TypeMovementRejected = "movement-rejected"
	TypeUserMoved        = "user-moved"
	TypeUserLeft         = "user-left"
	TypeNewMessage       = "new-message"
)

// Envelope is the JSON frame shape in both directions: {"type": ..., "payload": {...}}.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type JoinPayload struct {
	SpaceID     string `json:"spaceId"`
	Token       string `json:"token"`
	DisplayName string `json:"displayName,omitempty"`
}

type MovementPayload struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type DirectMessagePayload struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

// Inbound is a decoded client frame. Exactly one payload field is set, matching Kind.
type Inbound struct {
	Kind     Kind
	Join     *JoinPayload
	Movement *MovementPayload
	Message  *DirectMessagePayload
}

// ParseFrame decodes a raw client frame. ok is false for anything the server should ignore:
// invalid JSON, an unknown type, or a payload that does not fit its type.
func ParseFrame(raw []byte) (in Inbound, ok bool) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Inbound{}, false
	}
	kind := kindByTag[env.Type]
	if kind == KindUnknown || len(env.Payload) == 0 {
		return Inbound{}, false
	}

	switch kind {
	case KindJoin:
		var p JoinPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return Inbound{}, false
		}
		return Inbound{Kind: kind, Join: &p}, true
	case KindMovement:
		var p struct {
			X *int `json:"x"`
			Y *int `json:"y"`
		}
		if err := json.Unmarshal(env.Payload, &p); err != nil || p.X == nil || p.Y == nil {
			return Inbound{}, false
		}
		return Inbound{Kind: kind, Movement: &MovementPayload{X: *p.X, Y: *p.Y}}, true
	case KindMessage:
		var p DirectMessagePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return Inbound{}, false
		}
		return Inbound{Kind: kind, Message: &p}, true
	}
	return Inbound{}, false
}

// Point is a tile coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// UserState is the broadcast view of an occupant: what other sessions are allowed to see.
type UserState struct {
	UserID      string `json:"userId"`
	X           int    `json:"x"`
	Y           int    `json:"y"`
	DisplayName string `json:"displayName,omitempty"`
}

type SpaceJoined struct {
	Spawn Point       `json:"spawn"`
	Users []UserState `json:"users"`
}

type UserMoved struct {
	UserID string `json:"userId"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
}

type UserLeft struct {
	UserID string `json:"userId"`
}

type NewMessage struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

// Encode wraps payload in an envelope of the given type.
func Encode(typ string, payload any) []byte {
	body, err := json.Marshal(payload)
	if err != nil {
		// every payload above is plain data
		Log.Errorf("encode %s: %v", typ, err)
		body = []byte("{}")
	}
	b, _ := json.Marshal(Envelope{Type: typ, Payload: body})
	return b
}
