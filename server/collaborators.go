package server

import (
	"context"

	"metaspace/store"
)

// IdentityVerifier turns a bearer token into a user id.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (userID string, err error)
}

// SpaceLookup returns the dimensions of a space, or an error if it does not exist.
type SpaceLookup interface {
	Find(ctx context.Context, spaceID string) (store.Space, error)
}

// Presence mirrors room membership into an external store. Failures never affect the session.
type Presence interface {
	Online(ctx context.Context, spaceID, userID string) error
	Offline(ctx context.Context, spaceID, userID string) error
	Refresh(ctx context.Context, spaceIDs []string) error
}

type nopPresence struct{}

func (nopPresence) Online(context.Context, string, string) error  { return nil }
func (nopPresence) Offline(context.Context, string, string) error { return nil }
func (nopPresence) Refresh(context.Context, []string) error       { return nil }
