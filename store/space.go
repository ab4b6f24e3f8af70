// Package store holds the persistence-facing collaborators of the realtime server:
// space dimension lookups and the optional presence mirror.
package store

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// ErrSpaceNotFound is returned by every lookup when the space id is unknown.
var ErrSpaceNotFound = errors.New("space not found")

// Space is the part of a persisted space the realtime server needs: its tile grid.
type Space struct {
	ID     string `json:"id"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Valid reports whether the space has a usable grid.
func (s Space) Valid() bool { return s.Width > 0 && s.Height > 0 }

// MemorySpaces is a fixed set of spaces, used in development and tests.
type MemorySpaces struct {
	mu     sync.RWMutex
	spaces map[string]Space
}

func NewMemorySpaces(spaces ...Space) *MemorySpaces {
	m := &MemorySpaces{spaces: make(map[string]Space, len(spaces))}
	for _, s := range spaces {
		m.spaces[s.ID] = s
	}
	return m
}

func (m *MemorySpaces) Put(s Space) {
	m.mu.Lock()
	m.spaces[s.ID] = s
	m.mu.Unlock()
}

func (m *MemorySpaces) Find(_ context.Context, spaceID string) (Space, error) {
	m.mu.RLock()
	s, ok := m.spaces[spaceID]
	m.mu.RUnlock()
	if !ok {
		return Space{}, errors.Wrapf(ErrSpaceNotFound, "id=%s", spaceID)
	}
	return s, nil
}

// ParseSpaces reads "id=WxH" entries separated by commas, e.g. "lobby=100x200,hall=32x32".
func ParseSpaces(list string) ([]Space, error) {
	var out []Space
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		id, dim, ok := strings.Cut(item, "=")
		if !ok || id == "" {
			return nil, errors.Errorf("space %q: want id=WxH", item)
		}
		ws, hs, ok := strings.Cut(strings.ToLower(dim), "x")
		if !ok {
			return nil, errors.Errorf("space %q: want id=WxH", item)
		}
		w, err := strconv.Atoi(ws)
		if err != nil {
			return nil, errors.Wrapf(err, "space %q width", id)
		}
		h, err := strconv.Atoi(hs)
		if err != nil {
			return nil, errors.Wrapf(err, "space %q height", id)
		}
		s := Space{ID: id, Width: w, Height: h}
		if !s.Valid() {
			return nil, errors.Errorf("space %q: dimensions must be positive", id)
		}
		out = append(out, s)
	}
	return out, nil
}

// Finder is implemented by every space source in this package.
type Finder interface {
	Find(ctx context.Context, spaceID string) (Space, error)
}

// Chain tries each finder in order and returns the first hit. A finder that
// fails with anything other than ErrSpaceNotFound stops the chain.
type Chain []Finder

func (c Chain) Find(ctx context.Context, spaceID string) (Space, error) {
	for _, f := range c {
		s, err := f.Find(ctx, spaceID)
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, ErrSpaceNotFound) {
			return Space{}, err
		}
	}
	return Space{}, errors.Wrapf(ErrSpaceNotFound, "id=%s", spaceID)
}
