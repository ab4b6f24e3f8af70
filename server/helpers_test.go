package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"metaspace/store"
)

// fakeOutbox records frames instead of writing them to a socket.
type fakeOutbox struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
	limit  int // 0 = unbounded
}

func (f *fakeOutbox) Enqueue(b []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || (f.limit > 0 && len(f.frames) >= f.limit) {
		return false
	}
	f.frames = append(f.frames, b)
	return true
}

func (f *fakeOutbox) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeOutbox) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeOutbox) envelopes(t *testing.T) []Envelope {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Envelope, 0, len(f.frames))
	for _, b := range f.frames {
		var env Envelope
		if err := json.Unmarshal(b, &env); err != nil {
			t.Fatalf("bad frame %s: %v", b, err)
		}
		out = append(out, env)
	}
	return out
}

func (f *fakeOutbox) reset() {
	f.mu.Lock()
	f.frames = nil
	f.mu.Unlock()
}

// fakeMember is a registry member backed by a fakeOutbox.
type fakeMember struct {
	id string
	*fakeOutbox
}

func newFakeMember(id string) *fakeMember {
	return &fakeMember{id: id, fakeOutbox: &fakeOutbox{}}
}

func (m *fakeMember) ID() string { return m.id }

// tokenVerifier maps tokens straight to user ids.
type tokenVerifier map[string]string

func (v tokenVerifier) Verify(_ context.Context, token string) (string, error) {
	if id, ok := v[token]; ok {
		return id, nil
	}
	return "", errors.New("invalid token")
}

func decode[T any](t *testing.T, env Envelope) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(env.Payload, &v); err != nil {
		t.Fatalf("decode %s payload %s: %v", env.Type, env.Payload, err)
	}
	return v
}

func types(envs []Envelope) []string {
	out := make([]string, len(envs))
	for i, e := range envs {
		out[i] = e.Type
	}
	return out
}

// testDeps builds session dependencies around a 100x200 space "S" and a fixed spawn.
func testDeps(spawn Point) *Deps {
	metrics := &Metrics{}
	return &Deps{
		Registry: NewRegistry(metrics),
		Verifier: tokenVerifier{"tok-a": "A", "tok-b": "B", "tok-c": "C"},
		Spaces:   store.NewMemorySpaces(store.Space{ID: "S", Width: 100, Height: 200}),
		Rules:    NewMovementRules(1),
		Metrics:  metrics,
		Spawn:    func(int, int) Point { return spawn },
	}
}
