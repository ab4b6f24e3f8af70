package store

import (
	"context"
	"testing"

	"github.com/pkg/errors"
)

func TestParseSpaces(t *testing.T) {
	got, err := ParseSpaces(" lobby=100x200, hall=32X16 ,,")
	if err != nil {
		t.Fatal(err)
	}
	want := []Space{{ID: "lobby", Width: 100, Height: 200}, {ID: "hall", Width: 32, Height: 16}}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}

	if got, err := ParseSpaces(""); err != nil || len(got) != 0 {
		t.Errorf("empty = %v, %v", got, err)
	}

	for _, bad := range []string{"lobby", "=10x10", "a=10", "a=x10", "a=10xz", "a=0x5", "a=5x-1"} {
		if _, err := ParseSpaces(bad); err == nil {
			t.Errorf("%q accepted", bad)
		}
	}
}

func TestMemorySpaces(t *testing.T) {
	m := NewMemorySpaces(Space{ID: "a", Width: 2, Height: 3})
	s, err := m.Find(context.Background(), "a")
	if err != nil || s.Width != 2 || s.Height != 3 {
		t.Fatalf("find a = %+v, %v", s, err)
	}
	if _, err := m.Find(context.Background(), "b"); !errors.Is(err, ErrSpaceNotFound) {
		t.Errorf("find b err = %v", err)
	}
	m.Put(Space{ID: "b", Width: 1, Height: 1})
	if _, err := m.Find(context.Background(), "b"); err != nil {
		t.Errorf("after put: %v", err)
	}
}

type failingFinder struct{ err error }

func (f failingFinder) Find(context.Context, string) (Space, error) { return Space{}, f.err }

func TestChain(t *testing.T) {
	first := NewMemorySpaces(Space{ID: "a", Width: 1, Height: 1})
	second := NewMemorySpaces(Space{ID: "a", Width: 9, Height: 9}, Space{ID: "b", Width: 2, Height: 2})
	c := Chain{first, second}

	if s, err := c.Find(context.Background(), "a"); err != nil || s.Width != 1 {
		t.Errorf("a = %+v, %v; first finder should win", s, err)
	}
	if s, err := c.Find(context.Background(), "b"); err != nil || s.Width != 2 {
		t.Errorf("b = %+v, %v", s, err)
	}
	if _, err := c.Find(context.Background(), "zzz"); !errors.Is(err, ErrSpaceNotFound) {
		t.Errorf("zzz err = %v", err)
	}
	if _, err := (Chain{}).Find(context.Background(), "a"); !errors.Is(err, ErrSpaceNotFound) {
		t.Errorf("empty chain err = %v", err)
	}

	boom := errors.New("db down")
	broken := Chain{first, failingFinder{boom}, second}
	if _, err := broken.Find(context.Background(), "b"); !errors.Is(err, boom) {
		t.Errorf("err = %v, want db down", err)
	}
	if _, err := broken.Find(context.Background(), "a"); err != nil {
		t.Errorf("hit before failing finder: %v", err)
	}
}

func TestSpaceValid(t *testing.T) {
	tests := []struct {
		s    Space
		want bool
	}{
		{Space{Width: 1, Height: 1}, true},
		{Space{Width: 0, Height: 1}, false},
		{Space{Width: 1, Height: -1}, false},
	}
	for _, tt := range tests {
		if got := tt.s.Valid(); got != tt.want {
			t.Errorf("%+v.Valid() = %v", tt.s, got)
		}
	}
}
