package server

import (
	"math/rand"
	"sync/atomic"
)

// MovementRules holds the per-step displacement bound. It can be changed at runtime from /admin/config.
type MovementRules struct {
	maxStep atomic.Int64
}

func NewMovementRules(maxStep int) *MovementRules {
	r := &MovementRules{}
	r.SetMaxStep(maxStep)
	return r
}

func (r *MovementRules) MaxStep() int { return int(r.maxStep.Load()) }

func (r *MovementRules) SetMaxStep(n int) {
	if n < 1 {
		n = 1
	}
	r.maxStep.Store(int64(n))
}

// Allow reports whether a move from cur to next is legal inside a width x height space:
// exactly one axis changes, by at most MaxStep tiles, and the target stays on the grid.
func (r *MovementRules) Allow(cur, next Point, width, height int) bool {
	dx, dy := abs(next.X-cur.X), abs(next.Y-cur.Y)
	if (dx == 0) == (dy == 0) {
		return false
	}
	if dx+dy > r.MaxStep() {
		return false
	}
	return inBounds(next, width, height)
}

func inBounds(p Point, width, height int) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < width && p.Y < height
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// RandomSpawn picks a tile uniformly on each axis.
func RandomSpawn(width, height int) Point {
	return Point{X: rand.Intn(width), Y: rand.Intn(height)}
}
