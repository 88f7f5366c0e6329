package physics

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// DefaultGravity is the world-frame gravity applied to every dynamic body.
var DefaultGravity = r3.Vector{Y: -9.81}

// BodyHandle is a generation-checked reference to a body owned by a World.
// The zero handle never resolves. Handles stay cheap to copy and safe to hold:
// dereferencing one after removal yields nil rather than a dangling body.
type BodyHandle struct {
	index      int
	generation uint64
}

type bodySlot struct {
	body       *Body
	generation uint64
}

// World owns a collection of bodies and advances them together. Bodies do not
// interact with each other; coupling happens only through forces callers apply.
type World struct {
	Gravity r3.Vector

	slots []bodySlot
	free  []int
	order []int // live slot indices in insertion order
}

// NewWorld returns a world with default gravity and no bodies.
func NewWorld() *World {
	return &World{Gravity: DefaultGravity}
}

// AddBody creates a body from the shape, mass, and pose, registers it, and
// returns its handle.
func (w *World) AddBody(shape Shape, mass float64, position r3.Vector, orientation quat.Number) BodyHandle {
	b := newBody(shape, mass, position, orientation)
	var idx int
	if n := len(w.free); n > 0 {
		idx = w.free[n-1]
		w.free = w.free[:n-1]
		w.slots[idx].body = b
	} else {
		idx = len(w.slots)
		w.slots = append(w.slots, bodySlot{body: b})
	}
	w.order = append(w.order, idx)
	return BodyHandle{index: idx, generation: w.slots[idx].generation}
}

// Body resolves a handle to its body, or nil if the handle is stale or zero.
func (w *World) Body(h BodyHandle) *Body {
	if h.index < 0 || h.index >= len(w.slots) {
		return nil
	}
	slot := w.slots[h.index]
	if slot.generation != h.generation {
		return nil
	}
	return slot.body
}

// RemoveBody erases the referenced body. Removing an unknown or already
// removed handle is a no-op.
func (w *World) RemoveBody(h BodyHandle) {
	if w.Body(h) == nil {
		return
	}
	w.slots[h.index].body = nil
	w.slots[h.index].generation++
	w.free = append(w.free, h.index)
	for i, idx := range w.order {
		if idx == h.index {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
}

// NumBodies returns the number of live bodies.
func (w *World) NumBodies() int {
	return len(w.order)
}

// StepSimulation applies gravity to every body and steps each by dt, in
// insertion order.
func (w *World) StepSimulation(dt float64) {
	for _, idx := range w.order {
		b := w.slots[idx].body
		b.ApplyForce(w.Gravity.Mul(b.Mass))
		b.Step(dt)
	}
}
