// Package physics implements rigid-body motion for the simulation: bodies with
// semi-implicit Euler integration, diagonal inertia estimated from a collision
// shape, and a world that owns bodies and advances them under gravity.
package physics

import "github.com/golang/geo/r3"

// ShapeType enumerates the closed set of collision shape kinds.
type ShapeType uint8

// The supported shape kinds.
const (
	ShapeTypeBox ShapeType = iota
)

// Shape is a tagged union over shape kinds. It is a pure data and inertia
// source; no body-body collision detection is performed with it.
type Shape struct {
	Type        ShapeType
	HalfExtents r3.Vector // box
}

// NewBoxShape returns a box shape with the given half extents.
func NewBoxShape(halfExtents r3.Vector) Shape {
	return Shape{Type: ShapeTypeBox, HalfExtents: halfExtents}
}

// InertiaTensor estimates the diagonal inertia for a body of the given mass,
// treating the shape as a solid of uniform density.
func (s Shape) InertiaTensor(mass float64) r3.Vector {
	switch s.Type {
	case ShapeTypeBox:
		w := s.HalfExtents.X * 2
		h := s.HalfExtents.Y * 2
		l := s.HalfExtents.Z * 2
		return r3.Vector{
			X: h*h + l*l,
			Y: w*w + l*l,
			Z: w*w + h*h,
		}.Mul(mass / 12)
	}
	return r3.Vector{}
}
