package physics

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/racesim/spatialmath"
)

// Body is a rigid body owned by a World. A mass of zero (or less) marks the
// body kinematic: it never moves, but still accepts and clears applied forces.
type Body struct {
	Mass            float64
	Inertia         r3.Vector
	Position        r3.Vector
	Velocity        r3.Vector
	Orientation     quat.Number
	AngularVelocity r3.Vector
	Shape           Shape

	accumulatedForce  r3.Vector
	accumulatedTorque r3.Vector
}

func newBody(shape Shape, mass float64, position r3.Vector, orientation quat.Number) *Body {
	b := &Body{
		Mass:        mass,
		Position:    position,
		Orientation: spatialmath.Normalize(orientation),
		Shape:       shape,
	}
	if mass > 0 {
		b.Inertia = shape.InertiaTensor(mass)
	}
	return b
}

// ApplyForce accumulates a force through the center of mass for the next Step.
func (b *Body) ApplyForce(force r3.Vector) {
	b.accumulatedForce = b.accumulatedForce.Add(force)
}

// ApplyForceAtPoint accumulates a force applied at a world-space point,
// contributing torque cross(point - position, force) about the center of mass.
func (b *Body) ApplyForceAtPoint(force, point r3.Vector) {
	b.accumulatedForce = b.accumulatedForce.Add(force)
	r := point.Sub(b.Position)
	b.accumulatedTorque = b.accumulatedTorque.Add(r.Cross(force))
}

// Step integrates the body forward by dt seconds with semi-implicit Euler, then
// clears the force and torque accumulators. Callers must re-apply forces every
// step. Angular acceleration divides torque component-wise by the diagonal
// inertia; this treats the principal axes as world-aligned and is only exact
// while they stay so — an accuracy approximation the simulation carries
// deliberately.
func (b *Body) Step(dt float64) {
	if b.Mass > 0 {
		acceleration := b.accumulatedForce.Mul(1 / b.Mass)
		b.Velocity = b.Velocity.Add(acceleration.Mul(dt))
		b.Position = b.Position.Add(b.Velocity.Mul(dt))

		angularAcceleration := r3.Vector{
			X: torqueOverInertia(b.accumulatedTorque.X, b.Inertia.X),
			Y: torqueOverInertia(b.accumulatedTorque.Y, b.Inertia.Y),
			Z: torqueOverInertia(b.accumulatedTorque.Z, b.Inertia.Z),
		}
		b.AngularVelocity = b.AngularVelocity.Add(angularAcceleration.Mul(dt))
		b.Orientation = spatialmath.IntegrateAngularVelocity(b.Orientation, b.AngularVelocity, dt)
	}

	b.accumulatedForce = r3.Vector{}
	b.accumulatedTorque = r3.Vector{}
}

// torqueOverInertia returns the angular acceleration about one principal axis.
// A non-positive inertia component (a degenerate shape, flat or line-like along
// that axis) leaves the body kinematic about it rather than dividing by zero.
func torqueOverInertia(torque, inertia float64) float64 {
	if inertia <= 0 {
		return 0
	}
	return torque / inertia
}

// ModelMatrix returns translation(position) * rotation(orientation) for an
// external renderer. The physics core never consumes it.
func (b *Body) ModelMatrix() mgl64.Mat4 {
	return spatialmath.ModelMatrix(b.Position, b.Orientation)
}
