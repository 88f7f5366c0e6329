// Package spatialmath defines the spatial mathematical operations shared by the
// physics and vehicle simulation: quaternion orientations, vector rotation, and
// model matrices for renderers.
package spatialmath

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// NewZeroOrientation returns the identity quaternion, representing no rotation.
func NewZeroOrientation() quat.Number {
	return quat.Number{Real: 1}
}

// NewQuatFromEulerAngles returns the quaternion for the given intrinsic
// pitch/yaw/roll angles (radians, applied about X, Y, Z respectively).
func NewQuatFromEulerAngles(pitch, yaw, roll float64) quat.Number {
	cx, sx := math.Cos(pitch/2), math.Sin(pitch/2)
	cy, sy := math.Cos(yaw/2), math.Sin(yaw/2)
	cz, sz := math.Cos(roll/2), math.Sin(roll/2)
	return quat.Number{
		Real: cx*cy*cz + sx*sy*sz,
		Imag: sx*cy*cz - cx*sy*sz,
		Jmag: cx*sy*cz + sx*cy*sz,
		Kmag: cx*cy*sz - sx*sy*cz,
	}
}

// NewQuatFromAxisAngle returns the quaternion rotating by theta radians about
// the given axis. The axis need not be normalized; a zero axis yields identity.
func NewQuatFromAxisAngle(axis r3.Vector, theta float64) quat.Number {
	n := axis.Norm()
	if n == 0 {
		return NewZeroOrientation()
	}
	axis = axis.Mul(1 / n)
	s := math.Sin(theta / 2)
	return quat.Number{
		Real: math.Cos(theta / 2),
		Imag: axis.X * s,
		Jmag: axis.Y * s,
		Kmag: axis.Z * s,
	}
}

// RotateVecByQuat rotates vector v by unit quaternion q, computing q * v * q⁻¹.
func RotateVecByQuat(q quat.Number, v r3.Vector) r3.Vector {
	qv := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, qv), quat.Conj(q))
	return r3.Vector{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// Normalize scales q to unit length. The zero quaternion normalizes to identity
// rather than NaN.
func Normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 {
		return NewZeroOrientation()
	}
	return quat.Scale(1/n, q)
}

// IntegrateAngularVelocity advances orientation q by world-frame angular
// velocity w over dt using the first-order quaternion derivative
// q' = q + 0.5*(w)*q*dt, renormalized to unit length.
func IntegrateAngularVelocity(q quat.Number, w r3.Vector, dt float64) quat.Number {
	wq := quat.Number{Imag: w.X, Jmag: w.Y, Kmag: w.Z}
	dq := quat.Scale(0.5*dt, quat.Mul(wq, q))
	return Normalize(quat.Add(q, dq))
}

// ModelMatrix composes translation(position) * rotation(orientation) into a 4x4
// column-major matrix suitable for a renderer's model transform.
func ModelMatrix(position r3.Vector, orientation quat.Number) mgl64.Mat4 {
	rot := mgl64.Quat{
		W: orientation.Real,
		V: mgl64.Vec3{orientation.Imag, orientation.Jmag, orientation.Kmag},
	}
	return mgl64.Translate3D(position.X, position.Y, position.Z).Mul4(rot.Mat4())
}
