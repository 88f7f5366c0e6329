package vehicle

import (
	"math"

	"github.com/golang/geo/r3"
)

// pacejkaCoefficients are the magic-formula stiffness (B), shape (C), peak (D),
// and curvature (E) factors.
type pacejkaCoefficients struct {
	B, C, D, E float64
}

var (
	pacejkaLongitudinal = pacejkaCoefficients{B: 10.0, C: 1.9, D: 1.0, E: 0.97}
	pacejkaLateral      = pacejkaCoefficients{B: 8.0, C: 1.3, D: 1.0, E: -1.6}
)

// pacejka evaluates the magic formula for a slip quantity under the given
// normal load. Load is taken in newtons and converted to kN, where the
// coefficients are calibrated, then the result scales back to newtons.
func pacejka(slip float64, coeff pacejkaCoefficients, normalForce float64) float64 {
	fz := normalForce / 1000.0
	input := coeff.B * slip
	return coeff.D * fz * math.Sin(coeff.C*math.Atan(input-coeff.E*(input-math.Atan(input)))) * 1000.0
}

// wheel holds one corner's suspension geometry and runtime state. Runtime
// fields persist across steps: compression feeds the next step's damper and
// anti-roll calculations, lastContactPoint feeds the off-track check.
type wheel struct {
	localPosition r3.Vector // mount point relative to the chassis
	restLength    float64   // suspension ray length from the mount
	radius        float64
	stiffness     float64
	damping       float64
	inertia       float64 // spin inertia

	compression      float64
	angularVelocity  float64
	rollAngle        float64
	steerAngle       float64
	driveTorque      float64
	brakeTorque      float64
	antiRollForce    float64
	lastContactPoint r3.Vector
	hasContact       bool
}

// everContacted reports whether the wheel has touched ground at any point in
// its history, which is what the off-track check cares about.
func (w *wheel) everContacted() bool {
	return w.hasContact || w.lastContactPoint != (r3.Vector{})
}

// integrateSpin advances the wheel's angular velocity under drive torque and
// the tire's longitudinal reaction, then applies the brake as a deceleration
// toward zero. If the brake would overshoot past zero this step, the spin
// clamps to exactly zero instead of reversing.
func (w *wheel) integrateSpin(longitudinalForce, dt float64) {
	netTorque := w.driveTorque - longitudinalForce*w.radius
	w.angularVelocity += netTorque / w.inertia * dt
	brakeDecel := w.brakeTorque / w.inertia * dt
	if math.Abs(w.angularVelocity) <= brakeDecel {
		w.angularVelocity = 0
	} else {
		w.angularVelocity -= math.Copysign(brakeDecel, w.angularVelocity)
	}
	w.rollAngle += w.angularVelocity * dt
}

// WheelState is a read-only snapshot of one wheel for telemetry and tests.
type WheelState struct {
	Compression     float64
	AngularVelocity float64
	RollAngle       float64
	SteerAngle      float64
	ContactPoint    r3.Vector
	HasContact      bool
}
