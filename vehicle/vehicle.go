// Package vehicle implements a four-wheel vehicle on top of the physics world:
// a box chassis body plus per-wheel suspension raycasts, anti-roll coupling,
// Pacejka tire forces, and wheel spin, driven by clamped steer/throttle/brake
// inputs.
package vehicle

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/racesim/physics"
	"go.viam.com/racesim/spatialmath"
	"go.viam.com/racesim/track"
)

// Chassis and suspension parameters, in SI units.
const (
	Mass = 1200.0

	WheelRadius         = 0.35
	SuspensionTravel    = 0.5
	SuspensionStiffness = 70000.0
	SuspensionDamping   = 4500.0

	maxSteerAngle     = 30.0 * math.Pi / 180.0
	maxEnginePower    = 120000.0
	maxEngineTorque   = 2400.0
	maxBrakeTorque    = 3000.0
	antiRollStiffness = 8000.0
	dragCoefficient   = 0.42
	wheelSpinInertia  = 1.2

	// below this denominator no contact is registered; the suspension axis is
	// effectively parallel to the ground
	raycastEpsilon = 1e-4

	// floor for slip denominators near zero forward speed
	slipSpeedFloor = 0.1
)

// Dimensions is the chassis width, height, and length.
var Dimensions = r3.Vector{X: 2.0, Y: 1.0, Z: 4.0}

// Wheel indices: front pair first (the +Z end, which steers), then rear (which
// drives). Even indices are the +X side.
const (
	wheelFrontRight = iota
	wheelFrontLeft
	wheelRearRight
	wheelRearLeft
	numWheels
)

// Vehicle owns a chassis body handle within a world and four wheels. It is not
// safe for concurrent use; a session drives it from one goroutine.
type Vehicle struct {
	world   *physics.World
	chassis physics.BodyHandle
	wheels  [numWheels]wheel

	steerAmount float64
	throttle    float64
	brake       float64
}

// New creates a vehicle with its chassis registered in the world at the given
// position and Euler rotation (pitch, yaw, roll).
func New(world *physics.World, position, rotation r3.Vector) (*Vehicle, error) {
	if world == nil {
		return nil, errors.New("vehicle needs a physics world")
	}
	shape := physics.NewBoxShape(Dimensions.Mul(0.5))
	orientation := spatialmath.NewQuatFromEulerAngles(rotation.X, rotation.Y, rotation.Z)
	v := &Vehicle{
		world:   world,
		chassis: world.AddBody(shape, Mass, position, orientation),
	}

	mountY := WheelRadius - Dimensions.Y/2
	mounts := [numWheels]r3.Vector{
		{X: +Dimensions.X / 2, Y: mountY, Z: +Dimensions.Z / 2},
		{X: -Dimensions.X / 2, Y: mountY, Z: +Dimensions.Z / 2},
		{X: +Dimensions.X / 2, Y: mountY, Z: -Dimensions.Z / 2},
		{X: -Dimensions.X / 2, Y: mountY, Z: -Dimensions.Z / 2},
	}
	for i := range v.wheels {
		v.wheels[i] = wheel{
			localPosition: mounts[i],
			restLength:    SuspensionTravel + WheelRadius,
			radius:        WheelRadius,
			stiffness:     SuspensionStiffness,
			damping:       SuspensionDamping,
			inertia:       wheelSpinInertia,
		}
	}
	return v, nil
}

// Close releases the chassis body back to the world. The vehicle must not be
// stepped afterwards.
func (v *Vehicle) Close() error {
	v.world.RemoveBody(v.chassis)
	return nil
}

// Chassis returns the handle of the chassis body.
func (v *Vehicle) Chassis() physics.BodyHandle {
	return v.chassis
}

// Body resolves the chassis body, or nil once it has been removed.
func (v *Vehicle) Body() *physics.Body {
	return v.world.Body(v.chassis)
}

func clamp(x, lo, hi float64) float64 {
	return math.Min(math.Max(x, lo), hi)
}

// SetSteerAmount sets the steering input, clamped to [-1, 1].
func (v *Vehicle) SetSteerAmount(steer float64) {
	v.steerAmount = clamp(steer, -1, 1)
}

// SetThrottle sets the throttle input, clamped to [0, 1].
func (v *Vehicle) SetThrottle(throttle float64) {
	v.throttle = clamp(throttle, 0, 1)
}

// SetBrake sets the brake input, clamped to [0, 1].
func (v *Vehicle) SetBrake(brake float64) {
	v.brake = clamp(brake, 0, 1)
}

// Step advances the vehicle model by dt seconds, applying all wheel and drag
// forces to the chassis. Stage order matters: each stage reads quantities the
// previous one computed within the same step, and the anti-roll stage reads the
// previous step's compressions.
func (v *Vehicle) Step(dt float64) {
	body := v.Body()
	if body == nil || dt <= 0 {
		return
	}

	// steering: front wheels only
	v.wheels[wheelFrontRight].steerAngle = v.steerAmount * maxSteerAngle
	v.wheels[wheelFrontLeft].steerAngle = v.steerAmount * maxSteerAngle
	v.wheels[wheelRearRight].steerAngle = 0
	v.wheels[wheelRearLeft].steerAngle = 0

	// engine: torque limited at stall, split across the driven rear axle
	engineAngularVelocity := (v.wheels[wheelRearRight].angularVelocity + v.wheels[wheelRearLeft].angularVelocity) / 2
	enginePower := v.throttle * maxEnginePower
	engineTorque := math.Min(enginePower/math.Max(engineAngularVelocity, 1), maxEngineTorque)
	v.wheels[wheelFrontRight].driveTorque = 0
	v.wheels[wheelFrontLeft].driveTorque = 0
	v.wheels[wheelRearRight].driveTorque = engineTorque / 2
	v.wheels[wheelRearLeft].driveTorque = engineTorque / 2

	// brakes on all four wheels
	brakeTorque := v.brake * maxBrakeTorque
	for i := range v.wheels {
		v.wheels[i].brakeTorque = brakeTorque
	}

	// anti-roll bars per axle, from the previous step's compressions
	for _, axle := range [][2]int{
		{wheelFrontRight, wheelFrontLeft},
		{wheelRearRight, wheelRearLeft},
	} {
		force := (v.wheels[axle[0]].compression - v.wheels[axle[1]].compression) * antiRollStiffness
		v.wheels[axle[0]].antiRollForce = force
		v.wheels[axle[1]].antiRollForce = -force
	}

	suspensionAxis := spatialmath.RotateVecByQuat(body.Orientation, r3.Vector{Y: -1})
	for i := range v.wheels {
		v.stepWheel(&v.wheels[i], body, suspensionAxis, dt)
	}

	// quadratic aerodynamic drag on the chassis
	body.ApplyForce(body.Velocity.Mul(-body.Velocity.Norm() * dragCoefficient))
}

// stepWheel runs one wheel's raycast, suspension, tire, and spin stages.
func (v *Vehicle) stepWheel(w *wheel, body *physics.Body, axis r3.Vector, dt float64) {
	mountWorld := body.Position.Add(spatialmath.RotateVecByQuat(body.Orientation, w.localPosition))

	// raycast along the suspension axis against the ground plane y=0
	if math.Abs(axis.Y) < raycastEpsilon {
		w.hasContact = false
		return
	}
	t := -mountWorld.Y / axis.Y
	if t < 0 || t > w.restLength {
		w.hasContact = false
		return
	}

	contactPoint := mountWorld.Add(axis.Mul(t))
	compression := w.restLength - t
	compressionVelocity := (compression - w.compression) / dt
	suspensionForce := w.stiffness*compression + w.damping*compressionVelocity + w.antiRollForce
	w.compression = compression
	w.lastContactPoint = contactPoint
	w.hasContact = true

	// tire slip in the steered wheel frame
	wheelOrientation := quat.Mul(body.Orientation, spatialmath.NewQuatFromAxisAngle(r3.Vector{Y: 1}, w.steerAngle))
	forward := spatialmath.RotateVecByQuat(wheelOrientation, r3.Vector{Z: 1})
	side := spatialmath.RotateVecByQuat(wheelOrientation, r3.Vector{X: 1})
	contactVelocity := body.Velocity.Add(body.AngularVelocity.Cross(contactPoint.Sub(body.Position)))
	forwardSpeed := contactVelocity.Dot(forward)
	sideSpeed := contactVelocity.Dot(side)

	speedDenom := math.Max(math.Abs(forwardSpeed), slipSpeedFloor)
	slipRatio := (w.angularVelocity*w.radius - forwardSpeed) / speedDenom
	slipAngle := math.Atan(-sideSpeed / speedDenom)

	longitudinalForce := pacejka(slipRatio, pacejkaLongitudinal, suspensionForce)
	lateralForce := pacejka(slipAngle, pacejkaLateral, suspensionForce)

	groundNormal := r3.Vector{Y: 1}
	combined := groundNormal.Mul(suspensionForce).
		Add(forward.Mul(longitudinalForce)).
		Add(side.Mul(lateralForce))
	body.ApplyForceAtPoint(combined, contactPoint)

	w.integrateSpin(longitudinalForce, dt)
}

// IsOffTrack reports whether every wheel that has ever touched ground now sits
// outside the track's half width. A vehicle whose wheels have never contacted
// the ground counts as off track.
func (v *Vehicle) IsOffTrack(trk *track.Track) bool {
	if trk == nil {
		return true
	}
	halfWidth := trk.Width() / 2
	for i := range v.wheels {
		w := &v.wheels[i]
		if !w.everContacted() {
			continue
		}
		contact2D := r2.Point{X: w.lastContactPoint.X, Y: w.lastContactPoint.Z}
		closest := trk.Position(trk.ClosestT(contact2D))
		if contact2D.Sub(closest).Norm() <= halfWidth {
			return false
		}
	}
	return true
}

// WheelStates snapshots all four wheels, front pair first.
func (v *Vehicle) WheelStates() [numWheels]WheelState {
	var states [numWheels]WheelState
	for i := range v.wheels {
		w := &v.wheels[i]
		states[i] = WheelState{
			Compression:     w.compression,
			AngularVelocity: w.angularVelocity,
			RollAngle:       w.rollAngle,
			SteerAngle:      w.steerAngle,
			ContactPoint:    w.lastContactPoint,
			HasContact:      w.hasContact,
		}
	}
	return states
}
