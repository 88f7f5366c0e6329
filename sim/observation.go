package sim

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"go.viam.com/racesim/spatialmath"
	"go.viam.com/racesim/vehicle"
)

// Observation layout parameters. The observation samples boundary waypoints
// ahead of the vehicle, interleaved left/right, each contributing a
// (lateral, longitudinal) offset pair, followed by three velocity terms.
const (
	// DefaultNumWaypoints counts boundary points: left and right of each of
	// the DefaultNumWaypoints/2 sampled centerline parameters.
	DefaultNumWaypoints    = 20
	DefaultWaypointSpacing = 0.1
)

// ObservationSize is the float count of a full observation: two floats per
// boundary waypoint plus longitudinal velocity, lateral velocity, and yaw rate.
const ObservationSize = 2*DefaultNumWaypoints + 3

// Observation writes the vehicle's observation vector into out and returns the
// number of floats written. Waypoint boundary points ahead of the vehicle are
// expressed as (lateral, longitudinal) offsets in the vehicle's local frame;
// the tail is (longitudinal velocity, lateral velocity, yaw rate). When out is
// too small, whole pairs are written or nothing; the velocity tail is written
// only if all three entries fit.
func (s *Session) Observation(v *vehicle.Vehicle, out []float32) int {
	if s.track == nil || v == nil || len(out) == 0 {
		return 0
	}
	body := v.Body()
	if body == nil {
		return 0
	}

	pos := body.Position
	currentT := s.track.ClosestT(r2.Point{X: pos.X, Y: pos.Z})
	waypoints := s.track.Waypoints(currentT, DefaultNumWaypoints/2, DefaultWaypointSpacing)

	forward := spatialmath.RotateVecByQuat(body.Orientation, r3.Vector{Z: 1}).Normalize()
	right := spatialmath.RotateVecByQuat(body.Orientation, r3.Vector{X: 1}).Normalize()

	idx := 0
	for _, wp := range waypoints {
		if idx+2 > len(out) {
			break
		}
		rel := wp.Sub(pos)
		out[idx] = float32(rel.Dot(right))
		idx++
		out[idx] = float32(rel.Dot(forward))
		idx++
	}

	if idx+3 <= len(out) {
		vel := body.Velocity
		out[idx] = float32(vel.Dot(forward))
		idx++
		out[idx] = float32(vel.Dot(right))
		idx++
		out[idx] = float32(body.AngularVelocity.Y)
		idx++
	}
	return idx
}
