package sim

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/racesim/spatialmath"
	"go.viam.com/racesim/track"
	"go.viam.com/racesim/vehicle"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	return NewSession(golog.NewTestLogger(t))
}

func sessionWithTrack(t *testing.T) *Session {
	t.Helper()
	s := newTestSession(t)
	trk, err := track.New([]r2.Point{
		{X: 0, Y: 0}, {X: 50, Y: 0},
		{X: 100, Y: 0}, {X: 150, Y: 50},
		{X: 100, Y: 100}, {X: 50, Y: 100},
		{X: 0, Y: 100}, {X: -50, Y: 50},
	})
	test.That(t, err, test.ShouldBeNil)
	s.UseTrack(trk)
	return s
}

func TestLoadTrack(t *testing.T) {
	s := newTestSession(t)
	test.That(t, s.Track(), test.ShouldBeNil)
	test.That(t, s.TrackLength(), test.ShouldEqual, 0)

	path := filepath.Join(t.TempDir(), "track.json")
	err := os.WriteFile(path, []byte(`{"points": [[0, 0], [10, 0], [20, 0], [10, 10]]}`), 0o600)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, s.LoadTrack(path), test.ShouldBeNil)
	test.That(t, s.Track(), test.ShouldNotBeNil)
	test.That(t, s.TrackLength(), test.ShouldEqual, 2)
}

func TestLoadTrackFailureClearsState(t *testing.T) {
	s := sessionWithTrack(t)
	v, err := s.AddVehicle(0)
	test.That(t, err, test.ShouldBeNil)

	err = s.LoadTrack(filepath.Join(t.TempDir(), "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)
	// a failed load surfaces as "no track loaded"
	test.That(t, s.Track(), test.ShouldBeNil)
	test.That(t, s.TrackLength(), test.ShouldEqual, 0)
	test.That(t, s.NumVehicles(), test.ShouldEqual, 0)
	test.That(t, v.Body(), test.ShouldBeNil)

	// curve-dependent operations are disabled, not crashing
	_, err = s.AddVehicle(0)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, s.Observation(v, make([]float32, ObservationSize)), test.ShouldEqual, 0)
}

func TestAddVehicleRequiresTrack(t *testing.T) {
	s := newTestSession(t)
	_, err := s.AddVehicle(0)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, s.NumVehicles(), test.ShouldEqual, 0)
}

func TestAddVehicleSpawnPose(t *testing.T) {
	s := sessionWithTrack(t)
	v, err := s.AddVehicle(0.5)
	test.That(t, err, test.ShouldBeNil)

	body := v.Body()
	test.That(t, body, test.ShouldNotBeNil)
	pos := s.Track().Position(0.5)
	test.That(t, body.Position.X, test.ShouldAlmostEqual, pos.X, 1e-9)
	test.That(t, body.Position.Z, test.ShouldAlmostEqual, pos.Y, 1e-9)
	test.That(t, body.Position.Y, test.ShouldAlmostEqual, spawnHeight, 1e-9)

	// chassis forward (+Z local) aligns with the curve tangent
	tangent := s.Track().Tangent(0.5)
	forward := spatialmath.RotateVecByQuat(body.Orientation, r3.Vector{Z: 1})
	test.That(t, forward.X, test.ShouldAlmostEqual, tangent.X, 1e-6)
	test.That(t, forward.Z, test.ShouldAlmostEqual, tangent.Y, 1e-6)
}

func TestRemoveVehicle(t *testing.T) {
	s := sessionWithTrack(t)
	v1, err := s.AddVehicle(0)
	test.That(t, err, test.ShouldBeNil)
	v2, err := s.AddVehicle(1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.NumVehicles(), test.ShouldEqual, 2)
	test.That(t, s.World().NumBodies(), test.ShouldEqual, 2)

	s.RemoveVehicle(v1)
	test.That(t, s.NumVehicles(), test.ShouldEqual, 1)
	test.That(t, s.World().NumBodies(), test.ShouldEqual, 1)
	test.That(t, v1.Body(), test.ShouldBeNil)
	test.That(t, v2.Body(), test.ShouldNotBeNil)

	// removing again is a no-op
	s.RemoveVehicle(v1)
	test.That(t, s.NumVehicles(), test.ShouldEqual, 1)
}

func TestUseTrackClearsVehicles(t *testing.T) {
	s := sessionWithTrack(t)
	v, err := s.AddVehicle(0)
	test.That(t, err, test.ShouldBeNil)

	trk, err := track.New([]r2.Point{{X: 0, Y: 0}, {X: 10, Y: 0}})
	test.That(t, err, test.ShouldBeNil)
	s.UseTrack(trk)
	test.That(t, s.NumVehicles(), test.ShouldEqual, 0)
	test.That(t, v.Body(), test.ShouldBeNil)
	test.That(t, s.TrackLength(), test.ShouldEqual, 1)
}

func TestVehicleSettlesOnStraightTrack(t *testing.T) {
	// single-segment degenerate loop through the origin
	s := newTestSession(t)
	trk, err := track.New([]r2.Point{{X: 0, Y: 0}, {X: 10, Y: 0}})
	test.That(t, err, test.ShouldBeNil)
	s.UseTrack(trk)

	v, err := s.AddVehicle(0)
	test.That(t, err, test.ShouldBeNil)

	// 500 physics substeps at 1/100 s
	for i := 0; i < 50; i++ {
		s.Step()
	}

	body := v.Body()
	var totalSpring float64
	for _, ws := range v.WheelStates() {
		test.That(t, ws.HasContact, test.ShouldBeTrue)
		totalSpring += vehicle.SuspensionStiffness * ws.Compression
	}
	weight := vehicle.Mass * 9.81
	test.That(t, totalSpring, test.ShouldAlmostEqual, weight, weight*0.05)
	test.That(t, math.Hypot(body.Velocity.X, body.Velocity.Z), test.ShouldBeLessThan, 0.05)

	test.That(t, s.IsOffTrack(v), test.ShouldBeFalse)
	test.That(t, s.IsCrashed(v), test.ShouldBeFalse)
}

func TestObservation(t *testing.T) {
	s := sessionWithTrack(t)
	v, err := s.AddVehicle(0)
	test.That(t, err, test.ShouldBeNil)
	body := v.Body()
	body.Velocity = r3.Vector{X: 1, Z: 3}
	body.AngularVelocity = r3.Vector{Y: 0.5}

	buf := make([]float32, ObservationSize)
	n := s.Observation(v, buf)
	test.That(t, n, test.ShouldEqual, ObservationSize)

	forward := spatialmath.RotateVecByQuat(body.Orientation, r3.Vector{Z: 1})
	right := spatialmath.RotateVecByQuat(body.Orientation, r3.Vector{X: 1})
	test.That(t, float64(buf[n-3]), test.ShouldAlmostEqual, body.Velocity.Dot(forward), 1e-5)
	test.That(t, float64(buf[n-2]), test.ShouldAlmostEqual, body.Velocity.Dot(right), 1e-5)
	test.That(t, float64(buf[n-1]), test.ShouldAlmostEqual, 0.5, 1e-6)

	// waypoint offsets reconstruct points near the track boundary
	currentT := s.VehicleTrackPosition(v)
	wps := s.Track().Waypoints(currentT, DefaultNumWaypoints/2, DefaultWaypointSpacing)
	for i, wp := range wps {
		rel := wp.Sub(body.Position)
		test.That(t, float64(buf[2*i]), test.ShouldAlmostEqual, rel.Dot(right), 1e-4)
		test.That(t, float64(buf[2*i+1]), test.ShouldAlmostEqual, rel.Dot(forward), 1e-4)
	}
}

func TestObservationShortBuffer(t *testing.T) {
	s := sessionWithTrack(t)
	v, err := s.AddVehicle(0)
	test.That(t, err, test.ShouldBeNil)

	// whole pairs or nothing
	n := s.Observation(v, make([]float32, 5))
	test.That(t, n, test.ShouldEqual, 4)
	n = s.Observation(v, make([]float32, 1))
	test.That(t, n, test.ShouldEqual, 0)
	n = s.Observation(v, nil)
	test.That(t, n, test.ShouldEqual, 0)

	// one short of the tail: pairs only, no velocities
	n = s.Observation(v, make([]float32, ObservationSize-1))
	test.That(t, n, test.ShouldEqual, ObservationSize-3)
}

func TestObservationWithoutTrack(t *testing.T) {
	s := newTestSession(t)
	n := s.Observation(nil, make([]float32, ObservationSize))
	test.That(t, n, test.ShouldEqual, 0)
}

func TestIsCrashed(t *testing.T) {
	s := sessionWithTrack(t)
	v, err := s.AddVehicle(0)
	test.That(t, err, test.ShouldBeNil)
	body := v.Body()

	test.That(t, s.IsCrashed(v), test.ShouldBeFalse)

	body.Position.Y = -2.5
	test.That(t, s.IsCrashed(v), test.ShouldBeTrue)
	body.Position.Y = 25
	test.That(t, s.IsCrashed(v), test.ShouldBeTrue)
	body.Position.Y = spawnHeight

	// upside down
	body.Orientation = spatialmath.NewQuatFromEulerAngles(math.Pi, 0, 0)
	test.That(t, s.IsCrashed(v), test.ShouldBeTrue)
	body.Orientation = spatialmath.NewZeroOrientation()
	test.That(t, s.IsCrashed(v), test.ShouldBeFalse)

	// far off the track
	body.Position.X = 2000
	test.That(t, s.IsCrashed(v), test.ShouldBeTrue)
}

func TestVehicleTrackPositionAndVelocity(t *testing.T) {
	s := sessionWithTrack(t)
	v, err := s.AddVehicle(1.25)
	test.That(t, err, test.ShouldBeNil)

	got := s.VehicleTrackPosition(v)
	d := s.Track().Position(got).Sub(s.Track().Position(1.25))
	test.That(t, d.Norm(), test.ShouldAlmostEqual, 0, 1e-3)

	v.Body().Velocity = r3.Vector{X: 4, Y: -1, Z: 2}
	test.That(t, s.VehicleVelocity(v), test.ShouldResemble, r3.Vector{X: 4, Y: -1, Z: 2})

	// queries with no track or no vehicle degrade to zero values
	empty := newTestSession(t)
	test.That(t, empty.VehicleTrackPosition(v), test.ShouldEqual, 0.0)
	test.That(t, empty.IsOffTrack(v), test.ShouldBeFalse)
	test.That(t, empty.TrackNormal(0), test.ShouldResemble, r2.Point{})
	test.That(t, empty.VehicleVelocity(nil), test.ShouldResemble, r3.Vector{})
}

func TestTrackNormal(t *testing.T) {
	s := sessionWithTrack(t)
	n := s.TrackNormal(0.5)
	test.That(t, n.Norm(), test.ShouldAlmostEqual, 1, 1e-9)
}

func TestClose(t *testing.T) {
	s := sessionWithTrack(t)
	v, err := s.AddVehicle(0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.Close(), test.ShouldBeNil)
	test.That(t, s.NumVehicles(), test.ShouldEqual, 0)
	test.That(t, v.Body(), test.ShouldBeNil)
	test.That(t, s.Track(), test.ShouldBeNil)
}

func TestDeterminism(t *testing.T) {
	run := func() r3.Vector {
		s := sessionWithTrack(t)
		v, err := s.AddVehicle(0)
		test.That(t, err, test.ShouldBeNil)
		v.SetThrottle(0.7)
		v.SetSteerAmount(0.2)
		for i := 0; i < 30; i++ {
			s.Step()
		}
		return v.Body().Position
	}
	p1 := run()
	p2 := run()
	test.That(t, p1, test.ShouldResemble, p2)
}
