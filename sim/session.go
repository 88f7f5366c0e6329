// Package sim ties the simulation together: a Session owns one physics world,
// at most one loaded track, and a set of vehicles, and exposes the stepping,
// control, and query surface an environment host (e.g. an RL wrapper) drives.
//
// Sessions are single-threaded by design. Nothing in here blocks or spawns
// goroutines; a host that wants parallel environments runs fully isolated
// sessions.
package sim

import (
	"math"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/racesim/physics"
	"go.viam.com/racesim/spatialmath"
	"go.viam.com/racesim/track"
	"go.viam.com/racesim/vehicle"
)

const (
	// fixed physics substep; determinism depends on this never varying
	substepDelta = 1.0 / 100
	// substeps run per Step call
	maxSubsteps = 10

	spawnHeight = 0.75
)

// Crash thresholds on the chassis pose.
const (
	crashFloorHeight   = -2.0
	crashCeilingHeight = 20.0
	crashUpsideDownUpY = -0.1
	crashTrackDistance = 100.0
)

// Session is one isolated simulation: world, optional track, vehicles.
type Session struct {
	logger   golog.Logger
	world    *physics.World
	track    *track.Track
	vehicles []*vehicle.Vehicle
}

// NewSession returns an empty session with default gravity and no track.
func NewSession(logger golog.Logger) *Session {
	return &Session{
		logger: logger,
		world:  physics.NewWorld(),
	}
}

// World exposes the physics world for tests and bespoke hosts.
func (s *Session) World() *physics.World {
	return s.world
}

// Track returns the loaded track, or nil.
func (s *Session) Track() *track.Track {
	return s.track
}

// LoadTrack loads a track file and installs its curve. The old curve and any
// vehicles spawned on it go away regardless of outcome: a failed load leaves
// the session with no track loaded, and every curve-dependent operation
// behaves as disabled until a load succeeds.
func (s *Session) LoadTrack(path string) error {
	s.UseTrack(nil)
	trk, err := track.Load(path)
	if err != nil {
		s.logger.Warnw("track load failed", "path", path, "error", err)
		return err
	}
	s.track = trk
	s.logger.Infow("track loaded", "path", path, "segments", trk.NumSegments())
	return nil
}

// UseTrack installs an already constructed track, removing all vehicles.
func (s *Session) UseTrack(trk *track.Track) {
	for _, v := range s.vehicles {
		utils.UncheckedError(v.Close())
	}
	s.vehicles = nil
	s.track = trk
}

// TrackLength returns the track's segment count, which is also the span of the
// curve parameter; zero when no track is loaded.
func (s *Session) TrackLength() int {
	if s.track == nil {
		return 0
	}
	return s.track.NumSegments()
}

// AddVehicle spawns a vehicle at the given track parameter, facing along the
// curve tangent. It fails when no track is loaded.
func (s *Session) AddVehicle(spawnT float64) (*vehicle.Vehicle, error) {
	if s.track == nil {
		return nil, errors.New("cannot add vehicle: no track loaded")
	}
	pos := s.track.Position(spawnT)
	tangent := s.track.Tangent(spawnT)
	yaw := math.Atan2(tangent.X, tangent.Y)

	v, err := vehicle.New(s.world, r3.Vector{X: pos.X, Y: spawnHeight, Z: pos.Y}, r3.Vector{Y: yaw})
	if err != nil {
		return nil, err
	}
	s.vehicles = append(s.vehicles, v)
	return v, nil
}

// RemoveVehicle destroys a vehicle and releases its chassis body. Removing a
// vehicle the session does not own is a no-op.
func (s *Session) RemoveVehicle(v *vehicle.Vehicle) {
	for i, owned := range s.vehicles {
		if owned == v {
			s.vehicles = append(s.vehicles[:i], s.vehicles[i+1:]...)
			utils.UncheckedError(v.Close())
			return
		}
	}
}

// NumVehicles returns the number of live vehicles.
func (s *Session) NumVehicles() int {
	return len(s.vehicles)
}

// Step advances the simulation by one frame: maxSubsteps substeps at the
// fixed substep size. Vehicle forces apply during each vehicle's own step since
// wheel forces depend on the chassis body the world owns.
func (s *Session) Step() {
	for i := 0; i < maxSubsteps; i++ {
		s.world.StepSimulation(substepDelta)
		for _, v := range s.vehicles {
			v.Step(substepDelta)
		}
	}
}

// VehicleTrackPosition returns the curve parameter closest to the vehicle's
// chassis, or 0 when no track is loaded or the vehicle's body is gone.
func (s *Session) VehicleTrackPosition(v *vehicle.Vehicle) float64 {
	if s.track == nil || v == nil {
		return 0
	}
	body := v.Body()
	if body == nil {
		return 0
	}
	return s.track.ClosestT(r2.Point{X: body.Position.X, Y: body.Position.Z})
}

// IsOffTrack reports whether every ground-contacting wheel of the vehicle sits
// outside the track boundary. With no track loaded the check is disabled and
// reports false.
func (s *Session) IsOffTrack(v *vehicle.Vehicle) bool {
	if s.track == nil || v == nil {
		return false
	}
	return v.IsOffTrack(s.track)
}

// IsCrashed reports whether the vehicle has left the playable envelope:
// underground, flung high into the air, upside down, or far from the track.
func (s *Session) IsCrashed(v *vehicle.Vehicle) bool {
	if v == nil {
		return false
	}
	body := v.Body()
	if body == nil {
		return false
	}

	if body.Position.Y < crashFloorHeight || body.Position.Y > crashCeilingHeight {
		return true
	}

	up := spatialmath.RotateVecByQuat(body.Orientation, r3.Vector{Y: 1})
	if up.Y < crashUpsideDownUpY {
		return true
	}

	if s.track != nil {
		pos2D := r2.Point{X: body.Position.X, Y: body.Position.Z}
		closest := s.track.Position(s.track.ClosestT(pos2D))
		if pos2D.Sub(closest).Norm() > crashTrackDistance {
			return true
		}
	}
	return false
}

// VehicleVelocity returns the chassis world-frame velocity, or zero once the
// body is gone.
func (s *Session) VehicleVelocity(v *vehicle.Vehicle) r3.Vector {
	if v == nil {
		return r3.Vector{}
	}
	body := v.Body()
	if body == nil {
		return r3.Vector{}
	}
	return body.Velocity
}

// TrackNormal returns the track normal at parameter t, or zero with no track.
func (s *Session) TrackNormal(t float64) r2.Point {
	if s.track == nil {
		return r2.Point{}
	}
	return s.track.Normal(t)
}

// Close removes all vehicles and tears the session down.
func (s *Session) Close() error {
	var err error
	for _, v := range s.vehicles {
		err = multierr.Combine(err, v.Close())
	}
	s.vehicles = nil
	s.track = nil
	return err
}
