// Package main runs a headless simulation session: it loads a track, spawns a
// vehicle with fixed control inputs, and steps the session at a fixed rate,
// logging telemetry. It stands in for the windowed render loop during
// development and benchmarking.
package main

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"go.viam.com/utils"

	"go.viam.com/racesim/sim"
)

var logger = golog.NewDevelopmentLogger("racesim")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

// one session Step simulates this much time (10 substeps at 1/100 s)
const frameDuration = 100 * time.Millisecond

// Arguments for the command.
type Arguments struct {
	TrackFile string  `flag:"0,required,usage=track JSON file"`
	SpawnT    float64 `flag:"spawn,usage=spawn position in track parameter units"`
	Duration  float64 `flag:"duration,default=30,usage=seconds to simulate"`
	Throttle  float64 `flag:"throttle,default=0.3,usage=constant throttle input"`
	Steer     float64 `flag:"steer,usage=constant steering input"`
	Realtime  bool    `flag:"realtime,usage=pace steps against the wall clock"`
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) error {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}
	return runSim(ctx, argsParsed, clock.New(), logger)
}

func runSim(ctx context.Context, args Arguments, clk clock.Clock, logger golog.Logger) error {
	session := sim.NewSession(logger)
	defer func() {
		utils.UncheckedError(session.Close())
	}()

	if err := session.LoadTrack(args.TrackFile); err != nil {
		return err
	}
	veh, err := session.AddVehicle(args.SpawnT)
	if err != nil {
		return err
	}
	veh.SetThrottle(args.Throttle)
	veh.SetSteerAmount(args.Steer)

	var ticker *clock.Ticker
	if args.Realtime {
		ticker = clk.Ticker(frameDuration)
		defer ticker.Stop()
	}

	frames := int(args.Duration / frameDuration.Seconds())
	for frame := 0; frame < frames; frame++ {
		if ticker != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		} else if ctx.Err() != nil {
			return ctx.Err()
		}

		session.Step()

		if frame%10 == 0 {
			body := veh.Body()
			logger.Infow("sim frame",
				"frame", frame,
				"trackT", session.VehicleTrackPosition(veh),
				"speed", body.Velocity.Norm(),
				"offTrack", session.IsOffTrack(veh),
				"crashed", session.IsCrashed(veh),
			)
		}
	}
	return nil
}
