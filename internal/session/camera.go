package session

import (
	"math"

	"github.com/teledrive/bridge/internal/sim"
)

// CameraParams positions the chase viewpoint relative to the vehicle.
type CameraParams struct {
	Distance float64 // meters behind the vehicle along its yaw
	Height   float64 // meters above the spawn baseline
	Pitch    float64 // degrees, negative looks down
}

// DefaultCamera matches the hard-locked chase view the bridge ships with.
var DefaultCamera = CameraParams{
	Distance: 7.5,
	Height:   3.0,
	Pitch:    -12.0,
}

// chaseTransform places the spectator a fixed distance behind the vehicle at
// a fixed height baseline, yawed with the vehicle but never rolling. The
// height baseline is captured at spawn so the camera does not bob with the
// chassis.
func chaseTransform(vehicle sim.Transform, p CameraParams, baseZ float64) sim.Transform {
	yawRad := vehicle.Rotation.Yaw * math.Pi / 180

	return sim.Transform{
		Location: sim.Location{
			X: vehicle.Location.X - math.Cos(yawRad)*p.Distance,
			Y: vehicle.Location.Y - math.Sin(yawRad)*p.Distance,
			Z: baseZ,
		},
		Rotation: sim.Rotation{
			Pitch: p.Pitch,
			Yaw:   vehicle.Rotation.Yaw,
		},
	}
}
