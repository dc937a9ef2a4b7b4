// Package sim defines the simulator client surface consumed by the
// teleoperation bridge. The wire protocol behind these interfaces is owned
// entirely by the client implementation (see wsclient); the rest of the
// bridge only ever sees these types.
package sim

import (
	"context"
	"fmt"
	"math"
)

// Endpoint is one (host, port) pair attempted during connection bootstrap.
type Endpoint struct {
	Host string
	Port int
}

// Addr returns the endpoint in host:port form.
func (e Endpoint) Addr() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

// Control is a single actuation command for a vehicle. Throttle and Brake
// are in [0, 1], Steer in [-1, 1].
type Control struct {
	Throttle  float64 `json:"throttle"`
	Steer     float64 `json:"steer"`
	Brake     float64 `json:"brake"`
	Handbrake bool    `json:"handBrake"`
	Reverse   bool    `json:"reverse"`
}

// Location is a position in the simulator's local frame, in meters.
type Location struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Length returns the Euclidean norm, e.g. speed when the location holds a
// velocity vector.
func (l Location) Length() float64 {
	return math.Sqrt(l.X*l.X + l.Y*l.Y + l.Z*l.Z)
}

// Rotation holds Euler angles in degrees.
type Rotation struct {
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
	Roll  float64 `json:"roll"`
}

// Transform is a position plus orientation.
type Transform struct {
	Location Location `json:"location"`
	Rotation Rotation `json:"rotation"`
}

// WorldSettings mirrors the simulator's stepping configuration.
type WorldSettings struct {
	Synchronous       bool    `json:"synchronousMode"`
	FixedDeltaSeconds float64 `json:"fixedDeltaSeconds"`
}

// Blueprint describes a spawnable actor template. Attributes are applied
// at spawn time when the template supports them.
type Blueprint struct {
	ID         string            `json:"id"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// HasAttribute reports whether the template declares the named attribute.
func (b Blueprint) HasAttribute(name string) bool {
	_, ok := b.Attributes[name]
	return ok
}

// Client is a live connection to a simulator backend.
type Client interface {
	// World returns a handle to the running world. It fails while the
	// backend is still loading, which the bootstrapper treats as a soft
	// readiness failure.
	World(ctx context.Context) (World, error)
	Close() error
}

// World exposes the subset of the simulator world the bridge needs: stepping
// control, blueprint enumeration, spawning and the spectator viewpoint.
type World interface {
	MapName(ctx context.Context) (string, error)
	Settings(ctx context.Context) (WorldSettings, error)
	ApplySettings(ctx context.Context, s WorldSettings) error

	// Tick advances the world by exactly one synchronous step and blocks
	// until the step is acknowledged, returning the new frame number.
	Tick(ctx context.Context) (uint64, error)

	Blueprints(ctx context.Context) ([]Blueprint, error)
	SpawnPoints(ctx context.Context) ([]Transform, error)

	// TrySpawn attempts to spawn an actor from the blueprint at the given
	// transform. A (nil, nil) return means the spawn point was occupied.
	TrySpawn(ctx context.Context, bp Blueprint, at Transform) (Vehicle, error)

	Spectator(ctx context.Context) (Spectator, error)
}

// Vehicle is a spawned, drivable actor under this process's control.
type Vehicle interface {
	ID() uint64
	TypeID() string
	ApplyControl(ctx context.Context, c Control) error
	Transform(ctx context.Context) (Transform, error)
	Velocity(ctx context.Context) (Location, error)
	Destroy(ctx context.Context) error
}

// Spectator is the free-flying viewpoint actor used as a chase camera.
type Spectator interface {
	SetTransform(ctx context.Context, t Transform) error
}
