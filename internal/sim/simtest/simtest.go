// Package simtest provides in-memory fakes of the simulator client surface
// for bootstrap and drive-loop tests. The fakes record every call in order
// so tests can assert the apply-before-tick protocol.
package simtest

import (
	"context"
	"errors"

	"github.com/teledrive/bridge/internal/sim"
)

// Trace records simulator calls in the order they happen. The drive loop is
// single-goroutine, so no locking.
type Trace struct {
	Calls []string
}

func (t *Trace) add(call string) {
	if t != nil {
		t.Calls = append(t.Calls, call)
	}
}

// Client is a fake sim.Client.
type Client struct {
	WorldHandle *World
	WorldErr    error
	Closed      bool
}

func (c *Client) World(ctx context.Context) (sim.World, error) {
	if c.WorldErr != nil {
		return nil, c.WorldErr
	}
	return c.WorldHandle, nil
}

func (c *Client) Close() error {
	c.Closed = true
	return nil
}

// World is a fake sim.World backed by canned data and optional hooks.
type World struct {
	Trace *Trace

	Map    string
	MapErr error

	Current  sim.WorldSettings
	Applied  []sim.WorldSettings
	ApplyErr error

	BlueprintList []sim.Blueprint
	Points        []sim.Transform

	// SpawnFunc overrides spawning; the default spawns Car at any point.
	SpawnFunc func(bp sim.Blueprint, at sim.Transform) (sim.Vehicle, error)
	Car       *Vehicle

	// TickFunc overrides stepping; the default increments Frame.
	TickFunc func() (uint64, error)
	Frame    uint64

	SpectatorHandle *Spectator
	SpectatorErr    error
}

func (w *World) MapName(ctx context.Context) (string, error) {
	if w.MapErr != nil {
		return "", w.MapErr
	}
	if w.Map == "" {
		return "", sim.ErrNotReady
	}
	return w.Map, nil
}

func (w *World) Settings(ctx context.Context) (sim.WorldSettings, error) {
	return w.Current, nil
}

func (w *World) ApplySettings(ctx context.Context, s sim.WorldSettings) error {
	if w.ApplyErr != nil {
		return w.ApplyErr
	}
	w.Applied = append(w.Applied, s)
	return nil
}

func (w *World) Tick(ctx context.Context) (uint64, error) {
	w.Trace.add("tick")
	if w.TickFunc != nil {
		return w.TickFunc()
	}
	w.Frame++
	return w.Frame, nil
}

func (w *World) Blueprints(ctx context.Context) ([]sim.Blueprint, error) {
	return w.BlueprintList, nil
}

func (w *World) SpawnPoints(ctx context.Context) ([]sim.Transform, error) {
	return w.Points, nil
}

func (w *World) TrySpawn(ctx context.Context, bp sim.Blueprint, at sim.Transform) (sim.Vehicle, error) {
	w.Trace.add("spawn")
	if w.SpawnFunc != nil {
		return w.SpawnFunc(bp, at)
	}
	if w.Car == nil {
		return nil, errors.New("no fake vehicle configured")
	}
	w.Car.Type = bp.ID
	w.Car.Tf = at
	return w.Car, nil
}

func (w *World) Spectator(ctx context.Context) (sim.Spectator, error) {
	if w.SpectatorErr != nil {
		return nil, w.SpectatorErr
	}
	if w.SpectatorHandle == nil {
		w.SpectatorHandle = &Spectator{}
	}
	return w.SpectatorHandle, nil
}

// Vehicle is a fake sim.Vehicle that remembers every applied control.
type Vehicle struct {
	Trace *Trace

	ActorID  uint64
	Type     string
	Controls []sim.Control
	ApplyErr error

	Tf        sim.Transform
	TfErr     error
	Vel       sim.Location
	Destroyed bool
}

func (v *Vehicle) ID() uint64     { return v.ActorID }
func (v *Vehicle) TypeID() string { return v.Type }

func (v *Vehicle) ApplyControl(ctx context.Context, c sim.Control) error {
	v.Trace.add("apply")
	if v.ApplyErr != nil {
		return v.ApplyErr
	}
	v.Controls = append(v.Controls, c)
	return nil
}

func (v *Vehicle) Transform(ctx context.Context) (sim.Transform, error) {
	if v.TfErr != nil {
		return sim.Transform{}, v.TfErr
	}
	return v.Tf, nil
}

func (v *Vehicle) Velocity(ctx context.Context) (sim.Location, error) {
	return v.Vel, nil
}

func (v *Vehicle) Destroy(ctx context.Context) error {
	v.Destroyed = true
	return nil
}

// Spectator is a fake sim.Spectator that remembers every placement.
type Spectator struct {
	Transforms []sim.Transform
}

func (s *Spectator) SetTransform(ctx context.Context, t sim.Transform) error {
	s.Transforms = append(s.Transforms, t)
	return nil
}
