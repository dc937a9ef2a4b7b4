// Package wsclient talks JSON-over-WebSocket to a simulator gateway and
// exposes it through the sim interfaces. Every call is a request/response
// pair matched by ID; the drive loop is single-goroutine and synchronous,
// so one connection with serialized calls is enough.
package wsclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/teledrive/bridge/internal/sim"
)

const writeWait = 10 * time.Second

// Gateway command names.
const (
	cmdMapName       = "map_name"
	cmdGetSettings   = "get_settings"
	cmdApplySettings = "apply_settings"
	cmdTick          = "tick"
	cmdBlueprints    = "get_blueprints"
	cmdSpawnPoints   = "get_spawn_points"
	cmdSpawnVehicle  = "spawn_vehicle"
	cmdApplyControl  = "apply_control"
	cmdGetTransform  = "get_transform"
	cmdGetVelocity   = "get_velocity"
	cmdDestroyActor  = "destroy_actor"
	cmdGetSpectator  = "get_spectator"
	cmdSetTransform  = "set_transform"
)

// Gateway error codes with a local meaning.
const (
	codeNotReady  = "not_ready"
	codeCollision = "collision"
)

type request struct {
	ID     uint64          `json:"id"`
	Cmd    string          `json:"cmd"`
	Params json.RawMessage `json:"params,omitempty"`
}

type response struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *gatewayError   `json:"error,omitempty"`
}

type gatewayError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *gatewayError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway error %s: %s", e.Code, e.Message)
	}
	return "gateway error: " + e.Message
}

// Client is a sim.Client over one WebSocket connection.
type Client struct {
	mu      sync.Mutex
	conn    *ws.Conn
	timeout time.Duration
	nextID  atomic.Uint64
	closed  bool
}

// Dial connects to the gateway at ep. timeout bounds the dial and each
// subsequent call unless the caller's context sets a tighter deadline.
// The signature matches session.DialFunc.
func Dial(ep sim.Endpoint, timeout time.Duration) (sim.Client, error) {
	u := url.URL{Scheme: "ws", Host: ep.Addr(), Path: "/sim"}

	dialer := *ws.DefaultDialer
	dialer.HandshakeTimeout = timeout

	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial %s: %w", u.String(), err)
	}
	return &Client{conn: conn, timeout: timeout}, nil
}

// World returns the handle for the gateway's single world.
func (c *Client) World(ctx context.Context) (sim.World, error) {
	// Probe with a cheap call so a dead gateway surfaces here, not later.
	var name string
	if err := c.call(ctx, cmdMapName, nil, &name); err != nil {
		return nil, err
	}
	return &world{c: c}, nil
}

// Close sends a close frame and tears down the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	_ = c.conn.WriteMessage(
		ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
	)
	return c.conn.Close()
}

// call performs one request/response round trip. Calls are serialized; the
// read loop skips stale responses left over from a timed-out predecessor.
func (c *Client) call(ctx context.Context, cmd string, params any, out any) error {
	req := request{ID: c.nextID.Add(1), Cmd: cmd}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshal %s params: %w", cmd, err)
		}
		req.Params = raw
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("%s: connection closed", cmd)
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	writeDeadline := time.Now().Add(writeWait)
	if deadline.Before(writeDeadline) {
		writeDeadline = deadline
	}
	if err := c.conn.SetWriteDeadline(writeDeadline); err != nil {
		return fmt.Errorf("%s: set write deadline: %w", cmd, err)
	}
	if err := c.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("%s: write: %w", cmd, err)
	}

	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return fmt.Errorf("%s: set read deadline: %w", cmd, err)
	}
	for {
		var resp response
		if err := c.conn.ReadJSON(&resp); err != nil {
			return fmt.Errorf("%s: read: %w", cmd, err)
		}
		if resp.ID != req.ID {
			continue
		}
		if resp.Error != nil {
			if resp.Error.Code == codeNotReady {
				return fmt.Errorf("%s: %w", cmd, sim.ErrNotReady)
			}
			return fmt.Errorf("%s: %w", cmd, resp.Error)
		}
		if out != nil {
			if err := json.Unmarshal(resp.Result, out); err != nil {
				return fmt.Errorf("unmarshal %s result: %w", cmd, err)
			}
		}
		return nil
	}
}

type actorParams struct {
	ActorID uint64 `json:"actorId"`
}

type world struct {
	c *Client
}

func (w *world) MapName(ctx context.Context) (string, error) {
	var name string
	err := w.c.call(ctx, cmdMapName, nil, &name)
	return name, err
}

func (w *world) Settings(ctx context.Context) (sim.WorldSettings, error) {
	var s sim.WorldSettings
	err := w.c.call(ctx, cmdGetSettings, nil, &s)
	return s, err
}

func (w *world) ApplySettings(ctx context.Context, s sim.WorldSettings) error {
	return w.c.call(ctx, cmdApplySettings, s, nil)
}

func (w *world) Tick(ctx context.Context) (uint64, error) {
	var result struct {
		Frame uint64 `json:"frame"`
	}
	if err := w.c.call(ctx, cmdTick, nil, &result); err != nil {
		return 0, err
	}
	return result.Frame, nil
}

func (w *world) Blueprints(ctx context.Context) ([]sim.Blueprint, error) {
	var bps []sim.Blueprint
	err := w.c.call(ctx, cmdBlueprints, nil, &bps)
	return bps, err
}

func (w *world) SpawnPoints(ctx context.Context) ([]sim.Transform, error) {
	var pts []sim.Transform
	err := w.c.call(ctx, cmdSpawnPoints, nil, &pts)
	return pts, err
}

func (w *world) TrySpawn(ctx context.Context, bp sim.Blueprint, at sim.Transform) (sim.Vehicle, error) {
	params := struct {
		Blueprint  string            `json:"blueprint"`
		Attributes map[string]string `json:"attributes,omitempty"`
		At         sim.Transform     `json:"at"`
	}{Blueprint: bp.ID, Attributes: bp.Attributes, At: at}

	var result struct {
		ActorID uint64 `json:"actorId"`
	}
	err := w.c.call(ctx, cmdSpawnVehicle, params, &result)
	if err != nil {
		var gerr *gatewayError
		if errors.As(err, &gerr) && gerr.Code == codeCollision {
			return nil, nil
		}
		return nil, err
	}
	return &vehicle{c: w.c, id: result.ActorID, typeID: bp.ID}, nil
}

func (w *world) Spectator(ctx context.Context) (sim.Spectator, error) {
	var result struct {
		ActorID uint64 `json:"actorId"`
	}
	if err := w.c.call(ctx, cmdGetSpectator, nil, &result); err != nil {
		return nil, err
	}
	return &spectator{c: w.c, id: result.ActorID}, nil
}

type vehicle struct {
	c      *Client
	id     uint64
	typeID string
}

func (v *vehicle) ID() uint64     { return v.id }
func (v *vehicle) TypeID() string { return v.typeID }

func (v *vehicle) ApplyControl(ctx context.Context, cmd sim.Control) error {
	params := struct {
		ActorID uint64      `json:"actorId"`
		Control sim.Control `json:"control"`
	}{ActorID: v.id, Control: cmd}
	return v.c.call(ctx, cmdApplyControl, params, nil)
}

func (v *vehicle) Transform(ctx context.Context) (sim.Transform, error) {
	var tf sim.Transform
	err := v.c.call(ctx, cmdGetTransform, actorParams{ActorID: v.id}, &tf)
	return tf, err
}

func (v *vehicle) Velocity(ctx context.Context) (sim.Location, error) {
	var vel sim.Location
	err := v.c.call(ctx, cmdGetVelocity, actorParams{ActorID: v.id}, &vel)
	return vel, err
}

func (v *vehicle) Destroy(ctx context.Context) error {
	return v.c.call(ctx, cmdDestroyActor, actorParams{ActorID: v.id}, nil)
}

type spectator struct {
	c  *Client
	id uint64
}

func (s *spectator) SetTransform(ctx context.Context, tf sim.Transform) error {
	params := struct {
		ActorID   uint64        `json:"actorId"`
		Transform sim.Transform `json:"transform"`
	}{ActorID: s.id, Transform: tf}
	return s.c.call(ctx, cmdSetTransform, params, nil)
}
