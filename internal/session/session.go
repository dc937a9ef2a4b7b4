// Package session negotiates a connection to the simulator backend and
// prepares everything the drive loop needs: a synchronous-stepping world, a
// spawned controlled vehicle and the chase viewpoint. This is the only place
// retry and fallback logic lives; every other package assumes a ready
// session.
package session

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/teledrive/bridge/internal/sim"
)

// Config holds everything Connect needs to bring a session up.
type Config struct {
	Host           string
	Ports          []int
	AttemptTimeout time.Duration
	RetryBackoff   time.Duration
	MaxRetries     int // total connection attempts across all candidates

	FixedDelta float64 // synchronous step size in seconds

	PreferredBlueprint string
	RoleName           string
	Color              string

	Camera CameraParams
}

// Endpoints expands Host and Ports into the ordered candidate list.
func (c Config) Endpoints() []sim.Endpoint {
	eps := make([]sim.Endpoint, 0, len(c.Ports))
	for _, p := range c.Ports {
		eps = append(eps, sim.Endpoint{Host: c.Host, Port: p})
	}
	return eps
}

// DialFunc opens a client connection to one candidate endpoint with a
// bounded timeout. Injected so tests can substitute a fake backend.
type DialFunc func(ep sim.Endpoint, timeout time.Duration) (sim.Client, error)

// undrivable lists blueprint ID fragments that are known not to accept
// driving control and are skipped during fallback.
var undrivable = []string{
	"carlacola",
	"bh_crossbike",
	"microlino",
}

// Session owns the live simulator connection and the controlled vehicle
// until Close. Exactly one vehicle per session, by construction.
type Session struct {
	Client    sim.Client
	World     sim.World
	Vehicle   sim.Vehicle
	Blueprint sim.Blueprint

	spectator sim.Spectator
	original  sim.WorldSettings
	camera    CameraParams
	baseZ     float64
	log       zerolog.Logger
}

// Bootstrapper connects to a simulator backend that may not be ready yet.
type Bootstrapper struct {
	dial DialFunc
	log  zerolog.Logger
}

// NewBootstrapper returns a Bootstrapper that dials with the given function.
func NewBootstrapper(dial DialFunc, log zerolog.Logger) *Bootstrapper {
	return &Bootstrapper{dial: dial, log: log}
}

// Connect iterates the candidate endpoints with bounded per-attempt timeouts
// until one produces a ready world, then configures synchronous stepping,
// spawns the controlled vehicle (preferred model first, any drivable
// blueprint as fallback) and places the chase camera. It fails with
// *ConnectionError only after the whole retry budget is spent, and with
// *SpawnError when the world is ready but nothing drivable could spawn.
func (b *Bootstrapper) Connect(ctx context.Context, cfg Config) (*Session, error) {
	type ready struct {
		client sim.Client
		world  sim.World
	}

	reached := false
	got, attempts, err := tryCandidates(ctx, cfg.Endpoints(), cfg.MaxRetries, cfg.RetryBackoff,
		func(ep sim.Endpoint) (ready, error) {
			client, err := b.dial(ep, cfg.AttemptTimeout)
			if err != nil {
				b.log.Debug().Str("endpoint", ep.Addr()).Err(err).Msg("Dial failed")
				return ready{}, err
			}

			probeCtx, cancel := context.WithTimeout(ctx, cfg.AttemptTimeout)
			defer cancel()

			world, err := client.World(probeCtx)
			if err == nil {
				// A connection can succeed before the backend's world is
				// initialized; a responsive map fetch is the readiness bar.
				_, err = world.MapName(probeCtx)
			}
			if err != nil {
				reached = true
				_ = client.Close()
				b.log.Debug().Str("endpoint", ep.Addr()).Err(err).Msg("Backend not ready")
				return ready{}, fmt.Errorf("%w: %v", errNotReady, err)
			}

			b.log.Info().Str("endpoint", ep.Addr()).Msg("Connected to simulator")
			return ready{client: client, world: world}, nil
		})
	if err != nil {
		// A cancellation (operator interrupt) is not a connection failure.
		if cerr := ctx.Err(); cerr != nil {
			return nil, cerr
		}
		return nil, &ConnectionError{Attempts: attempts, Reached: reached, LastErr: err}
	}

	sess, err := b.prepare(ctx, got.client, got.world, cfg)
	if err != nil {
		_ = got.client.Close()
		return nil, err
	}
	return sess, nil
}

// rollbackTimeout bounds the best-effort cleanup after a failed bootstrap.
const rollbackTimeout = 5 * time.Second

// prepare runs the post-handshake setup on an already-ready world.
func (b *Bootstrapper) prepare(ctx context.Context, client sim.Client, world sim.World, cfg Config) (_ *Session, err error) {
	original, err := world.Settings(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading world settings: %w", err)
	}

	err = world.ApplySettings(ctx, sim.WorldSettings{
		Synchronous:       true,
		FixedDeltaSeconds: cfg.FixedDelta,
	})
	if err != nil {
		return nil, fmt.Errorf("enabling synchronous mode: %w", err)
	}
	b.log.Info().Float64("fixedDelta", cfg.FixedDelta).Msg("Synchronous stepping enabled")

	// From here on the simulator is frozen in synchronous mode with nobody
	// ticking; any failure must undo what was done, even when ctx is gone.
	var vehicle sim.Vehicle
	defer func() {
		if err == nil {
			return
		}
		rbCtx, cancel := context.WithTimeout(context.Background(), rollbackTimeout)
		defer cancel()
		if vehicle != nil {
			if derr := vehicle.Destroy(rbCtx); derr != nil {
				b.log.Warn().Err(derr).Msg("Failed to destroy vehicle after failed bootstrap")
			}
		}
		if rerr := world.ApplySettings(rbCtx, original); rerr != nil {
			b.log.Warn().Err(rerr).Msg("Failed to restore world settings after failed bootstrap")
		}
	}()

	blueprints, err := world.Blueprints(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing blueprints: %w", err)
	}

	bp, ok := pickBlueprint(blueprints, cfg.PreferredBlueprint)
	if !ok {
		return nil, &SpawnError{Preferred: cfg.PreferredBlueprint}
	}
	applyCosmetics(&bp, cfg)

	points, err := world.SpawnPoints(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing spawn points: %w", err)
	}
	if len(points) == 0 {
		return nil, &SpawnError{Preferred: cfg.PreferredBlueprint, Blueprint: bp.ID}
	}
	rand.Shuffle(len(points), func(i, j int) {
		points[i], points[j] = points[j], points[i]
	})

	vehicle, _, err = tryCandidates(ctx, points, len(points), 0,
		func(at sim.Transform) (sim.Vehicle, error) {
			v, err := world.TrySpawn(ctx, bp, at)
			if err != nil {
				return nil, err
			}
			if v == nil {
				// Spawn collision; next point.
				return nil, errNotReady
			}
			return v, nil
		})
	if err != nil {
		return nil, &SpawnError{Preferred: cfg.PreferredBlueprint, Blueprint: bp.ID, Points: len(points)}
	}
	b.log.Info().Str("blueprint", bp.ID).Uint64("actor", vehicle.ID()).Msg("Vehicle spawned")

	spectator, err := world.Spectator(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring spectator: %w", err)
	}

	sess := &Session{
		Client:    client,
		World:     world,
		Vehicle:   vehicle,
		Blueprint: bp,
		spectator: spectator,
		original:  original,
		camera:    cfg.Camera,
		log:       b.log,
	}

	spawnTf, err := vehicle.Transform(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading spawn transform: %w", err)
	}
	sess.baseZ = spawnTf.Location.Z + cfg.Camera.Height
	if err := sess.LockCamera(ctx); err != nil {
		return nil, fmt.Errorf("placing chase camera: %w", err)
	}

	return sess, nil
}

// pickBlueprint prefers the named model and falls back to any drivable
// blueprint, skipping templates known to reject driving control.
func pickBlueprint(blueprints []sim.Blueprint, preferred string) (sim.Blueprint, bool) {
	candidates := make([]sim.Blueprint, 0, len(blueprints))
	for _, bp := range blueprints {
		if bp.ID == preferred {
			return bp, true
		}
		if drivable(bp.ID) {
			candidates = append(candidates, bp)
		}
	}
	if len(candidates) == 0 {
		return sim.Blueprint{}, false
	}
	return candidates[rand.Intn(len(candidates))], true
}

func drivable(id string) bool {
	if !strings.HasPrefix(id, "vehicle.") {
		return false
	}
	for _, frag := range undrivable {
		if strings.Contains(id, frag) {
			return false
		}
	}
	return true
}

// applyCosmetics sets the role name and color when the template supports
// them, so the controlled vehicle is easy to spot.
func applyCosmetics(bp *sim.Blueprint, cfg Config) {
	if bp.Attributes == nil {
		return
	}
	// The map is shared with the caller's blueprint list; write to a copy.
	attrs := make(map[string]string, len(bp.Attributes))
	for k, v := range bp.Attributes {
		attrs[k] = v
	}
	bp.Attributes = attrs
	if cfg.RoleName != "" && bp.HasAttribute("role_name") {
		bp.Attributes["role_name"] = cfg.RoleName
	}
	if cfg.Color != "" && bp.HasAttribute("color") {
		bp.Attributes["color"] = cfg.Color
	}
}

// LockCamera re-places the spectator behind the vehicle at the fixed height
// baseline captured at spawn. The drive loop calls this after every physics
// step.
func (s *Session) LockCamera(ctx context.Context) error {
	tf, err := s.Vehicle.Transform(ctx)
	if err != nil {
		return err
	}
	return s.spectator.SetTransform(ctx, chaseTransform(tf, s.camera, s.baseZ))
}

// Close tears the session down best-effort: the controlled vehicle is
// destroyed, the simulator's prior stepping mode restored and the client
// closed. Failures are logged, never returned as fatal.
func (s *Session) Close(ctx context.Context) {
	if s.Vehicle != nil {
		if err := s.Vehicle.Destroy(ctx); err != nil {
			s.log.Warn().Err(err).Msg("Failed to destroy vehicle")
		}
	}
	if err := s.World.ApplySettings(ctx, s.original); err != nil {
		s.log.Warn().Err(err).Msg("Failed to restore world settings")
	}
	if err := s.Client.Close(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to close simulator connection")
	}
}
