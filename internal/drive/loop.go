// Package drive runs the fixed-rate teleoperation loop: sample keys, map to
// a control command, apply it, step the simulator once, repeat. The loop is
// synchronous-blocking by construction — the wait for the simulator's tick
// acknowledgment paces the loop, not a local timer, so commands never pile
// up and the simulator never free-runs ahead of input sampling.
package drive

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"

	"github.com/teledrive/bridge/internal/control"
	"github.com/teledrive/bridge/internal/keys"
	"github.com/teledrive/bridge/internal/session"
	"github.com/teledrive/bridge/internal/sim"
)

// ExitReason says why the drive session ended.
type ExitReason int

const (
	// ExitUserQuit: the quit key was pressed or the process was interrupted.
	ExitUserQuit ExitReason = iota
	// ExitConnectionFailure: no session could be established; the loop
	// never started.
	ExitConnectionFailure
	// ExitFatal: an unrecoverable error mid-loop, e.g. a lost tick.
	ExitFatal
)

func (r ExitReason) String() string {
	switch r {
	case ExitUserQuit:
		return "user quit"
	case ExitConnectionFailure:
		return "connection failure"
	case ExitFatal:
		return "fatal"
	}
	return "unknown"
}

// Recorder receives one telemetry sample per completed tick. Implementations
// must not block; the loop calls this on its only goroutine.
type Recorder interface {
	RecordTick(frame uint64, cmd sim.Control, tf sim.Transform, vel sim.Location)
}

// Loop orchestrates one drive session over an established Session.
type Loop struct {
	sampler  keys.Sampler
	recorder Recorder
	log      zerolog.Logger

	ticks        metric.Int64Counter
	tickDuration metric.Float64Histogram
}

// New builds a Loop. recorder may be nil when telemetry is disabled.
func New(sampler keys.Sampler, recorder Recorder, log zerolog.Logger) (*Loop, error) {
	l := &Loop{
		sampler:  sampler,
		recorder: recorder,
		log:      log,
	}

	m := meter()
	var err error

	l.ticks, err = m.Int64Counter(
		"drive.ticks",
		metric.WithDescription("Synchronous steps completed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tick counter: %w", err)
	}

	l.tickDuration, err = m.Float64Histogram(
		"drive.tick.duration",
		metric.WithDescription("Wall time of one apply+tick cycle"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tick duration histogram: %w", err)
	}

	return l, nil
}

// Run drives until the quit key's rising edge, context cancellation or a
// fatal error. Per tick: sample, check quit, map, apply, step. The command
// is always applied before the step it is meant to affect, and the quit
// check happens before any simulator-affecting action so quitting never
// leaves a half-applied command pending.
func (l *Loop) Run(ctx context.Context, s *session.Session) (ExitReason, error) {
	var mapState control.State
	var quitHeld bool
	var frame uint64

	l.log.Info().Msg("Drive loop running")

	for {
		if ctx.Err() != nil {
			l.log.Info().Msg("Interrupted, leaving drive loop")
			return ExitUserQuit, nil
		}

		ks := l.sampler.Sample()

		if ks.Held(keys.Quit) && !quitHeld {
			l.log.Info().Uint64("frame", frame).Msg("Quit requested")
			return ExitUserQuit, nil
		}
		quitHeld = ks.Held(keys.Quit)

		var cmd sim.Control
		cmd, mapState = control.Map(mapState, ks)

		start := time.Now()

		if err := s.Vehicle.ApplyControl(ctx, cmd); err != nil {
			return ExitFatal, fmt.Errorf("applying control at frame %d: %w", frame, err)
		}

		f, err := s.World.Tick(ctx)
		if err != nil {
			return ExitFatal, &sim.TickError{Frame: frame, Err: err}
		}
		frame = f

		l.ticks.Add(ctx, 1)
		l.tickDuration.Record(ctx, time.Since(start).Seconds())

		// Post-step glue: camera and telemetry see the advanced world.
		if err := s.LockCamera(ctx); err != nil {
			l.log.Debug().Err(err).Msg("Chase camera update failed")
		}
		l.record(ctx, s, frame, cmd)
	}
}

func (l *Loop) record(ctx context.Context, s *session.Session, frame uint64, cmd sim.Control) {
	if l.recorder == nil {
		return
	}
	tf, err := s.Vehicle.Transform(ctx)
	if err != nil {
		l.log.Debug().Err(err).Msg("Telemetry transform read failed")
		return
	}
	vel, err := s.Vehicle.Velocity(ctx)
	if err != nil {
		l.log.Debug().Err(err).Msg("Telemetry velocity read failed")
		return
	}
	l.recorder.RecordTick(frame, cmd, tf, vel)
}
