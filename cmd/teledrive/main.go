// Command teledrive bridges the operator's keyboard to a vehicle in a
// running driving simulator: it connects to the simulator gateway, spawns a
// car, then drives it in fixed-step lockstep until the quit key.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/teledrive/bridge/internal/config"
	"github.com/teledrive/bridge/internal/drive"
	"github.com/teledrive/bridge/internal/geo"
	"github.com/teledrive/bridge/internal/influx"
	"github.com/teledrive/bridge/internal/keys"
	"github.com/teledrive/bridge/internal/logging"
	intOtel "github.com/teledrive/bridge/internal/otel"
	"github.com/teledrive/bridge/internal/session"
	"github.com/teledrive/bridge/internal/sim"
	"github.com/teledrive/bridge/internal/sim/wsclient"
	"github.com/teledrive/bridge/internal/telemetry"
)

// Version and BuildDate can be set at build time via ldflags.
var (
	Version   string = "0.0.1"
	BuildDate string = "unknown"

	AppName string = "teledrive"
)

// Exit codes per exit reason.
const (
	exitOK                = 0
	exitConnectionFailure = 1
	exitFatal             = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	configDir := flag.String("config", ".", "directory containing teledrive.cfg.json")
	flag.Parse()

	// A missing config file is fine: Load sets every default before it
	// reads, so the defaults carry a local simulator setup.
	cfgErr := config.Load(*configDir)

	log, logCleanup, err := logging.Setup(AppName, logging.Config{
		Level:          config.GetString("logLevel"),
		LogsDir:        config.GetString("logsDir"),
		GraylogEnabled: config.GetBool("graylog.enabled"),
		GraylogAddress: config.GetString("graylog.address"),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging setup failed: %v\n", err)
		return exitFatal
	}
	defer logCleanup()

	if cfgErr != nil {
		log.Warn().Err(cfgErr).Msg("No config file found, using defaults")
	}

	log.Info().Str("version", Version).Str("buildDate", BuildDate).Msg("teledrive starting")
	printBanner()

	otelProvider, err := setupOTel(log)
	if err != nil {
		log.Error().Err(err).Msg("OTel setup failed")
		return exitFatal
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = otelProvider.Flush(ctx)
		_ = otelProvider.Shutdown(ctx)
	}()

	// SIGINT behaves like the quit key: the loop sees the cancellation at
	// its next iteration and tears down cleanly.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := keys.NewSDLProvider()
	if err != nil {
		log.Error().Err(err).Msg("Keyboard input setup failed")
		return exitFatal
	}
	defer provider.Close()
	sampler := keys.NewSampler(provider)

	simCfg := config.GetSimConfig()
	vehicleCfg := config.GetVehicleConfig()
	cameraCfg := config.GetCameraConfig()

	b := session.NewBootstrapper(wsclient.Dial, log)
	sess, err := b.Connect(ctx, session.Config{
		Host:               simCfg.Host,
		Ports:              simCfg.Ports,
		AttemptTimeout:     simCfg.AttemptTimeout,
		RetryBackoff:       simCfg.RetryBackoff,
		MaxRetries:         simCfg.MaxRetries,
		FixedDelta:         simCfg.FixedDeltaSeconds,
		PreferredBlueprint: vehicleCfg.PreferredBlueprint,
		RoleName:           vehicleCfg.RoleName,
		Color:              vehicleCfg.Color,
		Camera: session.CameraParams{
			Distance: cameraCfg.Distance,
			Height:   cameraCfg.Height,
			Pitch:    cameraCfg.Pitch,
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			log.Info().Msg("Interrupted before a session was established, goodbye")
			return exitOK
		}
		var connErr *session.ConnectionError
		if errors.As(err, &connErr) {
			log.Error().Err(err).Msg("Could not establish a simulator session")
			logConnectionHints(log, connErr, simCfg)
			return exitConnectionFailure
		}
		log.Error().Err(err).Msg("Session bootstrap failed")
		return exitFatal
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		sess.Close(closeCtx)
	}()

	recorder, endRecording := setupRecording(ctx, log, sess, simCfg)

	loop, err := drive.New(sampler, recorder, log)
	if err != nil {
		log.Error().Err(err).Msg("Drive loop setup failed")
		endRecording("fatal")
		return exitFatal
	}

	reason, err := loop.Run(ctx, sess)
	endRecording(reason.String())

	if reason == drive.ExitUserQuit {
		log.Info().Msg("Session over, goodbye")
		return exitOK
	}
	log.Error().Err(err).Msg("Drive loop failed")
	return exitFatal
}

// printBanner lists the key bindings so the operator knows how to drive.
func printBanner() {
	fmt.Println("teledrive " + Version)
	fmt.Println()
	fmt.Println("  W / UP / E     throttle")
	fmt.Println("  S / DOWN / X   brake")
	fmt.Println("  A / LEFT       steer left")
	fmt.Println("  D / RIGHT      steer right")
	fmt.Println("  SPACE          handbrake")
	fmt.Println("  R              toggle reverse")
	fmt.Println("  ESC            quit")
	fmt.Println()
	fmt.Println("Keep the teledrive input window focused while driving.")
	fmt.Println()
}

func setupOTel(log zerolog.Logger) (*intOtel.Provider, error) {
	cfg := intOtel.Config{
		Enabled:      config.GetBool("otel.enabled"),
		ServiceName:  config.GetString("otel.serviceName"),
		BatchTimeout: 5 * time.Second,
	}
	if !cfg.Enabled {
		return intOtel.New(cfg)
	}

	if d, err := time.ParseDuration(config.GetString("otel.batchTimeout")); err == nil {
		cfg.BatchTimeout = d
	}

	path := filepath.Join(config.GetString("logsDir"), AppName+".metrics.jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening metric export file: %w", err)
	}
	cfg.MetricWriter = f
	log.Info().Str("path", path).Msg("OTel metric export enabled")

	return intOtel.New(cfg)
}

// setupRecording wires the per-tick recorders (database, optionally Influx)
// behind one drive.Recorder. Both are best-effort: telemetry being down
// never blocks driving.
func setupRecording(ctx context.Context, log zerolog.Logger, sess *session.Session, simCfg config.SimConfig) (drive.Recorder, func(reason string)) {
	var recorders fanoutRecorder
	var closers []func(reason string)

	origin := geo.Origin{
		Longitude: config.GetGeoConfig().OriginLongitude,
		Latitude:  config.GetGeoConfig().OriginLatitude,
	}

	mapName, err := sess.World.MapName(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Could not read map name for telemetry")
	}

	var sessionID uint
	if config.GetBool("telemetry.enabled") {
		m := telemetry.NewManager(log)
		if err := m.Connect(); err != nil {
			log.Warn().Err(err).Msg("Telemetry database unavailable, not recording")
		} else if err := m.Setup(); err != nil {
			log.Warn().Err(err).Msg("Telemetry schema setup failed, not recording")
		} else {
			rec := telemetry.NewRecorder(m.DB, origin, log)
			port := 0
			if len(simCfg.Ports) > 0 {
				port = simCfg.Ports[0]
			}
			err := rec.Begin(telemetry.SessionInfo{
				MapName:    mapName,
				Blueprint:  sess.Blueprint,
				Host:       simCfg.Host,
				Port:       port,
				FixedDelta: simCfg.FixedDeltaSeconds,
			})
			if err != nil {
				log.Warn().Err(err).Msg("Telemetry session could not start")
			} else {
				sessionID = rec.SessionID()
				recorders = append(recorders, rec)
				closers = append(closers, func(reason string) {
					if err := rec.End(reason); err != nil {
						log.Warn().Err(err).Msg("Telemetry session close failed")
					}
					localPath := filepath.Join(config.GetString("logsDir"), AppName+".telemetry.db")
					if err := m.SaveLocal(localPath); err != nil {
						log.Warn().Err(err).Msg("Telemetry local dump failed")
					}
				})
			}
		}
	}

	if config.GetBool("influx.enabled") {
		backup := filepath.Join(config.GetString("logsDir"), AppName+".influx.gz")
		im := influx.NewManager(log, backup)
		if err := im.Connect(); err != nil {
			log.Warn().Err(err).Msg("InfluxDB unavailable, not shipping live metrics")
		} else {
			recorders = append(recorders, influx.NewTickRecorder(im, sessionID))
			closers = append(closers, func(string) { im.Close() })
		}
	}

	end := func(reason string) {
		for _, c := range closers {
			c(reason)
		}
	}

	if len(recorders) == 0 {
		return nil, end
	}
	return recorders, end
}

// fanoutRecorder forwards every tick to all registered recorders.
type fanoutRecorder []drive.Recorder

func (f fanoutRecorder) RecordTick(frame uint64, cmd sim.Control, tf sim.Transform, vel sim.Location) {
	for _, r := range f {
		r.RecordTick(frame, cmd, tf, vel)
	}
}

func logConnectionHints(log zerolog.Logger, connErr *session.ConnectionError, simCfg config.SimConfig) {
	if connErr.Reached {
		log.Info().Msg("The simulator answered but its world never became ready; it may still be loading a map")
		log.Info().Msg("Give it a minute and try again, or raise sim.maxRetries")
		return
	}
	log.Info().Msgf("Nothing is listening on %s ports %v", simCfg.Host, simCfg.Ports)
	log.Info().Msg("Is the simulator gateway running? Check sim.host and sim.ports in teledrive.cfg.json")
}
