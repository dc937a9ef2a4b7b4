package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/teledrive/bridge/internal/drive"
	"github.com/teledrive/bridge/internal/geo"
	"github.com/teledrive/bridge/internal/queue"
	"github.com/teledrive/bridge/internal/sim"
)

// Compile-time interface check.
var _ drive.Recorder = (*Recorder)(nil)

const (
	// ~3 minutes of buffered ticks at 60 Hz before eviction.
	queueCapacity = 10_000
	flushInterval = time.Second
	// Keep every 6th position for the session path, 10 Hz at the default
	// tick rate.
	pathStride = 6
)

// SessionInfo describes the established session a Recorder writes under.
type SessionInfo struct {
	MapName    string
	Blueprint  sim.Blueprint
	Host       string
	Port       int
	FixedDelta float64
}

// Recorder buffers per-tick rows and writes them in batches on a background
// goroutine. RecordTick never blocks on the database.
type Recorder struct {
	db       *gorm.DB
	origin   geo.Origin
	log      zerolog.Logger
	interval time.Duration

	q *queue.Queue[TickRecord]

	mu      sync.Mutex
	session DriveSession
	path    []sim.Location

	done chan struct{}
	wg   sync.WaitGroup

	gaugeReg metric.Registration
}

// NewRecorder creates a Recorder writing through db.
func NewRecorder(db *gorm.DB, origin geo.Origin, log zerolog.Logger) *Recorder {
	return &Recorder{
		db:       db,
		origin:   origin,
		log:      log,
		interval: flushInterval,
		q:        queue.New[TickRecord](queueCapacity),
		done:     make(chan struct{}),
	}
}

// Begin creates the session row and starts the flush goroutine.
func (r *Recorder) Begin(info SessionInfo) error {
	attrs, err := json.Marshal(info.Blueprint.Attributes)
	if err != nil {
		return fmt.Errorf("marshal blueprint attributes: %w", err)
	}

	r.session = DriveSession{
		MapName:        info.MapName,
		Blueprint:      info.Blueprint.ID,
		BlueprintAttrs: datatypes.JSON(attrs),
		Host:           info.Host,
		Port:           info.Port,
		FixedDelta:     info.FixedDelta,
		StartTime:      time.Now().UTC(),
	}
	if err := r.db.Create(&r.session).Error; err != nil {
		return fmt.Errorf("creating session row: %w", err)
	}

	depth, err := meter().Int64ObservableGauge("telemetry.queue.depth",
		metric.WithDescription("Buffered telemetry rows awaiting flush"),
		metric.WithUnit("{row}"))
	if err != nil {
		return fmt.Errorf("creating queue depth gauge: %w", err)
	}
	r.gaugeReg, err = meter().RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(depth, int64(r.q.Len()))
		return nil
	}, depth)
	if err != nil {
		return fmt.Errorf("registering queue depth gauge: %w", err)
	}

	r.wg.Add(1)
	go r.run()

	r.log.Info().Uint("sessionID", r.session.ID).Str("map", info.MapName).Msg("Telemetry session started")
	return nil
}

// SessionID returns the database ID of the session row created by Begin.
func (r *Recorder) SessionID() uint {
	return r.session.ID
}

// RecordTick buffers one row. Called from the drive loop goroutine.
func (r *Recorder) RecordTick(frame uint64, cmd sim.Control, tf sim.Transform, vel sim.Location) {
	long, lat := r.origin.Geotag(tf.Location)

	r.q.Push(TickRecord{
		SessionID: r.session.ID,
		Frame:     frame,
		Time:      time.Now().UTC(),
		Throttle:  cmd.Throttle,
		Steer:     cmd.Steer,
		Brake:     cmd.Brake,
		Handbrake: cmd.Handbrake,
		Reverse:   cmd.Reverse,
		X:         tf.Location.X,
		Y:         tf.Location.Y,
		Z:         tf.Location.Z,
		Pitch:     tf.Rotation.Pitch,
		Yaw:       tf.Rotation.Yaw,
		Roll:      tf.Rotation.Roll,
		SpeedMps:  vel.Length(),
		Longitude: long,
		Latitude:  lat,
		GeoWKT:    r.origin.Point3857(tf.Location).AsText(),
	})

	if frame%pathStride == 0 {
		r.mu.Lock()
		r.path = append(r.path, tf.Location)
		r.mu.Unlock()
	}
}

func (r *Recorder) run() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.flush()
		case <-r.done:
			return
		}
	}
}

func (r *Recorder) flush() {
	rows := r.q.Drain()
	if len(rows) == 0 {
		return
	}
	if err := r.db.Create(&rows).Error; err != nil {
		r.log.Warn().Err(err).Int("rows", len(rows)).Msg("Telemetry batch write failed")
		return
	}
	r.log.Debug().Int("rows", len(rows)).Msg("Telemetry batch written")
}

// End stops the flush goroutine, writes remaining rows and finalizes the
// session row with the exit reason and the session path.
func (r *Recorder) End(reason string) error {
	close(r.done)
	r.wg.Wait()
	r.flush()

	if r.gaugeReg != nil {
		_ = r.gaugeReg.Unregister()
	}

	if dropped := r.q.Dropped(); dropped > 0 {
		r.log.Warn().Uint64("dropped", dropped).Msg("Telemetry samples were dropped")
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"end_time":    &now,
		"exit_reason": reason,
	}

	r.mu.Lock()
	path := r.path
	r.mu.Unlock()
	if ls, err := r.origin.PathLine(path); err == nil {
		updates["path_wkt"] = ls.AsText()
	}

	if err := r.db.Model(&r.session).Updates(updates).Error; err != nil {
		return fmt.Errorf("finalizing session row: %w", err)
	}

	r.log.Info().Uint("sessionID", r.session.ID).Str("reason", reason).Msg("Telemetry session ended")
	return nil
}
