package telemetry

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"gorm.io/gorm"

	"github.com/teledrive/bridge/internal/geo"
	"github.com/teledrive/bridge/internal/sim"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()

	m := NewManager(zerolog.Nop())
	db, err := m.GetSqliteDB(filepath.Join(t.TempDir(), "telemetry.db"))
	require.NoError(t, err)
	m.DB = db
	require.NoError(t, m.Setup())
	return db
}

func testRecorder(t *testing.T, db *gorm.DB) *Recorder {
	t.Helper()

	r := NewRecorder(db, geo.Origin{}, zerolog.Nop())
	r.interval = 10 * time.Millisecond
	return r
}

func testInfo() SessionInfo {
	return SessionInfo{
		MapName: "Town03",
		Blueprint: sim.Blueprint{
			ID:         "vehicle.tesla.model3",
			Attributes: map[string]string{"role_name": "hero"},
		},
		Host:       "127.0.0.1",
		Port:       2000,
		FixedDelta: 1.0 / 60.0,
	}
}

func tickAt(x, y float64) (sim.Transform, sim.Location) {
	return sim.Transform{Location: sim.Location{X: x, Y: y, Z: 0.3}}, sim.Location{X: 3, Y: 4}
}

func TestManagerMigratesSchema(t *testing.T) {
	db := testDB(t)

	assert.True(t, db.Migrator().HasTable(&DriveSession{}))
	assert.True(t, db.Migrator().HasTable(&TickRecord{}))
}

func TestRecorder_WritesTicksAndFinalizesSession(t *testing.T) {
	db := testDB(t)
	r := testRecorder(t, db)
	require.NoError(t, r.Begin(testInfo()))

	cmd := sim.Control{Throttle: 1.0, Steer: -0.5}
	for frame := uint64(1); frame <= 12; frame++ {
		tf, vel := tickAt(float64(frame), 0)
		r.RecordTick(frame, cmd, tf, vel)
	}
	require.NoError(t, r.End("user quit"))

	var count int64
	require.NoError(t, db.Model(&TickRecord{}).Count(&count).Error)
	assert.EqualValues(t, 12, count)

	var first TickRecord
	require.NoError(t, db.Order("frame asc").First(&first).Error)
	assert.EqualValues(t, 1, first.Frame)
	assert.Equal(t, 1.0, first.Throttle)
	assert.Equal(t, -0.5, first.Steer)
	assert.Equal(t, 1.0, first.X)
	assert.Equal(t, 5.0, first.SpeedMps)
	assert.Contains(t, first.GeoWKT, "POINT")

	var sess DriveSession
	require.NoError(t, db.First(&sess).Error)
	assert.Equal(t, "Town03", sess.MapName)
	assert.Equal(t, "vehicle.tesla.model3", sess.Blueprint)
	assert.Equal(t, "user quit", sess.ExitReason)
	require.NotNil(t, sess.EndTime)
	assert.Contains(t, sess.PathWKT, "LINESTRING")
}

func TestRecorder_BackgroundFlushDrainsQueue(t *testing.T) {
	db := testDB(t)
	r := testRecorder(t, db)
	require.NoError(t, r.Begin(testInfo()))

	tf, vel := tickAt(1, 1)
	r.RecordTick(1, sim.Control{}, tf, vel)

	assert.Eventually(t, func() bool {
		var count int64
		return db.Model(&TickRecord{}).Count(&count).Error == nil && count == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, r.End("user quit"))
}

func TestRecorder_EndWithoutTicks(t *testing.T) {
	db := testDB(t)
	r := testRecorder(t, db)
	require.NoError(t, r.Begin(testInfo()))
	require.NoError(t, r.End("connection failure"))

	var sess DriveSession
	require.NoError(t, db.First(&sess).Error)
	assert.Equal(t, "connection failure", sess.ExitReason)
	assert.Empty(t, sess.PathWKT, "no path without at least two positions")
}

func TestRecorder_GeotagsAgainstOrigin(t *testing.T) {
	db := testDB(t)
	r := NewRecorder(db, geo.Origin{Longitude: 8.4037, Latitude: 49.0069}, zerolog.Nop())
	r.interval = 10 * time.Millisecond
	require.NoError(t, r.Begin(testInfo()))

	tf, vel := tickAt(0, 0)
	r.RecordTick(1, sim.Control{}, tf, vel)
	require.NoError(t, r.End("user quit"))

	var rec TickRecord
	require.NoError(t, db.First(&rec).Error)
	assert.InDelta(t, 8.4037, rec.Longitude, 1e-6)
	assert.InDelta(t, 49.0069, rec.Latitude, 1e-6)
}

func TestRecorder_ReportsQueueDepth(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	t.Cleanup(func() { otel.SetMeterProvider(noop.NewMeterProvider()) })

	db := testDB(t)
	r := NewRecorder(db, geo.Origin{}, zerolog.Nop())
	r.interval = time.Hour // keep rows buffered during the test
	require.NoError(t, r.Begin(testInfo()))

	for frame := uint64(1); frame <= 3; frame++ {
		tf, vel := tickAt(float64(frame), 0)
		r.RecordTick(frame, sim.Control{}, tf, vel)
	}

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	depth, ok := findGauge(rm, "telemetry.queue.depth")
	require.True(t, ok, "queue depth gauge not exported")
	require.Len(t, depth.DataPoints, 1)
	assert.EqualValues(t, 3, depth.DataPoints[0].Value)

	require.NoError(t, r.End("user quit"))
}

func findGauge(rm metricdata.ResourceMetrics, name string) (metricdata.Gauge[int64], bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			g, ok := m.Data.(metricdata.Gauge[int64])
			return g, ok
		}
	}
	return metricdata.Gauge[int64]{}, false
}

func TestManagerSaveLocal(t *testing.T) {
	m := NewManager(zerolog.Nop())
	db, err := m.GetSqliteDB("")
	require.NoError(t, err)
	m.DB = db
	require.NoError(t, m.Setup())

	path := filepath.Join(t.TempDir(), "teledrive.telemetry.db")

	// Without the fallback flag nothing is written.
	require.NoError(t, m.SaveLocal(path))
	assert.NoFileExists(t, path)

	m.ShouldSaveLocal = true
	require.NoError(t, m.SaveLocal(path))
	assert.FileExists(t, path)
}

func TestManagerDumpMemoryToDisk(t *testing.T) {
	m := NewManager(zerolog.Nop())
	db, err := m.GetSqliteDB("")
	require.NoError(t, err)
	m.DB = db
	require.NoError(t, m.Setup())

	m.SqliteFilePath = filepath.Join(t.TempDir(), "dump.db")
	require.NoError(t, m.DumpMemoryToDisk())
	assert.FileExists(t, m.SqliteFilePath)
}
