package influx

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"testing"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teledrive/bridge/internal/drive"
	"github.com/teledrive/bridge/internal/sim"
)

// Compile-time interface check.
var _ drive.Recorder = (*TickRecorder)(nil)

func TestTickPointLineProtocol(t *testing.T) {
	cmd := sim.Control{Throttle: 1.0, Steer: -0.5, Reverse: true}
	p := TickPoint(7, 42, cmd, 12.5)

	line := influxdb2_write.PointToLineProtocol(p, time.Nanosecond)
	assert.Contains(t, line, "drive_tick")
	assert.Contains(t, line, "session=7")
	assert.Contains(t, line, "frame=42i")
	assert.Contains(t, line, "throttle=1")
	assert.Contains(t, line, "steer=-0.5")
	assert.Contains(t, line, "reverse=true")
	assert.Contains(t, line, "speed_mps=12.5")
}

func TestWritePointFallsBackToBackupWriter(t *testing.T) {
	var buf bytes.Buffer
	m := NewManager(zerolog.Nop(), "")
	m.BackupWriter = gzip.NewWriter(&buf)

	p := TickPoint(1, 1, sim.Control{Brake: 1.0}, 0)
	require.NoError(t, m.WritePoint(context.Background(), BucketDriveTelemetry, p))
	require.NoError(t, m.BackupWriter.Close())

	zr, err := gzip.NewReader(&buf)
	require.NoError(t, err)
	raw, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "drive_tick")
	assert.Contains(t, string(raw), "brake=1")
}

func TestWritePointWithoutBackupWriterFails(t *testing.T) {
	m := NewManager(zerolog.Nop(), "")

	err := m.WritePoint(context.Background(), BucketDriveTelemetry, TickPoint(1, 1, sim.Control{}, 0))
	assert.Error(t, err)
}

func TestConnectDisabled(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("influx.enabled", false)

	m := NewManager(zerolog.Nop(), "")
	assert.Error(t, m.Connect())
}

func TestTickRecorderWritesThroughManager(t *testing.T) {
	var buf bytes.Buffer
	m := NewManager(zerolog.Nop(), "")
	m.BackupWriter = gzip.NewWriter(&buf)

	r := NewTickRecorder(m, 3)
	r.RecordTick(9, sim.Control{Throttle: 1.0}, sim.Transform{}, sim.Location{X: 3, Y: 4})
	require.NoError(t, m.BackupWriter.Close())

	zr, err := gzip.NewReader(&buf)
	require.NoError(t, err)
	raw, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "session=3")
	assert.Contains(t, string(raw), "frame=9i")
	assert.Contains(t, string(raw), "speed_mps=5")
}
