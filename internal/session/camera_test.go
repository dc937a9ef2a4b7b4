package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/teledrive/bridge/internal/sim"
)

func TestChaseTransform_BehindVehicleAlongYaw(t *testing.T) {
	p := CameraParams{Distance: 7.5, Height: 3.0, Pitch: -12.0}

	tests := []struct {
		name  string
		yaw   float64
		wantX float64
		wantY float64
	}{
		{"facing +X", 0, -7.5, 0},
		{"facing +Y", 90, 0, -7.5},
		{"facing -X", 180, 7.5, 0},
		{"facing -Y", 270, 0, 7.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := chaseTransform(sim.Transform{
				Rotation: sim.Rotation{Yaw: tt.yaw},
			}, p, 3.0)

			assert.InDelta(t, tt.wantX, got.Location.X, 1e-9)
			assert.InDelta(t, tt.wantY, got.Location.Y, 1e-9)
			assert.Equal(t, 3.0, got.Location.Z)
			assert.Equal(t, -12.0, got.Rotation.Pitch)
			assert.Equal(t, tt.yaw, got.Rotation.Yaw)
			assert.Equal(t, 0.0, got.Rotation.Roll)
		})
	}
}

func TestChaseTransform_HeightBaselineIsFixed(t *testing.T) {
	p := DefaultCamera

	// The vehicle bouncing on its suspension must not move the camera: Z
	// comes from the baseline, not the live transform.
	low := chaseTransform(sim.Transform{Location: sim.Location{Z: 0.1}}, p, 5.0)
	high := chaseTransform(sim.Transform{Location: sim.Location{Z: 1.4}}, p, 5.0)

	assert.Equal(t, 5.0, low.Location.Z)
	assert.Equal(t, 5.0, high.Location.Z)
}
