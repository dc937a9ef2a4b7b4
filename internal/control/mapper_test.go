package control

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/teledrive/bridge/internal/keys"
	"github.com/teledrive/bridge/internal/sim"
)

func TestMap_ThrottleLeft(t *testing.T) {
	cmd, next := Map(State{}, keys.Make(keys.Throttle, keys.Left))

	assert.Equal(t, sim.Control{Throttle: 1.0, Steer: -1.0}, cmd)
	assert.False(t, next.Reverse)
}

func TestMap_BrakeWinsOverThrottle(t *testing.T) {
	cmd, _ := Map(State{}, keys.Make(keys.Throttle, keys.Brake))

	assert.Equal(t, 0.0, cmd.Throttle)
	assert.Equal(t, 1.0, cmd.Brake)
	assert.Equal(t, 0.0, cmd.Steer)
}

func TestMap_HandbrakeZeroesThrottle(t *testing.T) {
	cmd, _ := Map(State{}, keys.Make(keys.Throttle, keys.Handbrake))

	assert.Equal(t, 0.0, cmd.Throttle)
	assert.True(t, cmd.Handbrake)
}

func TestMap_SteerSymmetry(t *testing.T) {
	tests := []struct {
		name string
		ks   keys.State
		want float64
	}{
		{"left only", keys.Make(keys.Left), -1.0},
		{"right only", keys.Make(keys.Right), 1.0},
		{"both", keys.Make(keys.Left, keys.Right), 0.0},
		{"neither", keys.Make(), 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, _ := Map(State{}, tt.ks)
			assert.Equal(t, tt.want, cmd.Steer)
		})
	}
}

func TestMap_Deterministic(t *testing.T) {
	ks := keys.Make(keys.Throttle, keys.Right, keys.Handbrake)
	prev := State{Reverse: true}

	cmd1, next1 := Map(prev, ks)
	cmd2, next2 := Map(prev, ks)

	assert.Equal(t, cmd1, cmd2)
	assert.Equal(t, next1, next2)
}

func TestMap_ReverseToggleIsEdgeTriggered(t *testing.T) {
	st := State{}
	held := keys.Make(keys.ReverseToggle)

	// Holding the key for N ticks flips exactly once.
	var cmd sim.Control
	for i := 0; i < 5; i++ {
		cmd, st = Map(st, held)
		assert.True(t, cmd.Reverse, "tick %d", i)
	}
	assert.True(t, st.Reverse)

	// Release, then press again: second edge, second flip.
	cmd, st = Map(st, keys.Make())
	assert.True(t, cmd.Reverse)
	cmd, st = Map(st, held)
	assert.False(t, cmd.Reverse)
	assert.False(t, st.Reverse)
}

func TestMap_ReverseSequenceAcrossTicks(t *testing.T) {
	// not-held, held, held, not-held, held starting from reverse=false:
	// two rising edges, two flips.
	seq := []keys.State{
		keys.Make(),
		keys.Make(keys.ReverseToggle),
		keys.Make(keys.ReverseToggle),
		keys.Make(),
		keys.Make(keys.ReverseToggle),
	}
	want := []bool{false, true, true, true, false}

	st := State{}
	for i, ks := range seq {
		var cmd sim.Control
		cmd, st = Map(st, ks)
		assert.Equal(t, want[i], cmd.Reverse, "tick %d", i)
	}
}

func TestMap_IdempotentOnRepeatedState(t *testing.T) {
	ks := keys.Make(keys.Throttle, keys.ReverseToggle)

	_, st := Map(State{}, ks)
	cmd2, st2 := Map(st, ks)
	cmd3, st3 := Map(st2, ks)

	assert.Equal(t, cmd2, cmd3)
	assert.Equal(t, st2, st3)
}

func TestMap_CommandReflectsPersistedReverseNotRawKey(t *testing.T) {
	// Reverse engaged, toggle key up: command still says reverse.
	cmd, _ := Map(State{Reverse: true}, keys.Make(keys.Throttle))
	assert.True(t, cmd.Reverse)
	assert.Equal(t, 1.0, cmd.Throttle)
}

func TestMap_QuitKeyDoesNotAffectCommand(t *testing.T) {
	with, _ := Map(State{}, keys.Make(keys.Throttle, keys.Quit))
	without, _ := Map(State{}, keys.Make(keys.Throttle))
	assert.Equal(t, without, with)
}
