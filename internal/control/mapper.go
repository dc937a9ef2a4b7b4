// Package control maps sampled key state to a vehicle control command.
// Map is a pure function of (previous state, key state): the only state
// threaded across ticks is the persisted reverse flag and the key level
// needed to detect its toggle edge, and both travel through the State
// argument rather than any package global.
package control

import (
	"github.com/teledrive/bridge/internal/keys"
	"github.com/teledrive/bridge/internal/sim"
)

// State carries the mapper's per-session memory between ticks.
type State struct {
	// Reverse is the persisted gear direction. It flips only on a rising
	// edge of the reverse-toggle key and holds its value otherwise.
	Reverse bool

	// reverseHeld is the toggle key's level at the previous observation,
	// used to detect the rising edge.
	reverseHeld bool
}

// Map converts one sampled key state into a vehicle control command and the
// successor mapper state. It is deterministic and total: any State/key-state
// pair produces a command, and the same pair always produces the same one.
//
// Policy notes:
//   - Brake wins over throttle: while the brake key is held the commanded
//     throttle is forced to zero, so acceleration and braking are never
//     commanded at full scale together. The handbrake zeroes throttle the
//     same way.
//   - Steering is a pure function of the current key state. Left and Right
//     held together cancel to zero; there is no last-key-wins memory.
//   - A single tap of the reverse-toggle key flips direction once; holding
//     it does not re-toggle on subsequent ticks.
//
// The quit key is not part of the command; the drive loop watches it
// separately.
func Map(prev State, ks keys.State) (sim.Control, State) {
	next := State{
		Reverse:     prev.Reverse,
		reverseHeld: ks.Held(keys.ReverseToggle),
	}
	if next.reverseHeld && !prev.reverseHeld {
		next.Reverse = !prev.Reverse
	}

	var cmd sim.Control
	cmd.Reverse = next.Reverse

	if ks.Held(keys.Brake) {
		cmd.Brake = 1.0
	}
	cmd.Handbrake = ks.Held(keys.Handbrake)

	if ks.Held(keys.Throttle) && cmd.Brake == 0 && !cmd.Handbrake {
		cmd.Throttle = 1.0
	}

	left := ks.Held(keys.Left)
	right := ks.Held(keys.Right)
	switch {
	case left && !right:
		cmd.Steer = -1.0
	case right && !left:
		cmd.Steer = 1.0
	}

	return cmd, next
}
