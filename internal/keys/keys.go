// Package keys samples the instantaneous pressed state of the fixed set of
// driving keys. It reads live key state from the host rather than an event
// queue, so the state reflects "currently down" at call time regardless of
// event delivery. The OS read goes through the Provider interface so tests
// can substitute a deterministic fake.
package keys

import (
	"github.com/veandco/go-sdl2/sdl"
)

// Key is a logical control key.
type Key uint8

const (
	Throttle Key = iota
	Brake
	Left
	Right
	Handbrake
	ReverseToggle
	Quit

	numKeys
)

func (k Key) String() string {
	switch k {
	case Throttle:
		return "throttle"
	case Brake:
		return "brake"
	case Left:
		return "left"
	case Right:
		return "right"
	case Handbrake:
		return "handbrake"
	case ReverseToggle:
		return "reverse-toggle"
	case Quit:
		return "quit"
	}
	return "unknown"
}

// State is the set of logical keys held at one sampling instant. It is
// recomputed fresh every tick and carries no history.
type State uint8

// Held reports whether the logical key is currently down.
func (s State) Held(k Key) bool {
	return s&(1<<k) != 0
}

func (s State) with(k Key) State {
	return s | (1 << k)
}

// Make builds a State with the given keys held. Used by tests and fakes.
func Make(held ...Key) State {
	var s State
	for _, k := range held {
		s = s.with(k)
	}
	return s
}

// bindings maps each logical key to its physical scancodes. Multiple
// bindings for the same logical key are OR'd together during sampling.
// The set is fixed: this is not an input-remapping framework.
var bindings = map[Key][]sdl.Scancode{
	Throttle:      {sdl.SCANCODE_W, sdl.SCANCODE_UP, sdl.SCANCODE_E},
	Brake:         {sdl.SCANCODE_S, sdl.SCANCODE_DOWN, sdl.SCANCODE_X},
	Left:          {sdl.SCANCODE_A, sdl.SCANCODE_LEFT},
	Right:         {sdl.SCANCODE_D, sdl.SCANCODE_RIGHT},
	Handbrake:     {sdl.SCANCODE_SPACE},
	ReverseToggle: {sdl.SCANCODE_R},
	Quit:          {sdl.SCANCODE_ESCAPE},
}

// Bindings returns the physical scancodes bound to a logical key.
func Bindings(k Key) []sdl.Scancode {
	return bindings[k]
}

// Provider reports the live held state of a physical key. Pressed must be
// non-blocking and callable at 60 Hz or better.
type Provider interface {
	Pressed(code sdl.Scancode) bool
}

// Sampler polls the Provider for the full logical key state.
type Sampler interface {
	Sample() State
}

type sampler struct {
	provider Provider
}

// NewSampler returns a Sampler that resolves the fixed bindings against the
// given provider.
func NewSampler(p Provider) Sampler {
	return &sampler{provider: p}
}

// refresher is implemented by providers that need a poke before a batch of
// reads, e.g. pumping SDL's event queue.
type refresher interface {
	Refresh()
}

// Sample reads the current state of every bound physical key and folds the
// result into a fresh State. It never fails; an unpressed key is a valid,
// common state.
func (s *sampler) Sample() State {
	if r, ok := s.provider.(refresher); ok {
		r.Refresh()
	}
	var out State
	for k := Key(0); k < numKeys; k++ {
		for _, code := range bindings[k] {
			if s.provider.Pressed(code) {
				out = out.with(k)
				break
			}
		}
	}
	return out
}
