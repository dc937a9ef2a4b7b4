package keys

import (
	"fmt"

	"github.com/veandco/go-sdl2/sdl"
)

// SDLProvider reads live keyboard state through SDL. SDL delivers keyboard
// input to the focused window, so the provider owns a small input window;
// the simulator renders in its own process and does not need ours.
type SDLProvider struct {
	window *sdl.Window
	state  []uint8
}

// NewSDLProvider initializes SDL's video/event subsystems and opens the
// input window.
func NewSDLProvider() (*SDLProvider, error) {
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return nil, fmt.Errorf("sdl init: %w", err)
	}

	window, err := sdl.CreateWindow(
		"teledrive input",
		sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		320, 180,
		sdl.WINDOW_SHOWN|sdl.WINDOW_ALWAYS_ON_TOP,
	)
	if err != nil {
		sdl.Quit()
		return nil, fmt.Errorf("sdl create window: %w", err)
	}

	return &SDLProvider{
		window: window,
		state:  sdl.GetKeyboardState(),
	}, nil
}

// Refresh pumps SDL's event queue so the keyboard state array reflects the
// keys held right now. Called once per sample batch.
func (p *SDLProvider) Refresh() {
	sdl.PumpEvents()
}

// Pressed reports whether the scancode is down in the current snapshot. The
// state array is owned by SDL and read in place, so this never blocks.
func (p *SDLProvider) Pressed(code sdl.Scancode) bool {
	return int(code) < len(p.state) && p.state[code] != 0
}

// Close destroys the input window and shuts SDL down.
func (p *SDLProvider) Close() error {
	if p.window != nil {
		if err := p.window.Destroy(); err != nil {
			return err
		}
		p.window = nil
	}
	sdl.Quit()
	return nil
}
