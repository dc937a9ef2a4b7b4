package sim

import (
	"errors"
	"fmt"
)

// ErrNotReady is returned by Client.World while the backend accepted the
// connection but has not finished loading its world yet.
var ErrNotReady = errors.New("simulator world not ready")

// TickError reports a synchronous step that was never acknowledged.
// The drive loop treats it as fatal.
type TickError struct {
	Frame uint64 // last acknowledged frame
	Err   error
}

func (e *TickError) Error() string {
	return fmt.Sprintf("tick not acknowledged after frame %d: %v", e.Frame, e.Err)
}

func (e *TickError) Unwrap() error { return e.Err }
