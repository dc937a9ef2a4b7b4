package session

import "fmt"

// ConnectionError is returned when no candidate endpoint became ready within
// the retry budget. Reached distinguishes "nothing listening" from "backend
// accepted the connection but its world never became ready", since the two
// need different operator action.
type ConnectionError struct {
	Attempts int
	Reached  bool
	LastErr  error
}

func (e *ConnectionError) Error() string {
	if e.Reached {
		return fmt.Sprintf("simulator reachable but world not ready after %d attempts: %v", e.Attempts, e.LastErr)
	}
	return fmt.Sprintf("no simulator endpoint reachable after %d attempts: %v", e.Attempts, e.LastErr)
}

func (e *ConnectionError) Unwrap() error { return e.LastErr }

// SpawnError is returned when no drivable blueprint could be spawned, after
// the preferred-model fallback and every spawn point were exhausted.
type SpawnError struct {
	Preferred string
	Blueprint string // blueprint that was attempted, empty if none was drivable
	Points    int
}

func (e *SpawnError) Error() string {
	if e.Blueprint == "" {
		return fmt.Sprintf("no drivable blueprint available (preferred %q)", e.Preferred)
	}
	return fmt.Sprintf("failed to spawn %q on any of %d spawn points", e.Blueprint, e.Points)
}
