package machine

import (
	"errors"
	"fmt"
)

var (
	// ErrPanicked indicates the firmware entered its panic state.
	ErrPanicked = errors.New("firmware panicked")
	// ErrStopped indicates the machine is not running.
	ErrStopped = errors.New("machine stopped")
)

// NoSuchPortError is returned for a port number outside the board.
type NoSuchPortError struct {
	Port int
}

// Error implements error.
func (e *NoSuchPortError) Error() string {
	return fmt.Sprintf("no such port %d", e.Port)
}
