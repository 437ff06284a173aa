package twin

import "errors"

// Domain errors for the twin package.
var (
	// ErrReleased is returned when a released twin is used.
	ErrReleased = errors.New("twin: released")
)
