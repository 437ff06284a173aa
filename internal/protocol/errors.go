package protocol

import (
	"errors"

	"github.com/nerrad567/pettracker-core/internal/service"
)

// Domain errors for the protocol package.
var (
	// ErrMalformedPayload is returned when a telemetry payload is missing
	// keys or carries unexpected values. Nothing is mutated.
	ErrMalformedPayload = errors.New("protocol: malformed payload")

	// ErrUnknownDevice is returned when no door of the smart home has the
	// sequence number named in the topic.
	ErrUnknownDevice = errors.New("protocol: unknown device")

	// ErrUnknownRoom is returned when a door points at a room that is not
	// part of its smart home.
	ErrUnknownRoom = errors.New("protocol: door references unknown room")

	// ErrMissingDependency is returned by NewHandler when a required
	// collaborator is nil.
	ErrMissingDependency = errors.New("protocol: missing dependency")
)

// consistencyKind classifies errors that signal corrupted smart home data.
// It returns "" for every other error.
func consistencyKind(err error) string {
	switch {
	case errors.Is(err, service.ErrMultipleOccupancy):
		return "multiple_occupancy"
	case errors.Is(err, service.ErrDefaultRoom):
		return "default_room"
	case errors.Is(err, ErrUnknownRoom):
		return "unknown_room"
	default:
		return ""
	}
}
