package service

import "errors"

// Domain errors for the service package.
//
// ErrMultipleOccupancy and ErrDefaultRoom signal corrupted data. Callers must
// propagate them, never swallow them.
var (
	// ErrMultipleOccupancy is returned when more than one room is occupied.
	ErrMultipleOccupancy = errors.New("service: multiple occupancy")

	// ErrDefaultRoom is returned when a snapshot does not hold exactly one
	// default room.
	ErrDefaultRoom = errors.New("service: default room is not unique")

	// ErrUnknownService is returned when executing an unregistered service.
	ErrUnknownService = errors.New("service: unknown service")

	// ErrServiceExists is returned when registering a name twice.
	ErrServiceExists = errors.New("service: already registered")

	// ErrUnsupportedTarget is returned when a service cannot work on the
	// requested entity type.
	ErrUnsupportedTarget = errors.New("service: unsupported target type")
)
