package home

import "errors"

// Domain errors for the home package. Blocked deletions wrap
// entity.ErrReferenced.
var (
	// ErrDefaultRoomImmutable is returned when a user edits or deletes a
	// smart home's default room.
	ErrDefaultRoomImmutable = errors.New("home: default room cannot be modified")

	// ErrReservedName is returned when a room would take the default
	// room's name.
	ErrReservedName = errors.New("home: room name is reserved")

	// ErrSeqNumberTaken is returned when two doors of one smart home share
	// a sequence number.
	ErrSeqNumberTaken = errors.New("home: sequence number already used in smart home")

	// ErrForeignRoom is returned when a door of a smart home is associated
	// with a room outside it.
	ErrForeignRoom = errors.New("home: room does not belong to the smart home")

	// ErrMissingDependency is returned by NewManager when a required
	// collaborator is nil.
	ErrMissingDependency = errors.New("home: missing dependency")
)
