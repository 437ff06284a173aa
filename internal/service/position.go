package service

import (
	"fmt"

	"github.com/nerrad567/pettracker-core/internal/entity"
)

// RetrievePetPosition returns the ID of the only room whose vacancy_status
// is false, or "" when no room is occupied. More than one occupied room is
// reported as ErrMultipleOccupancy.
func RetrievePetPosition(snap Snapshot) (string, error) {
	var occupied []string
	for _, room := range snap.Rooms() {
		if isFalse(&room, entity.FieldVacancy) {
			occupied = append(occupied, room.ID)
		}
	}

	switch len(occupied) {
	case 0:
		return "", nil
	case 1:
		return occupied[0], nil
	}
	return "", fmt.Errorf("%w: rooms %v", ErrMultipleOccupancy, occupied)
}
