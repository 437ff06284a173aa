package service

import (
	"github.com/nerrad567/pettracker-core/internal/entity"
)

// Snapshot is the entity set of one twin, handed to every service.
// Services only read it.
type Snapshot struct {
	Entities []entity.Entity `json:"entities"`
}

// OfType returns the entities of one type in snapshot order.
func (s Snapshot) OfType(entityType string) []entity.Entity {
	out := []entity.Entity{}
	for _, e := range s.Entities {
		if e.Type == entityType {
			out = append(out, e)
		}
	}
	return out
}

// Rooms returns the room entities.
func (s Snapshot) Rooms() []entity.Entity {
	return s.OfType(entity.TypeRoom)
}

// Doors returns the door entities.
func (s Snapshot) Doors() []entity.Entity {
	return s.OfType(entity.TypeDoor)
}

// SmartHome returns the first smart home in the snapshot.
func (s Snapshot) SmartHome() (*entity.Entity, bool) {
	for i := range s.Entities {
		if s.Entities[i].Type == entity.TypeSmartHome {
			return &s.Entities[i], true
		}
	}
	return nil, false
}

// Find returns the entity with the given ID.
func (s Snapshot) Find(id string) (*entity.Entity, bool) {
	for i := range s.Entities {
		if s.Entities[i].ID == id {
			return &s.Entities[i], true
		}
	}
	return nil, false
}

// EffectivePair returns the rooms a door currently separates: the override
// pair while the smart home is degraded, the normal pair otherwise.
func EffectivePair(door *entity.Entity, degraded bool) (entry, exit string) {
	if degraded {
		return door.String(entity.FieldOverrideEntryRoom), door.String(entity.FieldOverrideExitRoom)
	}
	return door.String(entity.FieldEntryRoom), door.String(entity.FieldExitRoom)
}

// isFalse reports whether a boolean data field is present and false.
// Absent fields never count as false.
func isFalse(e *entity.Entity, field string) bool {
	v, ok := e.Data[field].(bool)
	return ok && !v
}
