package service

import (
	"time"

	"github.com/nerrad567/pettracker-core/internal/entity"
)

const defaultRoom = "Somewhere else"

var t0 = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func room(id, name string, vacant bool) entity.Entity {
	return entity.Entity{
		ID:      id,
		Type:    entity.TypeRoom,
		Profile: map[string]any{entity.FieldName: name},
		Data: map[string]any{
			entity.FieldVacancy:      vacant,
			entity.FieldDenial:       false,
			entity.FieldMeasurements: []any{},
		},
		Metadata: entity.Metadata{CreatedAt: t0, UpdatedAt: t0},
	}
}

func door(id string, online bool, entry, exit, overrideEntry, overrideExit string) entity.Entity {
	return entity.Entity{
		ID:      id,
		Type:    entity.TypeDoor,
		Profile: map[string]any{entity.FieldName: id, entity.FieldSeqNumber: float64(1)},
		Data: map[string]any{
			entity.FieldPowerStatus:       online,
			entity.FieldPowerSavingMode:   false,
			entity.FieldEntryRoom:         entry,
			entity.FieldExitRoom:          exit,
			entity.FieldOverrideEntryRoom: overrideEntry,
			entity.FieldOverrideExitRoom:  overrideExit,
			entity.FieldMeasurements:      []any{},
		},
	}
}

// measure appends a measurement to an entity's log.
func measure(e *entity.Entity, kind string, value float64, at time.Time) {
	list, _ := e.Data[entity.FieldMeasurements].([]any)
	e.Data[entity.FieldMeasurements] = append(list, entity.Measurement{Type: kind, Value: value, Timestamp: at}.Map())
}

func snapshot(entities ...entity.Entity) Snapshot {
	return Snapshot{Entities: entities}
}
