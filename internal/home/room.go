package home

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/pettracker-core/internal/entity"
	"github.com/nerrad567/pettracker-core/internal/schema"
)

// CreateRoom creates a vacant room. The default room name is reserved.
func (m *Manager) CreateRoom(ctx context.Context, in entity.Input) (*entity.Entity, error) {
	if name, _ := in.Profile[entity.FieldName].(string); name == m.defaultRoomName {
		return nil, fmt.Errorf("%w: %q", ErrReservedName, name)
	}
	in.Data = cloneData(in.Data)
	dropOccupancy(in.Data)
	return m.store.Create(ctx, entity.TypeRoom, in)
}

// UpdateRoom applies patch to a room other than a default room.
//
// Changing denial_status appends a denial_status_change measurement whose
// value is how long the previous state lasted, then republishes the denial
// settings of the room's smart home.
func (m *Manager) UpdateRoom(ctx context.Context, id string, patch entity.Patch) (*entity.Entity, error) {
	if name, _ := patch.Profile[entity.FieldName].(string); name == m.defaultRoomName {
		return nil, fmt.Errorf("%w: %q", ErrReservedName, name)
	}

	home, unlock, err := m.lockOwner(ctx, entity.FieldRooms, id)
	if err != nil {
		return nil, err
	}
	updated, changed, err := m.updateRoom(ctx, id, patch)
	unlock()
	if err != nil {
		return nil, err
	}

	if changed && home != nil {
		if err := m.apply(ctx, home.ProfileString(entity.FieldUser), effects{denial: true}); err != nil {
			return nil, err
		}
	}
	return updated, nil
}

func (m *Manager) updateRoom(ctx context.Context, id string, patch entity.Patch) (*entity.Entity, bool, error) {
	current, err := m.store.Get(ctx, entity.TypeRoom, id)
	if err != nil {
		return nil, false, err
	}
	isDefault, err := m.isDefaultRoom(ctx, current)
	if err != nil {
		return nil, false, err
	}
	if isDefault {
		return nil, false, ErrDefaultRoomImmutable
	}

	data := cloneData(patch.Data)
	dropMeasurements(data, current)
	dropOccupancy(data)

	denied, isBool := data[entity.FieldDenial].(bool)
	changed := isBool && denied != current.Bool(entity.FieldDenial)
	if changed {
		delete(data, entity.FieldDenial)
	}

	updated := current
	if len(patch.Profile) > 0 || len(data) > 0 {
		if updated, err = m.store.Update(ctx, entity.TypeRoom, id, entity.Patch{Profile: patch.Profile, Data: data}); err != nil {
			return nil, false, err
		}
	}
	if !changed {
		return updated, false, nil
	}

	now := m.now()
	updated, err = m.store.AppendMeasurement(ctx, entity.TypeRoom, id,
		entity.Measurement{Type: entity.MeasurementDenialChange, Value: stateDuration(current, now), Timestamp: now},
		map[string]any{entity.FieldDenial: denied},
	)
	if err != nil {
		return nil, false, err
	}

	m.logger.Info("room denial changed", "room_id", id, "denial", denied)
	return updated, true, nil
}

// stateDuration returns how long the room's current denial state has
// lasted at now: since the last change, or since creation.
func stateDuration(room *entity.Entity, now time.Time) float64 {
	since := room.Metadata.CreatedAt
	if changes := room.MeasurementsOf(entity.MeasurementDenialChange); len(changes) > 0 {
		since = changes[len(changes)-1].Timestamp
	}
	if !now.After(since) {
		return 0
	}
	return now.Sub(since).Seconds()
}

// isDefaultRoom reports whether room is the default room of a smart home.
func (m *Manager) isDefaultRoom(ctx context.Context, room *entity.Entity) (bool, error) {
	if room.Name() == m.defaultRoomName {
		return true, nil
	}
	homes, err := m.store.Query(ctx, entity.TypeSmartHome,
		entity.Where(schema.SectionData, entity.FieldDefaultRoom, room.ID))
	if err != nil {
		return false, err
	}
	return len(homes) > 0, nil
}

// DeleteRoom deletes a room no door and no smart home refers to. Default
// rooms go with their smart home only.
func (m *Manager) DeleteRoom(ctx context.Context, id string) error {
	room, err := m.store.Get(ctx, entity.TypeRoom, id)
	if err != nil {
		return err
	}
	isDefault, err := m.isDefaultRoom(ctx, room)
	if err != nil {
		return err
	}
	if isDefault {
		return ErrDefaultRoomImmutable
	}

	doors, err := m.doorsReferencing(ctx, id)
	if err != nil {
		return err
	}
	if len(doors) > 0 {
		return fmt.Errorf("%w: room is associated with %d door(s)", entity.ErrReferenced, len(doors))
	}
	homes, err := m.owners(ctx, entity.FieldRooms, id)
	if err != nil {
		return err
	}
	if len(homes) > 0 {
		return fmt.Errorf("%w: room belongs to smart home %s", entity.ErrReferenced, homes[0].ID)
	}

	if err := m.store.Delete(ctx, entity.TypeRoom, id); err != nil {
		return err
	}
	m.logger.Info("room deleted", "room_id", id)
	return nil
}
