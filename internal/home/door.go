package home

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/pettracker-core/internal/entity"
)

// associationFields are the door fields naming a room.
var associationFields = []string{
	entity.FieldEntryRoom,
	entity.FieldExitRoom,
	entity.FieldOverrideEntryRoom,
	entity.FieldOverrideExitRoom,
}

// mirrored pairs each normal association with its override.
var mirrored = [][2]string{
	{entity.FieldEntryRoom, entity.FieldOverrideEntryRoom},
	{entity.FieldExitRoom, entity.FieldOverrideExitRoom},
}

// mirrorAssociations copies each association onto its counterpart so user
// edits apply to both pairs. When both are given the normal one wins.
func mirrorAssociations(data map[string]any) {
	for _, pair := range mirrored {
		normal, override := pair[0], pair[1]
		if v, ok := data[normal]; ok {
			data[override] = v
		} else if v, ok := data[override]; ok {
			data[normal] = v
		}
	}
}

// CreateDoor creates a door. Normal and override associations given in in
// are mirrored.
func (m *Manager) CreateDoor(ctx context.Context, in entity.Input) (*entity.Entity, error) {
	data := cloneData(in.Data)
	mirrorAssociations(data)
	if err := m.checkRooms(ctx, nil, data); err != nil {
		return nil, err
	}
	return m.store.Create(ctx, entity.TypeDoor, entity.Input{Profile: in.Profile, Data: data})
}

// UpdateDoor applies patch to a door. Associations are mirrored and must
// name rooms of the door's smart home; the smart home's settings are
// republished when they change.
func (m *Manager) UpdateDoor(ctx context.Context, id string, patch entity.Patch) (*entity.Entity, error) {
	home, unlock, err := m.lockOwner(ctx, entity.FieldDevices, id)
	if err != nil {
		return nil, err
	}
	updated, eff, err := m.updateDoor(ctx, home, id, patch)
	unlock()
	if err != nil {
		return nil, err
	}

	if home != nil {
		if err := m.apply(ctx, home.ProfileString(entity.FieldUser), eff); err != nil {
			return nil, err
		}
	}
	return updated, nil
}

func (m *Manager) updateDoor(ctx context.Context, home *entity.Entity, id string, patch entity.Patch) (*entity.Entity, effects, error) {
	var eff effects

	current, err := m.store.Get(ctx, entity.TypeDoor, id)
	if err != nil {
		return nil, eff, err
	}

	data := cloneData(patch.Data)
	dropMeasurements(data, current)
	mirrorAssociations(data)

	if home != nil {
		// Re-read under the lock.
		if home, err = m.store.Get(ctx, entity.TypeSmartHome, home.ID); err != nil {
			return nil, eff, err
		}
		if seq, ok := patch.Profile[entity.FieldSeqNumber]; ok {
			if err := m.checkSeqFree(ctx, home, id, seq); err != nil {
				return nil, eff, err
			}
		}
	}
	if err := m.checkRooms(ctx, home, data); err != nil {
		return nil, eff, err
	}

	updated, err := m.store.Update(ctx, entity.TypeDoor, id, entity.Patch{Profile: patch.Profile, Data: data})
	if err != nil {
		return nil, eff, err
	}

	for _, field := range associationFields {
		if _, ok := data[field]; ok {
			eff.denial = true
		}
	}
	if _, ok := data[entity.FieldPowerSavingMode]; ok {
		eff.powerSaving = true
	}
	if _, ok := patch.Profile[entity.FieldSeqNumber]; ok {
		eff.denial, eff.powerSaving = true, true
	}
	return updated, eff, nil
}

// checkRooms verifies the rooms named by association fields in data. For a
// door of a smart home they must be listed by it; otherwise they must exist.
func (m *Manager) checkRooms(ctx context.Context, home *entity.Entity, data map[string]any) error {
	for _, field := range associationFields {
		roomID, ok := data[field].(string)
		if !ok {
			continue
		}
		if home != nil {
			if !entity.Contains(home.Strings(entity.FieldRooms), roomID) {
				return fmt.Errorf("%w: %s %q", ErrForeignRoom, field, roomID)
			}
			continue
		}
		if _, err := m.store.Get(ctx, entity.TypeRoom, roomID); err != nil {
			return fmt.Errorf("%s %q: %w", field, roomID, err)
		}
	}
	return nil
}

// checkSeqFree fails when another door of home uses seq.
func (m *Manager) checkSeqFree(ctx context.Context, home *entity.Entity, doorID string, seq any) error {
	want, ok := toInt(seq)
	if !ok {
		// Left to schema validation.
		return nil
	}
	for _, id := range home.Strings(entity.FieldDevices) {
		if id == doorID {
			continue
		}
		door, err := m.store.Get(ctx, entity.TypeDoor, id)
		if err != nil {
			return fmt.Errorf("door %s: %w", id, err)
		}
		if n, ok := door.ProfileInt(entity.FieldSeqNumber); ok && n == want {
			return fmt.Errorf("%w: %d is used by door %s", ErrSeqNumberTaken, want, id)
		}
	}
	return nil
}

// DeleteDoor deletes a door no smart home lists.
func (m *Manager) DeleteDoor(ctx context.Context, id string) error {
	if _, err := m.store.Get(ctx, entity.TypeDoor, id); err != nil {
		return err
	}
	homes, err := m.owners(ctx, entity.FieldDevices, id)
	if err != nil {
		return err
	}
	if len(homes) > 0 {
		return fmt.Errorf("%w: door belongs to smart home %s", entity.ErrReferenced, homes[0].ID)
	}

	if err := m.store.Delete(ctx, entity.TypeDoor, id); err != nil {
		return err
	}
	m.logger.Info("door deleted", "door_id", id)
	return nil
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int64(n), true
	default:
		return 0, false
	}
}
