package home

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/pettracker-core/internal/entity"
)

// ListMode selects how list fields of a smart home update are applied.
type ListMode int

const (
	// ListAppend adds the given ids to the stored lists (PATCH).
	ListAppend ListMode = iota

	// ListReplace replaces the stored lists (PUT).
	ListReplace
)

// CreateSmartHome creates a smart home together with its default room. The
// pet starts in the default room. Lists and the default room given in in
// are ignored; rooms and doors are associated with UpdateSmartHome.
//
// If the smart home cannot be stored the default room is removed again.
func (m *Manager) CreateSmartHome(ctx context.Context, in entity.Input) (*entity.Entity, error) {
	room, err := m.store.Create(ctx, entity.TypeRoom, entity.Input{
		Profile: map[string]any{entity.FieldName: m.defaultRoomName},
		Data: map[string]any{
			entity.FieldVacancy:      false,
			entity.FieldDenial:       false,
			entity.FieldLastAccessed: m.now(),
			entity.FieldMeasurements: []any{},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating default room: %w", err)
	}

	data := cloneData(in.Data)
	data[entity.FieldDefaultRoom] = room.ID
	data[entity.FieldRooms] = []string{room.ID}
	data[entity.FieldDevices] = []string{}

	home, err := m.store.Create(ctx, entity.TypeSmartHome, entity.Input{Profile: in.Profile, Data: data})
	if err != nil {
		if delErr := m.store.Delete(ctx, entity.TypeRoom, room.ID); delErr != nil {
			m.logger.Error("removing orphaned default room failed", "room_id", room.ID, "error", delErr)
		}
		return nil, err
	}

	m.logger.Info("smart home created",
		"smart_home_id", home.ID,
		"user", home.ProfileString(entity.FieldUser),
		"default_room_id", room.ID,
	)
	return home, nil
}

// UpdateSmartHome applies patch to a smart home. The default room is never
// changed. In ListAppend mode the ids given for list_of_rooms and
// list_of_devices are added to the stored lists; in ListReplace mode they
// replace them, the default room always staying listed.
//
// Rooms and doors must exist and belong to no other smart home. Doors
// joining the smart home are reset to the default room on both sides with
// power saving on, then every door's settings are republished.
func (m *Manager) UpdateSmartHome(ctx context.Context, id string, patch entity.Patch, mode ListMode) (*entity.Entity, error) {
	current, err := m.store.Get(ctx, entity.TypeSmartHome, id)
	if err != nil {
		return nil, err
	}
	customer := current.ProfileString(entity.FieldUser)

	unlock := m.locks.Lock(customer)
	updated, eff, err := m.updateSmartHome(ctx, id, patch, mode)
	unlock()
	if err != nil {
		return nil, err
	}

	if err := m.apply(ctx, updated.ProfileString(entity.FieldUser), eff); err != nil {
		return nil, err
	}
	return updated, nil
}

func (m *Manager) updateSmartHome(ctx context.Context, id string, patch entity.Patch, mode ListMode) (*entity.Entity, effects, error) {
	var eff effects

	current, err := m.store.Get(ctx, entity.TypeSmartHome, id)
	if err != nil {
		return nil, eff, err
	}
	defaultID := current.String(entity.FieldDefaultRoom)

	data := cloneData(patch.Data)
	delete(data, entity.FieldDefaultRoom)

	if raw, ok := data[entity.FieldRooms]; ok {
		if ids, ok := idList(raw); ok {
			rooms, err := m.resolveRooms(ctx, current, ids, mode)
			if err != nil {
				return nil, eff, err
			}
			data[entity.FieldRooms] = rooms
		}
	}

	var joined []string
	if raw, ok := data[entity.FieldDevices]; ok {
		if ids, ok := idList(raw); ok {
			devices, added, err := m.resolveDevices(ctx, current, ids, mode)
			if err != nil {
				return nil, eff, err
			}
			data[entity.FieldDevices] = devices
			joined = added
		}
	}

	if _, ok := data[entity.FieldGlobalPowerSaving]; ok {
		eff.powerSaving = true
	}

	updated, err := m.store.Update(ctx, entity.TypeSmartHome, id, entity.Patch{Profile: patch.Profile, Data: data})
	if err != nil {
		return nil, eff, err
	}

	for _, doorID := range joined {
		if _, err := m.store.Update(ctx, entity.TypeDoor, doorID, entity.DataPatch(map[string]any{
			entity.FieldPowerSavingMode:   true,
			entity.FieldEntryRoom:         defaultID,
			entity.FieldExitRoom:          defaultID,
			entity.FieldOverrideEntryRoom: defaultID,
			entity.FieldOverrideExitRoom:  defaultID,
		})); err != nil {
			return nil, eff, fmt.Errorf("initializing door %s: %w", doorID, err)
		}
	}
	if len(joined) > 0 {
		eff.denial = true
		eff.powerSaving = true
		m.logger.Info("doors joined smart home", "smart_home_id", id, "doors", joined)
	}

	return updated, eff, nil
}

// resolveRooms computes the new list_of_rooms and checks the rooms joining
// or leaving it.
func (m *Manager) resolveRooms(ctx context.Context, home *entity.Entity, ids []string, mode ListMode) ([]string, error) {
	previous := home.Strings(entity.FieldRooms)
	defaultID := home.String(entity.FieldDefaultRoom)

	var rooms []string
	if mode == ListAppend {
		rooms = union(previous, ids)
	} else {
		rooms = union([]string{defaultID}, ids)
	}

	for _, id := range rooms {
		if entity.Contains(previous, id) {
			continue
		}
		if _, err := m.store.Get(ctx, entity.TypeRoom, id); err != nil {
			return nil, fmt.Errorf("room %s: %w", id, err)
		}
		if err := m.checkUnowned(ctx, home, entity.FieldRooms, id); err != nil {
			return nil, err
		}
	}

	for _, id := range previous {
		if entity.Contains(rooms, id) {
			continue
		}
		doors, err := m.doorsReferencing(ctx, id)
		if err != nil {
			return nil, err
		}
		if len(doors) > 0 {
			return nil, fmt.Errorf("%w: room %s is associated with %d door(s)", entity.ErrReferenced, id, len(doors))
		}
	}
	return rooms, nil
}

// resolveDevices computes the new list_of_devices and returns the doors
// joining the smart home.
func (m *Manager) resolveDevices(ctx context.Context, home *entity.Entity, ids []string, mode ListMode) ([]string, []string, error) {
	previous := home.Strings(entity.FieldDevices)

	var devices []string
	if mode == ListAppend {
		devices = union(previous, ids)
	} else {
		devices = union(nil, ids)
	}

	var added []string
	seqs := make(map[int64]string, len(devices))
	for _, id := range devices {
		door, err := m.store.Get(ctx, entity.TypeDoor, id)
		if err != nil {
			return nil, nil, fmt.Errorf("door %s: %w", id, err)
		}
		seq, _ := door.ProfileInt(entity.FieldSeqNumber)
		if other, taken := seqs[seq]; taken {
			return nil, nil, fmt.Errorf("%w: doors %s and %s both use %d", ErrSeqNumberTaken, other, id, seq)
		}
		seqs[seq] = id

		if entity.Contains(previous, id) {
			continue
		}
		if err := m.checkUnowned(ctx, home, entity.FieldDevices, id); err != nil {
			return nil, nil, err
		}
		added = append(added, id)
	}
	return devices, added, nil
}

// checkUnowned fails when a smart home other than home lists id.
func (m *Manager) checkUnowned(ctx context.Context, home *entity.Entity, listField, id string) error {
	owners, err := m.owners(ctx, listField, id)
	if err != nil {
		return err
	}
	for _, o := range owners {
		if o.ID != home.ID {
			return fmt.Errorf("%w: %s already belongs to smart home %s", entity.ErrReferenced, id, o.ID)
		}
	}
	return nil
}

// DeleteSmartHome deletes a smart home and its default room. It is
// rejected while the smart home lists any other room or any door.
func (m *Manager) DeleteSmartHome(ctx context.Context, id string) error {
	current, err := m.store.Get(ctx, entity.TypeSmartHome, id)
	if err != nil {
		return err
	}
	unlock := m.locks.Lock(current.ProfileString(entity.FieldUser))
	defer unlock()

	if current, err = m.store.Get(ctx, entity.TypeSmartHome, id); err != nil {
		return err
	}
	defaultID := current.String(entity.FieldDefaultRoom)
	for _, roomID := range current.Strings(entity.FieldRooms) {
		if roomID != defaultID {
			return fmt.Errorf("%w: smart home still has rooms", entity.ErrReferenced)
		}
	}
	if n := len(current.Strings(entity.FieldDevices)); n > 0 {
		return fmt.Errorf("%w: smart home still has %d device(s)", entity.ErrReferenced, n)
	}

	if err := m.store.Delete(ctx, entity.TypeSmartHome, id); err != nil {
		return err
	}
	if defaultID != "" {
		if err := m.store.Delete(ctx, entity.TypeRoom, defaultID); err != nil && !errors.Is(err, entity.ErrNotFound) {
			return fmt.Errorf("deleting default room: %w", err)
		}
	}

	m.logger.Info("smart home deleted", "smart_home_id", id)
	return nil
}
