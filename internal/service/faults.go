package service

import (
	"fmt"

	"github.com/nerrad567/pettracker-core/internal/entity"
)

// FindFaults returns the doors whose power_status is false. The result is
// empty, never nil, when every door is online.
func FindFaults(snap Snapshot) []entity.Entity {
	faults := []entity.Entity{}
	for _, door := range snap.Doors() {
		if isFalse(&door, entity.FieldPowerStatus) {
			faults = append(faults, door)
		}
	}
	return faults
}

// RecoveryPlan is the outcome of FaultRecovery: the door patches needed to
// route traffic around the faulted doors.
type RecoveryPlan struct {
	DefaultRoomID string               `json:"default_room_id"`
	Patches       map[string]DoorPatch `json:"patches"`
}

// DoorPatch redirects the override sides of one online door.
// An empty side is left unchanged.
type DoorPatch struct {
	OverrideEntryRoomID string `json:"override_entry_side_room_id,omitempty"`
	OverrideExitRoomID  string `json:"override_exit_side_room_id,omitempty"`

	// PowerSavingMode is proposed true when both resulting sides lead to
	// the same room, so the door can no longer tell entries from exits.
	PowerSavingMode bool `json:"power_saving_mode_status"`
}

// Fields renders the patch as door data fields.
func (p DoorPatch) Fields() map[string]any {
	fields := map[string]any{entity.FieldPowerSavingMode: p.PowerSavingMode}
	if p.OverrideEntryRoomID != "" {
		fields[entity.FieldOverrideEntryRoom] = p.OverrideEntryRoomID
	}
	if p.OverrideExitRoomID != "" {
		fields[entity.FieldOverrideExitRoom] = p.OverrideExitRoomID
	}
	return fields
}

// DefaultRoomID resolves the default room by name. Zero or several matches
// are reported as ErrDefaultRoom.
func DefaultRoomID(snap Snapshot, defaultRoomName string) (string, error) {
	var ids []string
	for _, room := range snap.Rooms() {
		if room.Name() == defaultRoomName {
			ids = append(ids, room.ID)
		}
	}
	if len(ids) != 1 {
		return "", fmt.Errorf("%w: %d rooms named %q", ErrDefaultRoom, len(ids), defaultRoomName)
	}
	return ids[0], nil
}

// FaultRecovery plans how online doors are rerouted around faults, the
// result of FindFaults on the same snapshot.
//
// The rooms behind the override sides of the faulted doors (other than the
// default room) become unreachable through those doors. Every online door
// whose override side points at one of them gets that side redirected to
// the default room. Faulted doors themselves are not part of the plan.
//
// A nil plan means there are no faults. A plan with no patches means the
// faults do not propagate.
func FaultRecovery(snap Snapshot, defaultRoomName string, faults []entity.Entity) (*RecoveryPlan, error) {
	if len(faults) == 0 {
		return nil, nil
	}

	defaultID, err := DefaultRoomID(snap, defaultRoomName)
	if err != nil {
		return nil, err
	}

	faulted := make(map[string]bool, len(faults))
	affected := make(map[string]bool)
	for _, door := range faults {
		faulted[door.ID] = true
		for _, roomID := range []string{
			door.String(entity.FieldOverrideEntryRoom),
			door.String(entity.FieldOverrideExitRoom),
		} {
			if roomID != "" && roomID != defaultID {
				affected[roomID] = true
			}
		}
	}

	plan := &RecoveryPlan{DefaultRoomID: defaultID, Patches: map[string]DoorPatch{}}
	for _, door := range snap.Doors() {
		if faulted[door.ID] {
			continue
		}

		entry := door.String(entity.FieldOverrideEntryRoom)
		exit := door.String(entity.FieldOverrideExitRoom)
		if !affected[entry] && !affected[exit] {
			continue
		}

		var patch DoorPatch
		if affected[entry] {
			entry = defaultID
			patch.OverrideEntryRoomID = defaultID
		}
		if affected[exit] {
			exit = defaultID
			patch.OverrideExitRoomID = defaultID
		}
		patch.PowerSavingMode = entry == exit
		plan.Patches[door.ID] = patch
	}

	return plan, nil
}
