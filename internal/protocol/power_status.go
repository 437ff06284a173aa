package protocol

import (
	"fmt"
	"sort"

	"github.com/nerrad567/pettracker-core/internal/audit"
	"github.com/nerrad567/pettracker-core/internal/entity"
	"github.com/nerrad567/pettracker-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/pettracker-core/internal/service"
)

// powerStatus records the door's power status and runs the matching
// transition.
func (r *reaction) powerStatus(online bool) error {
	door, err := r.update(entity.TypeDoor, r.door.ID, map[string]any{entity.FieldPowerStatus: online})
	if err != nil {
		return err
	}
	r.door = door

	r.h.logger.Info("door power status changed",
		"customer", r.t.Customer(),
		"seq_number", seq(door),
		"online", online,
	)
	transition := r.offline
	if online {
		transition = r.online
	}
	if err := transition(); err != nil {
		return err
	}

	faults := len(service.FindFaults(r.t.Snapshot()))
	action := audit.ActionDoorOffline
	if online {
		action = audit.ActionDoorOnline
	}
	r.record(action, entity.TypeDoor, door.ID, map[string]any{
		"seq_number": seq(door),
		"faults":     faults,
	})
	r.emit(EventDoorPower, DoorPower{
		Customer:  r.t.Customer(),
		SeqNumber: seq(door),
		Online:    online,
		Faults:    faults,
		At:        r.now,
	})
	return nil
}

// offline degrades the smart home and routes traffic around the door.
func (r *reaction) offline() error {
	failed := r.door
	r.notify(fmt.Sprintf("Device number %d has gone offline", seq(failed)))

	home, err := r.home()
	if err != nil {
		return err
	}
	if home, err = r.update(entity.TypeSmartHome, home.ID, map[string]any{entity.FieldFaultStatus: true}); err != nil {
		return err
	}

	snap := r.t.Snapshot()
	plan, err := service.FaultRecovery(snap, r.h.defaultRoomName, service.FindFaults(snap))
	if err != nil {
		return err
	}
	if plan == nil {
		// Unreachable while the failed door reads offline.
		defaultID, err := service.DefaultRoomID(snap, r.h.defaultRoomName)
		if err != nil {
			return err
		}
		plan = &service.RecoveryPlan{DefaultRoomID: defaultID, Patches: map[string]service.DoorPatch{}}
	}

	global := home.Bool(entity.FieldGlobalPowerSaving)
	ids := make([]string, 0, len(plan.Patches))
	for id := range plan.Patches {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fields := plan.Patches[id].Fields()
		if global {
			// The global flag already forces power saving; keep the
			// door's own preference for when it is lifted.
			door, ok := snap.Find(id)
			if !ok {
				return fmt.Errorf("%w: door %s", entity.ErrNotFound, id)
			}
			fields[entity.FieldPowerSavingMode] = door.Bool(entity.FieldPowerSavingMode)
		}
		if _, err := r.update(entity.TypeDoor, id, fields); err != nil {
			return err
		}
	}

	if err := r.reapplyDenial(); err != nil {
		return err
	}
	if err := r.reapplyPowerSaving(); err != nil {
		return err
	}

	if err := r.relocatePet(plan.DefaultRoomID); err != nil {
		return err
	}

	if r.door, err = r.update(entity.TypeDoor, failed.ID, map[string]any{
		entity.FieldOverrideEntryRoom: plan.DefaultRoomID,
		entity.FieldOverrideExitRoom:  plan.DefaultRoomID,
		entity.FieldPowerSavingMode:   true,
	}); err != nil {
		return err
	}
	r.publishDenial(r.door, mqtt.SettingDenialEntry, false)
	r.publishDenial(r.door, mqtt.SettingDenialExit, false)
	r.publishPowerSaving(r.door, true)

	r.h.logger.Info("fault recovery applied",
		"customer", r.t.Customer(),
		"seq_number", seq(failed),
		"rerouted_doors", len(plan.Patches),
	)
	return nil
}

// relocatePet moves the pet to the default room when the room it is in
// was reachable only through the failed door.
func (r *reaction) relocatePet(defaultRoomID string) error {
	position, err := service.RetrievePetPosition(r.t.Snapshot())
	if err != nil {
		return err
	}
	if position == "" || position == defaultRoomID {
		return nil
	}

	failed, ok := r.t.Entity(r.door.ID)
	if !ok {
		return fmt.Errorf("%w: door %s", entity.ErrNotFound, r.door.ID)
	}
	entry, exit := service.EffectivePair(failed, true)
	if entry != position && exit != position {
		return nil
	}

	r.h.logger.Info("pet relocated to default room",
		"customer", r.t.Customer(),
		"from", position,
	)
	if err := r.vacate(position); err != nil {
		return err
	}
	return r.occupy(defaultRoomID)
}

// online clears the degraded state once no door is faulted any more.
func (r *reaction) online() error {
	faults := service.FindFaults(r.t.Snapshot())
	if len(faults) > 0 {
		r.notify(fmt.Sprintf("Device number %d is back online, but %d device(s) are still offline",
			seq(r.door), len(faults)))
		return nil
	}

	home, err := r.home()
	if err != nil {
		return err
	}
	if home, err = r.update(entity.TypeSmartHome, home.ID, map[string]any{entity.FieldFaultStatus: false}); err != nil {
		return err
	}

	doors := r.t.Snapshot().Doors()
	for i := range doors {
		entry, exit := service.EffectivePair(&doors[i], false)
		if _, err := r.update(entity.TypeDoor, doors[i].ID, map[string]any{
			entity.FieldOverrideEntryRoom: entry,
			entity.FieldOverrideExitRoom:  exit,
		}); err != nil {
			return err
		}
	}

	if err := r.reapplyDenial(); err != nil {
		return err
	}

	if home.Bool(entity.FieldGlobalPowerSaving) {
		r.notify("All devices are back online, but global power saving is still active")
		return nil
	}

	for _, door := range r.t.Snapshot().Doors() {
		entry, exit := service.EffectivePair(&door, false)
		if entry == exit {
			continue
		}
		updated, err := r.update(entity.TypeDoor, door.ID, map[string]any{entity.FieldPowerSavingMode: false})
		if err != nil {
			return err
		}
		r.publishPowerSaving(updated, false)
	}
	r.notify("All devices are back online, pet tracking is active again")
	return nil
}
