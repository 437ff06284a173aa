package protocol

import (
	"fmt"

	"github.com/nerrad567/pettracker-core/internal/entity"
	"github.com/nerrad567/pettracker-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/pettracker-core/internal/service"
)

// reapplyDenial publishes, for both sides of every door, the denial status
// of the room that side effectively leads to.
func (r *reaction) reapplyDenial() error {
	snap := r.t.Snapshot()
	home, ok := snap.SmartHome()
	if !ok {
		return fmt.Errorf("%w: smart home of %q", entity.ErrNotFound, r.t.Customer())
	}
	degraded := home.Bool(entity.FieldFaultStatus)

	for _, door := range snap.Doors() {
		entry, exit := service.EffectivePair(&door, degraded)
		for _, side := range []struct {
			setting string
			roomID  string
		}{
			{mqtt.SettingDenialEntry, entry},
			{mqtt.SettingDenialExit, exit},
		} {
			room, ok := snap.Find(side.roomID)
			if !ok || room.Type != entity.TypeRoom {
				return fmt.Errorf("%w: door %d %s side points at %q", ErrUnknownRoom, seq(&door), side.setting, side.roomID)
			}
			r.publishDenial(&door, side.setting, room.Bool(entity.FieldDenial))
		}
	}
	return nil
}

// reapplyPowerSaving publishes every door's power saving setting. The
// smart home's global flag wins over the door's own when set.
func (r *reaction) reapplyPowerSaving() error {
	snap := r.t.Snapshot()
	home, ok := snap.SmartHome()
	if !ok {
		return fmt.Errorf("%w: smart home of %q", entity.ErrNotFound, r.t.Customer())
	}
	global := home.Bool(entity.FieldGlobalPowerSaving)

	for _, door := range snap.Doors() {
		r.publishPowerSaving(&door, global || door.Bool(entity.FieldPowerSavingMode))
	}
	return nil
}

func (r *reaction) publishDenial(door *entity.Entity, setting string, denied bool) {
	r.publish(door, setting, denied)
}

func (r *reaction) publishPowerSaving(door *entity.Entity, on bool) {
	r.publish(door, mqtt.SettingPowerSaving, on)
}

// publish sends one retained setting to a door. The broker may be down;
// the next reaction republishes, so failures are only logged.
func (r *reaction) publish(door *entity.Entity, setting string, value bool) {
	topic := r.h.topics.DeviceSetting(r.t.Customer(), mqtt.DefaultDeviceName, seq(door), setting)
	payload, err := encodeSetting(value, r.now)
	if err != nil {
		r.h.logger.Error("encoding setting failed", "topic", topic, "error", err)
		return
	}

	if err := r.h.publisher.Publish(topic, payload, settingQoS, true); err != nil {
		r.h.logger.Warn("setting publish failed", "topic", topic, "error", err)
		return
	}
	r.h.metrics.settingPublished(setting)
	r.h.logger.Debug("setting published", "topic", topic, "value", value)
}
