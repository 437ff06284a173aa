package protocol

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/pettracker-core/internal/audit"
	"github.com/nerrad567/pettracker-core/internal/entity"
	"github.com/nerrad567/pettracker-core/internal/twin"
)

// reaction is the state of one protocol reaction: the twin it works on and
// the instant it happens at. Every write goes through the store and is
// synced back into the twin so later steps see it.
type reaction struct {
	h    *Handler
	ctx  context.Context
	t    *twin.Twin
	now  time.Time
	door *entity.Entity
}

// update writes a data patch and refreshes the twin's copy.
func (r *reaction) update(entityType, id string, data map[string]any) (*entity.Entity, error) {
	updated, err := r.h.store.Update(r.ctx, entityType, id, entity.DataPatch(data))
	if err != nil {
		return nil, fmt.Errorf("updating %s %s: %w", entityType, id, err)
	}
	if err := r.t.Sync(updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// appendMeasurement appends m together with extra data fields, refreshes
// the twin's copy and exports the measurement.
func (r *reaction) appendMeasurement(entityType, id string, m entity.Measurement, extra map[string]any) (*entity.Entity, error) {
	updated, err := r.h.store.AppendMeasurement(r.ctx, entityType, id, m, extra)
	if err != nil {
		return nil, fmt.Errorf("appending %s measurement to %s %s: %w", m.Type, entityType, id, err)
	}
	if err := r.t.Sync(updated); err != nil {
		return nil, err
	}
	if r.h.sink != nil {
		r.h.sink.WriteMeasurement(r.t.Customer(), entityType, id, m.Type, m.Value, m.Timestamp)
	}
	return updated, nil
}

// room returns the twin's copy of a room of the smart home.
func (r *reaction) room(id string) (*entity.Entity, error) {
	room, ok := r.t.Entity(id)
	if !ok || room.Type != entity.TypeRoom {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRoom, id)
	}
	return room, nil
}

// home returns the twin's copy of the smart home.
func (r *reaction) home() (*entity.Entity, error) {
	home := r.t.SmartHome()
	if home == nil {
		return nil, fmt.Errorf("%w: smart home of %q", entity.ErrNotFound, r.t.Customer())
	}
	return home, nil
}

// vacate marks a room empty and records how long the pet stayed.
func (r *reaction) vacate(roomID string) error {
	room, err := r.room(roomID)
	if err != nil {
		return err
	}

	var stay float64
	if last, ok := room.Time(entity.FieldLastAccessed); ok && r.now.After(last) {
		stay = r.now.Sub(last).Seconds()
	}

	_, err = r.appendMeasurement(entity.TypeRoom, roomID,
		entity.Measurement{Type: entity.MeasurementPetAccess, Value: stay, Timestamp: r.now},
		map[string]any{entity.FieldVacancy: true},
	)
	return err
}

// occupy marks a room as the pet's current room.
func (r *reaction) occupy(roomID string) error {
	if _, err := r.room(roomID); err != nil {
		return err
	}
	_, err := r.update(entity.TypeRoom, roomID, map[string]any{
		entity.FieldVacancy:      false,
		entity.FieldLastAccessed: r.now,
	})
	return err
}

// notify sends a message to the smart home's chat. Failures are logged.
func (r *reaction) notify(message string) {
	home := r.t.SmartHome()
	to := addressee(home)
	if to == "" {
		r.h.logger.Debug("notification skipped, no chat", "customer", r.t.Customer(), "message", message)
		return
	}
	if err := r.h.notifier.Notify(r.ctx, to, message); err != nil {
		r.h.logger.Warn("notification failed", "customer", r.t.Customer(), "error", err)
	}
}

// record appends an entry to the audit trail. A failed write is logged
// and does not undo the reaction.
func (r *reaction) record(action, entityType, id string, details map[string]any) {
	if r.h.audit == nil {
		return
	}
	err := r.h.audit.Create(r.ctx, &audit.Entry{
		Action:     action,
		EntityType: entityType,
		EntityID:   id,
		Customer:   r.t.Customer(),
		Source:     audit.SourceTelemetry,
		Details:    details,
		CreatedAt:  r.now,
	})
	if err != nil {
		r.h.logger.Warn("audit write failed", "customer", r.t.Customer(), "action", action, "error", err)
	}
}

// seq returns the door's sequence number.
func seq(door *entity.Entity) int {
	n, _ := door.ProfileInt(entity.FieldSeqNumber)
	return int(n)
}

// petName returns the pet's name or a generic one.
func petName(home *entity.Entity) string {
	if home != nil {
		if name := home.ProfileString(entity.FieldPetName); name != "" {
			return name
		}
	}
	return "pet"
}
