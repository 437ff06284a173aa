package protocol

import (
	"fmt"

	"github.com/nerrad567/pettracker-core/internal/entity"
	"github.com/nerrad567/pettracker-core/internal/service"
)

// passingBy moves the pet through the reaction's door.
//
// An entry detection means the pet went from the exit side to the entry
// side; an exit detection the other way. While the smart home is degraded
// the override pair is used. When the room the pet left is not the room it
// was believed to be in, the door wins: the believed room is vacated
// instead and the user is told about the mismatch.
func (r *reaction) passingBy(p passingBy) error {
	home, err := r.home()
	if err != nil {
		return err
	}

	entered, exited := service.EffectivePair(r.door, home.Bool(entity.FieldFaultStatus))
	if p.Type == entity.MeasurementExit {
		entered, exited = exited, entered
	}
	if entered == "" || exited == "" {
		return fmt.Errorf("%w: door %d has no room association", ErrUnknownRoom, seq(r.door))
	}
	if _, err := r.room(entered); err != nil {
		return err
	}
	exitedRoom, err := r.room(exited)
	if err != nil {
		return err
	}

	position, err := service.RetrievePetPosition(r.t.Snapshot())
	if err != nil {
		return err
	}

	if position != exited {
		r.h.logger.Warn("pet position mismatch",
			"customer", r.t.Customer(),
			"seq_number", seq(r.door),
			"believed_room", position,
			"exited_room", exited,
		)
		r.notify(fmt.Sprintf("Pet position mismatch: door %d saw your %s leave '%s'. Tracking has been corrected.",
			seq(r.door), petName(home), exitedRoom.Name()))
		if position != "" {
			if err := r.vacate(position); err != nil {
				return err
			}
		}
	} else if err := r.vacate(exited); err != nil {
		return err
	}

	if err := r.occupy(entered); err != nil {
		return err
	}

	if _, err := r.appendMeasurement(entity.TypeDoor, r.door.ID,
		entity.Measurement{Type: p.Type, Value: passingByValue, Timestamp: r.now}, nil); err != nil {
		return err
	}

	room, err := r.room(entered)
	if err != nil {
		return err
	}
	r.h.logger.Info("pet moved",
		"customer", r.t.Customer(),
		"seq_number", seq(r.door),
		"from", exited,
		"to", entered,
	)
	if room.Bool(entity.FieldDenial) {
		r.notify(fmt.Sprintf("Your %s has entered the prohibited room '%s'", petName(home), room.Name()))
	}
	r.emit(EventPetMoved, PetMoved{
		Customer:  r.t.Customer(),
		SeqNumber: seq(r.door),
		FromRoom:  exited,
		ToRoom:    entered,
		Corrected: position != exited,
		At:        r.now,
	})
	return nil
}
