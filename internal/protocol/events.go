package protocol

import "time"

// Live event channels.
const (
	EventPetMoved  = "pet.moved"
	EventDoorPower = "door.power"
)

// EventSink receives live events of a smart home once a reaction has been
// applied.
type EventSink interface {
	Broadcast(channel, customer string, payload any)
}

// PetMoved is published after a passing-by detection moved the pet.
type PetMoved struct {
	Customer  string    `json:"customer"`
	SeqNumber int       `json:"seq_number"`
	FromRoom  string    `json:"from_room"`
	ToRoom    string    `json:"to_room"`
	Corrected bool      `json:"corrected"`
	At        time.Time `json:"at"`
}

// DoorPower is published after a door changed power status.
type DoorPower struct {
	Customer  string    `json:"customer"`
	SeqNumber int       `json:"seq_number"`
	Online    bool      `json:"online"`
	Faults    int       `json:"faults"`
	At        time.Time `json:"at"`
}

func (r *reaction) emit(channel string, payload any) {
	if r.h.events == nil {
		return
	}
	r.h.events.Broadcast(channel, r.t.Customer(), payload)
}
