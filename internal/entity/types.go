package entity

import (
	"time"

	"github.com/google/uuid"
)

// Entity types managed by the store.
const (
	TypeDoor      = "door"
	TypeRoom      = "room"
	TypeSmartHome = "smart_home"
)

// Profile field names.
const (
	FieldName        = "name"
	FieldDescription = "description"
	FieldSeqNumber   = "seq_number"
	FieldUser        = "user"
	FieldChatID      = "chat_id"
	FieldPetName     = "pet_name"
	FieldAddress     = "address"
)

// Data field names shared by the services and the protocol.
const (
	FieldMeasurements = "measurements"

	// Door.
	FieldPowerStatus       = "power_status"
	FieldPowerSavingMode   = "power_saving_mode_status"
	FieldEntryRoom         = "entry_side_room_id"
	FieldExitRoom          = "exit_side_room_id"
	FieldOverrideEntryRoom = "override_entry_side_room_id"
	FieldOverrideExitRoom  = "override_exit_side_room_id"

	// Room.
	FieldVacancy      = "vacancy_status"
	FieldDenial       = "denial_status"
	FieldLastAccessed = "last_time_accessed"

	// Smart home.
	FieldFaultStatus       = "fault_status"
	FieldGlobalPowerSaving = "power_saving_status"
	FieldDefaultRoom       = "default_room_id"
	FieldRooms             = "list_of_rooms"
	FieldDevices           = "list_of_devices"
)

// Measurement kinds.
const (
	MeasurementEntry        = "entry"
	MeasurementExit         = "exit"
	MeasurementPetAccess    = "pet_access"
	MeasurementDenialChange = "denial_status_change"
)

// Entity is a Digital Replica: a schema-validated record of a door, room or
// smart home. Profile holds identity attributes, Data the operational state.
//
// Values read back from storage follow encoding/json typing: numbers are
// float64 and lists []any. Use the accessor methods rather than type
// assertions.
type Entity struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Profile  map[string]any `json:"profile"`
	Data     map[string]any `json:"data"`
	Metadata Metadata       `json:"metadata"`
}

// Metadata carries bookkeeping timestamps stamped by the store.
type Metadata struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Input is the initial content of a new entity.
type Input struct {
	Profile map[string]any `json:"profile"`
	Data    map[string]any `json:"data"`
}

// Patch is a partial update. Keys present replace the stored value; list
// fields are replaced whole, never merged.
type Patch struct {
	Profile map[string]any `json:"profile,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// DataPatch builds a Patch touching only data fields.
func DataPatch(data map[string]any) Patch {
	return Patch{Data: data}
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return len(p.Profile) == 0 && len(p.Data) == 0
}

// Measurement is the typed view of one entry of data.measurements.
type Measurement struct {
	Type      string    `json:"type"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// GenerateID creates a new UUID for an entity.
func GenerateID() string {
	return uuid.New().String()
}
