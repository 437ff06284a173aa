package entity

import (
	"testing"
	"time"
)

func TestEntityAccessors(t *testing.T) {
	e := &Entity{
		Profile: map[string]any{FieldName: "Hall", FieldSeqNumber: float64(7)},
		Data: map[string]any{
			FieldPowerStatus:  true,
			FieldEntryRoom:    "r1",
			FieldRooms:        []any{"a", 3, "b"},
			FieldLastAccessed: "2026-03-01T10:00:00Z",
			FieldMeasurements: []any{
				map[string]any{"type": MeasurementExit, "value": 1.0, "timestamp": "2026-03-01T10:00:00Z"},
				map[string]any{"type": MeasurementEntry, "value": 1.0, "timestamp": "2026-03-01T09:00:00Z"},
				map[string]any{"type": MeasurementEntry, "value": "broken", "timestamp": "2026-03-01T08:00:00Z"},
				"not a map",
			},
		},
	}

	if !e.Bool(FieldPowerStatus) || e.Bool(FieldDenial) {
		t.Error("Bool() mismatch")
	}
	if e.String(FieldEntryRoom) != "r1" || e.String(FieldExitRoom) != "" {
		t.Error("String() mismatch")
	}
	if got := e.Strings(FieldRooms); len(got) != 2 || got[1] != "b" {
		t.Errorf("Strings() = %v, want [a b]", got)
	}
	if got := e.Strings(FieldDevices); got == nil || len(got) != 0 {
		t.Errorf("Strings(absent) = %#v, want empty non-nil", got)
	}
	if seq, ok := e.ProfileInt(FieldSeqNumber); !ok || seq != 7 {
		t.Errorf("ProfileInt() = %d, %v, want 7", seq, ok)
	}
	if at, ok := e.Time(FieldLastAccessed); !ok || at.Hour() != 10 {
		t.Errorf("Time() = %v, %v", at, ok)
	}

	if got := e.Measurements(); len(got) != 2 {
		t.Errorf("Measurements() = %d entries, want 2 readable", len(got))
	}
	entries := e.MeasurementsOf(MeasurementEntry)
	if len(entries) != 1 || entries[0].Timestamp.Hour() != 9 {
		t.Errorf("MeasurementsOf(entry) = %+v", entries)
	}
}

func TestEntityClone(t *testing.T) {
	e := &Entity{
		ID:      "d1",
		Profile: map[string]any{FieldName: "Hall"},
		Data:    map[string]any{FieldRooms: []any{"a"}, FieldMeasurements: []any{map[string]any{"type": "x"}}},
	}

	c := e.Clone()
	c.Profile[FieldName] = "Changed"
	c.Data[FieldRooms].([]any)[0] = "z"
	c.Data[FieldMeasurements].([]any)[0].(map[string]any)["type"] = "y"

	if e.Name() != "Hall" {
		t.Error("Clone() shares profile")
	}
	if e.Strings(FieldRooms)[0] != "a" {
		t.Error("Clone() shares lists")
	}
	if e.Data[FieldMeasurements].([]any)[0].(map[string]any)["type"] != "x" {
		t.Error("Clone() shares measurement maps")
	}
}

func TestMeasurementMap(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.FixedZone("CET", 3600))
	m := Measurement{Type: MeasurementPetAccess, Value: 60, Timestamp: at}.Map()

	if m["timestamp"] != "2026-03-01T08:00:00Z" {
		t.Errorf("timestamp = %v, want UTC", m["timestamp"])
	}
	if m["value"] != 60.0 {
		t.Errorf("value = %v, want 60", m["value"])
	}
}

func TestContains(t *testing.T) {
	if !Contains([]string{"a", "b"}, "b") || Contains(nil, "a") {
		t.Error("Contains() mismatch")
	}
}
