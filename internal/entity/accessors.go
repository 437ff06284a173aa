package entity

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/nerrad567/pettracker-core/internal/schema"
)

// Bool returns a boolean data field, false when absent or not a bool.
func (e *Entity) Bool(field string) bool {
	b, _ := e.Data[field].(bool)
	return b
}

// String returns a string data field, "" when absent.
func (e *Entity) String(field string) string {
	s, _ := e.Data[field].(string)
	return s
}

// Strings returns a List[str] data field as a fresh slice.
func (e *Entity) Strings(field string) []string {
	return stringList(e.Data[field])
}

// Time returns a datetime data field.
func (e *Entity) Time(field string) (time.Time, bool) {
	return schema.ParseTime(e.Data[field])
}

// ProfileString returns a string profile field.
func (e *Entity) ProfileString(field string) string {
	s, _ := e.Profile[field].(string)
	return s
}

// ProfileInt returns an integer profile field regardless of how it was decoded.
func (e *Entity) ProfileInt(field string) (int64, bool) {
	return toInt64(e.Profile[field])
}

// Name is the profile name of a door or room.
func (e *Entity) Name() string {
	return e.ProfileString(FieldName)
}

// Measurements returns the typed measurement log in stored order.
// Entries that cannot be read are skipped.
func (e *Entity) Measurements() []Measurement {
	raw, _ := e.Data[FieldMeasurements].([]any)
	out := make([]Measurement, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		kind, _ := m["type"].(string)
		value, ok := toFloat64(m["value"])
		if !ok {
			continue
		}
		at, ok := schema.ParseTime(m["timestamp"])
		if !ok {
			continue
		}
		out = append(out, Measurement{Type: kind, Value: value, Timestamp: at})
	}
	return out
}

// MeasurementsOf returns the measurements of one kind sorted by timestamp.
func (e *Entity) MeasurementsOf(kind string) []Measurement {
	var out []Measurement
	for _, m := range e.Measurements() {
		if m.Type == kind {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// Clone returns a deep copy so a snapshot never aliases store state.
func (e *Entity) Clone() Entity {
	return Entity{
		ID:       e.ID,
		Type:     e.Type,
		Profile:  cloneMap(e.Profile),
		Data:     cloneMap(e.Data),
		Metadata: e.Metadata,
	}
}

// Map renders the measurement the way it is stored in data.measurements.
func (m Measurement) Map() map[string]any {
	return map[string]any{
		"type":      m.Type,
		"value":     m.Value,
		"timestamp": schema.FormatTime(m.Timestamp),
	}
}

// Contains reports whether list holds id.
func Contains(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

func stringList(raw any) []string {
	switch l := raw.(type) {
	case []string:
		return append([]string(nil), l...)
	case []any:
		out := make([]string, 0, len(l))
		for _, v := range l {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return []string{}
}

func toInt64(raw any) (int64, bool) {
	switch n := raw.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

func toFloat64(raw any) (float64, bool) {
	switch n := raw.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	}
	return v
}
