package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the core.
const (
	// MeasurementEvents holds every room and door measurement appended by the
	// telemetry protocol (pet_access, denial_status_change, entry, exit).
	MeasurementEvents = "pet_events"

	// MeasurementRoomStats holds room analytics snapshots.
	MeasurementRoomStats = "room_stats"
)

// WriteMeasurement exports one entity measurement.
//
// The measurement kind becomes a tag so Flux queries can group by it; the
// write is non-blocking and dropped silently when disconnected.
//
// Example:
//
//	client.WriteMeasurement("alice", "room", roomID, "pet_access", 840, at)
func (c *Client) WriteMeasurement(customer, entityType, entityID, kind string, value float64, at time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		MeasurementEvents,
		map[string]string{
			"customer":    customer,
			"entity_type": entityType,
			"entity_id":   entityID,
			"kind":        kind,
		},
		map[string]interface{}{
			"value": value,
		},
		at,
	)
	c.writeAPI.WritePoint(point)
}

// WriteRoomAnalytics exports the statistics computed for one room.
// fields maps statistic name to value; non-numeric values are skipped.
func (c *Client) WriteRoomAnalytics(customer, roomID, roomName string, fields map[string]any, at time.Time) {
	if !c.IsConnected() {
		return
	}

	numeric := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		switch n := v.(type) {
		case float64, float32, int, int64, int32:
			numeric[k] = n
		}
	}
	if len(numeric) == 0 {
		return
	}

	point := write.NewPoint(
		MeasurementRoomStats,
		map[string]string{
			"customer":  customer,
			"room_id":   roomID,
			"room_name": roomName,
		},
		numeric,
		at,
	)
	c.writeAPI.WritePoint(point)
}
