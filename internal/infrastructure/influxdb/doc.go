// Package influxdb exports pet tracker measurements to InfluxDB.
//
// Every measurement the telemetry protocol appends to a room or door
// (pet_access, denial_status_change, entry, exit) is mirrored to the
// pet_events measurement, and room analytics computed on request are written
// to room_stats. The entity store remains the source of truth; the export
// exists for dashboards and long-range queries.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without export
//	}
//	defer client.Close()
//
//	client.WriteMeasurement("alice", "door", doorID, "entry", 1.0, time.Now())
//
// Writes are non-blocking and batched according to batch_size and
// flush_interval; failures arrive on the SetOnError callback.
package influxdb
