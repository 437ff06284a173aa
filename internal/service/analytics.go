package service

import (
	"sort"
	"time"

	"github.com/nerrad567/pettracker-core/internal/entity"
)

// RoomStats are the per-room figures computed by RoomAnalytics.
// Durations are in seconds.
type RoomStats struct {
	Name                string     `json:"name"`
	TimePetInside       float64    `json:"tot_time_pet_inside"`
	Entries             int        `json:"num_of_times_it_entered_that_room"`
	LastAccess          *time.Time `json:"last_time_timestamp"`
	TimeDenied          float64    `json:"total_time_room_denial"`
	TimePetInsideDenied float64    `json:"total_time_pet_inside_while_room_denial_was_active"`
}

// interval is a closed stretch of time.
type interval struct {
	start, end time.Time
}

func (iv interval) seconds() float64 {
	return iv.end.Sub(iv.start).Seconds()
}

// RoomAnalytics computes RoomStats for every room in the snapshot, keyed by
// room ID. now closes a denial period that is still active.
//
// Measurements close the period they describe: a pet_access record at T with
// value V covers [T-V, T], and so does a denial_status_change record for
// the state it ends. Rooms start with denial off, so every second change
// closes a denial period.
func RoomAnalytics(snap Snapshot, now time.Time) map[string]RoomStats {
	stats := make(map[string]RoomStats)
	for _, room := range snap.Rooms() {
		stats[room.ID] = roomStats(&room, now)
	}
	return stats
}

func roomStats(room *entity.Entity, now time.Time) RoomStats {
	st := RoomStats{Name: room.Name()}
	if len(room.Measurements()) == 0 {
		return st
	}

	accesses := room.MeasurementsOf(entity.MeasurementPetAccess)
	occupancy := make([]interval, 0, len(accesses))
	for _, m := range accesses {
		st.TimePetInside += m.Value
		occupancy = append(occupancy, closedBy(m))
	}

	st.Entries = len(accesses)
	if isFalse(room, entity.FieldVacancy) {
		st.Entries++
	}
	if at, ok := room.Time(entity.FieldLastAccessed); ok {
		st.LastAccess = &at
	}

	denial := denialIntervals(room, now)
	for _, iv := range denial {
		st.TimeDenied += iv.seconds()
	}

	st.TimePetInsideDenied = overlap(normalize(occupancy), normalize(denial))
	return st
}

// denialIntervals rebuilds the periods the room spent in denial from its
// change log. The current state and the parity of the change count give the
// state at creation, which tells which records close a denial period.
func denialIntervals(room *entity.Entity, now time.Time) []interval {
	changes := room.MeasurementsOf(entity.MeasurementDenialChange)
	active := room.Bool(entity.FieldDenial)

	startedDenied := active == (len(changes)%2 == 0)
	var out []interval
	for i, m := range changes {
		closesDenial := i%2 == 1
		if startedDenied {
			closesDenial = i%2 == 0
		}
		if closesDenial {
			out = append(out, closedBy(m))
		}
	}

	if active {
		since := room.Metadata.CreatedAt
		if len(changes) > 0 {
			since = changes[len(changes)-1].Timestamp
		}
		if now.After(since) {
			out = append(out, interval{start: since, end: now})
		}
	}
	return out
}

func closedBy(m entity.Measurement) interval {
	d := time.Duration(m.Value * float64(time.Second))
	if d < 0 {
		d = 0
	}
	return interval{start: m.Timestamp.Add(-d), end: m.Timestamp}
}

// normalize sorts intervals by start and merges the ones that overlap, so
// each list covers any instant at most once.
func normalize(ivs []interval) []interval {
	if len(ivs) == 0 {
		return nil
	}
	sorted := append([]interval(nil), ivs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].start.Before(sorted[j].start) })

	out := []interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &out[len(out)-1]
		if !iv.start.After(last.end) {
			if iv.end.After(last.end) {
				last.end = iv.end
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}

// overlap sweeps two sorted, disjoint interval lists with two cursors and
// sums the length of their intersection. The cursor whose interval ends
// first advances.
func overlap(occupancy, denial []interval) float64 {
	var total float64
	i, j := 0, 0
	for i < len(occupancy) && j < len(denial) {
		o, d := occupancy[i], denial[j]

		switch {
		case d.end.Before(o.start):
			// Denial over before the stay began.
			j++
		case d.start.After(o.end):
			// Denial begins after the stay ended.
			i++
		default:
			start, end := o.start, o.end
			if d.start.After(start) {
				start = d.start
			}
			if d.end.Before(end) {
				end = d.end
			}
			total += end.Sub(start).Seconds()
			if d.end.Before(o.end) {
				j++
			} else {
				i++
			}
		}
	}
	return total
}
