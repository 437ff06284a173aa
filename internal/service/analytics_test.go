package service

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/pettracker-core/internal/entity"
)

func TestRoomAnalytics_ClosedPeriods(t *testing.T) {
	k := room("k", "Kitchen", true)
	k.Data[entity.FieldLastAccessed] = t0.Add(150 * time.Minute).Format(time.RFC3339)
	// Stays [0h, 1h] and [2h30, 3h].
	measure(&k, entity.MeasurementPetAccess, 3600, t0.Add(time.Hour))
	measure(&k, entity.MeasurementPetAccess, 1800, t0.Add(3*time.Hour))
	// Denial switched on at 0h30 and off at 2h45.
	measure(&k, entity.MeasurementDenialChange, 1800, t0.Add(30*time.Minute))
	measure(&k, entity.MeasurementDenialChange, 8100, t0.Add(165*time.Minute))

	stats := RoomAnalytics(snapshot(k), t0.Add(5*time.Hour))

	require.Contains(t, stats, "k")
	st := stats["k"]
	assert.Equal(t, "Kitchen", st.Name)
	assert.InDelta(t, 5400, st.TimePetInside, 1e-9)
	assert.Equal(t, 2, st.Entries)
	require.NotNil(t, st.LastAccess)
	assert.True(t, st.LastAccess.Equal(t0.Add(150*time.Minute)))
	assert.InDelta(t, 8100, st.TimeDenied, 1e-9)
	assert.InDelta(t, 2700, st.TimePetInsideDenied, 1e-9)
}

func TestRoomAnalytics_ActiveDenial(t *testing.T) {
	now := t0.Add(3 * time.Hour)

	l := room("l", "Lounge", false)
	l.Data[entity.FieldDenial] = true
	measure(&l, entity.MeasurementDenialChange, 3600, t0.Add(time.Hour))
	measure(&l, entity.MeasurementPetAccess, 1800, t0.Add(2*time.Hour))

	st := RoomAnalytics(snapshot(l), now)["l"]

	// Trailing period from the switch-on at 1h until now.
	assert.InDelta(t, 7200, st.TimeDenied, 1e-9)
	assert.InDelta(t, 1800, st.TimePetInsideDenied, 1e-9)
	// The stay in progress counts as an entry.
	assert.Equal(t, 2, st.Entries)
}

func TestRoomAnalytics_CreatedInDenial(t *testing.T) {
	r := room("r", "Study", true)
	r.Data[entity.FieldDenial] = true
	measure(&r, entity.MeasurementPetAccess, 600, t0.Add(20*time.Minute))

	st := RoomAnalytics(snapshot(r), t0.Add(time.Hour))["r"]

	assert.InDelta(t, 3600, st.TimeDenied, 1e-9)
	assert.InDelta(t, 600, st.TimePetInsideDenied, 1e-9)
}

func TestRoomAnalytics_CreatedInDenialThenLifted(t *testing.T) {
	r := room("r", "Study", true)
	measure(&r, entity.MeasurementPetAccess, 600, t0.Add(20*time.Minute))
	measure(&r, entity.MeasurementDenialChange, 3600, t0.Add(time.Hour))

	st := RoomAnalytics(snapshot(r), t0.Add(2*time.Hour))["r"]

	assert.InDelta(t, 3600, st.TimeDenied, 1e-9)
	assert.InDelta(t, 600, st.TimePetInsideDenied, 1e-9)
}

func TestRoomAnalytics_NoMeasurements(t *testing.T) {
	r := room("r", "Hall", false)
	r.Data[entity.FieldDenial] = true

	st := RoomAnalytics(snapshot(r, door("d", true, "r", "r", "r", "r")), t0.Add(time.Hour))

	require.Len(t, st, 1)
	assert.Equal(t, RoomStats{Name: "Hall"}, st["r"])
}

func TestRoomAnalytics_NoDenialMeansNoOverlap(t *testing.T) {
	r := room("r", "Hall", true)
	measure(&r, entity.MeasurementPetAccess, 1200, t0.Add(time.Hour))

	st := RoomAnalytics(snapshot(r), t0.Add(2*time.Hour))["r"]

	assert.Zero(t, st.TimeDenied)
	assert.Zero(t, st.TimePetInsideDenied)
	assert.Nil(t, st.LastAccess)
}

func TestRoomAnalytics_OverlapBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 200; i++ {
		r := room("r", "Random", true)
		cursor := t0
		denied := false
		lastToggle := t0

		for step := 0; step < 20; step++ {
			cursor = cursor.Add(time.Duration(1+rng.Intn(3600)) * time.Second)
			if rng.Intn(2) == 0 {
				stay := time.Duration(rng.Intn(3600)) * time.Second
				cursor = cursor.Add(stay)
				measure(&r, entity.MeasurementPetAccess, stay.Seconds(), cursor)
				continue
			}
			measure(&r, entity.MeasurementDenialChange, cursor.Sub(lastToggle).Seconds(), cursor)
			lastToggle = cursor
			denied = !denied
		}
		r.Data[entity.FieldDenial] = denied

		st := RoomAnalytics(snapshot(r), cursor.Add(time.Hour))["r"]
		limit := st.TimePetInside
		if st.TimeDenied < limit {
			limit = st.TimeDenied
		}
		assert.LessOrEqual(t, st.TimePetInsideDenied, limit+1e-6, "iteration %d", i)
		assert.GreaterOrEqual(t, st.TimePetInsideDenied, 0.0)
	}
}

func TestOverlap(t *testing.T) {
	at := func(h float64) time.Time { return t0.Add(time.Duration(h * float64(time.Hour))) }
	iv := func(a, b float64) interval { return interval{start: at(a), end: at(b)} }

	tests := []struct {
		name      string
		occupancy []interval
		denial    []interval
		want      float64
	}{
		{"denial before stay", []interval{iv(2, 3)}, []interval{iv(0, 1)}, 0},
		{"denial after stay", []interval{iv(0, 1)}, []interval{iv(2, 3)}, 0},
		{"denial inside stay", []interval{iv(0, 4)}, []interval{iv(1, 2)}, 3600},
		{"stay inside denial", []interval{iv(1, 2)}, []interval{iv(0, 4)}, 3600},
		{"partial both ways", []interval{iv(0, 2), iv(3, 5)}, []interval{iv(1, 4)}, 7200},
		{"empty", nil, []interval{iv(0, 1)}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, overlap(tt.occupancy, tt.denial), 1e-9)
		})
	}
}

func TestNormalize(t *testing.T) {
	a := interval{start: t0, end: t0.Add(2 * time.Hour)}
	b := interval{start: t0.Add(time.Hour), end: t0.Add(3 * time.Hour)}
	c := interval{start: t0.Add(5 * time.Hour), end: t0.Add(6 * time.Hour)}

	got := normalize([]interval{c, b, a})

	require.Len(t, got, 2)
	assert.True(t, got[0].start.Equal(t0))
	assert.True(t, got[0].end.Equal(t0.Add(3*time.Hour)))
	assert.True(t, got[1].start.Equal(c.start))
}
