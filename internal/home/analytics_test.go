package home

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/pettracker-core/internal/entity"
	"github.com/nerrad567/pettracker-core/internal/infrastructure/config"
	"github.com/nerrad567/pettracker-core/internal/service"
)

func TestAnalytics_ExportsEveryRoom(t *testing.T) {
	f := newFixture(t)
	home := f.createHome("alice")
	kitchen := f.createRoom("Kitchen")
	f.attach(home, []string{kitchen.ID}, nil)

	stats, err := f.manager.Analytics(f.ctx, "alice")
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "Kitchen", stats[kitchen.ID].Name)
	assert.Equal(t, config.DefaultRoomName, stats[home.String(entity.FieldDefaultRoom)].Name)

	require.Len(t, f.sink.rows, 2)
	for _, row := range f.sink.rows {
		assert.Equal(t, "alice", row.customer)
		assert.Equal(t, stats[row.roomID].Name, row.name)
		assert.Contains(t, row.fields, "tot_time_pet_inside")
		assert.Contains(t, row.fields, "num_of_times_it_entered_that_room")
		assert.Contains(t, row.fields, "total_time_room_denial")
		assert.Contains(t, row.fields, "total_time_pet_inside_while_room_denial_was_active")
	}
}

func TestAnalytics_UnknownCustomer(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.Analytics(f.ctx, "nobody")
	assert.ErrorIs(t, err, entity.ErrNotFound)
	assert.Empty(t, f.sink.rows)
}

func TestExecute(t *testing.T) {
	f := newFixture(t)
	f.createHome("alice")

	names, err := f.manager.Services(f.ctx, "alice")
	require.NoError(t, err)
	assert.Contains(t, names, service.NameRetrievePetPosition)
	assert.Contains(t, names, service.NameRoomAnalytics)

	_, err = f.manager.Execute(f.ctx, "alice", "TeleportPet")
	assert.ErrorIs(t, err, service.ErrUnknownService)

	faults, err := f.manager.Execute(f.ctx, "alice", service.NameFindFaults)
	require.NoError(t, err)
	assert.Empty(t, faults)
}

func TestAnalyticsFields(t *testing.T) {
	s := service.RoomStats{Name: "Kitchen", TimePetInside: 60, Entries: 2}
	fields := analyticsFields(s)
	assert.NotContains(t, fields, "last_time_timestamp")
	assert.Equal(t, 2, fields["num_of_times_it_entered_that_room"])

	at := t0
	s.LastAccess = &at
	assert.Equal(t, t0.Unix(), analyticsFields(s)["last_time_timestamp"])
}
