package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/pettracker-core/internal/entity"
)

func TestFindFaults(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		faults := FindFaults(snapshot(door("d1", true, "a", "b", "a", "b")))
		require.NotNil(t, faults)
		assert.Empty(t, faults)
	})

	t.Run("no doors", func(t *testing.T) {
		faults := FindFaults(snapshot(room("a", "A", false)))
		require.NotNil(t, faults)
		assert.Empty(t, faults)
	})

	t.Run("offline doors", func(t *testing.T) {
		faults := FindFaults(snapshot(
			door("d1", false, "a", "b", "a", "b"),
			door("d2", true, "a", "b", "a", "b"),
			door("d3", false, "a", "b", "a", "b"),
		))
		require.Len(t, faults, 2)
		assert.Equal(t, "d1", faults[0].ID)
		assert.Equal(t, "d3", faults[1].ID)
	})
}

func TestFaultRecovery_NoFaults(t *testing.T) {
	snap := snapshot(
		room("def", defaultRoom, false),
		door("d1", true, "a", "b", "a", "b"),
	)

	plan, err := FaultRecovery(snap, defaultRoom, FindFaults(snap))
	require.NoError(t, err)
	assert.Nil(t, plan)
}

func TestFaultRecovery_NoPropagation(t *testing.T) {
	tests := []struct {
		name  string
		doors []entity.Entity
	}{
		{
			// The faulted door only leads to the default room.
			name: "faulted door on default room",
			doors: []entity.Entity{
				door("d1", false, "def", "def", "def", "def"),
				door("d2", true, "a", "b", "a", "b"),
			},
		},
		{
			// Room c has a single entry point.
			name: "no other door reaches the room",
			doors: []entity.Entity{
				door("d1", false, "c", "def", "c", "def"),
				door("d2", true, "a", "b", "a", "b"),
			},
		},
		{
			// Only the normal pair of d2 touches c; overrides decide.
			name: "normal association ignored",
			doors: []entity.Entity{
				door("d1", false, "c", "def", "c", "def"),
				door("d2", true, "c", "b", "a", "b"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entities := append([]entity.Entity{room("def", defaultRoom, false)}, tt.doors...)
			snap := snapshot(entities...)

			plan, err := FaultRecovery(snap, defaultRoom, FindFaults(snap))
			require.NoError(t, err)
			require.NotNil(t, plan)
			assert.Equal(t, "def", plan.DefaultRoomID)
			assert.NotNil(t, plan.Patches)
			assert.Empty(t, plan.Patches)
		})
	}
}

func TestFaultRecovery_ReroutesDoorsSharingRoom(t *testing.T) {
	snap := snapshot(
		room("def", defaultRoom, true),
		room("a", "A", false),
		room("c", "C", true),
		door("d1", false, "c", "c", "c", "c"),
		door("d2", true, "c", "a", "c", "a"),
		door("d3", true, "def", "c", "def", "c"),
		door("d4", true, "a", "def", "a", "def"),
	)

	plan, err := FaultRecovery(snap, defaultRoom, FindFaults(snap))
	require.NoError(t, err)
	require.NotNil(t, plan)

	assert.Equal(t, map[string]DoorPatch{
		"d2": {OverrideEntryRoomID: "def", PowerSavingMode: false},
		"d3": {OverrideExitRoomID: "def", PowerSavingMode: true},
	}, plan.Patches)

	assert.NotContains(t, plan.Patches, "d1", "faulted door must not be patched")

	assert.Equal(t, map[string]any{
		entity.FieldOverrideExitRoom: "def",
		entity.FieldPowerSavingMode:  true,
	}, plan.Patches["d3"].Fields())
}

func TestFaultRecovery_DefaultRoomNotUnique(t *testing.T) {
	faulted := door("d1", false, "a", "b", "a", "b")

	t.Run("missing", func(t *testing.T) {
		snap := snapshot(room("a", "A", false), faulted)
		_, err := FaultRecovery(snap, defaultRoom, FindFaults(snap))
		assert.ErrorIs(t, err, ErrDefaultRoom)
	})

	t.Run("duplicated", func(t *testing.T) {
		snap := snapshot(room("x", defaultRoom, false), room("y", defaultRoom, true), faulted)
		_, err := FaultRecovery(snap, defaultRoom, FindFaults(snap))
		assert.ErrorIs(t, err, ErrDefaultRoom)
	})
}
