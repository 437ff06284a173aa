package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/pettracker-core/internal/entity"
)

func TestEngine_BuiltIns(t *testing.T) {
	e := NewEngine(defaultRoom, func() time.Time { return t0.Add(time.Hour) })

	assert.Equal(t, []string{
		NameFaultRecovery,
		NameFindFaults,
		NameRetrievePetPosition,
		NameRoomAnalytics,
	}, e.Names())

	snap := snapshot(
		room("def", defaultRoom, true),
		room("c", "C", false),
		door("d1", false, "c", "c", "c", "c"),
		door("d2", true, "c", "def", "c", "def"),
	)

	pos, err := e.Execute(NameRetrievePetPosition, snap, "", "")
	require.NoError(t, err)
	assert.Equal(t, "c", pos)

	faults, err := e.Execute(NameFindFaults, snap, entity.TypeDoor, "")
	require.NoError(t, err)
	assert.Len(t, faults, 1)

	plan, err := e.Execute(NameFaultRecovery, snap, "", "")
	require.NoError(t, err)
	require.IsType(t, &RecoveryPlan{}, plan)
	assert.Equal(t, DoorPatch{OverrideEntryRoomID: "def", PowerSavingMode: true}, plan.(*RecoveryPlan).Patches["d2"])

	stats, err := e.Execute(NameRoomAnalytics, snap, "", "")
	require.NoError(t, err)
	assert.Len(t, stats, 2)
}

func TestEngine_FaultRecoveryWithoutFaults(t *testing.T) {
	e := NewEngine(defaultRoom, nil)

	result, err := e.Execute(NameFaultRecovery, snapshot(room("def", defaultRoom, false)), "", "")
	require.NoError(t, err)
	assert.Nil(t, result, "no faults must yield an untyped nil result")
}

func TestEngine_Errors(t *testing.T) {
	e := NewEngine(defaultRoom, nil)

	_, err := e.Execute("Teleport", Snapshot{}, "", "")
	assert.ErrorIs(t, err, ErrUnknownService)

	_, err = e.Execute(NameRetrievePetPosition, Snapshot{}, entity.TypeDoor, "")
	assert.ErrorIs(t, err, ErrUnsupportedTarget)

	_, err = e.Execute(NameRetrievePetPosition, snapshot(room("a", "A", false), room("b", "B", false)), "", "")
	assert.ErrorIs(t, err, ErrMultipleOccupancy)

	err = e.Register(NameFindFaults, Func(func(Snapshot, string, string) (any, error) { return nil, nil }))
	assert.ErrorIs(t, err, ErrServiceExists)
}

func TestEngine_Register(t *testing.T) {
	e := NewEngine(defaultRoom, nil)

	count := Func(func(snap Snapshot, target, _ string) (any, error) {
		return len(snap.OfType(target)), nil
	})
	require.NoError(t, e.Register("Count", count))

	got, err := e.Execute("Count", snapshot(room("a", "A", true), room("b", "B", true)), entity.TypeRoom, "")
	require.NoError(t, err)
	assert.Equal(t, 2, got)
}
