package home

import (
	"context"
	"fmt"

	"github.com/nerrad567/pettracker-core/internal/service"
	"github.com/nerrad567/pettracker-core/internal/twin"
)

// Execute runs a named service on a fresh twin of customer's smart home.
func (m *Manager) Execute(ctx context.Context, customer, name string) (any, error) {
	var result any
	err := m.twins.With(ctx, customer, func(t *twin.Twin) error {
		var err error
		result, err = t.Execute(name, "", "")
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Services lists the services Execute accepts.
func (m *Manager) Services(ctx context.Context, customer string) ([]string, error) {
	var names []string
	err := m.twins.With(ctx, customer, func(t *twin.Twin) error {
		names = t.Services()
		return nil
	})
	return names, err
}

// Position returns the id of the room the pet is in, or "" if unknown.
func (m *Manager) Position(ctx context.Context, customer string) (string, error) {
	result, err := m.Execute(ctx, customer, service.NameRetrievePetPosition)
	if err != nil {
		return "", err
	}
	id, _ := result.(string)
	return id, nil
}

// Analytics computes the statistics of every room of customer's smart
// home, keyed by room id, and exports them to the analytics sink.
func (m *Manager) Analytics(ctx context.Context, customer string) (map[string]service.RoomStats, error) {
	result, err := m.Execute(ctx, customer, service.NameRoomAnalytics)
	if err != nil {
		return nil, err
	}
	stats, ok := result.(map[string]service.RoomStats)
	if !ok {
		return nil, fmt.Errorf("unexpected %s result %T", service.NameRoomAnalytics, result)
	}

	if m.sink != nil {
		at := m.now()
		for roomID, s := range stats {
			m.sink.WriteRoomAnalytics(customer, roomID, s.Name, analyticsFields(s), at)
		}
	}
	return stats, nil
}

func analyticsFields(s service.RoomStats) map[string]any {
	fields := make(map[string]any, 5)
	fields["tot_time_pet_inside"] = s.TimePetInside
	fields["num_of_times_it_entered_that_room"] = s.Entries
	fields["total_time_room_denial"] = s.TimeDenied
	fields["total_time_pet_inside_while_room_denial_was_active"] = s.TimePetInsideDenied
	if s.LastAccess != nil {
		fields["last_time_timestamp"] = s.LastAccess.Unix()
	}
	return fields
}
