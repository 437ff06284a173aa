package home

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/pettracker-core/internal/entity"
	"github.com/nerrad567/pettracker-core/internal/protocol"
	"github.com/nerrad567/pettracker-core/internal/schema"
	"github.com/nerrad567/pettracker-core/internal/twin"
)

// Logger defines the logging interface used by the Manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Store is the entity store the Manager works on.
type Store interface {
	Create(ctx context.Context, entityType string, in entity.Input) (*entity.Entity, error)
	Get(ctx context.Context, entityType, id string) (*entity.Entity, error)
	Query(ctx context.Context, entityType string, filter entity.Filter) ([]entity.Entity, error)
	Update(ctx context.Context, entityType, id string, patch entity.Patch) (*entity.Entity, error)
	AppendMeasurement(ctx context.Context, entityType, id string, m entity.Measurement, extra map[string]any) (*entity.Entity, error)
	Delete(ctx context.Context, entityType, id string) error
}

// Twins provides scoped twins for service executions.
type Twins interface {
	With(ctx context.Context, customer string, fn func(*twin.Twin) error) error
}

// Settings republishes device settings after a change.
type Settings interface {
	ReapplyDenial(ctx context.Context, customer string) error
	ReapplyPowerSaving(ctx context.Context, customer string) error
}

// Locker serializes work per smart home. It must be the lock the
// telemetry reactions take.
type Locker interface {
	Lock(key string) (unlock func())
}

// AnalyticsSink receives computed room statistics.
type AnalyticsSink interface {
	WriteRoomAnalytics(customer, roomID, roomName string, fields map[string]any, at time.Time)
}

// Deps are the collaborators of a Manager. Store and Twins are required.
type Deps struct {
	Store    Store
	Twins    Twins
	Settings Settings
	Locks    Locker
	Sink     AnalyticsSink
	Logger   Logger

	// DefaultRoomName is the name of the room created with every smart home.
	DefaultRoomName string

	Clock func() time.Time
}

// Manager manages smart homes, rooms and doors on behalf of users,
// keeping the references between them consistent.
//
// Thread Safety: all methods are safe for concurrent use. Changes to a
// smart home's entities hold the smart home's lock.
type Manager struct {
	store           Store
	twins           Twins
	settings        Settings
	locks           Locker
	sink            AnalyticsSink
	logger          Logger
	defaultRoomName string
	clock           func() time.Time
}

// NewManager creates a Manager from deps.
func NewManager(deps Deps) (*Manager, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("%w: store", ErrMissingDependency)
	}
	if deps.Twins == nil {
		return nil, fmt.Errorf("%w: twins", ErrMissingDependency)
	}

	m := &Manager{
		store:           deps.Store,
		twins:           deps.Twins,
		settings:        deps.Settings,
		locks:           deps.Locks,
		sink:            deps.Sink,
		logger:          deps.Logger,
		defaultRoomName: deps.DefaultRoomName,
		clock:           deps.Clock,
	}
	if m.locks == nil {
		m.locks = &protocol.KeyedMutex{}
	}
	if m.logger == nil {
		m.logger = noopLogger{}
	}
	if m.clock == nil {
		m.clock = time.Now
	}
	return m, nil
}

// Get retrieves an entity of any managed type.
func (m *Manager) Get(ctx context.Context, entityType, id string) (*entity.Entity, error) {
	return m.store.Get(ctx, entityType, id)
}

// CustomerOf returns the user of the smart home e belongs to, or "" when no
// smart home lists it.
func (m *Manager) CustomerOf(ctx context.Context, e *entity.Entity) (string, error) {
	var listField string
	switch e.Type {
	case entity.TypeSmartHome:
		return e.ProfileString(entity.FieldUser), nil
	case entity.TypeRoom:
		listField = entity.FieldRooms
	case entity.TypeDoor:
		listField = entity.FieldDevices
	default:
		return "", fmt.Errorf("%w: %q", entity.ErrInvalidType, e.Type)
	}

	home, err := m.owner(ctx, listField, e.ID)
	if err != nil || home == nil {
		return "", err
	}
	return home.ProfileString(entity.FieldUser), nil
}

func (m *Manager) now() time.Time {
	return m.clock().UTC()
}

// effects are the device settings to republish once a change is stored.
type effects struct {
	denial      bool
	powerSaving bool
}

// apply republishes settings for customer. It runs after the smart home's
// lock is released since the publishers take it themselves.
func (m *Manager) apply(ctx context.Context, customer string, eff effects) error {
	if m.settings == nil || customer == "" {
		return nil
	}
	if eff.denial {
		if err := m.settings.ReapplyDenial(ctx, customer); err != nil {
			return fmt.Errorf("reapplying denial settings: %w", err)
		}
	}
	if eff.powerSaving {
		if err := m.settings.ReapplyPowerSaving(ctx, customer); err != nil {
			return fmt.Errorf("reapplying power saving settings: %w", err)
		}
	}
	return nil
}

// owners returns the smart homes whose list field holds id.
func (m *Manager) owners(ctx context.Context, listField, id string) ([]entity.Entity, error) {
	homes, err := m.store.Query(ctx, entity.TypeSmartHome,
		entity.Filter{}.AndContains(schema.SectionData, listField, id))
	if err != nil {
		return nil, fmt.Errorf("looking up smart homes listing %s: %w", id, err)
	}
	return homes, nil
}

// owner returns the smart home whose list field holds id, or nil.
func (m *Manager) owner(ctx context.Context, listField, id string) (*entity.Entity, error) {
	homes, err := m.owners(ctx, listField, id)
	if err != nil || len(homes) == 0 {
		return nil, err
	}
	return &homes[0], nil
}

// lockOwner takes the lock of the smart home listing id and returns it
// together with the unlock function. Entities no smart home lists are not
// locked.
func (m *Manager) lockOwner(ctx context.Context, listField, id string) (*entity.Entity, func(), error) {
	home, err := m.owner(ctx, listField, id)
	if err != nil {
		return nil, nil, err
	}
	if home == nil {
		return nil, func() {}, nil
	}
	return home, m.locks.Lock(home.ProfileString(entity.FieldUser)), nil
}

// doorsReferencing returns the doors whose association fields name roomID.
func (m *Manager) doorsReferencing(ctx context.Context, roomID string) ([]entity.Entity, error) {
	var found []entity.Entity
	seen := make(map[string]bool)
	for _, field := range associationFields {
		doors, err := m.store.Query(ctx, entity.TypeDoor, entity.Where(schema.SectionData, field, roomID))
		if err != nil {
			return nil, fmt.Errorf("looking up doors referencing room %s: %w", roomID, err)
		}
		for _, d := range doors {
			if !seen[d.ID] {
				seen[d.ID] = true
				found = append(found, d)
			}
		}
	}
	return found, nil
}

// dropMeasurements removes measurements from a user patch once the entity
// has any: the log is append-only and written by the core alone.
func dropMeasurements(data map[string]any, current *entity.Entity) {
	if _, ok := data[entity.FieldMeasurements]; !ok {
		return
	}
	if len(current.Measurements()) > 0 {
		delete(data, entity.FieldMeasurements)
	}
}

// dropOccupancy removes the fields only telemetry may write. Rooms start
// vacant and change occupancy through passing-by reactions alone.
func dropOccupancy(data map[string]any) {
	delete(data, entity.FieldVacancy)
	delete(data, entity.FieldLastAccessed)
}

// idList reads a list of ids from a patch value.
func idList(raw any) ([]string, bool) {
	switch v := raw.(type) {
	case []string:
		return v, true
	case []any:
		ids := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			ids = append(ids, s)
		}
		return ids, true
	default:
		return nil, false
	}
}

// union returns the ids of a followed by those of b not already seen.
func union(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	seen := make(map[string]bool, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, id := range list {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

// cloneData copies the top level of a patch section so it can be edited.
func cloneData(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
