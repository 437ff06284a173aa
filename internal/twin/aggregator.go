package twin

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/nerrad567/pettracker-core/internal/entity"
	"github.com/nerrad567/pettracker-core/internal/schema"
	"github.com/nerrad567/pettracker-core/internal/service"
)

// Logger defines the logging interface used by the Aggregator.
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

// Store is the subset of the entity store a twin loads from.
type Store interface {
	Get(ctx context.Context, entityType, id string) (*entity.Entity, error)
	First(ctx context.Context, entityType string, filter entity.Filter) (*entity.Entity, error)
}

// Engine executes services over a snapshot.
type Engine interface {
	Execute(name string, snap service.Snapshot, targetType, attribute string) (any, error)
	Names() []string
}

// Aggregator builds twins on demand. It keeps no twin between operations;
// it only counts the twins that have not been released yet.
type Aggregator struct {
	store  Store
	engine Engine
	live   atomic.Int64
	logger Logger
}

// NewAggregator creates an aggregator loading from store and executing on engine.
func NewAggregator(store Store, engine Engine) *Aggregator {
	return &Aggregator{
		store:  store,
		engine: engine,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the aggregator.
func (a *Aggregator) SetLogger(logger Logger) {
	a.logger = logger
}

// Acquire builds a fresh twin for the smart home whose profile.user is
// customer, attaching the smart home, its default room, every room of
// list_of_rooms and every door of list_of_devices.
//
// A missing smart home or a dangling reference fails with an error
// wrapping entity.ErrNotFound. The caller must Release the twin; prefer With.
func (a *Aggregator) Acquire(ctx context.Context, customer string) (*Twin, error) {
	t := &Twin{
		id:       entity.GenerateID(),
		customer: customer,
		agg:      a,
		entities: make(map[string]entity.Entity),
	}
	a.live.Add(1)

	if err := a.load(ctx, t); err != nil {
		t.Release()
		return nil, err
	}

	a.logger.Debug("twin acquired", "twin_id", t.id, "customer", customer)
	return t, nil
}

// With acquires a twin for customer, passes it to fn and releases it on
// every path, including a panic in fn.
func (a *Aggregator) With(ctx context.Context, customer string, fn func(*Twin) error) error {
	t, err := a.Acquire(ctx, customer)
	if err != nil {
		return err
	}
	defer t.Release()

	return fn(t)
}

// Live returns the number of acquired twins not yet released.
func (a *Aggregator) Live() int {
	return int(a.live.Load())
}

func (a *Aggregator) released(t *Twin) {
	a.live.Add(-1)
	a.logger.Debug("twin released", "twin_id", t.id, "customer", t.customer)
}

// load (re)populates t from the store.
func (a *Aggregator) load(ctx context.Context, t *Twin) error {
	home, err := a.store.First(ctx, entity.TypeSmartHome,
		entity.Where(schema.SectionProfile, entity.FieldUser, t.customer))
	if err != nil {
		return fmt.Errorf("loading smart home of %q: %w", t.customer, err)
	}

	if err := t.reset(); err != nil {
		return err
	}
	if err := t.Sync(home); err != nil {
		return err
	}

	rooms := home.Strings(entity.FieldRooms)
	if def := home.String(entity.FieldDefaultRoom); def != "" && !entity.Contains(rooms, def) {
		rooms = append([]string{def}, rooms...)
	}
	for _, id := range rooms {
		if err := t.Attach(ctx, entity.TypeRoom, id); err != nil {
			return err
		}
	}
	for _, id := range home.Strings(entity.FieldDevices) {
		if err := t.Attach(ctx, entity.TypeDoor, id); err != nil {
			return err
		}
	}
	return nil
}
