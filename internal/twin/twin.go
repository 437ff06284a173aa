package twin

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/pettracker-core/internal/entity"
	"github.com/nerrad567/pettracker-core/internal/service"
)

// ref identifies one attached entity.
type ref struct {
	entityType string
	id         string
}

// Twin is the ephemeral aggregation of one customer's entities. It lives
// for a single operation and holds private copies; nothing it holds is
// shared with the store or with other twins.
//
// Thread Safety: all methods are safe for concurrent use.
type Twin struct {
	id       string
	customer string
	agg      *Aggregator

	mu       sync.Mutex
	refs     []ref
	entities map[string]entity.Entity
	released bool
}

// ID returns the twin's identifier, unique per acquisition.
func (t *Twin) ID() string {
	return t.id
}

// Customer returns the smart home user the twin was acquired for.
func (t *Twin) Customer() string {
	return t.customer
}

// Attach loads one entity into the twin. Attaching an entity twice
// refreshes it.
func (t *Twin) Attach(ctx context.Context, entityType, id string) error {
	e, err := t.agg.store.Get(ctx, entityType, id)
	if err != nil {
		return fmt.Errorf("attaching %s %s: %w", entityType, id, err)
	}
	return t.Sync(e)
}

// Sync replaces the twin's copy of an entity with e, attaching it if it is
// not attached yet. Callers use it after writing e through the store.
func (t *Twin) Sync(e *entity.Entity) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.released {
		return ErrReleased
	}
	if _, ok := t.entities[e.ID]; !ok {
		t.refs = append(t.refs, ref{entityType: e.Type, id: e.ID})
	}
	t.entities[e.ID] = e.Clone()
	return nil
}

// Snapshot returns a deep copy of the attached entities in attach order.
func (t *Twin) Snapshot() service.Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := service.Snapshot{Entities: make([]entity.Entity, 0, len(t.refs))}
	for _, r := range t.refs {
		e := t.entities[r.id]
		snap.Entities = append(snap.Entities, e.Clone())
	}
	return snap
}

// Entity returns a copy of one attached entity.
func (t *Twin) Entity(id string) (*entity.Entity, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entities[id]
	if !ok {
		return nil, false
	}
	c := e.Clone()
	return &c, true
}

// SmartHome returns a copy of the twin's smart home.
func (t *Twin) SmartHome() *entity.Entity {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, r := range t.refs {
		if r.entityType == entity.TypeSmartHome {
			e := t.entities[r.id]
			c := e.Clone()
			return &c
		}
	}
	return nil
}

// Services lists the services the twin can execute.
func (t *Twin) Services() []string {
	return t.agg.engine.Names()
}

// Execute runs a service of the engine on the current snapshot.
func (t *Twin) Execute(name, targetType, attribute string) (any, error) {
	if t.isReleased() {
		return nil, ErrReleased
	}
	return t.agg.engine.Execute(name, t.Snapshot(), targetType, attribute)
}

// Refresh reloads the smart home and re-resolves its rooms and doors, so
// membership changes made during the operation are picked up.
func (t *Twin) Refresh(ctx context.Context) error {
	if t.isReleased() {
		return ErrReleased
	}
	return t.agg.load(ctx, t)
}

// Release discards the twin's entities. It is safe to call more than once.
func (t *Twin) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.released {
		return
	}
	t.released = true
	t.refs = nil
	t.entities = nil
	t.agg.released(t)
}

func (t *Twin) isReleased() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.released
}

// reset drops every attached entity ahead of a reload.
func (t *Twin) reset() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.released {
		return ErrReleased
	}
	t.refs = nil
	t.entities = make(map[string]entity.Entity)
	return nil
}
