package entity

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/pettracker-core/internal/schema"
)

// Logger defines the logging interface used by the Store.
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

// Store creates, validates and persists Digital Replicas.
//
// Every write is validated against the schema registry before it reaches
// the repository, so a rejected entity is never partially written. The store
// does not scan back-references; callers deleting rooms or doors check
// references themselves and report ErrReferenced.
//
// All public methods are safe for concurrent use.
type Store struct {
	repo    Repository
	schemas *schema.Registry
	now     func() time.Time
	logger  Logger
}

// NewStore creates a store over repo validated by schemas.
func NewStore(repo Repository, schemas *schema.Registry) *Store {
	return &Store{
		repo:    repo,
		schemas: schemas,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// SetClock replaces the metadata clock. Intended for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Schemas returns the registry the store validates against.
func (s *Store) Schemas() *schema.Registry {
	return s.schemas
}

// Create validates in, fills initialization defaults for absent fields,
// assigns an ID and persists the entity.
func (s *Store) Create(ctx context.Context, entityType string, in Input) (*Entity, error) {
	defaults, err := s.schemas.Defaults(entityType)
	if err != nil {
		return nil, err
	}

	profile := withDefaults(in.Profile, defaults[schema.SectionProfile])
	data := withDefaults(in.Data, defaults[schema.SectionData])

	profile, data, err = s.schemas.ValidateEntity(entityType, profile, data, schema.Full)
	if err != nil {
		return nil, err
	}

	now := s.now()
	e := &Entity{
		ID:       GenerateID(),
		Type:     entityType,
		Profile:  profile,
		Data:     data,
		Metadata: Metadata{CreatedAt: now, UpdatedAt: now},
	}
	if err := s.repo.Insert(ctx, e); err != nil {
		return nil, err
	}

	s.logger.Debug("entity created", "type", entityType, "id", e.ID)
	return s.repo.Get(ctx, entityType, e.ID)
}

// Get retrieves an entity. Returns ErrNotFound if it does not exist.
func (s *Store) Get(ctx context.Context, entityType, id string) (*Entity, error) {
	if err := s.schemas.Check(entityType); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, entityType, id)
}

// Query returns every entity of a type matching filter. The result is
// never nil.
func (s *Store) Query(ctx context.Context, entityType string, filter Filter) ([]Entity, error) {
	if err := s.schemas.Check(entityType); err != nil {
		return nil, err
	}
	return s.repo.Find(ctx, entityType, filter)
}

// First returns the oldest entity matching filter, or ErrNotFound.
func (s *Store) First(ctx context.Context, entityType string, filter Filter) (*Entity, error) {
	found, err := s.Query(ctx, entityType, filter)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, ErrNotFound
	}
	return &found[0], nil
}

// Update merges patch into the stored entity. Only the keys present are
// validated and written; list fields are replaced, not merged, so callers
// wanting append semantics pass the full resulting list. updated_at is
// always stamped.
func (s *Store) Update(ctx context.Context, entityType, id string, patch Patch) (*Entity, error) {
	profile, data, err := s.schemas.ValidateEntity(entityType, patch.Profile, patch.Data, schema.Partial)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Merge(ctx, entityType, id, profile, data, s.now()); err != nil {
		return nil, err
	}

	s.logger.Debug("entity updated", "type", entityType, "id", id, "fields", len(profile)+len(data))
	return s.repo.Get(ctx, entityType, id)
}

// AppendMeasurement reads the measurement log, appends m and writes the
// whole list back together with any extra data fields.
func (s *Store) AppendMeasurement(ctx context.Context, entityType, id string, m Measurement, extra map[string]any) (*Entity, error) {
	current, err := s.repo.Get(ctx, entityType, id)
	if err != nil {
		return nil, err
	}

	existing, _ := current.Data[FieldMeasurements].([]any)
	list := make([]any, 0, len(existing)+1)
	list = append(list, existing...)
	list = append(list, m.Map())

	data := make(map[string]any, len(extra)+1)
	for k, v := range extra {
		data[k] = v
	}
	data[FieldMeasurements] = list

	updated, err := s.Update(ctx, entityType, id, DataPatch(data))
	if err != nil {
		return nil, fmt.Errorf("appending %s measurement: %w", m.Type, err)
	}
	return updated, nil
}

// Delete removes an entity. Returns ErrNotFound if it does not exist.
func (s *Store) Delete(ctx context.Context, entityType, id string) error {
	if err := s.schemas.Check(entityType); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, entityType, id); err != nil {
		return err
	}
	s.logger.Debug("entity deleted", "type", entityType, "id", id)
	return nil
}

// withDefaults overlays values on defaults without touching either map.
func withDefaults(values, defaults map[string]any) map[string]any {
	out := make(map[string]any, len(values)+len(defaults))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range values {
		out[k] = v
	}
	return out
}
