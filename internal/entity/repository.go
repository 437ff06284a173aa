package entity

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/pettracker-core/internal/schema"
)

// Repository defines the persistence operations the store needs.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and keeps the store free of SQL.
type Repository interface {
	// Insert stores a new entity.
	// Returns ErrExists if a unique constraint is violated.
	Insert(ctx context.Context, e *Entity) error

	// Get retrieves an entity by type and ID.
	// Returns ErrNotFound if the entity does not exist.
	Get(ctx context.Context, entityType, id string) (*Entity, error)

	// Find returns every entity of a type matching the filter,
	// oldest first.
	Find(ctx context.Context, entityType string, filter Filter) ([]Entity, error)

	// Merge overwrites the given profile and data keys, leaving other keys
	// untouched, and stamps updated_at.
	// Returns ErrNotFound if the entity does not exist.
	Merge(ctx context.Context, entityType, id string, profile, data map[string]any, at time.Time) error

	// Delete removes an entity.
	// Returns ErrNotFound if the entity does not exist.
	Delete(ctx context.Context, entityType, id string) error
}

// timestampLayout keeps metadata columns fixed-width so they sort as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteRepository implements Repository using one SQLite table per
// collection with profile and data stored as JSON TEXT.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open, migrated SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Insert stores a new entity.
func (r *SQLiteRepository) Insert(ctx context.Context, e *Entity) error {
	table, err := collection(e.Type)
	if err != nil {
		return err
	}

	profileJSON, err := json.Marshal(e.Profile)
	if err != nil {
		return fmt.Errorf("marshalling profile: %w", err)
	}
	dataJSON, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("marshalling data: %w", err)
	}

	query := `INSERT INTO ` + table + ` (id, profile, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		e.ID,
		string(profileJSON),
		string(dataJSON),
		e.Metadata.CreatedAt.UTC().Format(timestampLayout),
		e.Metadata.UpdatedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrExists
		}
		return fmt.Errorf("inserting %s: %w", e.Type, err)
	}
	return nil
}

// Get retrieves an entity by type and ID.
func (r *SQLiteRepository) Get(ctx context.Context, entityType, id string) (*Entity, error) {
	table, err := collection(entityType)
	if err != nil {
		return nil, err
	}

	query := `SELECT id, profile, data, created_at, updated_at FROM ` + table + ` WHERE id = ?`
	e, err := scanEntity(r.db.QueryRowContext(ctx, query, id), entityType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying %s by id: %w", entityType, err)
	}
	return e, nil
}

// Find returns every entity of a type matching the filter.
func (r *SQLiteRepository) Find(ctx context.Context, entityType string, filter Filter) ([]Entity, error) {
	table, err := collection(entityType)
	if err != nil {
		return nil, err
	}
	where, args, err := filter.sql()
	if err != nil {
		return nil, err
	}

	query := `SELECT id, profile, data, created_at, updated_at FROM ` + table +
		` WHERE ` + where + ` ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", entityType, err)
	}
	defer rows.Close()

	entities := []Entity{}
	for rows.Next() {
		e, err := scanEntity(rows, entityType)
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", entityType, err)
		}
		entities = append(entities, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", entityType, err)
	}
	return entities, nil
}

// Merge overwrites keys with json_patch. Arrays in the patch replace the
// stored array whole; a null value removes the key.
func (r *SQLiteRepository) Merge(ctx context.Context, entityType, id string, profile, data map[string]any, at time.Time) error {
	table, err := collection(entityType)
	if err != nil {
		return err
	}

	profileJSON, err := marshalPatch(profile)
	if err != nil {
		return fmt.Errorf("marshalling profile: %w", err)
	}
	dataJSON, err := marshalPatch(data)
	if err != nil {
		return fmt.Errorf("marshalling data: %w", err)
	}

	query := `
		UPDATE ` + table + `
		SET profile = json_patch(profile, ?),
		    data = json_patch(data, ?),
		    updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		profileJSON,
		dataJSON,
		at.UTC().Format(timestampLayout),
		id,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrExists
		}
		return fmt.Errorf("updating %s: %w", entityType, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an entity.
func (r *SQLiteRepository) Delete(ctx context.Context, entityType, id string) error {
	table, err := collection(entityType)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting %s: %w", entityType, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanEntity(row scanner, entityType string) (*Entity, error) {
	var (
		e                    Entity
		profileJSON          string
		dataJSON             string
		createdAt, updatedAt string
	)
	if err := row.Scan(&e.ID, &profileJSON, &dataJSON, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	e.Type = entityType
	if err := json.Unmarshal([]byte(profileJSON), &e.Profile); err != nil {
		return nil, fmt.Errorf("unmarshalling profile: %w", err)
	}
	if err := json.Unmarshal([]byte(dataJSON), &e.Data); err != nil {
		return nil, fmt.Errorf("unmarshalling data: %w", err)
	}
	if e.Profile == nil {
		e.Profile = map[string]any{}
	}
	if e.Data == nil {
		e.Data = map[string]any{}
	}

	var err error
	if e.Metadata.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if e.Metadata.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &e, nil
}

// collection maps an entity type to its table, refusing names that are not
// plain identifiers since they are interpolated into SQL.
func collection(entityType string) (string, error) {
	if !identifierPattern.MatchString(entityType) {
		return "", fmt.Errorf("%w: %q", ErrInvalidType, entityType)
	}
	return schema.CollectionName(entityType), nil
}

func marshalPatch(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
