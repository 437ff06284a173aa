package entity

import "errors"

// Domain errors for the entity package.
//
// Validation failures surface as *schema.ValidationError and match
// schema.ErrValidation with errors.Is.
var (
	// ErrNotFound is returned when no entity has the requested type and ID.
	ErrNotFound = errors.New("entity: not found")

	// ErrExists is returned when a unique profile field is already taken
	// (for example a second smart home for the same user).
	ErrExists = errors.New("entity: already exists")

	// ErrReferenced is returned by callers that refuse a delete because
	// another entity still points at the target.
	ErrReferenced = errors.New("entity: referenced by another entity")

	// ErrInvalidFilter is returned when a query condition names an unusable
	// field or operator.
	ErrInvalidFilter = errors.New("entity: invalid filter")

	// ErrInvalidType is returned when an entity type cannot name a collection.
	ErrInvalidType = errors.New("entity: invalid type")
)
