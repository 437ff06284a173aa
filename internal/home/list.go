package home

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/nerrad567/pettracker-core/internal/entity"
	"github.com/nerrad567/pettracker-core/internal/schema"
)

// ListOptions are equality filters by field name, as given in a query
// string. Each entity type accepts its own fields; see listFilters.
type ListOptions map[string]string

type filterKind int

const (
	kindBool filterKind = iota
	kindString
)

type filterField struct {
	section schema.Section
	kind    filterKind
}

// listFilters declares the filterable fields of each entity type.
var listFilters = map[string]map[string]filterField{
	entity.TypeDoor: {
		entity.FieldPowerStatus:     {schema.SectionData, kindBool},
		entity.FieldPowerSavingMode: {schema.SectionData, kindBool},
	},
	entity.TypeRoom: {
		entity.FieldVacancy: {schema.SectionData, kindBool},
		entity.FieldDenial:  {schema.SectionData, kindBool},
	},
	entity.TypeSmartHome: {
		entity.FieldFaultStatus: {schema.SectionData, kindBool},
		entity.FieldAddress:     {schema.SectionProfile, kindString},
	},
}

// List returns the entities of a type matching opts. Unknown filter
// fields and unparsable values fail with entity.ErrInvalidFilter.
func (m *Manager) List(ctx context.Context, entityType string, opts ListOptions) ([]entity.Entity, error) {
	fields, ok := listFilters[entityType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", entity.ErrInvalidType, entityType)
	}

	names := make([]string, 0, len(opts))
	for name := range opts {
		names = append(names, name)
	}
	sort.Strings(names)

	var filter entity.Filter
	for _, name := range names {
		field, ok := fields[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s cannot be filtered on %q", entity.ErrInvalidFilter, entityType, name)
		}
		raw := opts[name]

		var value any = raw
		if field.kind == kindBool {
			b, err := strconv.ParseBool(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: %s=%q is not a boolean", entity.ErrInvalidFilter, name, raw)
			}
			value = b
		}
		filter = filter.And(field.section, name, value)
	}

	return m.store.Query(ctx, entityType, filter)
}
