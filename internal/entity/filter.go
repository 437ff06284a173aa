package entity

import (
	"fmt"
	"regexp"

	"github.com/nerrad567/pettracker-core/internal/schema"
)

// Op is a comparison used in a filter condition.
type Op int

const (
	// OpEq matches when the field equals the value. A nil value matches
	// absent or null fields.
	OpEq Op = iota

	// OpContains matches when a list field holds the value.
	OpContains
)

// Condition is one predicate over a profile or data field.
type Condition struct {
	Section schema.Section
	Field   string
	Op      Op
	Value   any
}

// Filter is a conjunction of conditions. The zero Filter matches every entity.
type Filter struct {
	Conditions []Condition
}

// Where starts a filter with an equality condition.
func Where(section schema.Section, field string, value any) Filter {
	return Filter{}.And(section, field, value)
}

// And adds an equality condition.
func (f Filter) And(section schema.Section, field string, value any) Filter {
	return f.with(Condition{Section: section, Field: field, Op: OpEq, Value: value})
}

// AndContains adds a list membership condition.
func (f Filter) AndContains(section schema.Section, field string, value any) Filter {
	return f.with(Condition{Section: section, Field: field, Op: OpContains, Value: value})
}

func (f Filter) with(c Condition) Filter {
	conds := make([]Condition, len(f.Conditions), len(f.Conditions)+1)
	copy(conds, f.Conditions)
	return Filter{Conditions: append(conds, c)}
}

// identifierPattern restricts names interpolated into SQL.
var identifierPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// sql renders the filter as a WHERE clause body and its arguments.
func (f Filter) sql() (string, []any, error) {
	if len(f.Conditions) == 0 {
		return "1 = 1", nil, nil
	}

	clause := ""
	args := make([]any, 0, 2*len(f.Conditions))
	for i, c := range f.Conditions {
		if c.Section != schema.SectionProfile && c.Section != schema.SectionData {
			return "", nil, fmt.Errorf("%w: section %q", ErrInvalidFilter, c.Section)
		}
		if !identifierPattern.MatchString(c.Field) {
			return "", nil, fmt.Errorf("%w: field %q", ErrInvalidFilter, c.Field)
		}
		if i > 0 {
			clause += " AND "
		}

		col := string(c.Section)
		path := "$." + c.Field
		switch c.Op {
		case OpEq:
			if c.Value == nil {
				clause += "json_extract(" + col + ", ?) IS NULL"
				args = append(args, path)
				continue
			}
			clause += "json_extract(" + col + ", ?) = ?"
			args = append(args, path, c.Value)
		case OpContains:
			clause += "EXISTS (SELECT 1 FROM json_each(" + col + ", ?) WHERE json_each.value = ?)"
			args = append(args, path, c.Value)
		default:
			return "", nil, fmt.Errorf("%w: operator %d", ErrInvalidFilter, c.Op)
		}
	}
	return clause, args, nil
}
