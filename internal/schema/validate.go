package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// maxStringLength caps string values; entity fields are names and ids.
const maxStringLength = 1024

// timeLayouts are accepted for datetime fields, tried in order. Door nodes
// send naive ISO timestamps, which are taken as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// Validate checks values against the rules of one section and returns a
// normalized copy: integers become int64, floats float64, datetimes RFC 3339
// strings in UTC, lists []any.
//
// In Full mode mandatory fields must be present; in Partial mode only the
// keys given are checked. Unknown fields are rejected in both modes. Every
// violation is collected into a single *ValidationError.
func (r *Registry) Validate(entityType string, section Section, values map[string]any, mode Mode) (map[string]any, error) {
	s, err := r.schema(entityType)
	if err != nil {
		return nil, err
	}
	if _, ok := s.fields[section]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSection, section)
	}
	return validateSection(s, section, values, mode)
}

// ValidateEntity validates profile and data together so a caller sees the
// violations of both sections in one error.
func (r *Registry) ValidateEntity(entityType string, profile, data map[string]any, mode Mode) (map[string]any, map[string]any, error) {
	s, err := r.schema(entityType)
	if err != nil {
		return nil, nil, err
	}

	v := &validator{entityType: entityType}
	p := v.section(s, SectionProfile, profile, mode)
	d := v.section(s, SectionData, data, mode)
	if err := v.err(); err != nil {
		return nil, nil, err
	}
	return p, d, nil
}

func validateSection(s *Schema, section Section, values map[string]any, mode Mode) (map[string]any, error) {
	v := &validator{entityType: s.Type}
	out := v.section(s, section, values, mode)
	if err := v.err(); err != nil {
		return nil, err
	}
	return out, nil
}

// validator accumulates violations while walking a value tree.
type validator struct {
	entityType string
	violations []Violation
}

func (v *validator) add(field, format string, args ...any) {
	v.violations = append(v.violations, Violation{Field: field, Reason: fmt.Sprintf(format, args...)})
}

func (v *validator) err() error {
	if len(v.violations) == 0 {
		return nil
	}
	return &ValidationError{Type: v.entityType, Violations: v.violations}
}

func (v *validator) section(s *Schema, section Section, values map[string]any, mode Mode) map[string]any {
	fields := s.fields[section]
	out := make(map[string]any, len(values))

	for _, name := range sortedKeys(values) {
		path := string(section) + "." + name
		f, ok := fields[name]
		if !ok {
			v.add(path, "unknown field")
			continue
		}

		raw := values[name]
		if raw == nil {
			if f.Required {
				v.add(path, "is required")
			} else {
				out[name] = nil
			}
			continue
		}
		if norm, ok := v.value(path, f, raw); ok {
			out[name] = norm
		}
	}

	if mode == Full {
		names := make([]string, 0, len(fields))
		for name := range fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if _, present := values[name]; !present && fields[name].Required {
				v.add(string(section)+"."+name, "is required")
			}
		}
	}

	return out
}

// value checks one field value against its rule row.
func (v *validator) value(path string, f Field, raw any) (any, bool) {
	c := f.Constraints

	switch f.Kind {
	case KindStringList:
		items, ok := asList(raw)
		if !ok {
			v.add(path, "must be a list of strings")
			return nil, false
		}
		out := make([]any, 0, len(items))
		valid := true
		for i, item := range items {
			s, ok := item.(string)
			if !ok {
				v.add(fmt.Sprintf("%s[%d]", path, i), "must be a string")
				valid = false
				continue
			}
			out = append(out, s)
		}
		return out, valid

	case KindDictList:
		items, ok := asList(raw)
		if !ok {
			v.add(path, "must be a list of objects")
			return nil, false
		}
		out := make([]any, 0, len(items))
		valid := true
		for i, item := range items {
			norm, ok := v.item(fmt.Sprintf("%s[%d]", path, i), c.Items, item)
			if !ok {
				valid = false
				continue
			}
			out = append(out, norm)
		}
		return out, valid
	}

	norm, reason := coerceScalar(f.Kind, raw)
	if reason != "" {
		v.add(path, "%s", reason)
		return nil, false
	}

	valid := true
	if n, isNum := toFloat(norm); isNum && f.Kind != KindString {
		if c.Min != nil && n < *c.Min {
			v.add(path, "must be at least %v", *c.Min)
			valid = false
		}
		if c.Max != nil && n > *c.Max {
			v.add(path, "must be at most %v", *c.Max)
			valid = false
		}
	}
	if len(c.Enum) > 0 && !enumContains(c.Enum, norm) {
		v.add(path, "must be one of %v", c.Enum)
		valid = false
	}
	if c.pattern != nil && !c.pattern.MatchString(norm.(string)) {
		v.add(path, "must match %s", c.Pattern)
		valid = false
	}
	return norm, valid
}

// item checks one element of a List[Dict] field.
func (v *validator) item(path string, rules *ItemConstraints, raw any) (map[string]any, bool) {
	m, ok := raw.(map[string]any)
	if !ok {
		v.add(path, "must be an object")
		return nil, false
	}

	out := make(map[string]any, len(m))
	for k, val := range m {
		out[k] = copyValue(val)
	}
	if rules == nil {
		return out, true
	}

	valid := true
	for _, key := range rules.RequiredFields {
		if val, present := m[key]; !present || val == nil {
			v.add(path+"."+key, "is required")
			valid = false
		}
	}
	for _, key := range sortedKeys(rules.TypeMappings) {
		val, present := m[key]
		if !present || val == nil {
			continue
		}
		norm, reason := coerceScalar(rules.TypeMappings[key], val)
		if reason != "" {
			v.add(path+"."+key, "%s", reason)
			valid = false
			continue
		}
		out[key] = norm
	}
	for _, key := range sortedKeys(rules.Enum) {
		val, present := out[key]
		if present && !enumContains(rules.Enum[key], val) {
			v.add(path+"."+key, "must be one of %v", rules.Enum[key])
			valid = false
		}
	}
	return out, valid
}

// coerceScalar converts raw to the canonical Go type of kind. A non-empty
// reason means the value does not fit.
func coerceScalar(kind Kind, raw any) (any, string) {
	switch kind {
	case KindString:
		s, ok := raw.(string)
		if !ok {
			return nil, "must be a string"
		}
		if utf8.RuneCountInString(s) > maxStringLength {
			return nil, fmt.Sprintf("exceeds %d characters", maxStringLength)
		}
		return s, ""
	case KindInt:
		n, ok := toInt(raw)
		if !ok {
			return nil, "must be an integer"
		}
		return n, ""
	case KindFloat:
		n, ok := toFloat(raw)
		if !ok {
			return nil, "must be a number"
		}
		return n, ""
	case KindBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, "must be a boolean"
		}
		return b, ""
	case KindDatetime:
		t, ok := ParseTime(raw)
		if !ok {
			return nil, "must be a datetime"
		}
		return FormatTime(t), ""
	}
	return nil, fmt.Sprintf("unsupported type %s", kind)
}

// ParseTime accepts a time.Time or a timestamp string in one of the
// supported layouts. Naive timestamps are taken as UTC.
func ParseTime(raw any) (time.Time, bool) {
	switch t := raw.(type) {
	case time.Time:
		return t.UTC(), !t.IsZero()
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return t.UTC(), !t.IsZero()
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

// FormatTime renders t the way datetime fields are stored.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func toInt(raw any) (int64, bool) {
	switch n := raw.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case float32:
		return toInt(float64(n))
	case float64:
		if n != math.Trunc(n) || n >= math.MaxInt64 || n < math.MinInt64 {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

func toFloat(raw any) (float64, bool) {
	switch n := raw.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case float32:
		return toFloat(float64(n))
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	if i, ok := toInt(raw); ok {
		return float64(i), true
	}
	return 0, false
}

func enumContains(enum []any, v any) bool {
	vf, vNum := toFloat(v)
	for _, e := range enum {
		if ef, eNum := toFloat(e); eNum && vNum {
			if ef == vf {
				return true
			}
			continue
		}
		if e == v {
			return true
		}
	}
	return false
}

func asList(raw any) ([]any, bool) {
	switch l := raw.(type) {
	case []any:
		return l, true
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	case []map[string]any:
		out := make([]any, len(l))
		for i, m := range l {
			out[i] = m
		}
		return out, true
	}
	return nil, false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// copyValue deep-copies maps and lists so callers never share state.
func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = copyValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = copyValue(val)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	case []map[string]any:
		out := make([]any, len(t))
		for i, m := range t {
			out[i] = copyValue(m)
		}
		return out
	}
	return v
}
