package schema

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed schemas/*.yaml
var embeddedSchemas embed.FS

// schemaExt is the file extension of schema definitions.
const schemaExt = ".yaml"

// Registry holds the compiled schema of every entity type.
//
// It is filled once at startup and only read afterwards; all methods are
// safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]*Schema
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]*Schema)}
}

// NewDefaultRegistry returns a registry with the built-in door, room and
// smart_home schemas loaded, optionally overridden by files in dir.
func NewDefaultRegistry(dir string) (*Registry, error) {
	r := NewRegistry()
	if err := r.LoadDefaults(); err != nil {
		return nil, err
	}
	if dir != "" {
		if err := r.LoadDir(dir); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Load compiles a YAML schema definition and registers it under entityType,
// replacing any previous schema for that type.
func (r *Registry) Load(entityType string, definition []byte) error {
	if strings.TrimSpace(entityType) == "" {
		return fmt.Errorf("%w: empty entity type", ErrInvalidSchema)
	}

	s, err := compile(entityType, definition)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.schemas[entityType] = s
	r.mu.Unlock()
	return nil
}

// LoadDefaults loads the schemas embedded in the binary.
func (r *Registry) LoadDefaults() error {
	return r.loadFS(embeddedSchemas, "schemas")
}

// LoadDir loads every <type>.yaml file in dir.
func (r *Registry) LoadDir(dir string) error {
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("%w: schema dir: %w", ErrInvalidSchema, err)
	}
	return r.loadFS(os.DirFS(filepath.Clean(dir)), ".")
}

func (r *Registry) loadFS(fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("%w: reading %s: %w", ErrInvalidSchema, dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != schemaExt {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("%w: reading %s: %w", ErrInvalidSchema, entry.Name(), err)
		}
		if err := r.Load(strings.TrimSuffix(entry.Name(), schemaExt), data); err != nil {
			return fmt.Errorf("loading %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// Types returns the registered entity types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.schemas))
	for t := range r.schemas {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Check returns ErrUnknownType unless a schema is loaded for entityType.
func (r *Registry) Check(entityType string) error {
	_, err := r.schema(entityType)
	return err
}

// CollectionName returns the storage collection for an entity type.
func (r *Registry) CollectionName(entityType string) string {
	return CollectionName(entityType)
}

// CollectionName returns the storage collection for an entity type.
func CollectionName(entityType string) string {
	return entityType + "_collection"
}

// FieldSpec returns the field rules of one section, sorted by name.
func (r *Registry) FieldSpec(entityType string, section Section) ([]Field, error) {
	s, err := r.schema(entityType)
	if err != nil {
		return nil, err
	}
	fields, ok := s.fields[section]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSection, section)
	}

	out := make([]Field, 0, len(fields))
	for _, f := range fields {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Defaults returns the initialization values for a new entity. List fields
// without an explicit default start empty. The result is a fresh copy.
func (r *Registry) Defaults(entityType string) (map[Section]map[string]any, error) {
	s, err := r.schema(entityType)
	if err != nil {
		return nil, err
	}

	out := make(map[Section]map[string]any, len(s.defaults))
	for _, section := range Sections() {
		values := make(map[string]any)
		for name, v := range s.defaults[section] {
			values[name] = copyValue(v)
		}
		out[section] = values
	}
	return out, nil
}

func (r *Registry) schema(entityType string) (*Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.schemas[entityType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, entityType)
	}
	return s, nil
}

// compile turns a YAML definition into a rule table, rejecting definitions
// that reference unknown kinds or fields.
func compile(entityType string, raw []byte) (*Schema, error) {
	var def definition
	if err := yaml.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidSchema, entityType, err)
	}
	if len(def.Profile) == 0 && len(def.Data) == 0 {
		return nil, fmt.Errorf("%w: %s: no fields defined", ErrInvalidSchema, entityType)
	}

	s := &Schema{
		Type: entityType,
		fields: map[Section]map[string]Field{
			SectionProfile: {},
			SectionData:    {},
		},
		defaults: map[Section]map[string]any{
			SectionProfile: {},
			SectionData:    {},
		},
	}

	owner := make(map[string]Section)
	for section, kinds := range map[Section]map[string]Kind{SectionProfile: def.Profile, SectionData: def.Data} {
		for name, kind := range kinds {
			if !kind.Valid() {
				return nil, fmt.Errorf("%w: %s.%s: unsupported type %q", ErrInvalidSchema, section, name, kind)
			}
			if other, dup := owner[name]; dup {
				return nil, fmt.Errorf("%w: field %q defined in both %s and %s", ErrInvalidSchema, name, other, section)
			}
			owner[name] = section
			s.fields[section][name] = Field{Name: name, Kind: kind}
		}
	}

	for section, names := range def.Validations.MandatoryFields {
		for _, name := range names {
			f, ok := s.fields[section][name]
			if !ok {
				return nil, fmt.Errorf("%w: mandatory field %s.%s is not defined", ErrInvalidSchema, section, name)
			}
			f.Required = true
			s.fields[section][name] = f
		}
	}

	for name, c := range def.Validations.TypeConstraints {
		section, ok := owner[name]
		if !ok {
			return nil, fmt.Errorf("%w: constraint on undefined field %q", ErrInvalidSchema, name)
		}
		f := s.fields[section][name]
		if err := checkConstraints(f, &c); err != nil {
			return nil, fmt.Errorf("%w: %s.%s: %w", ErrInvalidSchema, section, name, err)
		}
		f.Constraints = c
		s.fields[section][name] = f
	}

	for section, values := range def.Validations.Initialization {
		if _, ok := s.fields[section]; !ok {
			return nil, fmt.Errorf("%w: initialization of unknown section %q", ErrInvalidSchema, section)
		}
		normalized, err := validateSection(s, section, values, Partial)
		if err != nil {
			return nil, fmt.Errorf("%w: initialization: %w", ErrInvalidSchema, err)
		}
		s.defaults[section] = normalized
	}
	for name, f := range s.fields[SectionData] {
		if _, set := s.defaults[SectionData][name]; !set && f.Kind.IsList() {
			s.defaults[SectionData][name] = []any{}
		}
	}

	return s, nil
}

// checkConstraints verifies a constraint block fits its field's kind and
// compiles its pattern.
func checkConstraints(f Field, c *Constraints) error {
	numeric := f.Kind == KindInt || f.Kind == KindFloat
	if (c.Min != nil || c.Max != nil) && !numeric {
		return fmt.Errorf("min/max on non-numeric type %s", f.Kind)
	}
	if c.Min != nil && c.Max != nil && *c.Min > *c.Max {
		return fmt.Errorf("min %v greater than max %v", *c.Min, *c.Max)
	}
	if c.Pattern != "" {
		if f.Kind != KindString {
			return fmt.Errorf("pattern on non-string type %s", f.Kind)
		}
		re, err := regexp.Compile(c.Pattern)
		if err != nil {
			return fmt.Errorf("bad pattern: %w", err)
		}
		c.pattern = re
	}
	if c.Items != nil {
		if f.Kind != KindDictList {
			return fmt.Errorf("item_constraints on non-list type %s", f.Kind)
		}
		for key, kind := range c.Items.TypeMappings {
			if !kind.Valid() || kind.IsList() {
				return fmt.Errorf("item field %q: unsupported type %q", key, kind)
			}
		}
	}
	return nil
}
