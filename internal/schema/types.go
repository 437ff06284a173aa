package schema

import (
	"regexp"
)

// Kind is the primitive type of a field as written in a schema file.
type Kind string

// Supported field kinds.
const (
	KindString     Kind = "str"
	KindInt        Kind = "int"
	KindFloat      Kind = "float"
	KindBool       Kind = "bool"
	KindDatetime   Kind = "datetime"
	KindStringList Kind = "List[str]"
	KindDictList   Kind = "List[Dict]"
)

// Valid reports whether k is a supported kind.
func (k Kind) Valid() bool {
	switch k {
	case KindString, KindInt, KindFloat, KindBool, KindDatetime, KindStringList, KindDictList:
		return true
	}
	return false
}

// IsList reports whether the kind holds a list.
func (k Kind) IsList() bool {
	return k == KindStringList || k == KindDictList
}

// Section names one of the two field maps of an entity.
type Section string

// Entity sections.
const (
	SectionProfile Section = "profile"
	SectionData    Section = "data"
)

// Sections lists the sections in validation order.
func Sections() []Section {
	return []Section{SectionProfile, SectionData}
}

// Mode selects how Validate treats absent fields.
type Mode int

const (
	// Full validates a complete section: mandatory fields must be present.
	Full Mode = iota

	// Partial validates an update: only the keys present are checked.
	Partial
)

// Field is the rule table row for one field.
type Field struct {
	Name        string
	Kind        Kind
	Required    bool
	Constraints Constraints
}

// Constraints narrows the values a field accepts.
type Constraints struct {
	Min     *float64         `yaml:"min"`
	Max     *float64         `yaml:"max"`
	Enum    []any            `yaml:"enum"`
	Pattern string           `yaml:"pattern"`
	Items   *ItemConstraints `yaml:"item_constraints"`

	pattern *regexp.Regexp
}

// ItemConstraints describes the shape of each map in a List[Dict] field.
type ItemConstraints struct {
	RequiredFields []string         `yaml:"required_fields"`
	TypeMappings   map[string]Kind  `yaml:"type_mappings"`
	Enum           map[string][]any `yaml:"enum"`
}

// definition mirrors a schema YAML file.
type definition struct {
	Profile     map[string]Kind `yaml:"profile"`
	Data        map[string]Kind `yaml:"data"`
	Validations struct {
		MandatoryFields map[Section][]string       `yaml:"mandatory_fields"`
		TypeConstraints map[string]Constraints     `yaml:"type_constraints"`
		Initialization  map[Section]map[string]any `yaml:"initialization"`
	} `yaml:"validations"`
}

// Schema is the compiled rule table of one entity type.
type Schema struct {
	Type     string
	fields   map[Section]map[string]Field
	defaults map[Section]map[string]any
}
