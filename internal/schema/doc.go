// Package schema is the schema registry for digital replicas.
//
// Each entity type (door, room, smart_home) is described by a YAML rule
// table: the fields of its profile and data sections with their primitive
// types, the mandatory fields, range/enum/pattern constraints, the shape of
// list-of-object fields such as measurements, and initialization defaults.
// One generic validator walks any values map against that table.
//
// The built-in tables are embedded; a directory of <type>.yaml files can
// override them. The registry is loaded once at startup and read-only
// afterwards; failing to load it is fatal.
//
//	reg, err := schema.NewDefaultRegistry(cfg.Schema.Dir)
//	profile, data, err := reg.ValidateEntity("door", in.Profile, in.Data, schema.Full)
package schema
