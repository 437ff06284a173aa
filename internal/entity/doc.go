// Package entity stores Digital Replicas: the doors, rooms and smart homes
// of every customer.
//
// An Entity is a generic record with two sections, profile (identity and
// configuration) and data (operational state), validated against the schema
// registry on create and on every partial update. Updates replace list
// fields whole; appending a measurement is a read, append, write-back cycle
// done by AppendMeasurement.
//
// Persistence goes through the Repository interface. SQLiteRepository keeps
// one table per collection (door_collection, room_collection,
// smart_home_collection) and translates Filter conditions to json_extract
// and json_each predicates.
//
// Usage:
//
//	store := entity.NewStore(entity.NewSQLiteRepository(db.DB), schemas)
//	room, err := store.Create(ctx, entity.TypeRoom, entity.Input{
//	    Profile: map[string]any{"name": "Kitchen"},
//	})
//	occupied, err := store.Query(ctx, entity.TypeRoom,
//	    entity.Where(schema.SectionData, entity.FieldVacancy, false))
package entity
