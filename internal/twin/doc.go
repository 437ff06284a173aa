// Package twin aggregates the entities of one customer into a short-lived
// digital twin.
//
// A Twin is acquired for a single operation, used to run services over a
// snapshot of the smart home, its rooms and its doors, and released
// straight after. Aggregator.With is the usual entry point:
//
//	err := twins.With(ctx, "alice", func(t *twin.Twin) error {
//	    pos, err := t.Execute(service.NameRetrievePetPosition, "", "")
//	    ...
//	})
//
// Twins are never cached. Live reports how many are still held, which
// should be zero between operations.
package twin
