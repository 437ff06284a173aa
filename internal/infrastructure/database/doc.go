// Package database provides SQLite connectivity for the pet tracker core.
//
// This package manages:
//   - Opening the database file (or ":memory:") with WAL mode and a busy timeout
//   - Embedded, versioned migrations (YYYYMMDD_HHMMSS_name.up.sql / .down.sql)
//   - Health checks and transaction helpers
//
// All queries use parameterised statements. The database file is created
// with 0600 permissions.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
