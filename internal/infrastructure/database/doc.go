// Package database provides SQLite connectivity for the exporter.
//
// The only persistent state of the exporter is its export history (one row
// per export run); the exported YAML itself is a flat file. This package
// manages:
//   - Opening the database in WAL mode with a busy timeout
//   - Applying embedded, forward-only schema migrations
//   - Health checks for the status endpoint
//
// All queries in callers use parameterised statements.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
