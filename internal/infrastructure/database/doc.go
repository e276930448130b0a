// Package database provides SQLite connection management and schema
// migrations for AirCore.
//
// It wraps database/sql with WAL-mode pragmas suited to a single-writer
// embedded database, and applies embedded SQL migrations at startup.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: "./data/aircore.db", WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
