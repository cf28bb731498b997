// Package database handles database connections and schema inspection.
//
// It wraps GORM to configure MySQL (production) or SQLite (development and
// tests) connections from the application's configuration.
//
// # Connect
//
// Connect opens the dialect selected by Config.Driver, applies pool settings
// and pings the server. Duplicate-key errors are translated into
// gorm.ErrDuplicatedKey so callers can detect unique-name collisions without
// depending on driver error codes.
//
// # Schema Inspection
//
// GetTableColumns and MissingColumns let repositories verify that a migrated
// table carries the columns they rely on.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Fatal("Database connection failed", err)
//	}
//
//	missing, err := database.MissingColumns(db, "services", []string{"name", "details"})
package database
