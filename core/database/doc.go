// Package database handles relational store connections and schema inspection.
//
// It provides a wrapper around GORM to configure MySQL, PostgreSQL or SQLite
// connections from the application's configuration.
//
// # Connect
//
// Connect opens the configured driver, applies pool settings and pings the
// server with the configured timeout. SQLite is used by tests and local runs.
//
// # Schema Inspection
//
// GetTableColumns lists the live columns of a table. The status command uses
// it to report columns the profile table is missing, which is the situation
// in which relational writes fall back to the core fields.
//
// Open prepares the pool without contacting the server, so a database that
// is down at startup can be probed until it comes back. Connect also pings.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Fatal("Database connection failed", err)
//	}
//
//	columns, err := database.GetTableColumns(db, "users")
package database
