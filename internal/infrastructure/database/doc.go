// Package database provides the SQLite store behind meshsim's status
// history and audit trail.
//
// This package manages:
//   - Connection setup with WAL mode and a busy timeout
//   - Embedded, versioned schema migrations
//   - A private in-memory mode (Path ":memory:") for tests and throwaway runs
//
// All queries use parameterised statements. The database file is created
// with 0600 permissions.
//
// Usage:
//
//	import _ "github.com/nerrad567/meshsim/migrations"
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql and
// applied in version order, each in its own transaction.
package database
