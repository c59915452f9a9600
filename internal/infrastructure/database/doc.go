// Package database provides the SQLite connection used by the command audit.
//
// It manages:
//   - Opening the database file with WAL mode and a busy timeout
//   - Applying embedded, forward-only schema migrations
//   - Health checks for the HTTP health endpoint
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql. A matching
// .down.sql file is optional and only used by MigrateDown.
package database
