// Package database provides SQLite connectivity for the device history store.
//
// This package manages:
//   - Opening the database with WAL mode and a busy timeout
//   - Applying schema migrations read from an fs.FS
//   - Health checks and transaction helpers
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are additive: new columns must be nullable or have defaults,
// and each .up.sql should ship with a .down.sql for Rollback.
package database
