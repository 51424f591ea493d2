// Package database provides the SQLite store behind the rabbitlink
// lifecycle journal.
//
// This package manages:
//   - Opening the database file with WAL mode and a busy timeout
//   - Applying schema migrations from any fs.FS
//   - Transaction helpers and health checks
//
// The database file is created with 0600 permissions. Every query used by
// rabbitlink is parameterised.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{
//	    Path:        cfg.Database.Path,
//	    WALMode:     cfg.Database.WALMode,
//	    BusyTimeout: cfg.Database.BusyTimeout,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if _, err := db.Migrator(migrations.FS()).Up(ctx); err != nil {
//	    return err
//	}
package database
