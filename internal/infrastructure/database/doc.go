// Package database provides SQLite connectivity for the coordinator.
//
// It opens the database with WAL mode and a busy timeout, and applies
// versioned migrations from any fs.FS (normally the embedded migrations
// package). Only finished-game history is stored here; live sessions are
// held in memory.
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if _, err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
package database
