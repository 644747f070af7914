// Package migration applies versioned SQL migrations to SQLite databases.
//
// Migrations are read from an fs.FS (usually an embed.FS) and must follow the
// naming convention {version}_{description}.sql, e.g. "001_initial_schema.sql".
// Each file runs inside a single transaction and is recorded in the
// schema_migrations table together with its checksum, so already applied files
// are skipped and edited files are reported.
//
// Example usage:
//
//	migrations, err := migration.NewScanner(files, "migrations").Scan()
//	if err != nil {
//		return err
//	}
//	manager := migration.NewManager(migration.NewSQLiteExecutor(db), migrations, logger)
//	if err := manager.Run(ctx); err != nil {
//		return err
//	}
package migration
