package migration

import (
	"context"
	"fmt"
	"log/slog"
)

// Manager applies pending migrations in version order.
type Manager struct {
	executor   *SQLiteExecutor
	migrations []Migration
	logger     *slog.Logger
}

// NewManager constructs a Manager for the given, already scanned, migrations.
func NewManager(executor *SQLiteExecutor, migrations []Migration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{executor: executor, migrations: migrations, logger: logger.With("component", "migration")}
}

// Run applies every pending migration. Applied migrations whose checksum differs
// from the file on disk abort the run.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return err
	}

	status, err := m.Status(ctx)
	if err != nil {
		return err
	}

	m.logger.InfoContext(ctx, "migration status",
		"current_version", status.CurrentVersion,
		"pending_count", len(status.Pending),
	)

	for i, migration := range status.Pending {
		logger := m.logger.With("version", migration.Version, "description", migration.Description)
		if err := m.executor.Apply(ctx, migration); err != nil {
			logger.ErrorContext(ctx, "migration failed", "error", err)
			return err
		}
		logger.InfoContext(ctx, "migration applied", "position", i+1, "total", len(status.Pending))
	}
	return nil
}

// Status compares applied migrations with the known set.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	applied, err := m.executor.Applied(ctx)
	if err != nil {
		return Status{}, err
	}

	byVersion := make(map[string]AppliedMigration, len(applied))
	for _, a := range applied {
		byVersion[a.Version] = a
	}

	status := Status{Applied: applied}
	if len(applied) > 0 {
		status.CurrentVersion = applied[len(applied)-1].Version
	}
	for _, migration := range m.migrations {
		a, ok := byVersion[migration.Version]
		if !ok {
			status.Pending = append(status.Pending, migration)
			continue
		}
		if a.Checksum != migration.Checksum {
			return Status{}, NewMigrationError(migration.Version, migration.FilePath, "verify checksum",
				fmt.Errorf("%w: recorded %s, file %s", ErrChecksumMismatch, a.Checksum, migration.Checksum))
		}
	}
	return status, nil
}
