// Package sqlite implements the persistence repositories on SQLite using the
// pure Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"github.com/example/office-calendar/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Store bundles the SQLite repositories over one connection pool.
type Store struct {
	pool *ConnectionPool

	Users          *UserRepository
	Sessions       *SessionRepository
	Rooms          *RoomRepository
	Bookings       *BookingRepository
	Events         *EventRepository
	Participations *ParticipationRepository
	Notifications  *NotificationRepository
}

// Open connects to the database described by config.
func Open(ctx context.Context, config Config) (*Store, error) {
	pool, err := NewConnectionPool(ctx, config)
	if err != nil {
		return nil, err
	}
	return &Store{
		pool:           pool,
		Users:          NewUserRepository(pool),
		Sessions:       NewSessionRepository(pool),
		Rooms:          NewRoomRepository(pool),
		Bookings:       NewBookingRepository(pool),
		Events:         NewEventRepository(pool),
		Participations: NewParticipationRepository(pool),
		Notifications:  NewNotificationRepository(pool),
	}, nil
}

// Migrate applies the embedded schema migrations.
func (s *Store) Migrate(ctx context.Context, logger *slog.Logger) error {
	migrations, err := migration.NewScanner(migrationFiles, "migrations").Scan()
	if err != nil {
		return fmt.Errorf("scan migrations: %w", err)
	}
	manager := migration.NewManager(migration.NewSQLiteExecutor(s.pool.DB()), migrations, logger)
	if err := manager.Run(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}
