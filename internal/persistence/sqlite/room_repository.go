package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/office-calendar/internal/persistence"
)

// RoomRepository implements persistence.RoomRepository using SQLite
type RoomRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
	now    func() time.Time
}

// NewRoomRepository creates a new SQLite room repository
func NewRoomRepository(pool *ConnectionPool) *RoomRepository {
	return &RoomRepository{pool: pool, mapper: NewErrorMapper(), now: time.Now}
}

// CreateRoom inserts a new room and returns it with its assigned ID.
func (r *RoomRepository) CreateRoom(ctx context.Context, room persistence.Room) (persistence.Room, error) {
	if room.Capacity <= 0 {
		return persistence.Room{}, persistence.ErrConstraintViolation
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = r.now().UTC()
	}
	if room.UpdatedAt.IsZero() {
		room.UpdatedAt = room.CreatedAt
	}

	result, err := r.pool.DB().ExecContext(ctx, `
		INSERT INTO rooms (name, location, capacity, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		room.Name,
		room.Location,
		room.Capacity,
		formatTime(room.CreatedAt),
		formatTime(room.UpdatedAt),
	)
	if err != nil {
		return persistence.Room{}, r.mapper.MapError(err)
	}
	if room.ID, err = result.LastInsertId(); err != nil {
		return persistence.Room{}, fmt.Errorf("failed to read room id: %w", err)
	}
	return room, nil
}

// UpdateRoom updates an existing room in the database
func (r *RoomRepository) UpdateRoom(ctx context.Context, room persistence.Room) error {
	if room.Capacity <= 0 {
		return persistence.ErrConstraintViolation
	}
	if room.UpdatedAt.IsZero() {
		room.UpdatedAt = r.now().UTC()
	}

	result, err := r.pool.DB().ExecContext(ctx, `
		UPDATE rooms
		SET name = ?, location = ?, capacity = ?, updated_at = ?
		WHERE id = ?`,
		room.Name,
		room.Location,
		room.Capacity,
		formatTime(room.UpdatedAt),
		room.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return checkAffected(result)
}

// GetRoom retrieves a room by ID from the database
func (r *RoomRepository) GetRoom(ctx context.Context, id int64) (persistence.Room, error) {
	row := r.pool.DB().QueryRowContext(ctx, `
		SELECT id, name, location, capacity, created_at, updated_at
		FROM rooms WHERE id = ?`, id)
	return r.scanRoom(row)
}

// ListRooms returns all rooms ordered by name then ID
func (r *RoomRepository) ListRooms(ctx context.Context) ([]persistence.Room, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT id, name, location, capacity, created_at, updated_at
		FROM rooms
		ORDER BY name COLLATE NOCASE ASC, id ASC`)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var rooms []persistence.Room
	for rows.Next() {
		room, err := r.scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return rooms, nil
}

// DeleteRoom removes a room and, by cascade, its bookings.
func (r *RoomRepository) DeleteRoom(ctx context.Context, id int64) error {
	result, err := r.pool.DB().ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return checkAffected(result)
}

func (r *RoomRepository) scanRoom(row rowScanner) (persistence.Room, error) {
	var (
		room                 persistence.Room
		createdAt, updatedAt string
	)
	err := row.Scan(&room.ID, &room.Name, &room.Location, &room.Capacity, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return persistence.Room{}, persistence.ErrNotFound
		}
		return persistence.Room{}, r.mapper.MapError(err)
	}
	if room.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return persistence.Room{}, err
	}
	if room.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return persistence.Room{}, err
	}
	return room, nil
}
