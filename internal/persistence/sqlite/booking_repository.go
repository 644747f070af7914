package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/office-calendar/internal/persistence"
)

// BookingRepository implements persistence.BookingRepository using SQLite
type BookingRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
	now    func() time.Time
}

// NewBookingRepository creates a new SQLite booking repository
func NewBookingRepository(pool *ConnectionPool) *BookingRepository {
	return &BookingRepository{pool: pool, mapper: NewErrorMapper(), now: time.Now}
}

// CreateBookings inserts every booking in one transaction. An overlap rejected
// by the room_bookings_no_overlap trigger surfaces as persistence.ErrOverlap and
// nothing is written.
func (r *BookingRepository) CreateBookings(ctx context.Context, bookings []persistence.RoomBooking) ([]persistence.RoomBooking, error) {
	if len(bookings) == 0 {
		return nil, nil
	}

	created := make([]persistence.RoomBooking, 0, len(bookings))
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO room_bookings (room_id, user_id, booking_date, starts_at, ends_at, purpose, series_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return r.mapper.MapError(err)
		}
		defer stmt.Close()

		for _, booking := range bookings {
			if !booking.StartsAt.Before(booking.EndsAt) {
				return persistence.ErrConstraintViolation
			}
			if booking.CreatedAt.IsZero() {
				booking.CreatedAt = r.now().UTC()
			}
			result, err := stmt.ExecContext(ctx,
				booking.RoomID,
				booking.UserID,
				booking.BookingDate,
				booking.StartsAt.Unix(),
				booking.EndsAt.Unix(),
				nullString(booking.Purpose),
				nullString(booking.SeriesID),
				formatTime(booking.CreatedAt),
			)
			if err != nil {
				return r.mapper.MapError(err)
			}
			if booking.ID, err = result.LastInsertId(); err != nil {
				return fmt.Errorf("failed to read booking id: %w", err)
			}
			booking.StartsAt = fromUnix(booking.StartsAt.Unix())
			booking.EndsAt = fromUnix(booking.EndsAt.Unix())
			created = append(created, booking)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ListBookings returns bookings matching filter ordered by start time.
func (r *BookingRepository) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.RoomBooking, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.RoomID != 0 {
		clauses = append(clauses, "room_id = ?")
		args = append(args, filter.RoomID)
	}
	if filter.UserID != 0 {
		clauses = append(clauses, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.BookingDate != "" {
		clauses = append(clauses, "booking_date = ?")
		args = append(args, filter.BookingDate)
	}

	query := `SELECT id, room_id, user_id, booking_date, starts_at, ends_at, purpose, series_id, created_at FROM room_bookings`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY starts_at ASC, id ASC"

	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var bookings []persistence.RoomBooking
	for rows.Next() {
		var (
			booking           persistence.RoomBooking
			startsAt, endsAt  int64
			purpose, seriesID sql.NullString
			createdAt         string
		)
		if err := rows.Scan(
			&booking.ID,
			&booking.RoomID,
			&booking.UserID,
			&booking.BookingDate,
			&startsAt,
			&endsAt,
			&purpose,
			&seriesID,
			&createdAt,
		); err != nil {
			return nil, r.mapper.MapError(err)
		}
		booking.StartsAt = fromUnix(startsAt)
		booking.EndsAt = fromUnix(endsAt)
		booking.Purpose = stringPtr(purpose)
		booking.SeriesID = stringPtr(seriesID)
		if booking.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return bookings, nil
}
