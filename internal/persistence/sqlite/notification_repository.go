package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/example/office-calendar/internal/persistence"
)

// NotificationRepository implements persistence.NotificationRepository using SQLite
type NotificationRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
	now    func() time.Time
}

// NewNotificationRepository creates a new SQLite notification repository
func NewNotificationRepository(pool *ConnectionPool) *NotificationRepository {
	return &NotificationRepository{pool: pool, mapper: NewErrorMapper(), now: time.Now}
}

// CreateNotifications inserts all notifications in one transaction.
func (r *NotificationRepository) CreateNotifications(ctx context.Context, notifications []persistence.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		for _, n := range notifications {
			if n.CreatedAt.IsZero() {
				n.CreatedAt = r.now().UTC()
			}
			var eventID any
			if n.EventID != nil {
				eventID = *n.EventID
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO notifications (user_id, event_id, kind, message, created_at, read_at)
				VALUES (?, ?, ?, ?, ?, ?)`,
				n.UserID, eventID, n.Kind, n.Message, formatTime(n.CreatedAt), nullTime(n.ReadAt),
			); err != nil {
				return r.mapper.MapError(err)
			}
		}
		return nil
	})
}

// ListNotifications returns a user's notifications, newest first.
func (r *NotificationRepository) ListNotifications(ctx context.Context, userID int64, unreadOnly bool) ([]persistence.Notification, error) {
	query := `SELECT id, user_id, event_id, kind, message, created_at, read_at FROM notifications WHERE user_id = ?`
	if unreadOnly {
		query += ` AND read_at IS NULL`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.pool.DB().QueryContext(ctx, query, userID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var notifications []persistence.Notification
	for rows.Next() {
		var (
			n         persistence.Notification
			eventID   sql.NullInt64
			createdAt string
			readAt    sql.NullString
		)
		if err := rows.Scan(&n.ID, &n.UserID, &eventID, &n.Kind, &n.Message, &createdAt, &readAt); err != nil {
			return nil, r.mapper.MapError(err)
		}
		if eventID.Valid {
			id := eventID.Int64
			n.EventID = &id
		}
		if n.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
			return nil, err
		}
		if n.ReadAt, err = parseNullTime("read_at", readAt); err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return notifications, nil
}

// MarkRead marks one of the user's notifications read. Marking it again keeps
// the first timestamp.
func (r *NotificationRepository) MarkRead(ctx context.Context, userID, id int64, readAt time.Time) error {
	result, err := r.pool.DB().ExecContext(ctx, `
		UPDATE notifications SET read_at = COALESCE(read_at, ?)
		WHERE id = ? AND user_id = ?`, formatTime(readAt), id, userID)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return checkAffected(result)
}

// MarkAllRead marks every unread notification of the user read.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID int64, readAt time.Time) (int64, error) {
	result, err := r.pool.DB().ExecContext(ctx, `
		UPDATE notifications SET read_at = ?
		WHERE user_id = ? AND read_at IS NULL`, formatTime(readAt), userID)
	if err != nil {
		return 0, r.mapper.MapError(err)
	}
	return result.RowsAffected()
}

// DeleteReadBefore removes notifications read before reference.
func (r *NotificationRepository) DeleteReadBefore(ctx context.Context, reference time.Time) (int64, error) {
	result, err := r.pool.DB().ExecContext(ctx,
		`DELETE FROM notifications WHERE read_at IS NOT NULL AND read_at < ?`, formatTime(reference))
	if err != nil {
		return 0, r.mapper.MapError(err)
	}
	return result.RowsAffected()
}
