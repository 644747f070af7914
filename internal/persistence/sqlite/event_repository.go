package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/office-calendar/internal/persistence"
)

const eventColumns = `e.id, e.title, e.description, e.starts_at, e.duration_hours, e.host_label, e.location, e.creator_id, e.created_at, e.updated_at`

// EventRepository implements persistence.EventRepository using SQLite
type EventRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
	now    func() time.Time
}

// NewEventRepository creates a new SQLite event repository
func NewEventRepository(pool *ConnectionPool) *EventRepository {
	return &EventRepository{pool: pool, mapper: NewErrorMapper(), now: time.Now}
}

// CreateEvent inserts the event and its initial participations in one transaction.
func (r *EventRepository) CreateEvent(ctx context.Context, event persistence.Event, participations []persistence.Participation) (persistence.Event, error) {
	if event.DurationHours <= 0 {
		return persistence.Event{}, persistence.ErrConstraintViolation
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = r.now().UTC()
	}
	if event.UpdatedAt.IsZero() {
		event.UpdatedAt = event.CreatedAt
	}

	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO events (title, description, starts_at, duration_hours, ends_at, host_label, location, creator_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			event.Title,
			event.Description,
			event.StartsAt.Unix(),
			event.DurationHours,
			eventEnd(event).Unix(),
			event.HostLabel,
			event.Location,
			event.CreatorID,
			formatTime(event.CreatedAt),
			formatTime(event.UpdatedAt),
		)
		if err != nil {
			return r.mapper.MapError(err)
		}
		if event.ID, err = result.LastInsertId(); err != nil {
			return fmt.Errorf("failed to read event id: %w", err)
		}

		for _, p := range participations {
			p.EventID = event.ID
			if p.CreatedAt.IsZero() {
				p.CreatedAt = event.CreatedAt
			}
			if p.UpdatedAt.IsZero() {
				p.UpdatedAt = p.CreatedAt
			}
			if err := upsertParticipation(ctx, tx, p); err != nil {
				return r.mapper.MapError(err)
			}
		}
		return nil
	})
	if err != nil {
		return persistence.Event{}, err
	}
	event.StartsAt = fromUnix(event.StartsAt.Unix())
	return event, nil
}

// UpdateEvent updates an event's details and time.
func (r *EventRepository) UpdateEvent(ctx context.Context, event persistence.Event) error {
	if event.DurationHours <= 0 {
		return persistence.ErrConstraintViolation
	}
	if event.UpdatedAt.IsZero() {
		event.UpdatedAt = r.now().UTC()
	}

	result, err := r.pool.DB().ExecContext(ctx, `
		UPDATE events
		SET title = ?, description = ?, starts_at = ?, duration_hours = ?, ends_at = ?,
		    host_label = ?, location = ?, updated_at = ?
		WHERE id = ?`,
		event.Title,
		event.Description,
		event.StartsAt.Unix(),
		event.DurationHours,
		eventEnd(event).Unix(),
		event.HostLabel,
		event.Location,
		formatTime(event.UpdatedAt),
		event.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return checkAffected(result)
}

// GetEvent retrieves an event by ID.
func (r *EventRepository) GetEvent(ctx context.Context, id int64) (persistence.Event, error) {
	row := r.pool.DB().QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events e WHERE e.id = ?`, id)
	return r.scanEvent(row)
}

// ListEvents returns events matching filter ordered by start time.
func (r *EventRepository) ListEvents(ctx context.Context, filter persistence.EventFilter) ([]persistence.Event, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.StartsBefore != nil {
		clauses = append(clauses, "e.starts_at < ?")
		args = append(args, filter.StartsBefore.Unix())
	}
	if filter.EndsAfter != nil {
		clauses = append(clauses, "e.ends_at > ?")
		args = append(args, filter.EndsAfter.Unix())
	}
	if filter.ParticipantID != 0 {
		clause := "EXISTS (SELECT 1 FROM event_participations p WHERE p.event_id = e.id AND p.user_id = ?"
		args = append(args, filter.ParticipantID)
		if len(filter.Statuses) > 0 {
			clause += " AND p.status IN (" + placeholders(len(filter.Statuses)) + ")"
			for _, status := range filter.Statuses {
				args = append(args, status)
			}
		}
		clauses = append(clauses, clause+")")
	}

	query := `SELECT ` + eventColumns + ` FROM events e`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY e.starts_at ASC, e.id ASC"

	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var events []persistence.Event
	for rows.Next() {
		event, err := r.scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return events, nil
}

// DeleteEvent removes an event and, by cascade, its participations.
func (r *EventRepository) DeleteEvent(ctx context.Context, id int64) error {
	result, err := r.pool.DB().ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return checkAffected(result)
}

func (r *EventRepository) scanEvent(row rowScanner) (persistence.Event, error) {
	var (
		event                persistence.Event
		startsAt             int64
		createdAt, updatedAt string
	)
	err := row.Scan(
		&event.ID,
		&event.Title,
		&event.Description,
		&startsAt,
		&event.DurationHours,
		&event.HostLabel,
		&event.Location,
		&event.CreatorID,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return persistence.Event{}, persistence.ErrNotFound
		}
		return persistence.Event{}, r.mapper.MapError(err)
	}
	event.StartsAt = fromUnix(startsAt)
	if event.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return persistence.Event{}, err
	}
	if event.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return persistence.Event{}, err
	}
	return event, nil
}

func eventEnd(event persistence.Event) time.Time {
	return event.StartsAt.Add(time.Duration(event.DurationHours) * time.Hour)
}
