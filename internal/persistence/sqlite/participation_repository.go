package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/example/office-calendar/internal/persistence"
)

// ParticipationRepository implements persistence.ParticipationRepository using SQLite
type ParticipationRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
	now    func() time.Time
}

// NewParticipationRepository creates a new SQLite participation repository
func NewParticipationRepository(pool *ConnectionPool) *ParticipationRepository {
	return &ParticipationRepository{pool: pool, mapper: NewErrorMapper(), now: time.Now}
}

// GetParticipation returns the record for one (event, user) pair.
func (r *ParticipationRepository) GetParticipation(ctx context.Context, eventID, userID int64) (persistence.Participation, error) {
	row := r.pool.DB().QueryRowContext(ctx, `
		SELECT p.event_id, p.user_id, p.status, u.username, u.email, p.created_at, p.updated_at
		FROM event_participations p
		JOIN users u ON u.id = p.user_id
		WHERE p.event_id = ? AND p.user_id = ?`, eventID, userID)
	return r.scanParticipation(row)
}

// ListParticipations returns the records of the given events ordered by event
// and then by the time each record last changed.
func (r *ParticipationRepository) ListParticipations(ctx context.Context, eventIDs ...int64) ([]persistence.Participation, error) {
	if len(eventIDs) == 0 {
		return nil, nil
	}
	args := make([]any, len(eventIDs))
	for i, id := range eventIDs {
		args[i] = id
	}

	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT p.event_id, p.user_id, p.status, u.username, u.email, p.created_at, p.updated_at
		FROM event_participations p
		JOIN users u ON u.id = p.user_id
		WHERE p.event_id IN (`+placeholders(len(eventIDs))+`)
		ORDER BY p.event_id ASC, p.updated_at ASC, p.user_id ASC`, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var participations []persistence.Participation
	for rows.Next() {
		p, err := r.scanParticipation(rows)
		if err != nil {
			return nil, err
		}
		participations = append(participations, p)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return participations, nil
}

// UpsertParticipation creates the record or replaces its status. A transition to
// Going that overlaps another Going event of the user fails with
// persistence.ErrOverlap.
func (r *ParticipationRepository) UpsertParticipation(ctx context.Context, participation persistence.Participation) error {
	if participation.UpdatedAt.IsZero() {
		participation.UpdatedAt = r.now().UTC()
	}
	if participation.CreatedAt.IsZero() {
		participation.CreatedAt = participation.UpdatedAt
	}
	return r.mapper.MapError(upsertParticipation(ctx, r.pool.DB(), participation))
}

// DeleteParticipation removes the record for one (event, user) pair.
func (r *ParticipationRepository) DeleteParticipation(ctx context.Context, eventID, userID int64) error {
	result, err := r.pool.DB().ExecContext(ctx,
		`DELETE FROM event_participations WHERE event_id = ? AND user_id = ?`, eventID, userID)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return checkAffected(result)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertParticipation(ctx context.Context, db execer, p persistence.Participation) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO event_participations (event_id, user_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (event_id, user_id) DO UPDATE
		SET status = excluded.status, updated_at = excluded.updated_at`,
		p.EventID,
		p.UserID,
		p.Status,
		formatTime(p.CreatedAt),
		formatTime(p.UpdatedAt),
	)
	return err
}

func (r *ParticipationRepository) scanParticipation(row rowScanner) (persistence.Participation, error) {
	var (
		p                    persistence.Participation
		createdAt, updatedAt string
	)
	err := row.Scan(&p.EventID, &p.UserID, &p.Status, &p.Username, &p.Email, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return persistence.Participation{}, persistence.ErrNotFound
		}
		return persistence.Participation{}, r.mapper.MapError(err)
	}
	if p.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return persistence.Participation{}, err
	}
	if p.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return persistence.Participation{}, err
	}
	return p, nil
}
