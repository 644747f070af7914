package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/example/office-calendar/internal/persistence"
)

// SessionRepository implements persistence.SessionRepository using SQLite
type SessionRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewSessionRepository creates a new SQLite session repository
func NewSessionRepository(pool *ConnectionPool) *SessionRepository {
	return &SessionRepository{pool: pool, mapper: NewErrorMapper()}
}

// CreateSession stores a new session.
func (r *SessionRepository) CreateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	if session.ID == "" || session.Token == "" {
		return persistence.Session{}, persistence.ErrConstraintViolation
	}
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = session.CreatedAt
	}

	_, err := r.pool.DB().ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, token, expires_at, created_at, updated_at, revoked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.UserID,
		session.Token,
		formatTime(session.ExpiresAt),
		formatTime(session.CreatedAt),
		formatTime(session.UpdatedAt),
		nullTime(session.RevokedAt),
	)
	if err != nil {
		return persistence.Session{}, r.mapper.MapError(err)
	}
	return session, nil
}

// GetSession retrieves a session by its token.
func (r *SessionRepository) GetSession(ctx context.Context, token string) (persistence.Session, error) {
	if token == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}
	row := r.pool.DB().QueryRowContext(ctx, `
		SELECT id, user_id, token, expires_at, created_at, updated_at, revoked_at
		FROM sessions WHERE token = ?`, token)

	var (
		session                         persistence.Session
		expiresAt, createdAt, updatedAt string
		revokedAt                       sql.NullString
	)
	err := row.Scan(&session.ID, &session.UserID, &session.Token, &expiresAt, &createdAt, &updatedAt, &revokedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return persistence.Session{}, persistence.ErrNotFound
		}
		return persistence.Session{}, r.mapper.MapError(err)
	}
	if session.ExpiresAt, err = parseTime("expires_at", expiresAt); err != nil {
		return persistence.Session{}, err
	}
	if session.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return persistence.Session{}, err
	}
	if session.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return persistence.Session{}, err
	}
	if session.RevokedAt, err = parseNullTime("revoked_at", revokedAt); err != nil {
		return persistence.Session{}, err
	}
	return session, nil
}

// RevokeSession marks a session revoked. Revoking twice keeps the first timestamp.
func (r *SessionRepository) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (persistence.Session, error) {
	result, err := r.pool.DB().ExecContext(ctx, `
		UPDATE sessions
		SET revoked_at = COALESCE(revoked_at, ?), updated_at = ?
		WHERE token = ?`,
		formatTime(revokedAt), formatTime(revokedAt), token)
	if err != nil {
		return persistence.Session{}, r.mapper.MapError(err)
	}
	if err := checkAffected(result); err != nil {
		return persistence.Session{}, err
	}
	return r.GetSession(ctx, token)
}

// DeleteExpiredSessions removes sessions that expired or were revoked before reference.
func (r *SessionRepository) DeleteExpiredSessions(ctx context.Context, reference time.Time) (int64, error) {
	ref := formatTime(reference)
	result, err := r.pool.DB().ExecContext(ctx, `
		DELETE FROM sessions
		WHERE expires_at <= ? OR (revoked_at IS NOT NULL AND revoked_at <= ?)`, ref, ref)
	if err != nil {
		return 0, r.mapper.MapError(err)
	}
	return result.RowsAffected()
}
