package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/office-calendar/internal/persistence"
)

const userColumns = `id, username, email, display_name, password_hash, is_admin, created_at, updated_at`

// UserRepository implements persistence.UserRepository using SQLite
type UserRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
	now    func() time.Time
}

// NewUserRepository creates a new SQLite user repository
func NewUserRepository(pool *ConnectionPool) *UserRepository {
	return &UserRepository{pool: pool, mapper: NewErrorMapper(), now: time.Now}
}

// CreateUser inserts a user and returns it with its assigned ID.
func (r *UserRepository) CreateUser(ctx context.Context, user persistence.User) (persistence.User, error) {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = r.now().UTC()
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}

	result, err := r.pool.DB().ExecContext(ctx, `
		INSERT INTO users (username, email, display_name, password_hash, is_admin, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.Username,
		user.Email,
		user.DisplayName,
		user.PasswordHash,
		user.IsAdmin,
		formatTime(user.CreatedAt),
		formatTime(user.UpdatedAt),
	)
	if err != nil {
		return persistence.User{}, r.mapper.MapError(err)
	}

	if user.ID, err = result.LastInsertId(); err != nil {
		return persistence.User{}, fmt.Errorf("failed to read user id: %w", err)
	}
	return user, nil
}

// UpdateUser updates the mutable fields of an existing user.
func (r *UserRepository) UpdateUser(ctx context.Context, user persistence.User) error {
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = r.now().UTC()
	}

	result, err := r.pool.DB().ExecContext(ctx, `
		UPDATE users
		SET email = ?, display_name = ?, password_hash = ?, is_admin = ?, updated_at = ?
		WHERE id = ?`,
		user.Email,
		user.DisplayName,
		user.PasswordHash,
		user.IsAdmin,
		formatTime(user.UpdatedAt),
		user.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return checkAffected(result)
}

// GetUser retrieves a user by ID.
func (r *UserRepository) GetUser(ctx context.Context, id int64) (persistence.User, error) {
	row := r.pool.DB().QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return r.scanUser(row)
}

// GetUserByLogin retrieves a user by username or email, ignoring case.
func (r *UserRepository) GetUserByLogin(ctx context.Context, login string) (persistence.User, error) {
	row := r.pool.DB().QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ? COLLATE NOCASE OR email = ? COLLATE NOCASE LIMIT 1`,
		login, login)
	return r.scanUser(row)
}

// ListUsers returns all users ordered by username.
func (r *UserRepository) ListUsers(ctx context.Context) ([]persistence.User, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY username COLLATE NOCASE, id`)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var users []persistence.User
	for rows.Next() {
		user, err := r.scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return users, nil
}

// CountUsers returns the number of registered users.
func (r *UserRepository) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, r.mapper.MapError(err)
	}
	return count, nil
}

// DeleteUser removes a user. Sessions, bookings, participations and created
// events cascade.
func (r *UserRepository) DeleteUser(ctx context.Context, id int64) error {
	result, err := r.pool.DB().ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return checkAffected(result)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *UserRepository) scanUser(row rowScanner) (persistence.User, error) {
	var (
		user                 persistence.User
		createdAt, updatedAt string
	)
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.DisplayName,
		&user.PasswordHash,
		&user.IsAdmin,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return persistence.User{}, persistence.ErrNotFound
		}
		return persistence.User{}, r.mapper.MapError(err)
	}
	if user.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return persistence.User{}, err
	}
	if user.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return persistence.User{}, err
	}
	return user, nil
}
