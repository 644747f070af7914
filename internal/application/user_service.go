package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/office-calendar/internal/persistence"
)

// UserRepository captures the persistence operations needed by the user service.
type UserRepository interface {
	GetUser(ctx context.Context, id int64) (User, error)
	UpdateUser(ctx context.Context, user User) (User, error)
	DeleteUser(ctx context.Context, id int64) error
	ListUsers(ctx context.Context) ([]User, error)
}

// UserService orchestrates validation, authorization, and persistence for users.
type UserService struct {
	users  UserRepository
	now    func() time.Time
	logger *slog.Logger
}

// NewUserService wires dependencies for the user service.
func NewUserService(users UserRepository, now func() time.Time) *UserService {
	return NewUserServiceWithLogger(users, now, nil)
}

// NewUserServiceWithLogger wires dependencies for the user service with a specified logger.
func NewUserServiceWithLogger(users UserRepository, now func() time.Time, logger *slog.Logger) *UserService {
	if now == nil {
		now = time.Now
	}
	return &UserService{users: users, now: now, logger: defaultLogger(logger)}
}

// GetUser returns a single account. Any authenticated principal may look users up.
func (s *UserService) GetUser(ctx context.Context, principal Principal, userID int64) (User, error) {
	if s == nil {
		return User{}, fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return User{}, fmt.Errorf("user repository not configured")
	}
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return User{}, mapRepoError(err)
	}
	return user, nil
}

// UpdateUser lets users edit their own profile and administrators edit anyone.
// Only administrators may change the admin flag.
func (s *UserService) UpdateUser(ctx context.Context, params UpdateUserParams) (User, error) {
	if s == nil {
		return User{}, fmt.Errorf("UserService is nil")
	}
	if !params.Principal.IsAdmin && params.Principal.UserID != params.UserID {
		return User{}, ErrUnauthorized
	}
	if params.Input.IsAdmin != nil && !params.Principal.IsAdmin {
		return User{}, ErrUnauthorized
	}
	if s.users == nil {
		return User{}, fmt.Errorf("user repository not configured")
	}

	input := normalizeUserUpdate(params.Input)
	if vErr := validateStruct(input); vErr.HasErrors() {
		return User{}, vErr
	}

	existing, err := s.users.GetUser(ctx, params.UserID)
	if err != nil {
		return User{}, mapRepoError(err)
	}

	if input.IsAdmin != nil && !*input.IsAdmin && existing.ID == params.Principal.UserID {
		return User{}, newStateError("administrators cannot revoke their own admin rights")
	}

	updated := existing
	if input.Email != nil {
		updated.Email = *input.Email
	}
	if input.DisplayName != nil {
		updated.DisplayName = *input.DisplayName
	}
	if input.IsAdmin != nil {
		updated.IsAdmin = *input.IsAdmin
	}
	updated.UpdatedAt = s.now()

	persisted, err := s.users.UpdateUser(ctx, updated)
	if err != nil {
		if errors.Is(err, persistence.ErrDuplicate) {
			vErr := &ValidationError{}
			vErr.add("email", "email is already registered")
			return User{}, vErr
		}
		return User{}, mapRepoError(err)
	}

	serviceLogger(ctx, s.logger, "UserService", "UpdateUser",
		"principal_id", params.Principal.UserID,
		"user_id", persisted.ID,
	).InfoContext(ctx, "user updated")
	return persisted, nil
}

// DeleteUser removes a user when requested by an administrator.
func (s *UserService) DeleteUser(ctx context.Context, principal Principal, userID int64) error {
	if s == nil {
		return fmt.Errorf("UserService is nil")
	}
	if !principal.IsAdmin {
		return ErrUnauthorized
	}
	if principal.UserID == userID {
		return newStateError("you cannot delete your own account")
	}
	if s.users == nil {
		return fmt.Errorf("user repository not configured")
	}

	if err := s.users.DeleteUser(ctx, userID); err != nil {
		return mapRepoError(err)
	}

	serviceLogger(ctx, s.logger, "UserService", "DeleteUser",
		"principal_id", principal.UserID,
		"user_id", userID,
	).InfoContext(ctx, "user deleted")
	return nil
}

// ListUsers returns the user directory ordered by username.
func (s *UserService) ListUsers(ctx context.Context, principal Principal) ([]User, error) {
	if s == nil {
		return nil, fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return nil, nil
	}

	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, mapRepoError(err)
	}

	out := make([]User, len(users))
	copy(out, users)

	sort.Slice(out, func(i, j int) bool {
		if strings.EqualFold(out[i].Username, out[j].Username) {
			return out[i].ID < out[j].ID
		}
		return strings.ToLower(out[i].Username) < strings.ToLower(out[j].Username)
	})

	return out, nil
}

func normalizeUserUpdate(input UserUpdateInput) UserUpdateInput {
	if input.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*input.Email))
		input.Email = &email
	}
	if input.DisplayName != nil {
		name := strings.TrimSpace(*input.DisplayName)
		input.DisplayName = &name
	}
	return input
}
