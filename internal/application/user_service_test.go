package application

import (
	"context"
	"errors"
	"testing"

	"github.com/example/office-calendar/internal/persistence"
)

type userRepoStub struct {
	users     map[int64]User
	updateErr error
	deleted   []int64
}

func newUserRepoStub(users ...User) *userRepoStub {
	s := &userRepoStub{users: make(map[int64]User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *userRepoStub) GetUser(ctx context.Context, id int64) (User, error) {
	u, ok := s.users[id]
	if !ok {
		return User{}, persistence.ErrNotFound
	}
	return u, nil
}

func (s *userRepoStub) UpdateUser(ctx context.Context, user User) (User, error) {
	if s.updateErr != nil {
		return User{}, s.updateErr
	}
	s.users[user.ID] = user
	return user, nil
}

func (s *userRepoStub) DeleteUser(ctx context.Context, id int64) error {
	if _, ok := s.users[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.users, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *userRepoStub) ListUsers(ctx context.Context) ([]User, error) {
	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	return out, nil
}

func newUserFixture() (*UserService, *userRepoStub) {
	repo := newUserRepoStub(
		User{ID: 1, Username: "alice", Email: "alice@example.com"},
		User{ID: 2, Username: "Bob", Email: "bob@example.com"},
		User{ID: 9, Username: "root", Email: "root@example.com", IsAdmin: true},
	)
	return NewUserService(repo, fixedNow), repo
}

func TestUserService_UpdateUser(t *testing.T) {
	ctx := context.Background()
	email := " Alice.New@Example.com "
	yes, no := true, false

	t.Run("users edit their own profile", func(t *testing.T) {
		svc, _ := newUserFixture()

		updated, err := svc.UpdateUser(ctx, UpdateUserParams{Principal: alice, UserID: 1, Input: UserUpdateInput{Email: &email}})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if updated.Email != "alice.new@example.com" {
			t.Fatalf("expected normalised email, got %q", updated.Email)
		}
	})

	t.Run("users cannot edit others or grant admin", func(t *testing.T) {
		svc, _ := newUserFixture()

		if _, err := svc.UpdateUser(ctx, UpdateUserParams{Principal: alice, UserID: 2, Input: UserUpdateInput{Email: &email}}); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
		if _, err := svc.UpdateUser(ctx, UpdateUserParams{Principal: alice, UserID: 1, Input: UserUpdateInput{IsAdmin: &yes}}); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized granting admin, got %v", err)
		}
	})

	t.Run("admins cannot revoke their own rights", func(t *testing.T) {
		svc, _ := newUserFixture()

		_, err := svc.UpdateUser(ctx, UpdateUserParams{Principal: admin, UserID: 9, Input: UserUpdateInput{IsAdmin: &no}})
		var sErr *StateError
		if !errors.As(err, &sErr) {
			t.Fatalf("expected StateError, got %v", err)
		}
	})

	t.Run("admins promote users", func(t *testing.T) {
		svc, repo := newUserFixture()

		if _, err := svc.UpdateUser(ctx, UpdateUserParams{Principal: admin, UserID: 2, Input: UserUpdateInput{IsAdmin: &yes}}); err != nil {
			t.Fatalf("promote: %v", err)
		}
		if !repo.users[2].IsAdmin {
			t.Fatalf("expected bob to be admin")
		}
	})

	t.Run("duplicate email", func(t *testing.T) {
		svc, repo := newUserFixture()
		repo.updateErr = persistence.ErrDuplicate

		_, err := svc.UpdateUser(ctx, UpdateUserParams{Principal: alice, UserID: 1, Input: UserUpdateInput{Email: &email}})
		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.FieldErrors["email"] == "" {
			t.Fatalf("expected email ValidationError, got %v", err)
		}
	})

	t.Run("invalid email", func(t *testing.T) {
		svc, _ := newUserFixture()
		bad := "not-an-email"

		_, err := svc.UpdateUser(ctx, UpdateUserParams{Principal: alice, UserID: 1, Input: UserUpdateInput{Email: &bad}})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})
}

func TestUserService_DeleteUser(t *testing.T) {
	ctx := context.Background()
	svc, repo := newUserFixture()

	if err := svc.DeleteUser(ctx, alice, 2); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	var sErr *StateError
	if err := svc.DeleteUser(ctx, admin, 9); !errors.As(err, &sErr) {
		t.Fatalf("expected StateError deleting self, got %v", err)
	}
	if err := svc.DeleteUser(ctx, admin, 2); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(repo.deleted) != 1 || repo.deleted[0] != 2 {
		t.Fatalf("expected bob deleted, got %v", repo.deleted)
	}
	if err := svc.DeleteUser(ctx, admin, 2); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserService_ListUsers(t *testing.T) {
	svc, _ := newUserFixture()

	users, err := svc.ListUsers(context.Background(), alice)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	got := []string{users[0].Username, users[1].Username, users[2].Username}
	if got[0] != "alice" || got[1] != "Bob" || got[2] != "root" {
		t.Fatalf("expected case-insensitive ordering, got %v", got)
	}
}
