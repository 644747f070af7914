package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/office-calendar/internal/persistence"
	"github.com/example/office-calendar/internal/persistence/sqlite"
)

// SQLiteHarness is a migrated SQLite store in a temporary directory.
type SQLiteHarness struct {
	Store *sqlite.Store
	Path  string
}

// NewSQLiteHarness opens and migrates a fresh database. The store is closed
// when the test finishes.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "calendar.db")
	ctx := context.Background()

	store, err := sqlite.Open(ctx, sqlite.Config{Path: path})
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	tb.Cleanup(func() { _ = store.Close() })

	if err := store.Migrate(ctx, nil); err != nil {
		tb.Fatalf("failed to migrate storage: %v", err)
	}
	return &SQLiteHarness{Store: store, Path: path}
}

// SeedUser inserts an account directly, bypassing registration.
func (h *SQLiteHarness) SeedUser(tb testing.TB, username string, admin bool) persistence.User {
	tb.Helper()
	user, err := h.Store.Users.CreateUser(context.Background(), persistence.User{
		Username:     username,
		Email:        username + "@example.com",
		DisplayName:  username,
		PasswordHash: "not-a-real-hash",
		IsAdmin:      admin,
		CreatedAt:    referenceTime,
		UpdatedAt:    referenceTime,
	})
	if err != nil {
		tb.Fatalf("seed user %s: %v", username, err)
	}
	return user
}

// SeedRoom inserts a room directly.
func (h *SQLiteHarness) SeedRoom(tb testing.TB, name string, capacity int) persistence.Room {
	tb.Helper()
	room, err := h.Store.Rooms.CreateRoom(context.Background(), persistence.Room{
		Name:      name,
		Capacity:  capacity,
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	})
	if err != nil {
		tb.Fatalf("seed room %s: %v", name, err)
	}
	return room
}
