package migration

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "migrate.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSplitStatements(t *testing.T) {
	script := `
-- users
CREATE TABLE a (id INTEGER);
CREATE INDEX idx_a ON a(id);

CREATE TRIGGER a_guard
BEFORE INSERT ON a
FOR EACH ROW
WHEN NEW.id < 0
BEGIN
    SELECT RAISE(ABORT, 'negative');
END;
INSERT INTO a (id) VALUES (1)
`
	got := SplitStatements(script)
	if len(got) != 4 {
		t.Fatalf("expected 4 statements, got %d: %q", len(got), got)
	}
	if got[2][:14] != "CREATE TRIGGER" {
		t.Fatalf("expected trigger to stay whole, got %q", got[2])
	}
	if got[3] != "INSERT INTO a (id) VALUES (1)" {
		t.Fatalf("unexpected trailing statement %q", got[3])
	}
}

func TestScanner(t *testing.T) {
	t.Run("orders by numeric version", func(t *testing.T) {
		files := fstest.MapFS{
			"migrations/010_later.sql": {Data: []byte("CREATE TABLE b (id INTEGER);")},
			"migrations/002_first.sql": {Data: []byte("CREATE TABLE a (id INTEGER);")},
			"migrations/README.md":     {Data: []byte("ignored")},
		}
		got, err := NewScanner(files, "migrations").Scan()
		if err != nil {
			t.Fatalf("Scan returned error: %v", err)
		}
		if len(got) != 2 || got[0].Version != "002" || got[1].Version != "010" {
			t.Fatalf("unexpected order: %+v", got)
		}
		if got[0].Description != "first" || got[0].Checksum == "" {
			t.Fatalf("unexpected metadata: %+v", got[0])
		}
	})

	t.Run("rejects duplicate versions", func(t *testing.T) {
		files := fstest.MapFS{
			"m/1_a.sql":  {Data: []byte("CREATE TABLE a (id INTEGER);")},
			"m/01_b.sql": {Data: []byte("CREATE TABLE b (id INTEGER);")},
		}
		if _, err := NewScanner(files, "m").Scan(); !errors.Is(err, ErrDuplicateVersion) {
			t.Fatalf("expected ErrDuplicateVersion, got %v", err)
		}
	})

	t.Run("rejects bad names and empty files", func(t *testing.T) {
		bad := fstest.MapFS{"m/initial.sql": {Data: []byte("SELECT 1;")}}
		if _, err := NewScanner(bad, "m").Scan(); !errors.Is(err, ErrInvalidMigrationFile) {
			t.Fatalf("expected ErrInvalidMigrationFile, got %v", err)
		}
		empty := fstest.MapFS{"m/001_empty.sql": {Data: []byte("-- nothing\n")}}
		if _, err := NewScanner(empty, "m").Scan(); !errors.Is(err, ErrInvalidMigrationFile) {
			t.Fatalf("expected ErrInvalidMigrationFile, got %v", err)
		}
	})
}

func TestManagerRun(t *testing.T) {
	ctx := context.Background()
	files := fstest.MapFS{
		"m/001_init.sql": {Data: []byte("CREATE TABLE a (id INTEGER PRIMARY KEY);\nINSERT INTO a (id) VALUES (1);")},
		"m/002_more.sql": {Data: []byte("CREATE TABLE b (id INTEGER PRIMARY KEY);")},
	}
	migrations, err := NewScanner(files, "m").Scan()
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}

	db := openTestDB(t)
	manager := NewManager(NewSQLiteExecutor(db), migrations, nil)

	if err := manager.Run(ctx); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if err := manager.Run(ctx); err != nil {
		t.Fatalf("second run should be a no-op, got %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM a`).Scan(&count); err != nil || count != 1 {
		t.Fatalf("expected seeded row once, got %d (%v)", count, err)
	}

	status, err := manager.Status(ctx)
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if status.CurrentVersion != "002" || len(status.Pending) != 0 || len(status.Applied) != 2 {
		t.Fatalf("unexpected status: %+v", status)
	}

	t.Run("edited migration is reported", func(t *testing.T) {
		edited := append([]Migration(nil), migrations...)
		edited[0].Checksum = "changed"
		err := NewManager(NewSQLiteExecutor(db), edited, nil).Run(ctx)
		if !errors.Is(err, ErrChecksumMismatch) {
			t.Fatalf("expected ErrChecksumMismatch, got %v", err)
		}
	})
}

func TestManagerRunRollsBackFailedMigration(t *testing.T) {
	ctx := context.Background()
	files := fstest.MapFS{
		"m/001_broken.sql": {Data: []byte("CREATE TABLE c (id INTEGER);\nINSERT INTO missing VALUES (1);")},
	}
	migrations, err := NewScanner(files, "m").Scan()
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	db := openTestDB(t)

	err = NewManager(NewSQLiteExecutor(db), migrations, nil).Run(ctx)
	var migErr *MigrationError
	if !errors.As(err, &migErr) || migErr.Version != "001" {
		t.Fatalf("expected MigrationError for 001, got %v", err)
	}

	var name string
	err = db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'c'`).Scan(&name)
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected table c to be rolled back, got %q (%v)", name, err)
	}
}
