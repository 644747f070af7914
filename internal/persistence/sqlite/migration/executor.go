package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SQLiteExecutor runs migrations against a SQLite database.
type SQLiteExecutor struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteExecutor creates a new SQLite migration executor
func NewSQLiteExecutor(db *sql.DB) *SQLiteExecutor {
	return &SQLiteExecutor{db: db, now: time.Now}
}

// InitializeVersionTable creates the schema_migrations table if it doesn't exist
func (e *SQLiteExecutor) InitializeVersionTable(ctx context.Context) error {
	const createTableSQL = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL,
			checksum TEXT NOT NULL,
			execution_time_ms INTEGER NOT NULL
		)`
	if _, err := e.db.ExecContext(ctx, createTableSQL); err != nil {
		return NewMigrationError("", "", "create schema_migrations table", err)
	}
	return nil
}

// Apply executes every statement of m and records it, all in one transaction.
func (e *SQLiteExecutor) Apply(ctx context.Context, m Migration) (err error) {
	started := e.now()

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return NewMigrationError(m.Version, m.FilePath, "begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for i, stmt := range SplitStatements(m.SQL) {
		if _, execErr := tx.ExecContext(ctx, stmt); execErr != nil {
			err = NewMigrationError(m.Version, m.FilePath, fmt.Sprintf("execute statement %d", i+1), execErr)
			return err
		}
	}

	elapsed := e.now().Sub(started)
	if _, execErr := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, applied_at, checksum, execution_time_ms) VALUES (?, ?, ?, ?)`,
		m.Version, e.now().UTC().Format(time.RFC3339Nano), m.Checksum, elapsed.Milliseconds(),
	); execErr != nil {
		err = NewMigrationError(m.Version, m.FilePath, "record migration", execErr)
		return err
	}

	if err = tx.Commit(); err != nil {
		return NewMigrationError(m.Version, m.FilePath, "commit transaction", err)
	}
	return nil
}

// Applied returns the recorded migrations ordered by version.
func (e *SQLiteExecutor) Applied(ctx context.Context) ([]AppliedMigration, error) {
	rows, err := e.db.QueryContext(ctx,
		`SELECT version, applied_at, checksum, execution_time_ms FROM schema_migrations ORDER BY CAST(version AS INTEGER)`)
	if err != nil {
		return nil, NewMigrationError("", "", "list applied migrations", err)
	}
	defer rows.Close()

	var applied []AppliedMigration
	for rows.Next() {
		var (
			m         AppliedMigration
			appliedAt string
			elapsedMs int64
		)
		if err := rows.Scan(&m.Version, &appliedAt, &m.Checksum, &elapsedMs); err != nil {
			return nil, NewMigrationError("", "", "scan applied migration", err)
		}
		if parsed, perr := time.Parse(time.RFC3339Nano, appliedAt); perr == nil {
			m.AppliedAt = parsed
		}
		m.ExecutionTime = time.Duration(elapsedMs) * time.Millisecond
		applied = append(applied, m)
	}
	if err := rows.Err(); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, NewMigrationError("", "", "iterate applied migrations", err)
	}
	return applied, nil
}

// SplitStatements splits a script into statements, dropping comment lines.
// CREATE TRIGGER bodies are kept whole until their closing END;.
func SplitStatements(script string) []string {
	var (
		statements []string
		current    []string
		inTrigger  bool
	)

	flush := func() {
		stmt := strings.TrimSpace(strings.Join(current, "\n"))
		stmt = strings.TrimSuffix(stmt, ";")
		if strings.TrimSpace(stmt) != "" {
			statements = append(statements, strings.TrimSpace(stmt))
		}
		current = current[:0]
	}

	for _, raw := range strings.Split(script, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		upper := strings.ToUpper(line)
		if len(current) == 0 && strings.HasPrefix(upper, "CREATE TRIGGER") {
			inTrigger = true
		}
		current = append(current, line)

		if inTrigger {
			if upper == "END;" || strings.HasSuffix(upper, " END;") {
				inTrigger = false
				flush()
			}
			continue
		}
		if strings.HasSuffix(line, ";") {
			flush()
		}
	}
	flush()
	return statements
}
