// Package jobs runs the periodic maintenance tasks of the calendar service.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// SessionPruner deletes expired and revoked sessions.
type SessionPruner interface {
	PruneExpiredSessions(ctx context.Context) (int64, error)
}

// NotificationPruner deletes notifications read before the retention window.
type NotificationPruner interface {
	PruneRead(ctx context.Context, retention time.Duration) (int64, error)
}

// Config holds the sweep schedules in standard cron syntax or descriptors
// such as "@every 15m".
type Config struct {
	SessionSchedule       string
	NotificationSchedule  string
	NotificationRetention time.Duration
	Location              *time.Location
	// Timeout bounds a single run. Zero means one minute.
	Timeout time.Duration
}

// Sweeper schedules session and notification pruning.
type Sweeper struct {
	cron          *cron.Cron
	sessions      SessionPruner
	notifications NotificationPruner
	retention     time.Duration
	timeout       time.Duration
	logger        *slog.Logger
}

// NewSweeper registers the configured jobs without starting them. A nil
// pruner disables its job.
func NewSweeper(cfg Config, sessions SessionPruner, notifications NotificationPruner, logger *slog.Logger) (*Sweeper, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "jobs")
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}

	adapter := cronLogger{logger: logger}
	s := &Sweeper{
		cron: cron.New(
			cron.WithLocation(cfg.Location),
			cron.WithLogger(adapter),
			cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
		),
		sessions:      sessions,
		notifications: notifications,
		retention:     cfg.NotificationRetention,
		timeout:       cfg.Timeout,
		logger:        logger,
	}

	if sessions != nil {
		if _, err := s.cron.AddFunc(cfg.SessionSchedule, func() { s.run("prune_sessions", s.pruneSessions) }); err != nil {
			return nil, fmt.Errorf("jobs: session schedule %q: %w", cfg.SessionSchedule, err)
		}
	}
	if notifications != nil {
		if _, err := s.cron.AddFunc(cfg.NotificationSchedule, func() { s.run("prune_notifications", s.pruneNotifications) }); err != nil {
			return nil, fmt.Errorf("jobs: notification schedule %q: %w", cfg.NotificationSchedule, err)
		}
	}
	return s, nil
}

// Start begins running jobs in the background.
func (s *Sweeper) Start() {
	s.cron.Start()
	s.logger.Info("sweeper started", "jobs", len(s.cron.Entries()))
}

// Stop prevents new runs and waits for running jobs or ctx expiry.
func (s *Sweeper) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce executes every enabled job synchronously.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	if s.sessions != nil {
		if _, err := s.pruneSessions(ctx); err != nil {
			return err
		}
	}
	if s.notifications != nil {
		if _, err := s.pruneNotifications(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sweeper) run(name string, job func(context.Context) (int64, error)) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	started := time.Now()
	removed, err := job(ctx)
	logger := s.logger.With("job", name, "duration_ms", time.Since(started).Milliseconds())
	if err != nil {
		logger.Error("job failed", "error", err)
		return
	}
	logger.Info("job finished", "removed", removed)
}

func (s *Sweeper) pruneSessions(ctx context.Context) (int64, error) {
	return s.sessions.PruneExpiredSessions(ctx)
}

func (s *Sweeper) pruneNotifications(ctx context.Context) (int64, error) {
	return s.notifications.PruneRead(ctx, s.retention)
}

// cronLogger routes cron's internal logging to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}
